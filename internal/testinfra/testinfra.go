package testinfra

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/localstack"
	"github.com/testcontainers/testcontainers-go/wait"
)

const localstackImage = "localstack/localstack:4.4"

type Localstack struct {
	Container *localstack.LocalStackContainer
	AwsCfg    aws.Config
}

// SetupLocalstack starts a localstack container with the given services and
// points the default AWS config at it.
func SetupLocalstack(ctx context.Context, services ...string) (*Localstack, error) {
	ls, err := localstack.Run(ctx,
		localstackImage,
		testcontainers.WithEnv(map[string]string{"SERVICES": strings.Join(services, ",")}),
	)
	if err != nil {
		return nil, fmt.Errorf("start localstack: %w", err)
	}

	mappedPort, err := ls.MappedPort(ctx, "4566/tcp")
	if err != nil {
		return nil, fmt.Errorf("localstack port: %w", err)
	}
	provider, err := testcontainers.NewDockerProvider()
	if err != nil {
		return nil, fmt.Errorf("docker provider: %w", err)
	}
	defer provider.Close()
	host, err := provider.DaemonHost(ctx)
	if err != nil {
		return nil, fmt.Errorf("docker host: %w", err)
	}

	os.Setenv("AWS_ACCESS_KEY_ID", "test")
	os.Setenv("AWS_SECRET_ACCESS_KEY", "test")
	os.Setenv("AWS_REGION", "us-east-1")
	os.Setenv("AWS_ENDPOINT_URL", "http://"+host+":"+mappedPort.Port())

	slog.Info("SETUP AWS CONFIG", "services", services)
	awsCfg, err := awsConfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("can't load aws config: %w", err)
	}

	return &Localstack{Container: ls, AwsCfg: awsCfg}, nil
}

func (l *Localstack) Terminate(ctx context.Context) {
	if err := l.Container.Terminate(ctx); err != nil {
		log.Printf("failed to terminate localstack: %s", err)
	}
}

type Postgres struct {
	Container testcontainers.Container
	Pool      *pgxpool.Pool
	DSN       string
}

func SetupDB(ctx context.Context) (*Postgres, error) {
	pgReq := testcontainers.ContainerRequest{
		Image:        "postgres:17.2-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_PASSWORD": "password",
			"POSTGRES_USER":     "postgres",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
	}
	pgC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: pgReq,
		Started:          true,
	})
	if err != nil {
		return nil, fmt.Errorf("start postgres: %w", err)
	}

	pgHostPort, err := pgC.Endpoint(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("postgres endpoint: %w", err)
	}
	pgDSN := fmt.Sprintf("postgres://postgres:password@%s/testdb?sslmode=disable", pgHostPort)

	pool, err := pgxpool.New(ctx, pgDSN)
	if err != nil {
		return nil, fmt.Errorf("pgxpool connect: %w", err)
	}

	for i := 0; i < 20; i++ {
		slog.Info("ping db", "try", i)
		ctxPing, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
		err = pool.Ping(ctxPing)
		cancel()
		if err == nil {
			return &Postgres{Container: pgC, Pool: pool, DSN: pgDSN}, nil
		}
		time.Sleep(100 * time.Millisecond)
	}
	return nil, fmt.Errorf("db did not respond after 20 attempts: %w", err)
}

func (p *Postgres) Terminate(ctx context.Context) {
	p.Pool.Close()
	if err := p.Container.Terminate(ctx); err != nil {
		log.Printf("failed to terminate postgres: %s", err)
	}
}
