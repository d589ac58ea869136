package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/Builder-Lawyers/stack-deployer/pkg/env"
)

const (
	StoreDriverDynamo   = "dynamo"
	StoreDriverPostgres = "postgres"

	TemplateSourceInline = "inline"
	TemplateSourceURL    = "url"
	TemplateSourceS3     = "s3"

	// MaxWorkerConcurrency matches CloudFormation's per account limit of
	// concurrent stack create operations.
	MaxWorkerConcurrency = 5
)

type Config struct {
	HTTPAddr          string
	Log               LogConfig
	Store             StoreConfig
	Queue             QueueConfig
	Template          TemplateConfig
	Orchestrator      OrchestratorConfig
	DeadLetterMonitor MonitorConfig
}

type LogConfig struct {
	Level  string
	Format string
}

type StoreConfig struct {
	Driver      string
	Table       string
	DatabaseURL string
}

type QueueConfig struct {
	URL               string
	DeadLetterURL     string
	GroupID           string
	BatchSize         int
	WaitSeconds       int32
	VisibilityTimeout int32
	MaxReceiveCount   int
	ContentDedup      bool
	Concurrency       int
}

type TemplateConfig struct {
	Source     string
	URL        string
	Bucket     string
	Key        string
	Parameters []string
}

type OrchestratorConfig struct {
	// RateLimit is the number of CloudFormation calls per second, 0 disables the limit.
	RateLimit int
}

type MonitorConfig struct {
	Interval time.Duration
}

// Load reads the configuration from the environment and validates it.
func Load() (*Config, error) {
	r := &reader{}
	cfg := &Config{
		HTTPAddr: env.GetEnv("HTTP_ADDR", ":8080"),
		Log: LogConfig{
			Level:  env.GetEnv("LOG_LEVEL", "info"),
			Format: env.GetEnv("LOG_FORMAT", "text"),
		},
		Store: StoreConfig{
			Driver:      env.GetEnv("STORE_DRIVER", StoreDriverDynamo),
			Table:       env.GetEnv("CLIENTS_TABLE", ""),
			DatabaseURL: env.GetEnv("DATABASE_URL", ""),
		},
		Queue: QueueConfig{
			URL:               env.GetEnv("FIFO_QUEUE", ""),
			DeadLetterURL:     env.GetEnv("DEAD_LETTER_QUEUE", ""),
			GroupID:           env.GetEnv("QUEUE_GROUP_ID", "deploy"),
			BatchSize:         r.intVar("QUEUE_BATCH_SIZE", 1),
			WaitSeconds:       r.int32Var("QUEUE_WAIT_SECONDS", 20),
			VisibilityTimeout: r.int32Var("QUEUE_VISIBILITY_TIMEOUT", 300),
			MaxReceiveCount:   r.intVar("QUEUE_MAX_RECEIVE_COUNT", 3),
			ContentDedup:      r.boolVar("QUEUE_CONTENT_DEDUP", true),
			Concurrency:       r.intVar("WORKER_CONCURRENCY", 1),
		},
		Template: TemplateConfig{
			Source:     env.GetEnv("TEMPLATE_SOURCE", TemplateSourceInline),
			URL:        env.GetEnv("TEMPLATE_URL", ""),
			Bucket:     env.GetEnv("TEMPLATE_BUCKET", ""),
			Key:        env.GetEnv("TEMPLATE_KEY", "template.yaml"),
			Parameters: env.GetList("TEMPLATE_PARAMETERS", []string{"StackName"}),
		},
		Orchestrator: OrchestratorConfig{
			RateLimit: r.intVar("ORCHESTRATOR_RATE_LIMIT", 2),
		},
		DeadLetterMonitor: MonitorConfig{
			Interval: r.durationVar("DLQ_MONITOR_INTERVAL", time.Minute),
		},
	}

	// malformed values are reported even when the defaults would validate
	if err := errors.Join(errors.Join(r.problems...), cfg.Validate()); err != nil {
		return nil, err
	}
	return cfg, nil
}

// reader collects parse errors of typed variables so Load reports them all.
type reader struct {
	problems []error
}

func (r *reader) intVar(key string, def int) int {
	n, err := env.GetInt(key, def)
	r.add(err)
	return n
}

func (r *reader) int32Var(key string, def int32) int32 {
	n, err := env.GetInt32(key, def)
	r.add(err)
	return n
}

func (r *reader) boolVar(key string, def bool) bool {
	b, err := env.GetBool(key, def)
	r.add(err)
	return b
}

func (r *reader) durationVar(key string, def time.Duration) time.Duration {
	d, err := env.GetDuration(key, def)
	r.add(err)
	return d
}

func (r *reader) add(err error) {
	if err != nil {
		r.problems = append(r.problems, err)
	}
}

// Validate reports every missing or inconsistent setting at once.
func (c *Config) Validate() error {
	var problems []error

	switch c.Store.Driver {
	case StoreDriverDynamo:
		if c.Store.Table == "" {
			problems = append(problems, errors.New("CLIENTS_TABLE is required"))
		}
	case StoreDriverPostgres:
		if c.Store.DatabaseURL == "" {
			problems = append(problems, errors.New("DATABASE_URL is required for the postgres store"))
		}
	default:
		problems = append(problems, fmt.Errorf("unknown STORE_DRIVER %q", c.Store.Driver))
	}

	if c.Queue.URL == "" {
		problems = append(problems, errors.New("FIFO_QUEUE is required"))
	}
	if c.Queue.GroupID == "" {
		problems = append(problems, errors.New("QUEUE_GROUP_ID must not be empty"))
	}
	if c.Queue.BatchSize != 1 {
		problems = append(problems, fmt.Errorf("QUEUE_BATCH_SIZE must be 1, got %d", c.Queue.BatchSize))
	}
	if c.Queue.WaitSeconds < 0 || c.Queue.WaitSeconds > 20 {
		problems = append(problems, fmt.Errorf("QUEUE_WAIT_SECONDS must be within 0..20, got %d", c.Queue.WaitSeconds))
	}
	if c.Queue.VisibilityTimeout <= 0 {
		problems = append(problems, errors.New("QUEUE_VISIBILITY_TIMEOUT must be positive"))
	}
	if c.Queue.MaxReceiveCount < 1 {
		problems = append(problems, errors.New("QUEUE_MAX_RECEIVE_COUNT must be at least 1"))
	}
	if c.Queue.Concurrency < 1 || c.Queue.Concurrency > MaxWorkerConcurrency {
		problems = append(problems, fmt.Errorf("WORKER_CONCURRENCY must be within 1..%d, got %d",
			MaxWorkerConcurrency, c.Queue.Concurrency))
	}

	switch c.Template.Source {
	case TemplateSourceInline:
	case TemplateSourceURL:
		if c.Template.URL == "" {
			problems = append(problems, errors.New("TEMPLATE_URL is required for the url template source"))
		}
	case TemplateSourceS3:
		if c.Template.Bucket == "" || c.Template.Key == "" {
			problems = append(problems, errors.New("TEMPLATE_BUCKET and TEMPLATE_KEY are required for the s3 template source"))
		}
	default:
		problems = append(problems, fmt.Errorf("unknown TEMPLATE_SOURCE %q", c.Template.Source))
	}

	if c.Orchestrator.RateLimit < 0 {
		problems = append(problems, errors.New("ORCHESTRATOR_RATE_LIMIT must not be negative"))
	}
	if c.DeadLetterMonitor.Interval <= 0 {
		problems = append(problems, errors.New("DLQ_MONITOR_INTERVAL must be positive"))
	}

	return errors.Join(problems...)
}
