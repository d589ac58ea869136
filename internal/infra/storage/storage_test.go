package storage

import (
	"context"
	"flag"
	"log"
	"os"
	"testing"

	"github.com/Builder-Lawyers/stack-deployer/internal/infra/config"
	"github.com/Builder-Lawyers/stack-deployer/internal/infra/template"
	"github.com/Builder-Lawyers/stack-deployer/internal/testinfra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var s3Storage *Storage

func TestMain(m *testing.M) {
	flag.Parse()
	if testing.Short() {
		os.Exit(m.Run())
	}

	ctx := context.Background()
	ls, err := testinfra.SetupLocalstack(ctx, "s3")
	if err != nil {
		log.Fatalf("failed to start localstack: %v", err)
	}

	s3Storage = NewStorage(ls.AwsCfg, "cf-templates")
	if err := s3Storage.CreateBucket(ctx); err != nil {
		log.Fatalf("failed to create bucket: %v", err)
	}

	exitCode := m.Run()

	ls.Terminate(ctx)
	os.Exit(exitCode)
}

func TestTemplateLoadsFromBucket(t *testing.T) {
	if testing.Short() {
		t.Skip("needs localstack")
	}
	ctx := context.Background()
	body := "Parameters:\n  StackName:\n    Type: String\nResources: {}\n"
	require.NoError(t, s3Storage.UploadFile(ctx, "client/template.yaml", "application/x-yaml", []byte(body)))

	tmpl, err := template.Load(ctx, config.TemplateConfig{
		Source: config.TemplateSourceS3,
		Bucket: "cf-templates",
		Key:    "client/template.yaml",
	}, s3Storage)
	require.NoError(t, err)

	assert.Equal(t, body, tmpl.Body)
	assert.True(t, tmpl.HasParameter("StackName"))
}

func TestGetFileMissingKey(t *testing.T) {
	if testing.Short() {
		t.Skip("needs localstack")
	}
	_, err := s3Storage.GetFile(context.Background(), "does/not/exist.yaml")
	assert.Error(t, err)
}
