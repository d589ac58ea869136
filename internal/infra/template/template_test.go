package template

import (
	"context"
	"errors"
	"testing"

	"github.com/Builder-Lawyers/stack-deployer/internal/infra/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fileGetter struct {
	body []byte
	err  error
	keys []string
}

func (f *fileGetter) GetFile(_ context.Context, key string) ([]byte, error) {
	f.keys = append(f.keys, key)
	return f.body, f.err
}

func TestDefaultTemplateDeclaresClientParameters(t *testing.T) {
	tmpl, err := Default()
	require.NoError(t, err)

	assert.NotEmpty(t, tmpl.Body)
	assert.Empty(t, tmpl.URL)
	assert.True(t, tmpl.HasParameter("StackName"))
	assert.True(t, tmpl.HasParameter("ClientId"))
	assert.True(t, tmpl.HasParameter("LatestAmazonLinux2AMI"))
	assert.False(t, tmpl.HasParameter("WebServerInstance"))
}

func TestParseParametersJSONTemplate(t *testing.T) {
	params, err := ParseParameters([]byte(`{"Parameters":{"clientId":{"Type":"String"}},"Resources":{}}`))
	require.NoError(t, err)
	assert.Contains(t, params, "clientId")
	assert.Len(t, params, 1)
}

func TestParseParametersRejectsGarbage(t *testing.T) {
	_, err := ParseParameters([]byte("- just\n- a list\n"))
	assert.Error(t, err)

	_, err = ParseParameters([]byte("Parameters: [a, b]\n"))
	assert.Error(t, err)
}

func TestLoadFromURLUsesConfiguredParameters(t *testing.T) {
	tmpl, err := Load(context.Background(), config.TemplateConfig{
		Source:     config.TemplateSourceURL,
		URL:        "https://s3.amazonaws.com/cf-templates/template.yaml",
		Parameters: []string{"StackName"},
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, "https://s3.amazonaws.com/cf-templates/template.yaml", tmpl.URL)
	assert.Empty(t, tmpl.Body)
	assert.True(t, tmpl.HasParameter("StackName"))
	assert.False(t, tmpl.HasParameter("ClientId"))
}

func TestLoadFromS3(t *testing.T) {
	files := &fileGetter{body: []byte("Parameters:\n  clientId:\n    Type: String\nResources: {}\n")}
	tmpl, err := Load(context.Background(), config.TemplateConfig{
		Source: config.TemplateSourceS3,
		Bucket: "templates",
		Key:    "client/template.yaml",
	}, files)
	require.NoError(t, err)

	assert.Equal(t, []string{"client/template.yaml"}, files.keys)
	assert.True(t, tmpl.HasParameter("clientId"))

	files.err = errors.New("no such key")
	_, err = Load(context.Background(), config.TemplateConfig{Source: config.TemplateSourceS3, Key: "missing"}, files)
	assert.Error(t, err)
}

func TestLoadUnknownSource(t *testing.T) {
	_, err := Load(context.Background(), config.TemplateConfig{Source: "ftp"}, nil)
	assert.Error(t, err)
}
