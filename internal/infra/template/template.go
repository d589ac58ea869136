package template

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"

	"github.com/Builder-Lawyers/stack-deployer/internal/infra/config"
	"gopkg.in/yaml.v3"
)

//go:embed template.yaml
var defaultBody string

// FileGetter fetches a stored object, see storage.Storage.
type FileGetter interface {
	GetFile(ctx context.Context, key string) ([]byte, error)
}

// Template is the resource template handed to the orchestration service,
// either inline (Body) or by reference (URL).
type Template struct {
	Body       string
	URL        string
	parameters map[string]struct{}
}

func Default() (*Template, error) {
	return FromBody(defaultBody)
}

func FromBody(body string) (*Template, error) {
	params, err := ParseParameters([]byte(body))
	if err != nil {
		return nil, err
	}
	return &Template{Body: body, parameters: params}, nil
}

// FromURL references a template the orchestration service downloads itself,
// so its declared parameters must be supplied by configuration.
func FromURL(url string, parameters []string) *Template {
	params := make(map[string]struct{}, len(parameters))
	for _, p := range parameters {
		params[p] = struct{}{}
	}
	return &Template{URL: url, parameters: params}
}

// Load resolves the template according to the configured source.
func Load(ctx context.Context, cfg config.TemplateConfig, files FileGetter) (*Template, error) {
	switch cfg.Source {
	case config.TemplateSourceInline:
		return Default()
	case config.TemplateSourceURL:
		return FromURL(cfg.URL, cfg.Parameters), nil
	case config.TemplateSourceS3:
		if files == nil {
			return nil, fmt.Errorf("template source s3 needs a storage client")
		}
		body, err := files.GetFile(ctx, cfg.Key)
		if err != nil {
			return nil, fmt.Errorf("error loading template from s3, %w", err)
		}
		slog.Info("Loaded template from s3", "bucket", cfg.Bucket, "key", cfg.Key, "size", len(body))
		return FromBody(string(body))
	default:
		return nil, fmt.Errorf("unknown template source %q", cfg.Source)
	}
}

func (t *Template) HasParameter(name string) bool {
	_, ok := t.parameters[name]
	return ok
}

// ParseParameters returns the names declared under the template's top level
// Parameters section. Works for both YAML and JSON templates; intrinsic
// function tags such as !Sub are kept as opaque nodes.
func ParseParameters(body []byte) (map[string]struct{}, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(body, &root); err != nil {
		return nil, fmt.Errorf("error parsing template, %w", err)
	}
	if len(root.Content) == 0 || root.Content[0].Kind != yaml.MappingNode {
		return nil, fmt.Errorf("template must be a mapping")
	}

	params := make(map[string]struct{})
	doc := root.Content[0]
	for i := 0; i+1 < len(doc.Content); i += 2 {
		if doc.Content[i].Value != "Parameters" {
			continue
		}
		section := doc.Content[i+1]
		if section.Kind != yaml.MappingNode {
			return nil, fmt.Errorf("template Parameters must be a mapping")
		}
		for j := 0; j+1 < len(section.Content); j += 2 {
			params[section.Content[j].Value] = struct{}{}
		}
	}
	return params, nil
}
