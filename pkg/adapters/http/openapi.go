package http

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/getkin/kin-openapi/openapi3"
)

//go:embed api/openapi.yaml
var rawSpec []byte

// LoadSpec parses and validates the embedded API description and stamps it
// with the running version.
func LoadSpec(ctx context.Context, version string) (*openapi3.T, error) {
	loader := openapi3.NewLoader()
	loader.Context = ctx

	doc, err := loader.LoadFromData(rawSpec)
	if err != nil {
		return nil, fmt.Errorf("failed to load OpenAPI spec: %w", err)
	}
	if err := doc.Validate(ctx); err != nil {
		return nil, fmt.Errorf("invalid OpenAPI spec: %w", err)
	}
	if version != "" {
		doc.Info.Version = version
	}
	return doc, nil
}
