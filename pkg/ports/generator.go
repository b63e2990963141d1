package ports

import (
	"context"

	"github.com/aretw0/agrobot/pkg/domain"
)

// Generator is a multimodal model provider.
type Generator interface {
	// Generate sends the ordered contents and returns the tagged response.
	// Transport and provider failures are returned as errors; a response
	// without text is not an error at this level.
	Generate(ctx context.Context, contents []domain.Message) (domain.Response, error)
}
