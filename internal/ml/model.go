package ml

import (
	"context"
	"fmt"

	"github.com/franckalain/foodanalysis/internal/models"
)

// Model classifies a food image.
type Model interface {
	// Load initializes the model with its configuration
	Load(ctx context.Context) error
	// Classify returns the food type shown in the image and a confidence in [0,1]
	Classify(ctx context.Context, imageData []byte, mimeType string) (*models.Classification, error)
	// Name identifies the model in logs and metrics
	Name() string
}

// ModelFactory creates a new model instance based on configuration
type ModelFactory interface {
	CreateModel() (Model, error)
}

// NewModel creates a new model instance based on the model type
func NewModel(cfg Config) (Model, error) {
	var factory ModelFactory

	switch cfg.Type {
	case "", "mock":
		factory = NewMockModelFactory()
	case "google":
		if err := cfg.Google.Validate(); err != nil {
			return nil, fmt.Errorf("invalid Google config: %w", err)
		}
		factory = NewGoogleModelFactory(cfg.Google)
	default:
		return nil, fmt.Errorf("unsupported model type: %s", cfg.Type)
	}
	return factory.CreateModel()
}
