package ml

import (
	"context"

	"github.com/franckalain/foodanalysis/internal/models"
)

// MockModel does no recognition: every image is an apple.
type MockModel struct {
	FoodType   string
	Confidence float64
}

// MockModelFactory implements ModelFactory for the mock model
type MockModelFactory struct{}

func NewMockModelFactory() *MockModelFactory {
	return &MockModelFactory{}
}

func (f *MockModelFactory) CreateModel() (Model, error) {
	return NewMockModel(), nil
}

func NewMockModel() *MockModel {
	return &MockModel{FoodType: "Apple", Confidence: 0.85}
}

func (m *MockModel) Load(ctx context.Context) error {
	return nil
}

func (m *MockModel) Classify(ctx context.Context, imageData []byte, mimeType string) (*models.Classification, error) {
	return &models.Classification{FoodType: m.FoodType, Confidence: m.Confidence}, nil
}

func (m *MockModel) Name() string {
	return "mock"
}
