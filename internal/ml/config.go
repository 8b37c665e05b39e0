package ml

import (
	"errors"
)

// Config selects the classifier.
type Config struct {
	Type   string       `mapstructure:"type" json:"type"` // "mock" or "google"
	Google GoogleConfig `mapstructure:"google" json:"google"`
}

// GoogleConfig holds configuration for the Vertex AI model
type GoogleConfig struct {
	ProjectID       string `mapstructure:"project_id" json:"project_id"`
	Location        string `mapstructure:"location" json:"location"`
	CredentialsFile string `mapstructure:"credentials_file" json:"credentials_file"`
	Model           string `mapstructure:"model" json:"model"`
}

const defaultGoogleModel = "gemini-1.5-flash"

// Validate checks required fields and fills the model default.
func (c *GoogleConfig) Validate() error {
	if c.ProjectID == "" {
		return errors.New("project_id is not set")
	}
	if c.Location == "" {
		return errors.New("location is not set")
	}
	if c.Model == "" {
		c.Model = defaultGoogleModel
	}
	return nil
}
