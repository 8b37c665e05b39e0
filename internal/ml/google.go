package ml

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"cloud.google.com/go/vertexai/genai"
	"github.com/franckalain/foodanalysis/internal/models"
	"github.com/franckalain/foodanalysis/internal/nutrition"
	"google.golang.org/api/option"
)

// GoogleModel implements the Model interface for Google's Vertex AI
type GoogleModel struct {
	config GoogleConfig
	client *genai.Client
	model  *genai.GenerativeModel
}

// GoogleModelFactory implements ModelFactory for Google models
type GoogleModelFactory struct {
	config GoogleConfig
}

func NewGoogleModelFactory(config GoogleConfig) *GoogleModelFactory {
	return &GoogleModelFactory{config: config}
}

func (f *GoogleModelFactory) CreateModel() (Model, error) {
	return &GoogleModel{
		config: f.config,
	}, nil
}

// Load initializes the Google model
func (m *GoogleModel) Load(ctx context.Context) error {
	opts := []option.ClientOption{}

	if m.config.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(m.config.CredentialsFile))
	}

	client, err := genai.NewClient(ctx, m.config.ProjectID, m.config.Location, opts...)
	if err != nil {
		return fmt.Errorf("failed to create client: %w", err)
	}

	m.client = client
	m.model = client.GenerativeModel(m.config.Model)
	return nil
}

func (m *GoogleModel) Name() string {
	return "google"
}

// Close releases the underlying client.
func (m *GoogleModel) Close() error {
	if m.client == nil {
		return nil
	}
	return m.client.Close()
}

func classificationPrompt() string {
	return fmt.Sprintf(`Identify the food in this image. Choose exactly one of: %s.
Respond with a JSON object and nothing else:
{
	"food_type": "string",
	"confidence": number between 0 and 1
}`, strings.Join(nutrition.Names(), ", "))
}

// Classify asks Gemini which known food the image shows.
func (m *GoogleModel) Classify(ctx context.Context, imageData []byte, mimeType string) (*models.Classification, error) {
	if m.model == nil {
		return nil, fmt.Errorf("model not loaded")
	}

	format := strings.TrimPrefix(mimeType, "image/")
	if format == "" || format == mimeType {
		format = "jpeg"
	}
	img := genai.ImageData(format, imageData)

	resp, err := m.model.GenerateContent(ctx, genai.Text(classificationPrompt()), img)
	if err != nil {
		return nil, fmt.Errorf("failed to call ai: %w", err)
	}

	if len(resp.Candidates) == 0 {
		return nil, fmt.Errorf("no response generated")
	}

	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return nil, fmt.Errorf("no content in response")
	}

	text, ok := candidate.Content.Parts[0].(genai.Text)
	if !ok {
		return nil, fmt.Errorf("unexpected response part %T", candidate.Content.Parts[0])
	}
	return parseClassification(string(text))
}

// parseClassification decodes the model's JSON answer, tolerating a
// markdown code fence around it.
func parseClassification(text string) (*models.Classification, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	var out models.Classification
	if err := json.Unmarshal([]byte(text), &out); err != nil {
		return nil, fmt.Errorf("failed to parse model response: %w while parsing %s", err, text)
	}

	profile, err := nutrition.Lookup(out.FoodType)
	if err != nil {
		return nil, err
	}
	out.FoodType = profile.Name

	if out.Confidence < 0 || out.Confidence > 1 {
		return nil, fmt.Errorf("confidence out of range: %v", out.Confidence)
	}
	return &out, nil
}
