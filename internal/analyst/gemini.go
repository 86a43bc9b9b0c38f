package analyst

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// DefaultModel is used when no model name is configured.
const DefaultModel = "gemini-2.0-flash"

// ErrEmptyResponse is returned when the model produced no text.
var ErrEmptyResponse = errors.New("model returned an empty response")

// GeminiModel generates structured output with Google's Gemini API.
type GeminiModel struct {
	client *genai.Client
	model  string
}

// NewGeminiModel creates a Gemini client for the given model.
func NewGeminiModel(ctx context.Context, apiKey, model string) (*GeminiModel, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	if model == "" {
		model = DefaultModel
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &GeminiModel{client: client, model: model}, nil
}

func (g *GeminiModel) Name() string { return "gemini:" + g.model }

// GenerateJSON sends prompt and decodes the JSON object the model returns into out.
func (g *GeminiModel) GenerateJSON(ctx context.Context, prompt string, schema Schema, out any) error {
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   toGenaiSchema(schema),
	})
	if err != nil {
		return fmt.Errorf("gemini generate: %w", err)
	}
	return decodeJSON(resp.Text(), out)
}

func toGenaiSchema(s Schema) *genai.Schema {
	props := make(map[string]*genai.Schema, len(s.Fields))
	required := make([]string, 0, len(s.Fields))
	order := make([]string, 0, len(s.Fields))
	for _, f := range s.Fields {
		props[f.Name] = &genai.Schema{Type: genai.TypeString, Description: f.Description}
		required = append(required, f.Name)
		order = append(order, f.Name)
	}
	return &genai.Schema{
		Type:             genai.TypeObject,
		Title:            s.Name,
		Properties:       props,
		Required:         required,
		PropertyOrdering: order,
	}
}

// decodeJSON tolerates a markdown code fence around the object.
func decodeJSON(text string, out any) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyResponse
	}
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	}
	if err := json.Unmarshal([]byte(text), out); err != nil {
		return fmt.Errorf("decode model output: %w", err)
	}
	return nil
}
