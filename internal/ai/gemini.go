package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/genai"
)

// DefaultModel is used when no model name is configured.
const DefaultModel = "gemini-2.5-flash"

// GeminiGenerator is a Generator backed by the Gemini API.
type GeminiGenerator struct {
	client    *genai.Client
	modelName string
}

// NewGeminiGenerator creates a Gemini API client authenticated with apiKey.
func NewGeminiGenerator(ctx context.Context, apiKey, modelName string) (*GeminiGenerator, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	if modelName == "" {
		modelName = DefaultModel
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}

	return &GeminiGenerator{client: client, modelName: modelName}, nil
}

// Generate implements Generator.
func (g *GeminiGenerator) Generate(ctx context.Context, req Request) (string, error) {
	var contents []*genai.Content
	for _, turn := range req.History {
		role := genai.Role(genai.RoleModel)
		if turn.FromUser {
			role = genai.RoleUser
		}
		contents = append(contents, genai.NewContentFromText(turn.Text, role))
	}
	contents = append(contents, genai.NewContentFromText(req.Prompt, genai.RoleUser))

	temp := float32(0.7)
	if req.Kind.JSON() {
		temp = 0.2
	}
	cfg := &genai.GenerateContentConfig{Temperature: &temp}
	if req.System != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	if schema := responseSchema(req.Kind); schema != nil {
		cfg.ResponseMIMEType = "application/json"
		cfg.ResponseSchema = schema
	}

	res, err := g.client.Models.GenerateContent(ctx, g.modelName, contents, cfg)
	if err != nil {
		return "", classify(err)
	}

	text := res.Text()
	if text == "" {
		return "", fmt.Errorf("gemini returned empty text")
	}
	return text, nil
}

// classify wraps overload and rate-limit responses as TransientError.
func classify(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusServiceUnavailable:
			return &TransientError{Err: fmt.Errorf("gemini generate content: %w", err)}
		}
	}
	return fmt.Errorf("gemini generate content: %w", err)
}

// responseSchema declares the JSON shape the model must produce for kind.
func responseSchema(kind Kind) *genai.Schema {
	str := func() *genai.Schema { return &genai.Schema{Type: genai.TypeString} }

	switch kind {
	case KindRanking:
		return &genai.Schema{Type: genai.TypeArray, Items: str()}
	case KindDraft:
		return &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"title":       str(),
				"description": str(),
				"mood":        {Type: genai.TypeString, Enum: []string{"Energetic", "Calm", "Focus", "Dark", "Funny"}},
				"duration":    str(),
			},
			Required: []string{"title", "description", "mood", "duration"},
		}
	case KindSummary:
		return &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"summary":      str(),
				"keyTakeaways": {Type: genai.TypeArray, Items: str()},
				"vibe":         str(),
			},
			Required: []string{"summary", "keyTakeaways", "vibe"},
		}
	default:
		return nil
	}
}
