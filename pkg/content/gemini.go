package content

import (
	"context"
	"fmt"
	"os"
	"strings"

	"google.golang.org/genai"

	"github.com/entrhq/catalogsync/pkg/config"
)

const defaultGeminiModel = "gemini-2.0-flash"

// GeminiCompleter calls the Gemini API.
type GeminiCompleter struct {
	client      *genai.Client
	model       string
	temperature float32
}

// NewGeminiCompleter creates a completer from cfg. The API key falls back to
// GEMINI_API_KEY, then GOOGLE_API_KEY.
func NewGeminiCompleter(ctx context.Context, cfg config.ContentConfig) (*GeminiCompleter, error) {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("GEMINI_API_KEY")
	}
	if apiKey == "" {
		apiKey = os.Getenv("GOOGLE_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("Gemini API key is required (provide via content.api_key or GEMINI_API_KEY environment variable)")
	}

	clientCfg := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize genai client: %w", err)
	}

	model := cfg.Model
	if model == "" || !isGeminiModel(model) {
		model = defaultGeminiModel
	}

	return &GeminiCompleter{
		client:      client,
		model:       model,
		temperature: float32(cfg.Temperature),
	}, nil
}

// Complete implements Completer.
func (c *GeminiCompleter) Complete(ctx context.Context, system, prompt string) (string, error) {
	genCfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(c.temperature),
	}
	if system != "" {
		genCfg.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.model, []*genai.Content{
		{
			Role:  genai.RoleUser,
			Parts: []*genai.Part{genai.NewPartFromText(prompt)},
		},
	}, genCfg)
	if err != nil {
		return "", err
	}

	text := candidateText(resp)
	if text == "" {
		return "", ErrEmptyCompletion
	}
	return text, nil
}

// candidateText returns the text of the first candidate that has any,
// ignoring thought parts.
func candidateText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	for _, cand := range resp.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		var b strings.Builder
		for _, part := range cand.Content.Parts {
			if part == nil || part.Thought {
				continue
			}
			b.WriteString(part.Text)
		}
		if s := strings.TrimSpace(b.String()); s != "" {
			return s
		}
	}
	return ""
}

func isGeminiModel(model string) bool {
	return strings.HasPrefix(strings.ToLower(model), "gemini")
}
