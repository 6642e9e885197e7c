package content

import (
	"context"
	"fmt"

	"github.com/entrhq/catalogsync/pkg/config"
	"github.com/entrhq/catalogsync/pkg/logging"
	"github.com/entrhq/catalogsync/pkg/types"
)

// Generator produces the editor fields for one item.
type Generator interface {
	Name() string
	Generate(ctx context.Context, item types.Item) (types.Fields, error)
}

// Fallback tries Primary and, on any error, Secondary.
type Fallback struct {
	Primary   Generator
	Secondary Generator

	logger *logging.Logger
}

// NewFallback chains two generators.
func NewFallback(primary, secondary Generator) *Fallback {
	return &Fallback{
		Primary:   primary,
		Secondary: secondary,
		logger:    logging.NewLogger("content"),
	}
}

// Name identifies the generator in logs.
func (f *Fallback) Name() string {
	return f.Primary.Name() + "+" + f.Secondary.Name()
}

// Generate implements Generator.
func (f *Fallback) Generate(ctx context.Context, item types.Item) (types.Fields, error) {
	fields, err := f.Primary.Generate(ctx, item)
	if err == nil {
		return fields, nil
	}
	if ctx.Err() != nil {
		return nil, err
	}
	f.logger.Warnf("%s failed for %s, using %s: %v", f.Primary.Name(), item.ID, f.Secondary.Name(), err)
	return f.Secondary.Generate(ctx, item)
}

// New builds the generator selected by cfg. LLM providers are always
// backed by the template generator.
func New(ctx context.Context, cfg config.ContentConfig) (Generator, error) {
	base := NewTemplateGenerator(cfg.Contact)

	var (
		completer Completer
		err       error
	)
	switch cfg.Provider {
	case "", "template":
		return base, nil
	case "openai":
		completer, err = NewOpenAICompleter(cfg)
	case "gemini":
		completer, err = NewGeminiCompleter(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown content provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}

	llm, err := NewLLMGenerator(cfg.Provider, completer, cfg.Prompt, base, cfg.Timeout)
	if err != nil {
		return nil, err
	}
	return NewFallback(llm, base), nil
}
