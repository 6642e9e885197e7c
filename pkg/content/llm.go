package content

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"text/template"
	"time"

	"github.com/entrhq/catalogsync/pkg/types"
)

// ErrEmptyCompletion is returned when a model answers with no usable text.
var ErrEmptyCompletion = errors.New("model returned no text")

// Completer sends a single prompt to a language model.
type Completer interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
}

const systemPrompt = "Eres un experto en redacción de descripciones comerciales para productos industriales."

// DefaultPrompt is used when no prompt is configured. Fields: ProductType,
// Name, Brand, Model, Specs, Applications, Focus.
const DefaultPrompt = `Genera una descripción profesional y persuasiva para el siguiente producto.

Tipo de producto: {{.ProductType}}
- Nombre: {{.Name}}
- Marca: {{.Brand}}
- Modelo: {{.Model}}
- Características técnicas: {{.Specs}}

Instrucciones:
1. Orientada a la venta, destacando beneficios y ventajas competitivas.
2. Menciona aplicaciones típicas ({{.Applications}}).
3. Enfócate en: {{.Focus}}.
4. Entre 150 y 200 palabras en 2 o 3 párrafos.
5. Sin listas, viñetas, emojis, HTML ni markdown.

Devuelve solo el texto de los párrafos, separados por un salto de línea.`

type promptData struct {
	ProductType  string
	Name         string
	Brand        string
	Model        string
	Specs        string
	Applications string
	Focus        string
}

// LLMGenerator asks a model for the body paragraphs and renders them with
// the template generator's layout.
type LLMGenerator struct {
	name      string
	completer Completer
	prompt    *template.Template
	base      *TemplateGenerator
	timeout   time.Duration
}

// NewLLMGenerator parses promptText (DefaultPrompt when empty).
func NewLLMGenerator(name string, completer Completer, promptText string, base *TemplateGenerator, timeout time.Duration) (*LLMGenerator, error) {
	if promptText == "" {
		promptText = DefaultPrompt
	}
	tmpl, err := template.New(name).Option("missingkey=zero").Parse(promptText)
	if err != nil {
		return nil, fmt.Errorf("invalid content prompt: %w", err)
	}
	return &LLMGenerator{
		name:      name,
		completer: completer,
		prompt:    tmpl,
		base:      base,
		timeout:   timeout,
	}, nil
}

// Name identifies the generator in logs.
func (g *LLMGenerator) Name() string { return g.name }

// Generate implements Generator.
func (g *LLMGenerator) Generate(ctx context.Context, item types.Item) (types.Fields, error) {
	prompt, err := g.Prompt(item)
	if err != nil {
		return nil, err
	}

	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	text, err := g.completer.Complete(ctx, systemPrompt, prompt)
	if err != nil {
		return nil, fmt.Errorf("%s completion failed: %w", g.name, err)
	}
	paragraphs := cleanModelText(text)
	if len(paragraphs) == 0 {
		return nil, ErrEmptyCompletion
	}
	return g.base.compose(item, paragraphs)
}

// Prompt renders the prompt for item.
func (g *LLMGenerator) Prompt(item types.Item) (string, error) {
	pt := DetectProductType(item)
	data := promptData{
		ProductType:  pt.Label,
		Name:         displayName(item),
		Brand:        item.Brand,
		Model:        item.Model,
		Specs:        attributeSummary(item.Attributes),
		Applications: pt.Applications,
		Focus:        pt.Focus,
	}
	var buf bytes.Buffer
	if err := g.prompt.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render prompt: %w", err)
	}
	return buf.String(), nil
}

func attributeSummary(attrs map[string]string) string {
	keys := make([]string, 0, len(attrs))
	for k, v := range attrs {
		if strings.TrimSpace(v) != "" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s: %s", strings.ReplaceAll(k, "_", " "), attrs[k])
	}
	return strings.Join(parts, ", ")
}
