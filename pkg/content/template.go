package content

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"net/url"
	"sort"
	"strings"

	"github.com/entrhq/catalogsync/pkg/config"
	"github.com/entrhq/catalogsync/pkg/types"
)

const (
	// MaxSEODescription is the longest meta description search engines show.
	MaxSEODescription = 160
	// MaxSEOTitle keeps titles within the usual result width.
	MaxSEOTitle = 70
)

var detailedTemplate = template.Must(template.New("detailed").Parse(`<div style="font-family: Arial, sans-serif; max-width: 800px; margin: 0 auto;">
<h2 style="background: #ff6600; color: #fff; padding: 15px; text-align: center; border-radius: 10px;">{{.Title}}</h2>
<div style="background: #f9f9f9; padding: 20px; border-radius: 10px; margin-bottom: 20px;">
{{- range .Paragraphs}}
<p style="line-height: 1.6; color: #333;">{{.}}</p>
{{- end}}
</div>
{{- if .Specs}}
<h3 style="color: #333;">ESPECIFICACIONES TÉCNICAS</h3>
<table style="width: 100%; border-collapse: collapse;">
{{- range .Specs}}
<tr><td style="padding: 8px; border-bottom: 1px solid #ddd;"><strong>{{.Label}}</strong></td><td style="padding: 8px; border-bottom: 1px solid #ddd;">{{.Value}}</td></tr>
{{- end}}
</table>
{{- end}}
{{- with .Contact}}
<div style="background: #333; color: #fff; padding: 20px; border-radius: 10px; margin-top: 20px; text-align: center;">
<h3>CONSULTE CON NUESTROS ASESORES</h3>
{{- if .WhatsAppURL}}
<p><a href="{{.WhatsAppURL}}" style="color: #25d366;">WhatsApp {{.Phone}}</a></p>
{{- end}}
{{- if .MailURL}}
<p><a href="{{.MailURL}}" style="color: #fff;">{{.Email}}</a></p>
{{- end}}
{{- if .Website}}
<p>{{.Website}}</p>
{{- end}}
</div>
{{- end}}
</div>`))

type spec struct {
	Label string
	Value string
}

type contactView struct {
	Phone       string
	Email       string
	Website     string
	WhatsAppURL string
	MailURL     string
}

type detailedView struct {
	Title      string
	Paragraphs []string
	Specs      []spec
	Contact    *contactView
}

// TemplateGenerator builds product copy from item data alone. It never
// fails on well-formed items and is the fallback for the LLM generators.
type TemplateGenerator struct {
	contact config.ContactConfig
}

// NewTemplateGenerator creates a template generator with the given contact
// block.
func NewTemplateGenerator(contact config.ContactConfig) *TemplateGenerator {
	return &TemplateGenerator{contact: contact}
}

// Name identifies the generator in logs.
func (g *TemplateGenerator) Name() string { return "template" }

// Generate produces description, detailed description and SEO fields.
func (g *TemplateGenerator) Generate(ctx context.Context, item types.Item) (types.Fields, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	pt := DetectProductType(item)
	return g.compose(item, templateParagraphs(item, pt))
}

// compose renders the full field set around the given body paragraphs.
func (g *TemplateGenerator) compose(item types.Item, paragraphs []string) (types.Fields, error) {
	if len(paragraphs) == 0 {
		return nil, fmt.Errorf("no description paragraphs for item %s", item.ID)
	}

	view := detailedView{
		Title:      strings.ToUpper(displayName(item)),
		Paragraphs: paragraphs,
		Specs:      specs(item),
		Contact:    g.contactView(item),
	}
	var buf bytes.Buffer
	if err := detailedTemplate.Execute(&buf, view); err != nil {
		return nil, fmt.Errorf("failed to render detailed description: %w", err)
	}

	return types.Fields{
		config.FieldDescription:         shortDescription(item, view.Specs),
		config.FieldDetailedDescription: buf.String(),
		config.FieldSEOTitle:            seoTitle(item),
		config.FieldSEODescription:      Truncate(strings.Join(paragraphs, " "), MaxSEODescription),
	}, nil
}

func templateParagraphs(item types.Item, pt ProductType) []string {
	name := displayName(item)
	first := fmt.Sprintf("%s es una solución confiable para %s.", name, pt.Applications)
	if item.Brand != "" && !strings.Contains(strings.ToLower(name), strings.ToLower(item.Brand)) {
		first = fmt.Sprintf("%s de %s es una solución confiable para %s.", name, item.Brand, pt.Applications)
	}

	second := fmt.Sprintf("Diseñado con foco en %s, combina rendimiento y durabilidad para un uso exigente.", pt.Focus)
	if item.Model != "" {
		second = fmt.Sprintf("El modelo %s está diseñado con foco en %s y combina rendimiento y durabilidad para un uso exigente.", item.Model, pt.Focus)
	}

	return []string{
		first,
		second,
		"Consulte disponibilidad, financiación y asesoramiento técnico con nuestro equipo.",
	}
}

func displayName(item types.Item) string {
	if n := strings.TrimSpace(item.Name); n != "" {
		return n
	}
	return item.ID
}

// specs lists brand, model and family followed by the remaining attributes
// in key order.
func specs(item types.Item) []spec {
	var out []spec
	for _, s := range []spec{
		{"MARCA", item.Brand},
		{"MODELO", item.Model},
		{"FAMILIA", item.Family},
	} {
		if strings.TrimSpace(s.Value) != "" {
			out = append(out, s)
		}
	}
	keys := make([]string, 0, len(item.Attributes))
	for k := range item.Attributes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v := strings.TrimSpace(item.Attributes[k])
		if v == "" {
			continue
		}
		out = append(out, spec{Label: strings.ToUpper(strings.ReplaceAll(k, "_", " ")), Value: v})
	}
	return out
}

// shortDescription is the plain multi-line summary shown in listings.
func shortDescription(item types.Item, specs []spec) string {
	lines := []string{displayName(item)}
	for _, s := range specs {
		lines = append(lines, fmt.Sprintf("%s: %s", titleCase(s.Label), s.Value))
	}
	return strings.Join(lines, "\n")
}

func titleCase(s string) string {
	words := strings.Fields(strings.ToLower(s))
	for i, w := range words {
		r := []rune(w)
		words[i] = strings.ToUpper(string(r[0])) + string(r[1:])
	}
	return strings.Join(words, " ")
}

func seoTitle(item types.Item) string {
	parts := []string{displayName(item)}
	lower := strings.ToLower(parts[0])
	for _, extra := range []string{item.Brand, item.Model} {
		if extra != "" && !strings.Contains(lower, strings.ToLower(extra)) {
			parts = append(parts, extra)
			lower += " " + strings.ToLower(extra)
		}
	}
	return Truncate(strings.Join(parts, " "), MaxSEOTitle)
}

func (g *TemplateGenerator) contactView(item types.Item) *contactView {
	c := g.contact
	if c.WhatsApp == "" && c.Email == "" && c.Website == "" {
		return nil
	}
	name := displayName(item)
	v := &contactView{Phone: c.Phone, Email: c.Email, Website: c.Website}
	if c.WhatsApp != "" {
		msg := fmt.Sprintf("Hola, vengo de ver el %s en la tienda y quisiera más información sobre este producto", name)
		v.WhatsAppURL = "https://wa.me/" + c.WhatsApp + "?text=" + url.QueryEscape(msg)
		if v.Phone == "" {
			v.Phone = "+" + c.WhatsApp
		}
	}
	if c.Email != "" {
		q := url.Values{}
		q.Set("subject", "Consulta - "+name)
		v.MailURL = "mailto:" + c.Email + "?" + strings.ReplaceAll(q.Encode(), "+", "%20")
	}
	return v
}
