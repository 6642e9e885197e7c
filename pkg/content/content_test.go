package content

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrhq/catalogsync/pkg/config"
	"github.com/entrhq/catalogsync/pkg/types"
)

func generatorItem() types.Item {
	return types.Item{
		ID:     "GE-CUM-100",
		Name:   "Generador Cummins 100 KVA",
		Brand:  "Cummins",
		Model:  "C100D5",
		Family: "Grupos electrógenos",
		Attributes: map[string]string{
			"potencia_kva": "100",
			"voltaje":      "380",
			"vacio":        " ",
		},
	}
}

func testContact() config.ContactConfig {
	return config.ContactConfig{
		WhatsApp: "541100000000",
		Email:    "ventas@example.com",
		Phone:    "+54 11 0000-0000",
		Website:  "www.example.com",
	}
}

func TestDetectProductType(t *testing.T) {
	tests := []struct {
		name string
		item types.Item
		want string
	}{
		{"generator by name", types.Item{Name: "Generador diesel"}, "grupo_electrogeno"},
		{"generator by kva in model", types.Item{Name: "Equipo", Model: "150 KVA"}, "grupo_electrogeno"},
		{"compressor by family", types.Item{Name: "Equipo", Family: "Compresores"}, "compresor"},
		{"pump", types.Item{Name: "Motobomba 3 pulgadas"}, "motobomba"},
		{"tiller", types.Item{Name: "Motocultivador 7HP"}, "motocultivador"},
		{"generic", types.Item{Name: "Casco de seguridad"}, "generico"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectProductType(tt.item).Key)
		})
	}
}

func TestPlainText(t *testing.T) {
	in := `<div><h2>Title</h2><p>First   line</p><script>alert(1)</script><p>Second<br>line</p><table><tr><td>A</td><td>B</td></tr></table></div>`
	assert.Equal(t, "Title\nFirst line\nSecond\nline\nA B", PlainText(in))
	assert.Equal(t, "plain", PlainText("plain"))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("  short  ", 10))
	assert.Equal(t, "", Truncate("anything", 0))

	long := strings.Repeat("palabra ", 40)
	got := Truncate(long, 50)
	assert.LessOrEqual(t, utf8.RuneCountInString(got), 50)
	assert.True(t, strings.HasSuffix(got, "palabra"))

	accents := strings.Repeat("ñ", 200)
	assert.Equal(t, 160, utf8.RuneCountInString(Truncate(accents, 160)))
}

func TestCleanModelText(t *testing.T) {
	in := "**Potencia garantizada**\r\n\n- Ideal para obras.\n• Bajo consumo.\n## Cierre\n"
	assert.Equal(t, []string{"Potencia garantizada", "Ideal para obras.", "Bajo consumo.", "Cierre"}, cleanModelText(in))
	assert.Equal(t, []string{"Uno", "Dos"}, cleanModelText("<p>Uno</p><p>Dos</p>"))
	assert.Empty(t, cleanModelText(" \n * \n"))
}

func TestTemplateGenerator(t *testing.T) {
	g := NewTemplateGenerator(testContact())
	fields, err := g.Generate(context.Background(), generatorItem())
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{
		config.FieldDescription,
		config.FieldDetailedDescription,
		config.FieldSEOTitle,
		config.FieldSEODescription,
	}, fields.Keys())

	desc := fields[config.FieldDescription]
	assert.Equal(t, "Generador Cummins 100 KVA\nMarca: Cummins\nModelo: C100D5\nFamilia: Grupos electrógenos\nPotencia Kva: 100\nVoltaje: 380", desc)

	html := fields[config.FieldDetailedDescription]
	assert.Contains(t, html, "GENERADOR CUMMINS 100 KVA")
	assert.Contains(t, html, "respaldo energético")
	assert.Contains(t, html, "POTENCIA KVA")
	assert.Contains(t, html, "https://wa.me/541100000000?text=")
	assert.Contains(t, html, "mailto:ventas@example.com?subject=")
	assert.NotContains(t, html, "VACIO")

	assert.Equal(t, "Generador Cummins 100 KVA C100D5", fields[config.FieldSEOTitle])
	seo := fields[config.FieldSEODescription]
	assert.LessOrEqual(t, utf8.RuneCountInString(seo), MaxSEODescription)
	assert.True(t, strings.HasPrefix(seo, "Generador Cummins 100 KVA es una solución"))
}

func TestTemplateGenerator_EscapesAndOmitsContact(t *testing.T) {
	g := NewTemplateGenerator(config.ContactConfig{})
	fields, err := g.Generate(context.Background(), types.Item{ID: "X-1", Name: `Kit <b>"pro"</b>`})
	require.NoError(t, err)

	html := fields[config.FieldDetailedDescription]
	assert.NotContains(t, html, "<b>")
	assert.NotContains(t, html, "CONSULTE")
	assert.Equal(t, `Kit <b>"pro"</b>`, fields[config.FieldDescription])
}

func TestTemplateGenerator_FallsBackToID(t *testing.T) {
	g := NewTemplateGenerator(config.ContactConfig{})
	fields, err := g.Generate(context.Background(), types.Item{ID: "SKU-9"})
	require.NoError(t, err)
	assert.Equal(t, "SKU-9", fields[config.FieldSEOTitle])
}

func TestTemplateGenerator_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewTemplateGenerator(config.ContactConfig{}).Generate(ctx, generatorItem())
	assert.ErrorIs(t, err, context.Canceled)
}

type fakeCompleter struct {
	text   string
	err    error
	system string
	prompt string
}

func (c *fakeCompleter) Complete(_ context.Context, system, prompt string) (string, error) {
	c.system, c.prompt = system, prompt
	return c.text, c.err
}

func TestLLMGenerator(t *testing.T) {
	comp := &fakeCompleter{text: "**Primer párrafo** con beneficios.\n\nSegundo párrafo sobre aplicaciones."}
	g, err := NewLLMGenerator("fake", comp, "", NewTemplateGenerator(testContact()), 0)
	require.NoError(t, err)

	fields, err := g.Generate(context.Background(), generatorItem())
	require.NoError(t, err)

	assert.Equal(t, systemPrompt, comp.system)
	assert.Contains(t, comp.prompt, "Tipo de producto: Grupo electrógeno")
	assert.Contains(t, comp.prompt, "potencia kva: 100, voltaje: 380")
	assert.Contains(t, comp.prompt, "respaldo energético, obras e industria")

	html := fields[config.FieldDetailedDescription]
	assert.Contains(t, html, "Primer párrafo con beneficios.")
	assert.Contains(t, html, "Segundo párrafo sobre aplicaciones.")
	assert.NotContains(t, html, "**")
	assert.Equal(t, "Primer párrafo con beneficios. Segundo párrafo sobre aplicaciones.", fields[config.FieldSEODescription])
}

func TestLLMGenerator_CustomPrompt(t *testing.T) {
	comp := &fakeCompleter{text: "ok"}
	g, err := NewLLMGenerator("fake", comp, "Describe {{.Name}} ({{.Brand}})", NewTemplateGenerator(config.ContactConfig{}), 0)
	require.NoError(t, err)

	_, err = g.Generate(context.Background(), generatorItem())
	require.NoError(t, err)
	assert.Equal(t, "Describe Generador Cummins 100 KVA (Cummins)", comp.prompt)

	_, err = NewLLMGenerator("fake", comp, "{{.Broken", nil, 0)
	assert.Error(t, err)
}

func TestLLMGenerator_Errors(t *testing.T) {
	base := NewTemplateGenerator(config.ContactConfig{})

	g, err := NewLLMGenerator("fake", &fakeCompleter{err: errors.New("quota exceeded")}, "", base, 0)
	require.NoError(t, err)
	_, err = g.Generate(context.Background(), generatorItem())
	assert.ErrorContains(t, err, "quota exceeded")

	g, err = NewLLMGenerator("fake", &fakeCompleter{text: "  \n- \n"}, "", base, 0)
	require.NoError(t, err)
	_, err = g.Generate(context.Background(), generatorItem())
	assert.ErrorIs(t, err, ErrEmptyCompletion)
}

func TestFallback(t *testing.T) {
	base := NewTemplateGenerator(config.ContactConfig{})
	failing, err := NewLLMGenerator("fake", &fakeCompleter{err: errors.New("down")}, "", base, 0)
	require.NoError(t, err)

	f := NewFallback(failing, base)
	assert.Equal(t, "fake+template", f.Name())

	fields, err := f.Generate(context.Background(), generatorItem())
	require.NoError(t, err)
	assert.Contains(t, fields[config.FieldDetailedDescription], "solución confiable")
}

func TestNew(t *testing.T) {
	g, err := New(context.Background(), config.ContentConfig{Provider: "template"})
	require.NoError(t, err)
	assert.Equal(t, "template", g.Name())

	_, err = New(context.Background(), config.ContentConfig{Provider: "carrier-pigeon"})
	assert.Error(t, err)

	t.Setenv("OPENAI_API_KEY", "")
	_, err = New(context.Background(), config.ContentConfig{Provider: "openai"})
	assert.ErrorContains(t, err, "API key is required")

	g, err = New(context.Background(), config.ContentConfig{Provider: "openai", APIKey: "sk-test"})
	require.NoError(t, err)
	assert.Equal(t, "openai+template", g.Name())
}
