package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/entrhq/catalogsync/pkg/browser"
	"github.com/entrhq/catalogsync/pkg/config"
)

// fakePage simulates the target application. Elements are visible when
// their selector is in visible; clicks can toggle visibility via onClick.
type fakePage struct {
	mu sync.Mutex

	visible  map[string]bool
	onClick  map[string]func(p *fakePage)
	clickErr map[string]error
	fillErr  map[string]error
	typeErr  map[string]error
	evalErr  map[string]error

	navigateErr error
	onNavigate  func(p *fakePage, url string)
	onReload    func(p *fakePage)
	notRunning  bool

	search  string
	results map[string]string // search text -> results table HTML
	tableErr error

	calls []string
	typed map[string][]string
	evals map[string]interface{}
}

func newFakePage() *fakePage {
	return &fakePage{
		visible:  map[string]bool{},
		onClick:  map[string]func(p *fakePage){},
		clickErr: map[string]error{},
		fillErr:  map[string]error{},
		typeErr:  map[string]error{},
		evalErr:  map[string]error{},
		results:  map[string]string{},
		typed:    map[string][]string{},
		evals:    map[string]interface{}{},
	}
}

func (p *fakePage) record(format string, args ...interface{}) {
	p.calls = append(p.calls, fmt.Sprintf(format, args...))
}

func (p *fakePage) Navigate(url string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.notRunning {
		return "", browser.ErrNotRunning
	}
	p.record("navigate %s", url)
	if p.navigateErr != nil {
		return "", p.navigateErr
	}
	if p.onNavigate != nil {
		p.onNavigate(p, url)
	}
	return url, nil
}

func (p *fakePage) Reload() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.notRunning {
		return browser.ErrNotRunning
	}
	p.record("reload")
	if p.onReload != nil {
		p.onReload(p)
	}
	return nil
}

func (p *fakePage) WaitFor(selector string, state browser.ElementState, _ time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.notRunning {
		return browser.ErrNotRunning
	}
	vis := p.visible[selector]
	switch state {
	case browser.StateHidden:
		if vis {
			return fmt.Errorf("timeout waiting for %s to be hidden", selector)
		}
	default:
		if !vis {
			return fmt.Errorf("timeout waiting for %s", selector)
		}
	}
	return nil
}

func (p *fakePage) Click(selector string, _ time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.notRunning {
		return browser.ErrNotRunning
	}
	if err := p.clickErr[selector]; err != nil {
		return err
	}
	p.record("click %s", selector)
	if fn := p.onClick[selector]; fn != nil {
		fn(p)
	}
	return nil
}

func (p *fakePage) ClickNth(selector string, index int, _ time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.notRunning {
		return browser.ErrNotRunning
	}
	if err := p.clickErr[selector]; err != nil {
		return err
	}
	p.record("click %s[%d]", selector, index)
	if fn := p.onClick[selector]; fn != nil {
		fn(p)
	}
	return nil
}

func (p *fakePage) Fill(selector, value string, _ time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.fillErr[selector]; err != nil {
		return err
	}
	p.record("fill %s=%s", selector, value)
	return nil
}

func (p *fakePage) Clear(selector string, _ time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.notRunning {
		return browser.ErrNotRunning
	}
	p.record("clear %s", selector)
	if selector == testTarget().SearchInput {
		p.search = ""
	}
	delete(p.typed, selector)
	return nil
}

func (p *fakePage) Type(selector, text string, _ time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.notRunning {
		return browser.ErrNotRunning
	}
	if err := p.typeErr[selector]; err != nil {
		return err
	}
	p.record("type %s=%s", selector, text)
	if selector == testTarget().SearchInput {
		p.search += text
	}
	p.typed[selector] = append(p.typed[selector], text)
	return nil
}

func (p *fakePage) Press(selector, key string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record("press %s %s", selector, key)
	p.typed[selector] = append(p.typed[selector], "<"+key+">")
	return nil
}

func (p *fakePage) OuterHTML(selector string, _ time.Duration) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.notRunning {
		return "", browser.ErrNotRunning
	}
	if p.tableErr != nil {
		return "", p.tableErr
	}
	html, ok := p.results[p.search]
	if !ok {
		return `<table class="tablaListado"><tbody></tbody></table>`, nil
	}
	return html, nil
}

func (p *fakePage) EvaluateOn(selector, script string, arg interface{}, _ time.Duration) (interface{}, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.evalErr[selector]; err != nil {
		return nil, err
	}
	p.record("evaluate %s", selector)
	p.evals[selector] = arg
	return 0, nil
}

func (p *fakePage) setVisible(selector string, v bool) {
	p.visible[selector] = v
}

func (p *fakePage) callsWithPrefix(prefix string) []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, c := range p.calls {
		if strings.HasPrefix(c, prefix) {
			out = append(out, c)
		}
	}
	return out
}

func testTarget() config.TargetConfig {
	return config.TargetConfig{
		LoginURL:            "https://app.test/login",
		CatalogURL:          "https://app.test/#catalog",
		AuthIndicators:      []string{"#user-menu", "#logout"},
		CatalogTabs:         []string{"#tab-catalog"},
		SearchInput:         "#search",
		ResultsTable:        "table.results",
		ResultRowCSS:        "tr.row",
		ResultRows:          "table.results tr.row",
		FirstResultFallback: "td.first",
		EditorTabs:          []string{"#shop-tab", "text=Shop"},
		EditButtons:         []string{"#edit", "text=Edit"},
		EditorModal:         "#modal",
		SEOToggle:           "#seo-toggle",
		SaveButton:          "#save",
		Fields: map[string]config.FieldConfig{
			config.FieldDescription:         {Selector: "#desc", Kind: config.FieldMultiline},
			config.FieldDetailedDescription: {Selector: "#rich", Kind: config.FieldRichText},
			config.FieldSEOTitle:            {Selector: "#seo-title", Kind: config.FieldText},
			config.FieldSEODescription:      {Selector: "#seo-desc", Kind: config.FieldText},
		},
		ElementTimeout: time.Second,
		ProbeTimeout:   time.Second,
		SaveTimeout:    time.Second,
	}
}

func resultsTable(rows ...string) string {
	var b strings.Builder
	b.WriteString(`<table class="results"><tbody>`)
	for _, r := range rows {
		fmt.Fprintf(&b, `<tr class="row"><td class="code">%s</td><td>Generator</td></tr>`, r)
	}
	b.WriteString(`</tbody></table>`)
	return b.String()
}

// newHappyPage returns a page on which every step succeeds for the given
// items, each found by exact match.
func newHappyPage(ids ...string) *fakePage {
	t := testTarget()
	p := newFakePage()
	p.onNavigate = func(p *fakePage, url string) {
		if url == t.CatalogURL {
			p.setVisible(t.SearchInput, true)
		}
	}
	p.setVisible(t.EditorTabs[0], true)
	p.onClick[t.EditButtons[0]] = func(p *fakePage) { p.setVisible(t.EditorModal, true) }
	p.onClick[t.SaveButton] = func(p *fakePage) { p.setVisible(t.EditorModal, false) }
	for _, id := range ids {
		p.results[id] = resultsTable("OTHER-1", id, "OTHER-2")
	}
	return p
}

func noSleep(ctx context.Context, _ time.Duration) error {
	return ctx.Err()
}

func newTestNavigator(p Page, opts ...Option) *Navigator {
	return New(p, testTarget(), append([]Option{WithSleep(noSleep)}, opts...)...)
}

var errBoom = errors.New("boom")
