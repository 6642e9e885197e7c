package workflow

import (
	"fmt"
	"strings"

	"github.com/entrhq/catalogsync/pkg/config"
	"github.com/entrhq/catalogsync/pkg/types"
)

// lineBreakKey inserts a soft line break in inputs that reject "\n".
const lineBreakKey = "Shift+Enter"

// richTextScript replaces the body of a rich-text editor iframe and fires the
// events the host page listens to, so its own bookkeeping sees the edit.
const richTextScript = `(frame, html) => {
	const doc = frame.contentDocument || (frame.contentWindow && frame.contentWindow.document);
	if (!doc || !doc.body) {
		throw new Error('editor frame has no document body');
	}
	doc.body.innerHTML = '';
	doc.body.innerHTML = html;
	for (const type of ['input', 'change', 'keyup']) {
		doc.body.dispatchEvent(new Event(type, { bubbles: true }));
	}
	frame.dispatchEvent(new Event('change', { bubbles: true }));
	return doc.body.innerHTML.length;
}`

// fieldReport collects per-field outcomes of the update step.
type fieldReport struct {
	updated []string
	skipped []string
	errors  []types.FieldError
}

func (r *fieldReport) attempted() int {
	return len(r.updated) + len(r.errors)
}

// writeField writes value into the input described by fc.
func (n *Navigator) writeField(fc config.FieldConfig, value string) error {
	t := n.target
	switch fc.Kind {
	case config.FieldRichText:
		_, err := n.page.EvaluateOn(fc.Selector, richTextScript, value, t.ElementTimeout)
		return err

	case config.FieldMultiline:
		if err := n.page.Clear(fc.Selector, t.ElementTimeout); err != nil {
			return err
		}
		lines := splitLines(value)
		for i, line := range lines {
			if line != "" {
				if err := n.page.Type(fc.Selector, line, 0); err != nil {
					return fmt.Errorf("line %d: %w", i+1, err)
				}
			}
			if i < len(lines)-1 {
				if err := n.page.Press(fc.Selector, lineBreakKey); err != nil {
					return fmt.Errorf("line break after line %d: %w", i+1, err)
				}
			}
		}
		return nil

	default:
		return n.page.Fill(fc.Selector, value, t.ElementTimeout)
	}
}

// splitLines normalizes line endings and drops trailing blank lines.
func splitLines(s string) []string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = strings.TrimRight(s, "\n")
	return strings.Split(s, "\n")
}

func wantsSEO(fields types.Fields) bool {
	for k := range fields {
		if strings.HasPrefix(k, "seo_") {
			return true
		}
	}
	return false
}
