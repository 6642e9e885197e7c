package browser

import (
	"fmt"
	"time"

	"github.com/playwright-community/playwright-go"
)

// Element primitives used by the workflow navigator. All of them fail with
// ErrNotRunning when no session is live and wrap Playwright errors with the
// selector involved.

func (m *Manager) locate(selector string) (playwright.Locator, error) {
	p, err := m.current()
	if err != nil {
		return nil, err
	}
	return p.Locator(selector), nil
}

// WaitFor waits until the first element matching selector reaches state.
func (m *Manager) WaitFor(selector string, state ElementState, timeout time.Duration) error {
	loc, err := m.locate(selector)
	if err != nil {
		return err
	}
	if err := loc.First().WaitFor(playwright.LocatorWaitForOptions{
		State:   state.playwright(),
		Timeout: ms(timeout),
	}); err != nil {
		return fmt.Errorf("wait for %s to be %s: %w", selector, state, err)
	}
	return nil
}

// Click scrolls the first match into view and clicks it.
func (m *Manager) Click(selector string, timeout time.Duration) error {
	return m.ClickNth(selector, 0, timeout)
}

// ClickNth clicks the index-th element matching selector.
func (m *Manager) ClickNth(selector string, index int, timeout time.Duration) error {
	loc, err := m.locate(selector)
	if err != nil {
		return err
	}
	target := loc.Nth(index)
	if err := target.ScrollIntoViewIfNeeded(playwright.LocatorScrollIntoViewIfNeededOptions{
		Timeout: ms(timeout),
	}); err != nil {
		return fmt.Errorf("scroll to %s[%d]: %w", selector, index, err)
	}
	if err := target.Click(playwright.LocatorClickOptions{Timeout: ms(timeout)}); err != nil {
		return fmt.Errorf("click %s[%d]: %w", selector, index, err)
	}
	return nil
}

// Fill replaces the value of an input.
func (m *Manager) Fill(selector, value string, timeout time.Duration) error {
	loc, err := m.locate(selector)
	if err != nil {
		return err
	}
	if err := loc.First().Fill(value, playwright.LocatorFillOptions{Timeout: ms(timeout)}); err != nil {
		return fmt.Errorf("fill %s: %w", selector, err)
	}
	return nil
}

// Clear empties an input.
func (m *Manager) Clear(selector string, timeout time.Duration) error {
	loc, err := m.locate(selector)
	if err != nil {
		return err
	}
	if err := loc.First().Clear(playwright.LocatorClearOptions{Timeout: ms(timeout)}); err != nil {
		return fmt.Errorf("clear %s: %w", selector, err)
	}
	return nil
}

// Type sends text one keystroke at a time with delay between keys, which
// triggers per-key listeners such as live search filters.
func (m *Manager) Type(selector, text string, delay time.Duration) error {
	loc, err := m.locate(selector)
	if err != nil {
		return err
	}
	if err := loc.First().PressSequentially(text, playwright.LocatorPressSequentiallyOptions{
		Delay: playwright.Float(float64(delay.Milliseconds())),
	}); err != nil {
		return fmt.Errorf("type into %s: %w", selector, err)
	}
	return nil
}

// Press sends a key or chord such as "Shift+Enter" to the element.
func (m *Manager) Press(selector, key string) error {
	loc, err := m.locate(selector)
	if err != nil {
		return err
	}
	if err := loc.First().Press(key); err != nil {
		return fmt.Errorf("press %s on %s: %w", key, selector, err)
	}
	return nil
}

// OuterHTML returns the outer HTML of the first match.
func (m *Manager) OuterHTML(selector string, timeout time.Duration) (string, error) {
	result, err := m.EvaluateOn(selector, "el => el.outerHTML", nil, timeout)
	if err != nil {
		return "", err
	}
	html, ok := result.(string)
	if !ok {
		return "", fmt.Errorf("read %s: unexpected result %T", selector, result)
	}
	return html, nil
}

// EvaluateOn runs script with the first match as its first argument and arg
// as its second, returning the script's result.
func (m *Manager) EvaluateOn(selector, script string, arg interface{}, timeout time.Duration) (interface{}, error) {
	loc, err := m.locate(selector)
	if err != nil {
		return nil, err
	}
	result, err := loc.First().Evaluate(script, arg, playwright.LocatorEvaluateOptions{Timeout: ms(timeout)})
	if err != nil {
		return nil, fmt.Errorf("evaluate on %s: %w", selector, err)
	}
	return result, nil
}
