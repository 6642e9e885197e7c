package browser

import (
	"time"

	"github.com/playwright-community/playwright-go"
)

// ElementState is the state WaitFor waits an element to reach.
type ElementState string

const (
	// StateVisible waits for the element to be attached and visible.
	StateVisible ElementState = "visible"
	// StateHidden waits for the element to be detached or invisible.
	StateHidden ElementState = "hidden"
	// StateAttached waits for the element to be present in the DOM.
	StateAttached ElementState = "attached"
)

func (s ElementState) playwright() *playwright.WaitForSelectorState {
	switch s {
	case StateHidden:
		return playwright.WaitForSelectorStateHidden
	case StateAttached:
		return playwright.WaitForSelectorStateAttached
	default:
		return playwright.WaitForSelectorStateVisible
	}
}

// SessionInfo describes a freshly launched session.
type SessionInfo struct {
	StartedAt  time.Time `json:"started_at"`
	ProfileDir string    `json:"profile_dir"`
	Headless   bool      `json:"headless"`
	// Cleaned is the number of profile artifacts removed before launch.
	Cleaned int `json:"cleaned"`
}

// Status is a point-in-time view of the session.
type Status struct {
	Running   bool          `json:"running"`
	StartedAt time.Time     `json:"started_at,omitempty"`
	Uptime    time.Duration `json:"uptime"`
	URL       string        `json:"url,omitempty"`
	Title     string        `json:"title,omitempty"`
}

const (
	// DefaultScreenshotName is used when Screenshot is called without a name.
	DefaultScreenshotName = "screenshot"

	// DefaultProbeTimeout bounds element checks that only test presence.
	DefaultProbeTimeout = 2 * time.Second
)

// defaultArgs are passed to Chromium on every launch.
var defaultArgs = []string{
	"--disable-blink-features=AutomationControlled",
	"--no-first-run",
	"--no-default-browser-check",
	"--disable-notifications",
	"--disable-popup-blocking",
	"--disable-dev-shm-usage",
}

// page is the subset of playwright.Page the manager drives.
type page interface {
	Title() (string, error)
	URL() string
	Goto(url string, options ...playwright.PageGotoOptions) (playwright.Response, error)
	Reload(options ...playwright.PageReloadOptions) (playwright.Response, error)
	Screenshot(options ...playwright.PageScreenshotOptions) ([]byte, error)
	Evaluate(expression string, arg ...interface{}) (interface{}, error)
	Locator(selector string, options ...playwright.PageLocatorOptions) playwright.Locator
}

// ms converts a duration to Playwright's millisecond float.
func ms(d time.Duration) *float64 {
	return playwright.Float(float64(d.Milliseconds()))
}
