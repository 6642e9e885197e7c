package browser

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/entrhq/catalogsync/pkg/config"
	"github.com/entrhq/catalogsync/pkg/logging"
)

// Manager owns the single automation session. Lifecycle changes take the
// write lock; page operations share the read lock so status probes can run
// alongside a long element wait.
type Manager struct {
	cfg    config.BrowserConfig
	logger *logging.Logger

	mu         sync.RWMutex
	playwright *playwright.Playwright
	context    playwright.BrowserContext
	page       page
	running    bool
	startedAt  time.Time
	now        func() time.Time
	runDriver  func(*playwright.RunOptions) (*playwright.Playwright, error)
}

// NewManager creates a session manager. No browser is started until Launch.
func NewManager(cfg config.BrowserConfig) *Manager {
	return &Manager{
		cfg:       cfg,
		logger:    logging.NewLogger("browser"),
		now:       time.Now,
		runDriver: runPlaywright,
	}
}

func runPlaywright(opts *playwright.RunOptions) (*playwright.Playwright, error) {
	return playwright.Run(opts)
}

// initialize installs (optionally) and starts the Playwright driver.
// Must be called with the write lock held.
func (m *Manager) initialize() error {
	if m.playwright != nil {
		return nil
	}

	// Keep driver output off the terminal; the caller may be printing progress.
	opts := &playwright.RunOptions{
		Browsers: []string{"chromium"},
		Verbose:  false,
		Stdout:   io.Discard,
		Stderr:   io.Discard,
	}

	if m.cfg.InstallDriver {
		if err := playwright.Install(opts); err != nil {
			return fmt.Errorf("failed to install playwright: %w", err)
		}
	}

	pw, err := m.runDriver(opts)
	if err != nil {
		return fmt.Errorf("failed to start playwright: %w", err)
	}
	m.playwright = pw
	return nil
}

// Launch cleans the profile and starts a persistent browser context on it.
// Calling Launch while a session is live returns the live session's info.
// A session that failed its health probe is closed first so its browser
// releases the profile lock.
func (m *Manager) Launch() (SessionInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return m.infoLocked(0), nil
	}
	if m.context != nil || m.playwright != nil {
		m.logger.Infof("closing stale browser session before relaunch")
		m.closeLocked()
	}

	dir := m.cfg.ProfileDir
	if err := os.MkdirAll(dir, 0750); err != nil {
		return SessionInfo{}, fmt.Errorf("%w: %v", ErrInitializationFailed, err)
	}
	if profileLocked(dir) {
		return SessionInfo{}, fmt.Errorf("%w: %s", ErrProfileInUse, dir)
	}

	cleaned := 0
	if m.cfg.CleanProfile {
		n, err := CleanProfile(dir)
		if err != nil {
			m.logger.Warnf("profile cleanup incomplete: %v", err)
		}
		cleaned = n
		m.logger.Infof("removed %d profile artifacts from %s", n, dir)
	}

	if err := m.initialize(); err != nil {
		return SessionInfo{}, fmt.Errorf("%w: %v", ErrInitializationFailed, err)
	}

	launchOpts := playwright.BrowserTypeLaunchPersistentContextOptions{
		Headless:          playwright.Bool(m.cfg.Headless),
		Args:              defaultArgs,
		IgnoreDefaultArgs: []string{"--enable-automation"},
		Viewport: &playwright.Size{
			Width:  m.cfg.ViewportW,
			Height: m.cfg.ViewportH,
		},
		Timeout: ms(m.cfg.Timeout),
	}
	if m.cfg.UserAgent != "" {
		launchOpts.UserAgent = playwright.String(m.cfg.UserAgent)
	}
	if m.cfg.Channel != "" {
		launchOpts.Channel = playwright.String(m.cfg.Channel)
	}

	bctx, err := m.playwright.Chromium.LaunchPersistentContext(dir, launchOpts)
	if err != nil {
		m.stopDriverLocked()
		return SessionInfo{}, classifyLaunchError(err)
	}

	var p playwright.Page
	if pages := bctx.Pages(); len(pages) > 0 {
		p = pages[0]
	} else {
		p, err = bctx.NewPage()
		if err != nil {
			_ = bctx.Close()
			m.stopDriverLocked()
			return SessionInfo{}, fmt.Errorf("%w: failed to create page: %v", ErrInitializationFailed, err)
		}
	}
	p.SetDefaultTimeout(float64(m.cfg.Timeout.Milliseconds()))
	p.SetDefaultNavigationTimeout(float64(m.cfg.PageLoad.Milliseconds()))

	m.context = bctx
	m.page = p
	m.running = true
	m.startedAt = m.now()

	m.logger.Infof("browser session started (headless=%t, profile=%s)", m.cfg.Headless, dir)
	return m.infoLocked(cleaned), nil
}

func (m *Manager) infoLocked(cleaned int) SessionInfo {
	return SessionInfo{
		StartedAt:  m.startedAt,
		ProfileDir: m.cfg.ProfileDir,
		Headless:   m.cfg.Headless,
		Cleaned:    cleaned,
	}
}

// IsAlive probes the session by reading the page title. A failed probe
// marks the session not running. It never panics or returns an error.
func (m *Manager) IsAlive() bool {
	m.mu.RLock()
	p, running := m.page, m.running
	m.mu.RUnlock()

	if !running || p == nil {
		return false
	}
	if _, err := p.Title(); err != nil {
		m.logger.Warnf("session probe failed, marking not running: %v", err)
		m.markDead(p)
		return false
	}
	return true
}

// markDead demotes the session if p is still the current page.
func (m *Manager) markDead(p page) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.page == p {
		m.running = false
	}
}

// current returns the live page or ErrNotRunning.
func (m *Manager) current() (page, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.running || m.page == nil {
		return nil, ErrNotRunning
	}
	return m.page, nil
}

// Navigate loads url and returns the resulting page URL.
func (m *Manager) Navigate(url string) (string, error) {
	if !m.IsAlive() {
		return "", ErrNotRunning
	}
	p, err := m.current()
	if err != nil {
		return "", err
	}

	_, err = p.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   ms(m.cfg.PageLoad),
	})
	if err != nil {
		return "", fmt.Errorf("navigation to %s failed: %w", url, err)
	}
	return p.URL(), nil
}

// Reload refreshes the current page.
func (m *Manager) Reload() error {
	if !m.IsAlive() {
		return ErrNotRunning
	}
	p, err := m.current()
	if err != nil {
		return err
	}
	_, err = p.Reload(playwright.PageReloadOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   ms(m.cfg.PageLoad),
	})
	if err != nil {
		return fmt.Errorf("reload failed: %w", err)
	}
	return nil
}

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// Screenshot captures the page into the screenshot directory and returns
// the file path. It is best effort: any failure yields ("", false).
func (m *Manager) Screenshot(name string) (string, bool) {
	p, err := m.current()
	if err != nil {
		return "", false
	}

	if name == "" {
		name = DefaultScreenshotName
	}
	name = unsafeName.ReplaceAllString(name, "_")

	dir := m.cfg.ScreenshotDir
	if dir == "" {
		dir = filepath.Join(m.cfg.ProfileDir, "..", "screenshots")
	}
	if err := os.MkdirAll(dir, 0750); err != nil {
		m.logger.Debugf("screenshot dir unavailable: %v", err)
		return "", false
	}

	path := filepath.Join(dir, fmt.Sprintf("%s_%s.png", name, m.now().Format("20060102_150405")))
	if _, err := p.Screenshot(playwright.PageScreenshotOptions{
		Path:     playwright.String(path),
		FullPage: playwright.Bool(false),
	}); err != nil {
		m.logger.Debugf("screenshot %s failed: %v", name, err)
		return "", false
	}
	return path, true
}

// ExecuteScript evaluates script in the page with the given arguments and
// returns its result, or nil on any failure.
func (m *Manager) ExecuteScript(script string, args ...interface{}) interface{} {
	p, err := m.current()
	if err != nil {
		return nil
	}
	result, err := p.Evaluate(script, args...)
	if err != nil {
		m.logger.Debugf("script execution failed: %v", err)
		return nil
	}
	return result
}

// Status returns the session status, probing liveness first.
func (m *Manager) Status() Status {
	if !m.IsAlive() {
		return Status{}
	}
	p, err := m.current()
	if err != nil {
		return Status{}
	}

	m.mu.RLock()
	started := m.startedAt
	m.mu.RUnlock()

	title, _ := p.Title()
	return Status{
		Running:   true,
		StartedAt: started,
		Uptime:    m.now().Sub(started),
		URL:       p.URL(),
		Title:     title,
	}
}

// Teardown closes the session and stops the driver. It is idempotent and
// returns false only when closing a live session reported an error.
func (m *Manager) Teardown() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	wasRunning := m.running
	ok := m.closeLocked()
	if wasRunning {
		m.logger.Infof("browser session closed")
	}
	return ok
}

// closeLocked closes the context and the driver and clears the session.
// Must be called with the write lock held.
func (m *Manager) closeLocked() bool {
	ok := true
	if m.context != nil {
		if err := m.context.Close(); err != nil {
			m.logger.Warnf("failed to close browser context: %v", err)
			ok = false
		}
	}
	if !m.stopDriverLocked() {
		ok = false
	}

	m.context = nil
	m.page = nil
	m.running = false
	return ok
}

func (m *Manager) stopDriverLocked() bool {
	if m.playwright == nil {
		return true
	}
	err := m.playwright.Stop()
	m.playwright = nil
	if err != nil {
		m.logger.Warnf("failed to stop playwright: %v", err)
		return false
	}
	return true
}
