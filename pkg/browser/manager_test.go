package browser

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/playwright-community/playwright-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrhq/catalogsync/pkg/config"
)

type fakePage struct {
	mu       sync.Mutex
	title    string
	titleErr error
	url      string
	gotoErr  error
	visited  []string
	reloads  int
	shotErr  error
	shots    []string
	evalErr  error
	evalArgs []interface{}
}

func (f *fakePage) Title() (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.title, f.titleErr
}

func (f *fakePage) URL() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.url
}

func (f *fakePage) Goto(url string, _ ...playwright.PageGotoOptions) (playwright.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.gotoErr != nil {
		return nil, f.gotoErr
	}
	f.visited = append(f.visited, url)
	f.url = url
	return nil, nil
}

func (f *fakePage) Reload(_ ...playwright.PageReloadOptions) (playwright.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reloads++
	return nil, nil
}

func (f *fakePage) Screenshot(opts ...playwright.PageScreenshotOptions) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.shotErr != nil {
		return nil, f.shotErr
	}
	if len(opts) > 0 && opts[0].Path != nil {
		f.shots = append(f.shots, *opts[0].Path)
	}
	return []byte("png"), nil
}

func (f *fakePage) Evaluate(expression string, arg ...interface{}) (interface{}, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.evalErr != nil {
		return nil, f.evalErr
	}
	f.evalArgs = arg
	return expression, nil
}

func (f *fakePage) Locator(string, ...playwright.PageLocatorOptions) playwright.Locator {
	return nil
}

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	dir := t.TempDir()
	m := NewManager(config.BrowserConfig{
		ProfileDir:    filepath.Join(dir, "profile"),
		ScreenshotDir: filepath.Join(dir, "shots"),
		Timeout:       time.Second,
		PageLoad:      time.Second,
	})
	m.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	return m
}

// attach installs p as a live session without a real browser.
func attach(m *Manager, p page) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.page = p
	m.running = true
	m.startedAt = m.now().Add(-time.Minute)
}

func TestOperationsFailFastWhenNotRunning(t *testing.T) {
	m := newTestManager(t)

	assert.False(t, m.IsAlive())

	_, err := m.Navigate("https://example.com")
	assert.ErrorIs(t, err, ErrNotRunning)
	assert.ErrorIs(t, m.Reload(), ErrNotRunning)
	assert.ErrorIs(t, m.WaitFor("#x", StateVisible, time.Second), ErrNotRunning)
	assert.ErrorIs(t, m.Click("#x", time.Second), ErrNotRunning)
	assert.ErrorIs(t, m.Fill("#x", "v", time.Second), ErrNotRunning)
	assert.ErrorIs(t, m.Type("#x", "v", 0), ErrNotRunning)
	assert.ErrorIs(t, m.Press("#x", "Enter"), ErrNotRunning)
	_, err = m.OuterHTML("#x", time.Second)
	assert.ErrorIs(t, err, ErrNotRunning)
	_, err = m.EvaluateOn("#x", "e => e", nil, time.Second)
	assert.ErrorIs(t, err, ErrNotRunning)

	path, ok := m.Screenshot("nothing")
	assert.False(t, ok)
	assert.Empty(t, path)
	assert.Nil(t, m.ExecuteScript("() => 1"))
	assert.False(t, m.Status().Running)
}

func TestTeardownIdempotent(t *testing.T) {
	m := newTestManager(t)
	assert.True(t, m.Teardown())
	assert.True(t, m.Teardown())

	attach(m, &fakePage{})
	assert.True(t, m.IsAlive())
	assert.True(t, m.Teardown())
	assert.False(t, m.IsAlive())
	assert.True(t, m.Teardown())
}

func TestIsAliveMarksDeadOnProbeFailure(t *testing.T) {
	m := newTestManager(t)
	p := &fakePage{title: "Catalog"}
	attach(m, p)
	require.True(t, m.IsAlive())

	p.mu.Lock()
	p.titleErr = errors.New("target closed")
	p.mu.Unlock()

	assert.False(t, m.IsAlive())

	// Recovery of the page does not resurrect the session.
	p.mu.Lock()
	p.titleErr = nil
	p.mu.Unlock()
	assert.False(t, m.IsAlive())

	_, err := m.Navigate("https://example.com")
	assert.ErrorIs(t, err, ErrNotRunning)
}

func TestNavigate(t *testing.T) {
	m := newTestManager(t)
	p := &fakePage{}
	attach(m, p)

	url, err := m.Navigate("https://app.example.com/#catalog")
	require.NoError(t, err)
	assert.Equal(t, "https://app.example.com/#catalog", url)
	assert.Equal(t, []string{"https://app.example.com/#catalog"}, p.visited)

	p.gotoErr = errors.New("net::ERR_NAME_NOT_RESOLVED")
	_, err = m.Navigate("https://nowhere.invalid")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotRunning)
	assert.Contains(t, err.Error(), "ERR_NAME_NOT_RESOLVED")

	require.NoError(t, m.Reload())
	assert.Equal(t, 1, p.reloads)
}

func TestScreenshot(t *testing.T) {
	m := newTestManager(t)
	p := &fakePage{}
	attach(m, p)

	path, ok := m.Screenshot("error SKU/001")
	require.True(t, ok)
	assert.Equal(t, m.cfg.ScreenshotDir, filepath.Dir(path))
	assert.True(t, strings.HasPrefix(filepath.Base(path), "error_SKU_001_"))
	assert.True(t, strings.HasSuffix(path, ".png"))
	assert.Equal(t, []string{path}, p.shots)

	path, ok = m.Screenshot("")
	require.True(t, ok)
	assert.True(t, strings.HasPrefix(filepath.Base(path), DefaultScreenshotName))

	p.shotErr = errors.New("page crashed")
	path, ok = m.Screenshot("broken")
	assert.False(t, ok)
	assert.Empty(t, path)
}

func TestExecuteScript(t *testing.T) {
	m := newTestManager(t)
	p := &fakePage{}
	attach(m, p)

	got := m.ExecuteScript("(a, b) => a + b", 1, 2)
	assert.Equal(t, "(a, b) => a + b", got)
	assert.Equal(t, []interface{}{1, 2}, p.evalArgs)

	p.evalErr = errors.New("ReferenceError")
	assert.Nil(t, m.ExecuteScript("nope()"))
}

func TestStatus(t *testing.T) {
	m := newTestManager(t)
	attach(m, &fakePage{title: "STEL Order", url: "https://app.example.com/"})

	st := m.Status()
	assert.True(t, st.Running)
	assert.Equal(t, "STEL Order", st.Title)
	assert.Equal(t, "https://app.example.com/", st.URL)
	assert.Equal(t, time.Minute, st.Uptime)
}

func TestLaunchRejectsLockedProfile(t *testing.T) {
	m := newTestManager(t)
	require.NoError(t, osSymlinkLock(m.cfg.ProfileDir))

	_, err := m.Launch()
	assert.ErrorIs(t, err, ErrProfileInUse)
	assert.False(t, m.IsAlive())
}

func osSymlinkLock(dir string) error {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return err
	}
	host, err := os.Hostname()
	if err != nil {
		return err
	}
	return os.Symlink(fmt.Sprintf("%s-%d", host, os.Getpid()), filepath.Join(dir, singletonLock))
}

// fakeContext stands in for a browser whose exit releases the profile lock.
type fakeContext struct {
	playwright.BrowserContext
	lockPath string
	closed   int
}

func (c *fakeContext) Close(...playwright.BrowserContextCloseOptions) error {
	c.closed++
	return os.Remove(c.lockPath)
}

func TestLaunchClosesSessionThatFailedProbe(t *testing.T) {
	m := newTestManager(t)
	require.NoError(t, osSymlinkLock(m.cfg.ProfileDir))
	m.runDriver = func(*playwright.RunOptions) (*playwright.Playwright, error) {
		return nil, errors.New("driver unavailable")
	}

	bctx := &fakeContext{lockPath: filepath.Join(m.cfg.ProfileDir, singletonLock)}
	attach(m, &fakePage{titleErr: errors.New("target closed")})
	m.mu.Lock()
	m.context = bctx
	m.mu.Unlock()

	require.False(t, m.IsAlive())

	_, err := m.Launch()
	assert.Equal(t, 1, bctx.closed)
	assert.NotErrorIs(t, err, ErrProfileInUse)
	assert.ErrorIs(t, err, ErrInitializationFailed)
	assert.ErrorContains(t, err, "driver unavailable")

	m.mu.RLock()
	defer m.mu.RUnlock()
	assert.Nil(t, m.context)
	assert.Nil(t, m.page)
}
