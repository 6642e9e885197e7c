// Package browser owns the single automation session used to drive the
// target web application through Playwright.
//
// # Session Lifecycle
//
// A Manager holds at most one session:
//
//  1. Launch: leftover profile artifacts from a prior run are removed, then a
//     persistent Chromium context is started on the dedicated profile dir
//  2. Use: navigation, screenshots, scripts and element primitives operate
//     on the session's single page
//  3. Teardown: closes the context and stops the Playwright driver; safe to
//     call at any time, any number of times
//
// Every operation other than Launch fails fast with ErrNotRunning when no
// session is live. IsAlive probes the page and demotes the session to
// not-running when the probe fails, so a crashed or closed browser is
// observed on the next call rather than surfacing as a Playwright error.
//
// # Errors
//
// Launch reports ErrProfileInUse when another browser holds the profile
// lock and ErrInitializationFailed for every other startup failure.
// Screenshot and ExecuteScript are best effort and never return errors.
//
// # Example Usage
//
//	mgr := browser.NewManager(cfg.Browser)
//	info, err := mgr.Launch()
//	if errors.Is(err, browser.ErrProfileInUse) {
//	    // another instance owns the profile
//	}
//	defer mgr.Teardown()
//
//	url, err := mgr.Navigate("https://example.com")
//	path, ok := mgr.Screenshot("after-login")
package browser
