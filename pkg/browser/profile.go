package browser

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

// profileArtifacts are the per-profile stores a previous run may have left
// behind, relative to the profile's Default directory.
var profileArtifacts = []string{
	"Cookies",
	"Cookies-journal",
	"Local Storage",
	"Session Storage",
	"IndexedDB",
	"Cache",
	"Code Cache",
	"GPUCache",
	"Service Worker",
	"Web Data",
	"Web Data-journal",
	"History",
	"History-journal",
	"Login Data",
	"Login Data-journal",
	"Preferences",
	"Secure Preferences",
	"Network",
	"blob_storage",
	"databases",
	"File System",
	"Platform Notifications",
}

// rootArtifacts live directly in the user data dir.
var rootArtifacts = []string{
	"ShaderCache",
	"GrShaderCache",
	"Crashpad",
}

const singletonLock = "SingletonLock"

// CleanProfile removes cached cookies, storage, history and cache artifacts
// from a Chromium user data dir, creating the directory if it is absent.
// It returns the number of artifacts removed. Missing artifacts are not an
// error; the first removal failure is returned after attempting the rest.
func CleanProfile(dir string) (int, error) {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return 0, fmt.Errorf("failed to create profile directory: %w", err)
	}

	var firstErr error
	removed := 0
	remove := func(path string) {
		if _, err := os.Lstat(path); err != nil {
			return
		}
		if err := os.RemoveAll(path); err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("failed to remove %s: %w", path, err)
			}
			return
		}
		removed++
	}

	for _, name := range profileArtifacts {
		remove(filepath.Join(dir, "Default", name))
	}
	for _, name := range rootArtifacts {
		remove(filepath.Join(dir, name))
	}
	return removed, firstErr
}

// profileLocked reports whether a live process on this host holds the
// profile's singleton lock. Chromium stores the lock as a symlink whose
// target is "<hostname>-<pid>". A stale lock left by a dead process is
// removed and reported as unlocked.
func profileLocked(dir string) bool {
	lockPath := filepath.Join(dir, singletonLock)
	target, err := os.Readlink(lockPath)
	if err != nil {
		return false
	}

	idx := strings.LastIndex(target, "-")
	if idx < 0 {
		return false
	}
	host, pidStr := target[:idx], target[idx+1:]
	pid, err := strconv.Atoi(pidStr)
	if err != nil || pid <= 0 {
		return false
	}

	if hostname, err := os.Hostname(); err == nil && hostname != host {
		// Locked from another machine sharing the directory.
		return true
	}
	if processAlive(pid) {
		return true
	}

	_ = os.Remove(lockPath)
	return false
}

func processAlive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = proc.Signal(syscall.Signal(0))
	return err == nil || errors.Is(err, os.ErrPermission)
}

// lockMarkers are substrings Chromium and Playwright use when a user data
// dir is already owned by another browser.
var lockMarkers = []string{
	"processsingleton",
	"singletonlock",
	"profile appears to be in use",
	"user data directory is already in use",
}

// classifyLaunchError maps a launch failure to ErrProfileInUse or
// ErrInitializationFailed while keeping the original message.
func classifyLaunchError(err error) error {
	msg := strings.ToLower(err.Error())
	for _, marker := range lockMarkers {
		if strings.Contains(msg, marker) {
			return fmt.Errorf("%w: %v", ErrProfileInUse, err)
		}
	}
	return fmt.Errorf("%w: %v", ErrInitializationFailed, err)
}
