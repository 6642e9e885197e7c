package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 2*time.Second, cfg.Batch.InterItemDelay)
	assert.Equal(t, 500*time.Millisecond, cfg.Batch.PausePoll)
	assert.Equal(t, 5*time.Second, cfg.Batch.StopTimeout)
	assert.Equal(t, 50*time.Millisecond, cfg.Target.KeystrokeDelay)
	assert.Equal(t, 1280, cfg.Browser.ViewportW)
	assert.Equal(t, 720, cfg.Browser.ViewportH)
	assert.Equal(t, FieldRichText, cfg.Target.Fields[FieldDetailedDescription].Kind)
	assert.Equal(t, FieldMultiline, cfg.Target.Fields[FieldDescription].Kind)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "missing profile dir",
			mutate:  func(c *Config) { c.Browser.ProfileDir = "" },
			wantErr: "profile_dir",
		},
		{
			name:    "bad viewport",
			mutate:  func(c *Config) { c.Browser.ViewportW = 0 },
			wantErr: "viewport",
		},
		{
			name:    "missing catalog url",
			mutate:  func(c *Config) { c.Target.CatalogURL = "" },
			wantErr: "catalog_url",
		},
		{
			name:    "no edit buttons",
			mutate:  func(c *Config) { c.Target.EditButtons = nil },
			wantErr: "edit_buttons",
		},
		{
			name: "unknown field kind",
			mutate: func(c *Config) {
				c.Target.Fields["extra"] = FieldConfig{Selector: "#x", Kind: "html"}
			},
			wantErr: "invalid kind",
		},
		{
			name:    "negative delay",
			mutate:  func(c *Config) { c.Batch.InterItemDelay = -time.Second },
			wantErr: "inter_item_delay",
		},
		{
			name:    "zero event buffer",
			mutate:  func(c *Config) { c.Batch.EventBuffer = 0 },
			wantErr: "event_buffer",
		},
		{
			name:    "unknown provider",
			mutate:  func(c *Config) { c.Content.Provider = "claude" },
			wantErr: "content.provider",
		},
		{
			name: "artifacts without dir",
			mutate: func(c *Config) {
				c.Artifacts.Enabled = true
				c.Artifacts.OutputDir = ""
			},
			wantErr: "output_dir",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalogsync.yaml")
	content := `
browser:
  headless: true
  profile_dir: /tmp/profile-under-test
batch:
  inter_item_delay: 250ms
  stop_timeout: 1s
target:
  search_input: "css=input.search"
content:
  provider: template
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	cfg, err := Load(NewViper(path))
	require.NoError(t, err)

	assert.True(t, cfg.Browser.Headless)
	assert.Equal(t, "/tmp/profile-under-test", cfg.Browser.ProfileDir)
	assert.Equal(t, 250*time.Millisecond, cfg.Batch.InterItemDelay)
	assert.Equal(t, time.Second, cfg.Batch.StopTimeout)
	assert.Equal(t, "css=input.search", cfg.Target.SearchInput)

	// Untouched sections keep their defaults.
	assert.Equal(t, DefaultTarget().CatalogURL, cfg.Target.CatalogURL)
	assert.Len(t, cfg.Target.EditButtons, 3)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("CATALOGSYNC_BATCH_INTER_ITEM_DELAY", "3s")
	t.Setenv("CATALOGSYNC_SERVER_ADDR", "0.0.0.0:9000")

	cfg, err := NewConfigFromViper(NewViper(""))
	require.NoError(t, err)

	assert.Equal(t, 3*time.Second, cfg.Batch.InterItemDelay)
	assert.Equal(t, "0.0.0.0:9000", cfg.Server.Addr)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(NewViper(filepath.Join(t.TempDir(), "nope.yaml")))
	assert.Error(t, err)
}

func TestAPIKeyFromEnv(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("GOOGLE_API_KEY", "google-key")
	t.Setenv("OPENAI_API_KEY", "openai-key")

	assert.Equal(t, "google-key", apiKeyFromEnv("gemini"))
	assert.Equal(t, "openai-key", apiKeyFromEnv("openai"))
	assert.Empty(t, apiKeyFromEnv("template"))
}
