package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides, e.g. CATALOGSYNC_BATCH_INTER_ITEM_DELAY.
const EnvPrefix = "CATALOGSYNC"

// SetDefaults registers the scalar defaults with viper so that environment
// variables can override them.
func SetDefaults(v *viper.Viper) {
	d := DefaultConfig()

	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.dir", d.Logging.Dir)
	v.SetDefault("logging.console", d.Logging.Console)
	v.SetDefault("logging.max_size_mb", d.Logging.MaxSizeMB)
	v.SetDefault("logging.max_backups", d.Logging.MaxBackups)
	v.SetDefault("logging.max_age_days", d.Logging.MaxAgeDays)

	v.SetDefault("browser.profile_dir", d.Browser.ProfileDir)
	v.SetDefault("browser.screenshot_dir", d.Browser.ScreenshotDir)
	v.SetDefault("browser.headless", d.Browser.Headless)
	v.SetDefault("browser.channel", d.Browser.Channel)
	v.SetDefault("browser.user_agent", d.Browser.UserAgent)
	v.SetDefault("browser.viewport_width", d.Browser.ViewportW)
	v.SetDefault("browser.viewport_height", d.Browser.ViewportH)
	v.SetDefault("browser.timeout", d.Browser.Timeout)
	v.SetDefault("browser.page_load_timeout", d.Browser.PageLoad)
	v.SetDefault("browser.clean_profile", d.Browser.CleanProfile)
	v.SetDefault("browser.install_driver", d.Browser.InstallDriver)

	v.SetDefault("target.login_url", d.Target.LoginURL)
	v.SetDefault("target.catalog_url", d.Target.CatalogURL)
	v.SetDefault("target.element_timeout", d.Target.ElementTimeout)
	v.SetDefault("target.probe_timeout", d.Target.ProbeTimeout)
	v.SetDefault("target.save_timeout", d.Target.SaveTimeout)
	v.SetDefault("target.keystroke_delay", d.Target.KeystrokeDelay)
	v.SetDefault("target.search_settle", d.Target.SearchSettle)
	v.SetDefault("target.step_settle", d.Target.StepSettle)

	v.SetDefault("batch.inter_item_delay", d.Batch.InterItemDelay)
	v.SetDefault("batch.pause_poll", d.Batch.PausePoll)
	v.SetDefault("batch.stop_timeout", d.Batch.StopTimeout)
	v.SetDefault("batch.event_buffer", d.Batch.EventBuffer)
	v.SetDefault("batch.screenshots", d.Batch.Screenshots)

	v.SetDefault("content.provider", d.Content.Provider)
	v.SetDefault("content.model", d.Content.Model)
	v.SetDefault("content.api_key", d.Content.APIKey)
	v.SetDefault("content.base_url", d.Content.BaseURL)
	v.SetDefault("content.temperature", d.Content.Temperature)
	v.SetDefault("content.timeout", d.Content.Timeout)

	v.SetDefault("catalog.root", d.Catalog.Root)
	v.SetDefault("catalog.sheet", d.Catalog.Sheet)
	v.SetDefault("store.path", d.Store.Path)

	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("server.shutdown_timeout", d.Server.ShutdownTimeout)

	v.SetDefault("artifacts.enabled", d.Artifacts.Enabled)
	v.SetDefault("artifacts.output_dir", d.Artifacts.OutputDir)
	v.SetDefault("artifacts.json", d.Artifacts.JSON)
	v.SetDefault("artifacts.markdown", d.Artifacts.Markdown)
	v.SetDefault("artifacts.excel", d.Artifacts.Excel)
}

// NewViper returns a viper instance with defaults, env binding and, when
// configFile is non-empty, that file as the config source. Without an
// explicit file it searches the working directory and HomeDir for
// catalogsync.yaml.
func NewViper(configFile string) *viper.Viper {
	v := viper.New()
	SetDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("catalogsync")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath(HomeDir())
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads configuration through v. A missing config file is not an error
// when the file was discovered by search rather than named explicitly.
func Load(v *viper.Viper) (*Config, error) {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}
	return NewConfigFromViper(v)
}

// NewConfigFromViper decodes v on top of DefaultConfig and validates the result.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	cfg := DefaultConfig()
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if cfg.Content.APIKey == "" {
		cfg.Content.APIKey = apiKeyFromEnv(cfg.Content.Provider)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

func apiKeyFromEnv(provider string) string {
	switch provider {
	case "openai":
		return os.Getenv("OPENAI_API_KEY")
	case "gemini":
		if key := os.Getenv("GEMINI_API_KEY"); key != "" {
			return key
		}
		return os.Getenv("GOOGLE_API_KEY")
	}
	return ""
}
