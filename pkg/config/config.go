// Package config defines the catalogsync configuration and its defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Config represents the full catalogsync configuration.
type Config struct {
	Logging   LoggingConfig  `mapstructure:"logging" yaml:"logging" json:"logging"`
	Browser   BrowserConfig  `mapstructure:"browser" yaml:"browser" json:"browser"`
	Target    TargetConfig   `mapstructure:"target" yaml:"target" json:"target"`
	Batch     BatchConfig    `mapstructure:"batch" yaml:"batch" json:"batch"`
	Content   ContentConfig  `mapstructure:"content" yaml:"content" json:"content"`
	Catalog   CatalogConfig  `mapstructure:"catalog" yaml:"catalog" json:"catalog"`
	Store     StoreConfig    `mapstructure:"store" yaml:"store" json:"store"`
	Server    ServerConfig   `mapstructure:"server" yaml:"server" json:"server"`
	Artifacts ArtifactConfig `mapstructure:"artifacts" yaml:"artifacts" json:"artifacts"`
}

// LoggingConfig controls the zap/lumberjack logging setup.
type LoggingConfig struct {
	Level      string `mapstructure:"level" yaml:"level" json:"level"`
	Dir        string `mapstructure:"dir" yaml:"dir" json:"dir"`
	Console    bool   `mapstructure:"console" yaml:"console" json:"console"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" yaml:"max_size_mb" json:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups" json:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days" yaml:"max_age_days" json:"max_age_days"`
}

// BrowserConfig controls the automation session.
type BrowserConfig struct {
	ProfileDir    string        `mapstructure:"profile_dir" yaml:"profile_dir" json:"profile_dir"`
	ScreenshotDir string        `mapstructure:"screenshot_dir" yaml:"screenshot_dir" json:"screenshot_dir"`
	Headless      bool          `mapstructure:"headless" yaml:"headless" json:"headless"`
	Channel       string        `mapstructure:"channel" yaml:"channel" json:"channel"`
	UserAgent     string        `mapstructure:"user_agent" yaml:"user_agent" json:"user_agent"`
	ViewportW     int           `mapstructure:"viewport_width" yaml:"viewport_width" json:"viewport_width"`
	ViewportH     int           `mapstructure:"viewport_height" yaml:"viewport_height" json:"viewport_height"`
	Timeout       time.Duration `mapstructure:"timeout" yaml:"timeout" json:"timeout"`
	PageLoad      time.Duration `mapstructure:"page_load_timeout" yaml:"page_load_timeout" json:"page_load_timeout"`
	CleanProfile  bool          `mapstructure:"clean_profile" yaml:"clean_profile" json:"clean_profile"`
	InstallDriver bool          `mapstructure:"install_driver" yaml:"install_driver" json:"install_driver"`
}

// FieldKind selects how a field value is written into the editor.
type FieldKind string

const (
	// FieldText is a single-line input.
	FieldText FieldKind = "text"
	// FieldMultiline is a textarea that rejects raw newlines.
	FieldMultiline FieldKind = "multiline"
	// FieldRichText is a rich-text editor hosted in an iframe.
	FieldRichText FieldKind = "richtext"
)

// FieldConfig maps a content field to its editor input.
type FieldConfig struct {
	Selector string    `mapstructure:"selector" yaml:"selector" json:"selector"`
	Kind     FieldKind `mapstructure:"kind" yaml:"kind" json:"kind"`
}

// TargetConfig describes the target application's pages. Selectors use
// Playwright selector syntax (css=, xpath=, text=).
type TargetConfig struct {
	LoginURL   string `mapstructure:"login_url" yaml:"login_url" json:"login_url"`
	CatalogURL string `mapstructure:"catalog_url" yaml:"catalog_url" json:"catalog_url"`

	AuthIndicators []string `mapstructure:"auth_indicators" yaml:"auth_indicators" json:"auth_indicators"`
	CatalogTabs    []string `mapstructure:"catalog_tabs" yaml:"catalog_tabs" json:"catalog_tabs"`
	SearchInput    string   `mapstructure:"search_input" yaml:"search_input" json:"search_input"`

	// ResultsTable is the container whose HTML is parsed for row matching;
	// ResultRowCSS selects rows within that HTML and ResultRows clicks them.
	ResultsTable        string `mapstructure:"results_table" yaml:"results_table" json:"results_table"`
	ResultRowCSS        string `mapstructure:"result_row_css" yaml:"result_row_css" json:"result_row_css"`
	ResultRows          string `mapstructure:"result_rows" yaml:"result_rows" json:"result_rows"`
	FirstResultFallback string `mapstructure:"first_result_fallback" yaml:"first_result_fallback" json:"first_result_fallback"`

	EditorTabs  []string `mapstructure:"editor_tabs" yaml:"editor_tabs" json:"editor_tabs"`
	EditButtons []string `mapstructure:"edit_buttons" yaml:"edit_buttons" json:"edit_buttons"`
	EditorModal string   `mapstructure:"editor_modal" yaml:"editor_modal" json:"editor_modal"`
	SEOToggle   string   `mapstructure:"seo_toggle" yaml:"seo_toggle" json:"seo_toggle"`
	SaveButton  string   `mapstructure:"save_button" yaml:"save_button" json:"save_button"`

	Fields map[string]FieldConfig `mapstructure:"fields" yaml:"fields" json:"fields"`

	ElementTimeout time.Duration `mapstructure:"element_timeout" yaml:"element_timeout" json:"element_timeout"`
	ProbeTimeout   time.Duration `mapstructure:"probe_timeout" yaml:"probe_timeout" json:"probe_timeout"`
	SaveTimeout    time.Duration `mapstructure:"save_timeout" yaml:"save_timeout" json:"save_timeout"`
	KeystrokeDelay time.Duration `mapstructure:"keystroke_delay" yaml:"keystroke_delay" json:"keystroke_delay"`
	SearchSettle   time.Duration `mapstructure:"search_settle" yaml:"search_settle" json:"search_settle"`
	StepSettle     time.Duration `mapstructure:"step_settle" yaml:"step_settle" json:"step_settle"`
}

// BatchConfig controls the batch worker.
type BatchConfig struct {
	InterItemDelay time.Duration `mapstructure:"inter_item_delay" yaml:"inter_item_delay" json:"inter_item_delay"`
	PausePoll      time.Duration `mapstructure:"pause_poll" yaml:"pause_poll" json:"pause_poll"`
	StopTimeout    time.Duration `mapstructure:"stop_timeout" yaml:"stop_timeout" json:"stop_timeout"`
	EventBuffer    int           `mapstructure:"event_buffer" yaml:"event_buffer" json:"event_buffer"`
	Screenshots    bool          `mapstructure:"screenshots" yaml:"screenshots" json:"screenshots"`
}

// ContactConfig is rendered into the detailed description footer.
type ContactConfig struct {
	WhatsApp string `mapstructure:"whatsapp" yaml:"whatsapp" json:"whatsapp"`
	Email    string `mapstructure:"email" yaml:"email" json:"email"`
	Phone    string `mapstructure:"phone" yaml:"phone" json:"phone"`
	Website  string `mapstructure:"website" yaml:"website" json:"website"`
}

// ContentConfig selects and configures the content generator.
type ContentConfig struct {
	// Provider is one of "template", "openai" or "gemini".
	Provider    string        `mapstructure:"provider" yaml:"provider" json:"provider"`
	Model       string        `mapstructure:"model" yaml:"model" json:"model"`
	APIKey      string        `mapstructure:"api_key" yaml:"api_key" json:"-"`
	BaseURL     string        `mapstructure:"base_url" yaml:"base_url" json:"base_url"`
	Temperature float64       `mapstructure:"temperature" yaml:"temperature" json:"temperature"`
	Timeout     time.Duration `mapstructure:"timeout" yaml:"timeout" json:"timeout"`
	Prompt      string        `mapstructure:"prompt" yaml:"prompt" json:"prompt"`
	Contact     ContactConfig `mapstructure:"contact" yaml:"contact" json:"contact"`
}

// CatalogConfig controls item loading.
type CatalogConfig struct {
	// Root confines item files requested through the server. Empty means
	// the working directory.
	Root    string   `mapstructure:"root" yaml:"root" json:"root"`
	Sheet   string   `mapstructure:"sheet" yaml:"sheet" json:"sheet"`
	Include []string `mapstructure:"include" yaml:"include" json:"include"`
	Exclude []string `mapstructure:"exclude" yaml:"exclude" json:"exclude"`
}

// StoreConfig locates the run history database.
type StoreConfig struct {
	Path string `mapstructure:"path" yaml:"path" json:"path"`
}

// ServerConfig controls the command server.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr" yaml:"addr" json:"addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" json:"shutdown_timeout"`
}

// ArtifactConfig defines artifact generation configuration
type ArtifactConfig struct {
	Enabled   bool   `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	OutputDir string `mapstructure:"output_dir" yaml:"output_dir" json:"output_dir"`
	JSON      bool   `mapstructure:"json" yaml:"json" json:"json"`
	Markdown  bool   `mapstructure:"markdown" yaml:"markdown" json:"markdown"`
	Excel     bool   `mapstructure:"excel" yaml:"excel" json:"excel"`
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Browser.ProfileDir == "" {
		return fmt.Errorf("browser.profile_dir is required")
	}
	if c.Browser.ViewportW <= 0 || c.Browser.ViewportH <= 0 {
		return fmt.Errorf("browser viewport must be positive, got %dx%d", c.Browser.ViewportW, c.Browser.ViewportH)
	}
	if c.Browser.Timeout <= 0 {
		return fmt.Errorf("browser.timeout must be positive")
	}

	if c.Target.CatalogURL == "" {
		return fmt.Errorf("target.catalog_url is required")
	}
	if c.Target.SearchInput == "" {
		return fmt.Errorf("target.search_input is required")
	}
	if c.Target.EditorModal == "" || c.Target.SaveButton == "" {
		return fmt.Errorf("target.editor_modal and target.save_button are required")
	}
	if len(c.Target.EditButtons) == 0 {
		return fmt.Errorf("target.edit_buttons needs at least one selector")
	}
	for name, f := range c.Target.Fields {
		if f.Selector == "" {
			return fmt.Errorf("target.fields.%s: selector is required", name)
		}
		switch f.Kind {
		case FieldText, FieldMultiline, FieldRichText:
		default:
			return fmt.Errorf("target.fields.%s: invalid kind %q (must be text, multiline or richtext)", name, f.Kind)
		}
	}
	if c.Target.ElementTimeout <= 0 {
		return fmt.Errorf("target.element_timeout must be positive")
	}

	if c.Batch.InterItemDelay < 0 {
		return fmt.Errorf("batch.inter_item_delay cannot be negative")
	}
	if c.Batch.PausePoll <= 0 {
		return fmt.Errorf("batch.pause_poll must be positive")
	}
	if c.Batch.StopTimeout <= 0 {
		return fmt.Errorf("batch.stop_timeout must be positive")
	}
	if c.Batch.EventBuffer < 1 {
		return fmt.Errorf("batch.event_buffer must be at least 1")
	}

	switch c.Content.Provider {
	case "template", "openai", "gemini":
	default:
		return fmt.Errorf("invalid content.provider: %s (must be 'template', 'openai' or 'gemini')", c.Content.Provider)
	}

	if c.Artifacts.Enabled && c.Artifacts.OutputDir == "" {
		return fmt.Errorf("artifacts.output_dir is required when artifacts are enabled")
	}

	return nil
}

// HomeDir returns the catalogsync state directory (~/.catalogsync), falling
// back to the working directory when the home directory is unknown.
func HomeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".catalogsync"
	}
	return filepath.Join(home, ".catalogsync")
}

// DefaultConfig returns a configuration targeting the STEL Order catalog.
func DefaultConfig() Config {
	base := HomeDir()
	return Config{
		Logging: LoggingConfig{
			Level:      "info",
			Dir:        filepath.Join(base, "logs"),
			Console:    true,
			MaxSizeMB:  10,
			MaxBackups: 5,
			MaxAgeDays: 30,
		},
		Browser: BrowserConfig{
			ProfileDir:    filepath.Join(base, "profile"),
			ScreenshotDir: filepath.Join(base, "screenshots"),
			Headless:      false,
			ViewportW:     1280,
			ViewportH:     720,
			Timeout:       60 * time.Second,
			PageLoad:      30 * time.Second,
			CleanProfile:  true,
			InstallDriver: true,
		},
		Target: DefaultTarget(),
		Batch: BatchConfig{
			InterItemDelay: 2 * time.Second,
			PausePoll:      500 * time.Millisecond,
			StopTimeout:    5 * time.Second,
			EventBuffer:    256,
			Screenshots:    true,
		},
		Content: ContentConfig{
			Provider:    "template",
			Model:       "gemini-2.0-flash",
			Temperature: 0.7,
			Timeout:     60 * time.Second,
		},
		Catalog: CatalogConfig{},
		Store: StoreConfig{
			Path: filepath.Join(base, "runs.db"),
		},
		Server: ServerConfig{
			Addr:            "127.0.0.1:8765",
			ShutdownTimeout: 10 * time.Second,
		},
		Artifacts: ArtifactConfig{
			Enabled:   true,
			OutputDir: filepath.Join(base, "artifacts"),
			JSON:      true,
			Markdown:  true,
			Excel:     true,
		},
	}
}

// Content field names produced by the generators and consumed by the
// navigator's field map.
const (
	FieldDescription         = "description"
	FieldDetailedDescription = "detailed_description"
	FieldSEOTitle            = "seo_title"
	FieldSEODescription      = "seo_description"
	FieldFeatured            = "featured"
)

// DefaultTarget returns the locators for the STEL Order web app.
func DefaultTarget() TargetConfig {
	return TargetConfig{
		LoginURL:   "https://www.stelorder.com/app/",
		CatalogURL: "https://app.stelorder.com/app/#main_catalogo",
		AuthIndicators: []string{
			"xpath=//a[@id='ui-id-2']",
			"xpath=//div[@class='header-usuario']",
			"xpath=//button[contains(@class, 'logout')]",
		},
		CatalogTabs: []string{
			"xpath=//a[@id='ui-id-2']",
		},
		SearchInput:         "xpath=//input[contains(@class, 'buscadorListado')]",
		ResultsTable:        "css=table.tablaListado",
		ResultRowCSS:        "tr.lineaTD",
		ResultRows:          "xpath=//table[@class='tablaListado']//tr[@class='lineaTD']",
		FirstResultFallback: "xpath=//td[@class='tdTextoLargo tdBold']",
		EditorTabs: []string{
			"xpath=//a[@id='ui-id-31']",
			"xpath=//li[contains(@class, 'ui-tabs-tab')]/a[contains(text(), 'Shop')]",
			"xpath=//a[contains(text(), 'Shop')]",
		},
		EditButtons: []string{
			"xpath=//*[@id='editarShop']",
			"xpath=//button[contains(text(), 'Editar')]",
			"xpath=//button[contains(@class, 'editarShop')]",
		},
		EditorModal: "#editarObjetoCatalogoConfiguracionShop_dialog",
		SEOToggle:   "#editarObjetoCatalogoConfiguracionShop_dialog #trMostrarOcultarCamposSeoShopTable",
		SaveButton:  "css=button.opcionMenuGuardar.primaryButton",
		Fields: map[string]FieldConfig{
			FieldDescription:         {Selector: "#editarObjetoCatalogoConfiguracionShop_dialog #descriptionShop", Kind: FieldMultiline},
			FieldDetailedDescription: {Selector: "#editarObjetoCatalogoConfiguracionShop_dialog iframe.cke_wysiwyg_frame", Kind: FieldRichText},
			FieldSEOTitle:            {Selector: "#editarObjetoCatalogoConfiguracionShop_dialog #seoTitleShop", Kind: FieldText},
			FieldSEODescription:      {Selector: "#editarObjetoCatalogoConfiguracionShop_dialog #seoDescriptionShop", Kind: FieldText},
			FieldFeatured:            {Selector: "#editarObjetoCatalogoConfiguracionShop_dialog #destacadoShop", Kind: FieldText},
		},
		ElementTimeout: 10 * time.Second,
		ProbeTimeout:   2 * time.Second,
		SaveTimeout:    15 * time.Second,
		KeystrokeDelay: 50 * time.Millisecond,
		SearchSettle:   3 * time.Second,
		StepSettle:     time.Second,
	}
}
