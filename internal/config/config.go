// Package config materializes the typed pipeline configuration from viper,
// with defaults, environment fallbacks, and validation.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/atikulmunna/visual-invoice-processor/internal/common"
	"github.com/atikulmunna/visual-invoice-processor/internal/extract"
	"github.com/atikulmunna/visual-invoice-processor/internal/gauth"
	"github.com/atikulmunna/visual-invoice-processor/internal/ingest"
	"github.com/atikulmunna/visual-invoice-processor/internal/ledger"
	"github.com/atikulmunna/visual-invoice-processor/internal/service"
	"github.com/atikulmunna/visual-invoice-processor/internal/validate"
)

// Config is the full pipeline configuration.
type Config struct {
	Storage    StorageConfig
	Ingestion  ingest.Config
	Extraction extract.Config
	Ledger     ledger.Config
	Validation validate.Config
	Retry      service.RetryPolicy
	Poll       PollConfig
	Monitor    MonitorConfig
}

// StorageConfig locates the claim database.
type StorageConfig struct {
	Path string
}

// PollConfig tunes the pipeline sweep.
type PollConfig struct {
	// Workers bounds sweep concurrency.
	Workers int
	// WorkerID identifies this process in claim rows; generated when empty.
	WorkerID string
}

// MonitorConfig configures the monitoring HTTP server.
type MonitorConfig struct {
	Addr string
}

// SetDefaults registers the configuration defaults on v. Component-level
// defaults (provider models, tab names, page sizes) live in the adapters;
// only cross-cutting knobs are set here.
func SetDefaults(v *viper.Viper) {
	retry := service.DefaultRetryPolicy()
	scoring := validate.DefaultConfig()

	v.SetDefault("storage.path", "$HOME/.local/share/invoiceproc/invoiceproc.db")
	v.SetDefault("ingestion.backend", "drive")
	v.SetDefault("ingestion.allowed_mime_types", ingest.SupportedMimeTypes)
	v.SetDefault("extraction.providers", []string{"openai"})
	v.SetDefault("ledger.backend", "sheets")
	v.SetDefault("retry.max_attempts", retry.MaxAttempts)
	v.SetDefault("retry.base_delay", retry.BaseDelay)
	v.SetDefault("retry.max_delay", retry.MaxDelay)
	v.SetDefault("retry.multiplier", retry.Multiplier)
	v.SetDefault("retry.jitter_fraction", retry.JitterFraction)
	v.SetDefault("retry.attempt_timeout", retry.AttemptTimeout)
	v.SetDefault("validation.epsilon_ratio", scoring.EpsilonRelative)
	v.SetDefault("validation.epsilon_floor", scoring.EpsilonFloor)
	v.SetDefault("validation.accept_threshold", scoring.AcceptThreshold)
	v.SetDefault("validation.model_weight", scoring.ModelWeight)
	v.SetDefault("poll.workers", 4)
	v.SetDefault("monitor.addr", ":8000")
}

// Load builds and validates the configuration from v.
func Load(v *viper.Viper) (*Config, error) {
	SetDefaults(v)

	auth := googleAuth(v)

	cfg := &Config{
		Storage: StorageConfig{
			Path: ExpandPath(v.GetString("storage.path")),
		},
		Ingestion: ingest.Config{
			Backend: v.GetString("ingestion.backend"),
			Drive: ingest.DriveConfig{
				InboxFolderID:     v.GetString("ingestion.drive.inbox_folder_id"),
				ProcessedFolderID: v.GetString("ingestion.drive.processed_folder_id"),
				ReviewFolderID:    v.GetString("ingestion.drive.review_folder_id"),
				PageSize:          v.GetInt64("ingestion.drive.page_size"),
				Auth:              auth,
			},
			GCS: ingest.GCSConfig{
				Bucket:        v.GetString("ingestion.gcs.bucket"),
				InboxPrefix:   v.GetString("ingestion.gcs.inbox_prefix"),
				ArchivePrefix: v.GetString("ingestion.gcs.archive_prefix"),
				ReviewPrefix:  v.GetString("ingestion.gcs.review_prefix"),
			},
			AllowedMimeTypes: v.GetStringSlice("ingestion.allowed_mime_types"),
		},
		Extraction: extract.Config{
			Providers: v.GetStringSlice("extraction.providers"),
			OpenAI: extract.ProviderConfig{
				APIKey:      firstNonEmpty(v.GetString("extraction.openai.api_key"), os.Getenv("OPENAI_API_KEY")),
				Model:       v.GetString("extraction.openai.model"),
				Temperature: v.GetFloat64("extraction.openai.temperature"),
				MaxTokens:   v.GetInt("extraction.openai.max_tokens"),
			},
			Anthropic: extract.ProviderConfig{
				APIKey:      firstNonEmpty(v.GetString("extraction.anthropic.api_key"), os.Getenv("ANTHROPIC_API_KEY")),
				Model:       v.GetString("extraction.anthropic.model"),
				Temperature: v.GetFloat64("extraction.anthropic.temperature"),
				MaxTokens:   v.GetInt("extraction.anthropic.max_tokens"),
			},
			Gemini: extract.GeminiConfig{
				ProjectID: firstNonEmpty(v.GetString("extraction.gemini.project_id"), os.Getenv("GOOGLE_CLOUD_PROJECT")),
				Region:    v.GetString("extraction.gemini.region"),
				Model:     v.GetString("extraction.gemini.model"),
			},
			RulesPath: ExpandPath(v.GetString("normalization.rules_path")),
		},
		Ledger: ledger.Config{
			Backend: v.GetString("ledger.backend"),
			Sheets: ledger.SheetsConfig{
				SpreadsheetID: firstNonEmpty(v.GetString("ledger.sheets.spreadsheet_id"), os.Getenv("GOOGLE_SHEETS_SPREADSHEET_ID")),
				LedgerTab:     v.GetString("ledger.sheets.ledger_tab"),
				ReviewTab:     v.GetString("ledger.sheets.review_tab"),
				Auth:          auth,
			},
			Postgres: ledger.PostgresConfig{
				URL:   firstNonEmpty(v.GetString("ledger.postgres.url"), os.Getenv("DATABASE_URL")),
				Table: v.GetString("ledger.postgres.table"),
			},
		},
		Validation: validate.Config{
			EpsilonRelative: v.GetFloat64("validation.epsilon_ratio"),
			EpsilonFloor:    v.GetFloat64("validation.epsilon_floor"),
			AcceptThreshold: v.GetFloat64("validation.accept_threshold"),
			ModelWeight:     v.GetFloat64("validation.model_weight"),
		},
		Retry: service.RetryPolicy{
			MaxAttempts:    v.GetInt("retry.max_attempts"),
			BaseDelay:      v.GetDuration("retry.base_delay"),
			MaxDelay:       v.GetDuration("retry.max_delay"),
			Multiplier:     v.GetFloat64("retry.multiplier"),
			JitterFraction: v.GetFloat64("retry.jitter_fraction"),
			AttemptTimeout: v.GetDuration("retry.attempt_timeout"),
		},
		Poll: PollConfig{
			Workers:  v.GetInt("poll.workers"),
			WorkerID: v.GetString("poll.worker_id"),
		},
		Monitor: MonitorConfig{
			Addr: v.GetString("monitor.addr"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// googleAuth reads the shared Google credentials, falling back to the direct
// GOOGLE_* environment variables the service account tooling exports.
func googleAuth(v *viper.Viper) gauth.Config {
	auth := gauth.Config{
		ServiceAccountPath: v.GetString("google.service_account_path"),
		ClientID:           v.GetString("google.client_id"),
		ClientSecret:       v.GetString("google.client_secret"),
		RefreshToken:       v.GetString("google.refresh_token"),
	}

	if auth.ServiceAccountPath == "" {
		auth.ServiceAccountPath = os.Getenv("GOOGLE_SERVICE_ACCOUNT_PATH")
	}
	if auth.ClientID == "" {
		auth.ClientID = os.Getenv("GOOGLE_CLIENT_ID")
	}
	if auth.ClientSecret == "" {
		auth.ClientSecret = os.Getenv("GOOGLE_CLIENT_SECRET")
	}
	if auth.RefreshToken == "" {
		auth.RefreshToken = os.Getenv("GOOGLE_REFRESH_TOKEN")
	}

	auth.ServiceAccountPath = ExpandPath(auth.ServiceAccountPath)
	return auth
}

var (
	validIngestBackends = map[string]bool{"drive": true, "gcs": true}
	validLedgerBackends = map[string]bool{"sheets": true, "postgres": true}
	validProviders      = map[string]bool{"openai": true, "anthropic": true, "gemini": true}
)

// Validate checks enum fields and numeric ranges. Component constructors do
// their own credential checks, so a config can validate without secrets.
func (c *Config) Validate() error {
	if c.Storage.Path == "" {
		return fmt.Errorf("%w: storage.path", common.ErrMissingConfig)
	}
	if !validIngestBackends[strings.ToLower(c.Ingestion.Backend)] {
		return fmt.Errorf("%w: ingestion.backend must be drive or gcs, got %q", common.ErrInvalidConfig, c.Ingestion.Backend)
	}
	if !validLedgerBackends[strings.ToLower(c.Ledger.Backend)] {
		return fmt.Errorf("%w: ledger.backend must be sheets or postgres, got %q", common.ErrInvalidConfig, c.Ledger.Backend)
	}
	if len(c.Extraction.Providers) == 0 {
		return fmt.Errorf("%w: extraction.providers", common.ErrMissingConfig)
	}
	for _, p := range c.Extraction.Providers {
		if !validProviders[strings.ToLower(p)] {
			return fmt.Errorf("%w: unknown extraction provider %q", common.ErrInvalidConfig, p)
		}
	}
	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("%w: retry.max_attempts must be at least 1", common.ErrInvalidConfig)
	}
	if c.Retry.BaseDelay <= 0 || c.Retry.MaxDelay < c.Retry.BaseDelay {
		return fmt.Errorf("%w: retry delays must satisfy 0 < base_delay <= max_delay", common.ErrInvalidConfig)
	}
	if c.Retry.Multiplier < 1 {
		return fmt.Errorf("%w: retry.multiplier must be at least 1", common.ErrInvalidConfig)
	}
	if c.Retry.JitterFraction < 0 || c.Retry.JitterFraction >= 1 {
		return fmt.Errorf("%w: retry.jitter_fraction must be in [0, 1)", common.ErrInvalidConfig)
	}
	if c.Retry.AttemptTimeout < 0 {
		return fmt.Errorf("%w: retry.attempt_timeout cannot be negative", common.ErrInvalidConfig)
	}
	if c.Validation.AcceptThreshold <= 0 || c.Validation.AcceptThreshold > 1 {
		return fmt.Errorf("%w: validation.accept_threshold must be in (0, 1]", common.ErrInvalidConfig)
	}
	if c.Validation.ModelWeight < 0 || c.Validation.ModelWeight > 1 {
		return fmt.Errorf("%w: validation.model_weight must be in [0, 1]", common.ErrInvalidConfig)
	}
	if c.Poll.Workers < 1 {
		return fmt.Errorf("%w: poll.workers must be at least 1", common.ErrInvalidConfig)
	}
	if c.Monitor.Addr == "" {
		return fmt.Errorf("%w: monitor.addr", common.ErrMissingConfig)
	}
	return nil
}

// ExpandPath expands ~ and environment variables in a file path.
// It handles both ~ for home directory and $VAR style environment variables.
func ExpandPath(path string) string {
	if path == "" {
		return path
	}

	// First expand tilde if present
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			path = filepath.Join(home, path[2:])
		}
	} else if path == "~" {
		home, err := os.UserHomeDir()
		if err == nil {
			path = home
		}
	}

	// Then expand environment variables
	return os.ExpandEnv(path)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
