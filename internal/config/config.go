package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds application configuration
type Config struct {
	// Server settings
	Host           string
	Port           string
	AllowedOrigins []string
	// Sessions unused for this long are dropped; 0 keeps them
	SessionIdleTimeout time.Duration

	// Database settings
	DBPath string
	// Journal entries older than this are pruned; 0 keeps everything
	JournalRetention time.Duration

	// Logging
	LogLevel       string
	LogDevelopment bool
	LogFile        string

	// Export settings
	ExportFormat  string
	ExportPrefix  string
	DefaultFolder string
	CompressPDF   bool
	// Reuse the last selected folder for sessions that have none
	RememberFolder bool

	// Gmail API
	CredentialsFile string
	TokenFile       string
	GmailEndpoint   string
	// Requests per second allowed against the Gmail API
	GmailRateLimit float64

	// Timeout of outbound HTTP requests
	HTTPTimeout time.Duration

	// Extraction
	NoiseDomains          []string
	DropUnresolvedSenders bool
}

// Default returns default configuration
func Default() *Config {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}

	// Use ~/.erado for data directory
	dataDir := filepath.Join(homeDir, ".erado")

	return &Config{
		Host:                  "localhost",
		Port:                  "8080",
		AllowedOrigins:        []string{"https://mail.google.com"},
		SessionIdleTimeout:    24 * time.Hour,
		DBPath:                filepath.Join(dataDir, "exports.db"),
		JournalRetention:      90 * 24 * time.Hour,
		LogLevel:              "info",
		ExportFormat:          "pdf",
		ExportPrefix:          "erado",
		CompressPDF:           true,
		CredentialsFile:       filepath.Join(dataDir, "credentials.json"),
		TokenFile:             filepath.Join(dataDir, "token.json"),
		GmailRateLimit:        10,
		HTTPTimeout:           30 * time.Second,
		NoiseDomains:          []string{"mail.google.com", "google.com", "gmail.com"},
		DropUnresolvedSenders: true,
	}
}

// Load reads configuration from ERADO_* environment variables and an
// optional .env file, falling back to Default
func Load() (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	def := Default()
	v := viper.New()
	v.SetEnvPrefix("erado")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("server.host", def.Host)
	v.SetDefault("server.port", def.Port)
	v.SetDefault("server.allowed_origins", strings.Join(def.AllowedOrigins, ","))
	v.SetDefault("session.idle_timeout", def.SessionIdleTimeout.String())
	v.SetDefault("db.path", def.DBPath)
	v.SetDefault("journal.retention", def.JournalRetention.String())
	v.SetDefault("log.level", def.LogLevel)
	v.SetDefault("log.development", def.LogDevelopment)
	v.SetDefault("log.file", "")
	v.SetDefault("export.format", def.ExportFormat)
	v.SetDefault("export.prefix", def.ExportPrefix)
	v.SetDefault("export.default_folder", "")
	v.SetDefault("export.compress_pdf", def.CompressPDF)
	v.SetDefault("export.remember_folder", def.RememberFolder)
	v.SetDefault("gmail.credentials_file", def.CredentialsFile)
	v.SetDefault("gmail.token_file", def.TokenFile)
	v.SetDefault("gmail.endpoint", "")
	v.SetDefault("gmail.rate_limit", def.GmailRateLimit)
	v.SetDefault("http.timeout", def.HTTPTimeout.String())
	v.SetDefault("extract.noise_domains", strings.Join(def.NoiseDomains, ","))
	v.SetDefault("thread.drop_unresolved_senders", def.DropUnresolvedSenders)

	timeout, err := time.ParseDuration(v.GetString("http.timeout"))
	if err != nil {
		return nil, fmt.Errorf("invalid http.timeout: %w", err)
	}

	retention, err := time.ParseDuration(v.GetString("journal.retention"))
	if err != nil || retention < 0 {
		return nil, fmt.Errorf("invalid journal.retention %q", v.GetString("journal.retention"))
	}

	idle, err := time.ParseDuration(v.GetString("session.idle_timeout"))
	if err != nil || idle < 0 {
		return nil, fmt.Errorf("invalid session.idle_timeout %q", v.GetString("session.idle_timeout"))
	}

	rateLimit := v.GetFloat64("gmail.rate_limit")
	if rateLimit <= 0 {
		return nil, fmt.Errorf("gmail.rate_limit must be positive")
	}

	format := strings.ToLower(v.GetString("export.format"))
	if format != "pdf" && format != "html" {
		return nil, fmt.Errorf("invalid export.format %q: must be pdf or html", format)
	}

	prefix := strings.TrimSpace(v.GetString("export.prefix"))
	if prefix == "" {
		return nil, fmt.Errorf("export.prefix must not be empty")
	}

	return &Config{
		Host:                  v.GetString("server.host"),
		Port:                  v.GetString("server.port"),
		AllowedOrigins:        parseOrigins(v.GetString("server.allowed_origins")),
		SessionIdleTimeout:    idle,
		DBPath:                v.GetString("db.path"),
		JournalRetention:      retention,
		LogLevel:              v.GetString("log.level"),
		LogDevelopment:        v.GetBool("log.development"),
		LogFile:               v.GetString("log.file"),
		ExportFormat:          format,
		ExportPrefix:          prefix,
		DefaultFolder:         v.GetString("export.default_folder"),
		CompressPDF:           v.GetBool("export.compress_pdf"),
		RememberFolder:        v.GetBool("export.remember_folder"),
		CredentialsFile:       v.GetString("gmail.credentials_file"),
		TokenFile:             v.GetString("gmail.token_file"),
		GmailEndpoint:         v.GetString("gmail.endpoint"),
		GmailRateLimit:        rateLimit,
		HTTPTimeout:           timeout,
		NoiseDomains:          parseList(v.GetString("extract.noise_domains")),
		DropUnresolvedSenders: v.GetBool("thread.drop_unresolved_senders"),
	}, nil
}

// Address returns the full server address
func (c *Config) Address() string {
	return c.Host + ":" + c.Port
}

// URL returns the full server URL
func (c *Config) URL() string {
	return "http://" + c.Address()
}

// parseList splits a comma-separated value, dropping blanks
func parseList(value string) []string {
	parts := strings.Split(value, ",")
	items := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.ToLower(strings.TrimSpace(part)); trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}

// parseOrigins splits a comma-separated origin list, keeping case
func parseOrigins(value string) []string {
	var origins []string
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSuffix(strings.TrimSpace(part), "/"); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}
