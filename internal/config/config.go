// Package config handles agent configuration.
// Values come from defaults, an optional config file (YAML or .env) and
// environment variables, in increasing order of precedence.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	apperrors "github.com/cheminotify/agent/internal/errors"
)

// Keys double as environment variable names (upper-cased).
const (
	KeyUsername           = "cheminot_username"
	KeyPassword           = "cheminot_password"
	KeyJNLPPath           = "jnlp_path"
	KeyTessdataPrefix     = "tessdata_prefix"
	KeyOCRLanguage        = "ocr_language"
	KeyOCRAddr            = "ocr_addr"
	KeyCourseCode         = "tracking_course_code"
	KeyRetryMinutes       = "course_not_available_retry_wait_minutes"
	KeySessionMinutes     = "session_duration_minutes"
	KeyCooldownSeconds    = "session_cooldown_seconds"
	KeyLogLevel           = "log_level"
	KeyLogDir             = "log_dir"
	KeyWebhookURL         = "discord_webhook_url"
	KeyIncludeScreenshots = "notification_include_screenshots"
	KeyAlertSound         = "alert_sound"
	KeyStatusAddr         = "status_addr"
	KeyHistoryPath        = "history_path"
	KeyPopupRulesPath     = "popup_rules_path"
	KeyOKButtonTemplate   = "ok_button_template"
)

var defaults = map[string]any{
	KeyOCRLanguage:        "fra",
	KeyCourseCode:         "GTI611",
	KeyRetryMinutes:       10.0,
	KeySessionMinutes:     60,
	KeyCooldownSeconds:    5,
	KeyLogLevel:           "INFO",
	KeyLogDir:             "logs",
	KeyIncludeScreenshots: true,
	KeyAlertSound:         false,
	KeyHistoryPath:        filepath.Join("logs", "history.db"),
	KeyOKButtonTemplate:   filepath.Join("assets", "ok_button.png"),
}

type Config struct {
	Username string
	Password string
	JNLPPath string

	TessdataPrefix string
	OCRLanguage    string
	OCRAddr        string // remote OCR service; tesseract is used when empty

	CourseCode      string
	RetryInterval   time.Duration
	SessionTimeout  time.Duration
	SessionCooldown time.Duration

	LogLevel string
	LogDir   string

	WebhookURL         string
	IncludeScreenshots bool
	AlertSound         bool

	StatusAddr       string // status server; disabled when empty
	HistoryPath      string // SQLite audit log; disabled when empty
	PopupRulesPath   string // overrides the embedded popup rule table
	OKButtonTemplate string
}

// Load reads configuration. path may be empty, a YAML file or a .env file.
func Load(path string) (*Config, error) {
	v := viper.New()
	for k, d := range defaults {
		v.SetDefault(k, d)
	}
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, apperrors.Wrapf(err, apperrors.ConfigInvalid, "read config %s", path)
		}
	}

	return &Config{
		Username:           unquote(v.GetString(KeyUsername)),
		Password:           unquote(v.GetString(KeyPassword)),
		JNLPPath:           unquote(v.GetString(KeyJNLPPath)),
		TessdataPrefix:     v.GetString(KeyTessdataPrefix),
		OCRLanguage:        v.GetString(KeyOCRLanguage),
		OCRAddr:            v.GetString(KeyOCRAddr),
		CourseCode:         strings.ToUpper(strings.TrimSpace(v.GetString(KeyCourseCode))),
		RetryInterval:      minutes(v.GetFloat64(KeyRetryMinutes)),
		SessionTimeout:     minutes(v.GetFloat64(KeySessionMinutes)),
		SessionCooldown:    time.Duration(v.GetFloat64(KeyCooldownSeconds) * float64(time.Second)),
		LogLevel:           strings.ToUpper(v.GetString(KeyLogLevel)),
		LogDir:             v.GetString(KeyLogDir),
		WebhookURL:         v.GetString(KeyWebhookURL),
		IncludeScreenshots: v.GetBool(KeyIncludeScreenshots),
		AlertSound:         v.GetBool(KeyAlertSound),
		StatusAddr:         v.GetString(KeyStatusAddr),
		HistoryPath:        v.GetString(KeyHistoryPath),
		PopupRulesPath:     v.GetString(KeyPopupRulesPath),
		OKButtonTemplate:   v.GetString(KeyOKButtonTemplate),
	}, nil
}

// Debug reports whether diagnostic screenshots are enabled.
func (c *Config) Debug() bool {
	return c.LogLevel == "DEBUG"
}

// ScreenshotDir is where diagnostic screenshots are written.
func (c *Config) ScreenshotDir() string {
	return filepath.Join(c.LogDir, "screenshots")
}

// OCRScreenshotDir is where unrecognized popups are written.
func (c *Config) OCRScreenshotDir() string {
	return filepath.Join(c.LogDir, "ocr_screenshots")
}

// Validate checks the values a session cannot start without.
func (c *Config) Validate() error {
	if c.Username == "" || c.Password == "" {
		return apperrors.New(apperrors.ConfigMissing, "credentials not set").
			WithMetadata("keys", strings.ToUpper(KeyUsername+","+KeyPassword))
	}
	if c.JNLPPath == "" {
		return apperrors.New(apperrors.ConfigMissing, "JNLP file not set").
			WithMetadata("key", strings.ToUpper(KeyJNLPPath))
	}
	if fi, err := os.Stat(c.JNLPPath); err != nil || fi.IsDir() {
		return apperrors.Wrapf(err, apperrors.ConfigMissing, "JNLP file not found: %s", c.JNLPPath)
	}
	if c.CourseCode == "" {
		return apperrors.New(apperrors.ConfigMissing, "course code not set")
	}
	if c.RetryInterval <= 0 {
		return apperrors.Newf(apperrors.ConfigInvalid, "retry interval must be positive, got %v", c.RetryInterval)
	}
	if c.SessionTimeout <= 0 {
		return apperrors.Newf(apperrors.ConfigInvalid, "session timeout must be positive, got %v", c.SessionTimeout)
	}
	return nil
}

func minutes(m float64) time.Duration {
	return time.Duration(m * float64(time.Minute))
}

func unquote(s string) string {
	return strings.Trim(strings.TrimSpace(s), `"`)
}
