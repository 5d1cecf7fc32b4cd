// Package config loads application settings from the environment.
//
// Configuration sources (in order of precedence):
//  1. Environment variables (flat names, e.g. API_KEY, S3_BUCKET)
//  2. .env.local
//  3. .env
//  4. Default values
//
// The device fleet itself lives in a separate YAML file pointed to by
// ZK_MACHINES_CONFIG and is loaded by pkg/device.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Settings holds all runtime configuration for the service.
type Settings struct {
	// Device fleet
	ZKMachinesConfig string `mapstructure:"zk_machines_config" validate:"required"`

	// API server
	APIHost        string `mapstructure:"api_host"`
	APIPort        int    `mapstructure:"api_port"        validate:"min=1,max=65535"`
	APIKey         string `mapstructure:"api_key"         validate:"required"`
	APICORSOrigins string `mapstructure:"api_cors_origins"`

	// S3-compatible object storage for backups
	S3AccessKey string `mapstructure:"s3_access_key"`
	S3SecretKey string `mapstructure:"s3_secret_key"`
	S3Bucket    string `mapstructure:"s3_bucket"`
	S3Endpoint  string `mapstructure:"s3_endpoint"`
	S3Region    string `mapstructure:"s3_region"`

	// Odoo HRIS (user sync source)
	OdooHost     string `mapstructure:"odoo_host"`
	OdooPort     int    `mapstructure:"odoo_port" validate:"min=1,max=65535"`
	OdooProtocol string `mapstructure:"odoo_protocol" validate:"oneof=jsonrpc jsonrpc+ssl"`
	OdooDB       string `mapstructure:"odoo_db"`
	OdooUser     string `mapstructure:"odoo_user"`
	OdooPassword string `mapstructure:"odoo_password"`

	// Cloudflared (consumed by the deployment, not by this process)
	CloudflareTunnelToken string `mapstructure:"cloudflare_tunnel_token"`

	// Notifications
	TelegramBotToken     string `mapstructure:"telegram_bot_token"`
	TelegramChatID       string `mapstructure:"telegram_chat_id"`
	MattermostWebhookURL string `mapstructure:"mattermost_webhook_url"`

	// Scheduler & cache
	SchedulerEnabled    bool `mapstructure:"scheduler_enabled"`
	CacheRefreshMinutes int  `mapstructure:"cache_refresh_minutes" validate:"min=1"`
	BackupHourUTC       int  `mapstructure:"backup_hour_utc"       validate:"min=0,max=23"`
	BackupMinuteUTC     int  `mapstructure:"backup_minute_utc"     validate:"min=0,max=59"`
	BackupRetentionDays int  `mapstructure:"backup_retention_days" validate:"min=1"`

	// Metrics (Prometheus, served on its own port when enabled)
	MetricsEnabled bool `mapstructure:"metrics_enabled"`
	MetricsPort    int  `mapstructure:"metrics_port" validate:"min=1,max=65535"`

	// General
	Environment string `mapstructure:"environment"`
	LogLevel    string `mapstructure:"log_level"  validate:"oneof=DEBUG INFO WARN ERROR debug info warn error"`
	LogFormat   string `mapstructure:"log_format" validate:"oneof=text json"`
}

// CORSOrigins parses the comma-separated origin list.
func (s *Settings) CORSOrigins() []string {
	var origins []string
	for _, o := range strings.Split(s.APICORSOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

// S3Configured reports whether object storage credentials are present.
func (s *Settings) S3Configured() bool {
	return s.S3AccessKey != "" && s.S3SecretKey != ""
}

// OdooConfigured reports whether the HRIS connection is usable.
func (s *Settings) OdooConfigured() bool {
	return s.OdooPassword != "" && s.OdooPassword != "change-me"
}

// Load reads settings from .env files and the environment.
func Load() (*Settings, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// .env is the base, .env.local overrides it. Real environment variables
	// override both (viper env precedence).
	v.SetConfigType("env")
	for _, file := range []string{".env", ".env.local"} {
		if _, err := os.Stat(file); err != nil {
			continue
		}
		v.SetConfigFile(file)
		if err := v.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", file, err)
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("failed to unmarshal settings: %w", err)
	}

	if err := Validate(&s); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate checks settings against the struct validation tags.
func Validate(s *Settings) error {
	validate := validator.New()
	if err := validate.Struct(s); err != nil {
		var errs validator.ValidationErrors
		if ok := errors.As(err, &errs); ok && len(errs) > 0 {
			e := errs[0]
			return fmt.Errorf("invalid setting %s: failed %q constraint", e.Field(), e.Tag())
		}
		return fmt.Errorf("settings validation failed: %w", err)
	}
	return nil
}
