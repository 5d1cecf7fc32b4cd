package config

import "github.com/spf13/viper"

// setDefaults registers the default value for every setting. Keys use the
// lowercase form; viper maps them to the uppercase environment names.
func setDefaults(v *viper.Viper) {
	// Device fleet
	v.SetDefault("zk_machines_config", "config/machines.yml")

	// API server
	v.SetDefault("api_host", "0.0.0.0")
	v.SetDefault("api_port", 8000)
	v.SetDefault("api_key", "change-me-in-production")
	v.SetDefault("api_cors_origins", "https://odoo-hris.abcfood.app")

	// S3 backup storage (Hetzner object storage)
	v.SetDefault("s3_access_key", "")
	v.SetDefault("s3_secret_key", "")
	v.SetDefault("s3_bucket", "hz-abcfood-fingerprint")
	v.SetDefault("s3_endpoint", "https://nbg1.your-objectstorage.com")
	v.SetDefault("s3_region", "nbg1")

	// Odoo HRIS
	v.SetDefault("odoo_host", "odoo-hris.abcfood.app")
	v.SetDefault("odoo_port", 443)
	v.SetDefault("odoo_protocol", "jsonrpc+ssl")
	v.SetDefault("odoo_db", "hris_db")
	v.SetDefault("odoo_user", "admin")
	v.SetDefault("odoo_password", "change-me")

	// Cloudflared
	v.SetDefault("cloudflare_tunnel_token", "")

	// Notifications
	v.SetDefault("telegram_bot_token", "")
	v.SetDefault("telegram_chat_id", "")
	v.SetDefault("mattermost_webhook_url", "")

	// Scheduler & cache
	v.SetDefault("scheduler_enabled", true)
	v.SetDefault("cache_refresh_minutes", 5)
	v.SetDefault("backup_hour_utc", 17)
	v.SetDefault("backup_minute_utc", 0)
	v.SetDefault("backup_retention_days", 90)

	// Metrics
	v.SetDefault("metrics_enabled", false)
	v.SetDefault("metrics_port", 9100)

	// General
	v.SetDefault("environment", "production")
	v.SetDefault("log_level", "INFO")
	v.SetDefault("log_format", "text")
}
