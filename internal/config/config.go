package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// FileName is the configuration file looked up in the config directory.
const FileName = "gsnap.cfg.json"

// ToolConfig holds the locator tool settings.
type ToolConfig struct {
	GroupName     string        `json:"groupName" mapstructure:"groupName"`
	DefaultScale  int           `json:"defaultScale" mapstructure:"defaultScale"`
	FallbackColor [3]float64    `json:"fallbackColor" mapstructure:"fallbackColor"`
	Debounce      time.Duration `json:"debounce" mapstructure:"debounce"`
	FocusDelay    time.Duration `json:"focusDelay" mapstructure:"focusDelay"`
}

// DBConfig holds the settings database connection.
type DBConfig struct {
	Type       string `json:"type" mapstructure:"type"`
	SqlitePath string `json:"sqlitePath" mapstructure:"sqlitePath"`
	Host       string `json:"host" mapstructure:"host"`
	Port       string `json:"port" mapstructure:"port"`
	Username   string `json:"username" mapstructure:"username"`
	Password   string `json:"password" mapstructure:"password"`
	Database   string `json:"database" mapstructure:"database"`
}

// OTelConfig holds OpenTelemetry settings.
type OTelConfig struct {
	Enabled      bool          `json:"enabled" mapstructure:"enabled"`
	ServiceName  string        `json:"serviceName" mapstructure:"serviceName"`
	BatchTimeout time.Duration `json:"batchTimeout" mapstructure:"batchTimeout"`
	Endpoint     string        `json:"endpoint" mapstructure:"endpoint"`
	Insecure     bool          `json:"insecure" mapstructure:"insecure"`
}

// InfluxConfig holds the pass metrics sink.
type InfluxConfig struct {
	Enabled    bool          `json:"enabled" mapstructure:"enabled"`
	Host       string        `json:"host" mapstructure:"host"`
	Port       string        `json:"port" mapstructure:"port"`
	Protocol   string        `json:"protocol" mapstructure:"protocol"`
	Token      string        `json:"token" mapstructure:"token"`
	Org        string        `json:"org" mapstructure:"org"`
	Bucket     string        `json:"bucket" mapstructure:"bucket"`
	Retention  time.Duration `json:"retention" mapstructure:"retention"`
	BackupPath string        `json:"backupPath" mapstructure:"backupPath"`
	Group      string        `json:"-" mapstructure:"-"`
}

// GraylogConfig holds the GELF log sink.
type GraylogConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	Address string `json:"address" mapstructure:"address"`
}

// Load reads configuration from JSON file and sets default values.
// configDir is the directory containing the config file.
func Load(configDir string) error {
	SetDefaults()

	viper.SetConfigName(FileName)
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	err := viper.ReadInConfig()
	if err != nil {
		return fmt.Errorf("error reading config file: %v", err)
	}

	return nil
}

// SetDefaults registers the default value of every key.
func SetDefaults() {
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./gsnaplogs")

	viper.SetDefault("locator.groupName", "GSnap")
	viper.SetDefault("locator.defaultScale", 1)
	viper.SetDefault("locator.fallbackColor", []float64{1, 0.19, 0.02})

	viper.SetDefault("tool.debounce", "100ms")
	viper.SetDefault("tool.focusDelay", "111ms")

	viper.SetDefault("settings.type", "sqlite")
	viper.SetDefault("settings.sqlite.path", "./gsnap_settings.db")
	viper.SetDefault("settings.postgres.host", "localhost")
	viper.SetDefault("settings.postgres.port", "5432")
	viper.SetDefault("settings.postgres.username", "postgres")
	viper.SetDefault("settings.postgres.password", "postgres")
	viper.SetDefault("settings.postgres.database", "gsnap")

	viper.SetDefault("influx.enabled", false)
	viper.SetDefault("influx.host", "localhost")
	viper.SetDefault("influx.port", "8086")
	viper.SetDefault("influx.protocol", "http")
	viper.SetDefault("influx.token", "supersecrettoken")
	viper.SetDefault("influx.org", "gsnap")
	viper.SetDefault("influx.bucket", "gsnap_passes")
	viper.SetDefault("influx.retention", "2160h")
	viper.SetDefault("influx.backupPath", "./gsnaplogs/passes.lp.gz")

	viper.SetDefault("graylog.enabled", false)
	viper.SetDefault("graylog.address", "localhost:12201")

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.serviceName", "gsnap")
	viper.SetDefault("otel.batchTimeout", "5s")
	viper.SetDefault("otel.endpoint", "")
	viper.SetDefault("otel.insecure", true)
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}

// GetToolConfig returns the locator tool settings. A fallback color that is
// not three components keeps the default.
func GetToolConfig() ToolConfig {
	cfg := ToolConfig{
		GroupName:     viper.GetString("locator.groupName"),
		DefaultScale:  viper.GetInt("locator.defaultScale"),
		FallbackColor: [3]float64{1, 0.19, 0.02},
		Debounce:      viper.GetDuration("tool.debounce"),
		FocusDelay:    viper.GetDuration("tool.focusDelay"),
	}
	var color []float64
	if err := viper.UnmarshalKey("locator.fallbackColor", &color); err == nil && len(color) == 3 {
		copy(cfg.FallbackColor[:], color)
	}
	return cfg
}

// GetSettingsConfig returns the settings database connection.
func GetSettingsConfig() DBConfig {
	return DBConfig{
		Type:       viper.GetString("settings.type"),
		SqlitePath: viper.GetString("settings.sqlite.path"),
		Host:       viper.GetString("settings.postgres.host"),
		Port:       viper.GetString("settings.postgres.port"),
		Username:   viper.GetString("settings.postgres.username"),
		Password:   viper.GetString("settings.postgres.password"),
		Database:   viper.GetString("settings.postgres.database"),
	}
}

// GetOTelConfig returns the OpenTelemetry settings.
func GetOTelConfig() OTelConfig {
	return OTelConfig{
		Enabled:      viper.GetBool("otel.enabled"),
		ServiceName:  viper.GetString("otel.serviceName"),
		BatchTimeout: viper.GetDuration("otel.batchTimeout"),
		Endpoint:     viper.GetString("otel.endpoint"),
		Insecure:     viper.GetBool("otel.insecure"),
	}
}

// GetTelemetryConfig returns the pass metrics sink settings.
func GetTelemetryConfig() InfluxConfig {
	return InfluxConfig{
		Enabled:    viper.GetBool("influx.enabled"),
		Host:       viper.GetString("influx.host"),
		Port:       viper.GetString("influx.port"),
		Protocol:   viper.GetString("influx.protocol"),
		Token:      viper.GetString("influx.token"),
		Org:        viper.GetString("influx.org"),
		Bucket:     viper.GetString("influx.bucket"),
		Retention:  viper.GetDuration("influx.retention"),
		BackupPath: viper.GetString("influx.backupPath"),
		Group:      viper.GetString("locator.groupName"),
	}
}

// GetGraylogConfig returns the GELF log sink settings.
func GetGraylogConfig() GraylogConfig {
	return GraylogConfig{
		Enabled: viper.GetBool("graylog.enabled"),
		Address: viper.GetString("graylog.address"),
	}
}
