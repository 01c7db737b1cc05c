package config

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/salestrack/oppsmon/internal/db"
)

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Addr           string
	AllowedOrigins []string
}

// SchedulerConfig drives the automated snapshot captures.
type SchedulerConfig struct {
	Enabled     bool
	WeeklySpec  string
	MonthlySpec string
	Timezone    string
}

// Config aggregates everything the server needs at startup.
type Config struct {
	DB        db.Config
	Server    ServerConfig
	Scheduler SchedulerConfig
}

// DefaultConfig mirrors the original deployment: weekly snapshots Monday
// 13:30, monthly on the 1st at 10:00.
func DefaultConfig() Config {
	return Config{
		DB: db.DefaultConfig(),
		Server: ServerConfig{
			Addr:           ":8080",
			AllowedOrigins: []string{"http://localhost:3000"},
		},
		Scheduler: SchedulerConfig{
			Enabled:     true,
			WeeklySpec:  "30 13 * * 1",
			MonthlySpec: "0 10 1 * *",
			Timezone:    "Asia/Manila",
		},
	}
}

// Load reads config.yaml from configPath, falling back to defaults and
// environment overrides (APP_DATABASE_HOST and friends).
func Load(configPath string) (Config, error) {
	cfg := DefaultConfig()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)
	v.AutomaticEnv()
	v.SetEnvPrefix("APP")

	v.BindEnv("database.host")
	v.BindEnv("database.port")
	v.BindEnv("database.user")
	v.BindEnv("database.password")
	v.BindEnv("database.dbname")
	v.BindEnv("database.sslmode")
	v.BindEnv("server.addr")
	v.BindEnv("scheduler.enabled")

	if err := v.ReadInConfig(); err != nil {
		// Config file not found? Just log it, use defaults + env
		fmt.Println("No config.yaml found, using defaults and env vars")
	} else {
		fmt.Println("Loaded config.yaml")
	}

	if v.IsSet("database.host") {
		cfg.DB.Host = v.GetString("database.host")
	}
	if v.IsSet("database.port") {
		cfg.DB.Port = v.GetInt("database.port")
	}
	if v.IsSet("database.user") {
		cfg.DB.User = v.GetString("database.user")
	}
	if v.IsSet("database.password") {
		cfg.DB.Password = v.GetString("database.password")
	}
	if v.IsSet("database.dbname") {
		cfg.DB.DBName = v.GetString("database.dbname")
	}
	if v.IsSet("database.sslmode") {
		cfg.DB.SSLMode = v.GetString("database.sslmode")
	}
	if v.IsSet("server.addr") {
		cfg.Server.Addr = v.GetString("server.addr")
	}
	if v.IsSet("server.allowed_origins") {
		cfg.Server.AllowedOrigins = v.GetStringSlice("server.allowed_origins")
	}
	if v.IsSet("scheduler.enabled") {
		cfg.Scheduler.Enabled = v.GetBool("scheduler.enabled")
	}
	if v.IsSet("scheduler.weekly_spec") {
		cfg.Scheduler.WeeklySpec = v.GetString("scheduler.weekly_spec")
	}
	if v.IsSet("scheduler.monthly_spec") {
		cfg.Scheduler.MonthlySpec = v.GetString("scheduler.monthly_spec")
	}
	if v.IsSet("scheduler.timezone") {
		cfg.Scheduler.Timezone = v.GetString("scheduler.timezone")
	}

	return cfg, nil
}
