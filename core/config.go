package core

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

type (
	ServerConfig struct {
		Address         string
		DebugAddress    string
		Host            string
		ShutdownTimeout time.Duration
	}

	DatabaseConfig struct {
		Engine        string // postgres (lib/pq) | pgx
		Host          string
		Port          int
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
	}

	AnalyticsConfig struct {
		// DashboardLookbackDays is the trailing window of the dashboard rates. Reports are unbounded.
		DashboardLookbackDays int
		DigestSchedule        string   // cron spec
		DigestRecipients      []string // email addresses
	}

	Config struct {
		AppName          string
		Env              string // DEV (local; default), TEST, QA, PROD
		Build            string
		Debug            bool
		TestMode         bool
		WorkDir          string
		RollbarToken     string
		SendgridAPIKey   string
		DefaultFromEmail string
		Server           ServerConfig
		Database         DatabaseConfig
		Analytics        AnalyticsConfig
	}
)

// Address returns the database "host:port".
func (db DatabaseConfig) Address() string {
	return fmt.Sprintf("%s:%d", db.Host, db.Port)
}

// NewConfig loads the app's configuration from the environment,
// optionally seeded from `config/.env.<env>` (ignored if it does not exist).
func NewConfig() (*Config, error) {
	v := viper.New()

	// defaults
	v.SetTypeByDefaultValue(true)
	v.SetDefault("debug", true)
	v.SetDefault("appName", "PSP")
	v.SetDefault("build", "dev")
	v.SetDefault("defaultFromEmail", "noreply@localhost")
	v.SetDefault("rollbarToken", "")
	v.SetDefault("sendgridApiKey", "")
	v.SetDefault("serverAddress", ":8080")
	v.SetDefault("serverDebugAddress", ":4000")
	v.SetDefault("serverHost", "localhost")
	v.SetDefault("serverShutdownTimeout", 5*time.Second)
	v.SetDefault("dbEngine", "postgres")
	v.SetDefault("dbHost", "localhost")
	v.SetDefault("dbPort", 5432)
	v.SetDefault("dbName", "psp")
	v.SetDefault("dbUser", "psp")
	v.SetDefault("dbPassword", "")
	v.SetDefault("dbAdminUser", "")
	v.SetDefault("dbAdminPassword", "")
	v.SetDefault("dbDisableTls", false)
	v.SetDefault("dashboardLookbackDays", 30)
	v.SetDefault("digestSchedule", "0 7 * * MON")
	v.SetDefault("digestRecipients", []string{})

	env := strings.ToUpper(os.Getenv("ENV"))
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("testMode", true)
	}
	v.SetEnvPrefix(env)

	wd, err := Getwd()
	if err != nil {
		return nil, err
	}

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(wd, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			return nil, errors.Wrapf(err, "loading %s", dotEnvPath)
		}
	} else if !os.IsNotExist(err) {
		return nil, errors.Wrapf(err, "stat %s", dotEnvPath)
	}
	v.AutomaticEnv()

	return &Config{
		AppName:          v.GetString("appName"),
		Env:              env,
		Build:            v.GetString("build"),
		Debug:            v.GetBool("debug"),
		TestMode:         v.GetBool("testMode"),
		WorkDir:          wd,
		RollbarToken:     v.GetString("rollbarToken"),
		SendgridAPIKey:   v.GetString("sendgridApiKey"),
		DefaultFromEmail: v.GetString("defaultFromEmail"),
		Server: ServerConfig{
			Address:         v.GetString("serverAddress"),
			DebugAddress:    v.GetString("serverDebugAddress"),
			Host:            v.GetString("serverHost"),
			ShutdownTimeout: v.GetDuration("serverShutdownTimeout"),
		},
		Database: DatabaseConfig{
			Engine:        v.GetString("dbEngine"),
			Host:          v.GetString("dbHost"),
			Port:          v.GetInt("dbPort"),
			Name:          v.GetString("dbName"),
			User:          v.GetString("dbUser"),
			Password:      v.GetString("dbPassword"),
			AdminUser:     v.GetString("dbAdminUser"),
			AdminPassword: v.GetString("dbAdminPassword"),
			DisableTLS:    v.GetBool("dbDisableTls"),
		},
		Analytics: AnalyticsConfig{
			DashboardLookbackDays: v.GetInt("dashboardLookbackDays"),
			DigestSchedule:        v.GetString("digestSchedule"),
			DigestRecipients:      v.GetStringSlice("digestRecipients"),
		},
	}, nil
}
