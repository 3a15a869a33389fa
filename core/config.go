package core

import (
	"fmt"
	"log"
	"net"
	"net/mail"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvTest        = "test"
	EnvProduction  = "production"
)

type (
	Config struct {
		AppName          string
		Build            string
		Env              string
		Debug            bool
		TestMode         bool
		SecretKey        string // JWT signing secret; empty means auth cannot work
		FrontendBaseURL  string
		DefaultFromEmail mail.Address
		SendgridAPIKey   string
		RollbarToken     string

		PasswordResetTimeoutDelta time.Duration

		Server    ServerConfig
		Database  DatabaseConfig
		RateLimit RateLimitConfig
		Redis     RedisConfig
	}

	ServerConfig struct {
		Host                      string
		Port                      int
		DebugHost                 string
		BodyLimit                 string
		ShutdownTimeout           time.Duration
		JWTExpirationDelta        time.Duration
		JWTRefreshExpirationDelta time.Duration
	}

	DatabaseConfig struct {
		Host            string
		Port            int
		User            string
		Password        string
		Name            string
		MaxOpenConns    int
		MaxIdleConns    int
		ConnMaxLifetime time.Duration
	}

	RateLimitConfig struct {
		Window      time.Duration
		MaxRequests int
	}

	RedisConfig struct {
		URL string
	}
)

// Address returns the API listen address.
func (sc ServerConfig) Address() string {
	return net.JoinHostPort(sc.Host, strconv.Itoa(sc.Port))
}

func (dc DatabaseConfig) Address() string {
	return net.JoinHostPort(dc.Host, strconv.Itoa(dc.Port))
}

func (c *Config) IsProduction() bool {
	return c.Env == EnvProduction
}

// NewConfig loads the configuration from the environment.
// A `config/.env.<env>` file is loaded first when it exists; real env vars always win.
func NewConfig() *Config {
	env := currentEnv()
	loadDotEnv(env)

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	conf := &Config{
		AppName:         v.GetString("app_name"),
		Build:           v.GetString("build"),
		Env:             env,
		Debug:           env != EnvProduction,
		TestMode:        env == EnvTest,
		SecretKey:       v.GetString("jwt_secret"),
		FrontendBaseURL: strings.TrimRight(v.GetString("frontend_url"), "/"),
		SendgridAPIKey:  v.GetString("sendgrid_api_key"),
		RollbarToken:    v.GetString("rollbar_token"),

		PasswordResetTimeoutDelta: v.GetDuration("password_reset_timeout"),

		Server: ServerConfig{
			Host:                      v.GetString("host"),
			Port:                      v.GetInt("port"),
			DebugHost:                 v.GetString("debug_host"),
			BodyLimit:                 v.GetString("body_limit"),
			ShutdownTimeout:           v.GetDuration("shutdown_timeout"),
			JWTExpirationDelta:        v.GetDuration("jwt_expires_in"),
			JWTRefreshExpirationDelta: v.GetDuration("jwt_refresh_expires_in"),
		},
		Database: DatabaseConfig{
			Host:            v.GetString("db_host"),
			Port:            v.GetInt("db_port"),
			User:            v.GetString("db_user"),
			Password:        v.GetString("db_password"),
			Name:            v.GetString("db_name"),
			MaxOpenConns:    v.GetInt("db_max_open_conns"),
			MaxIdleConns:    v.GetInt("db_max_idle_conns"),
			ConnMaxLifetime: v.GetDuration("db_conn_max_lifetime"),
		},
		RateLimit: RateLimitConfig{
			Window:      time.Duration(v.GetInt64("rate_limit_window_ms")) * time.Millisecond,
			MaxRequests: v.GetInt("rate_limit_max_requests"),
		},
		Redis: RedisConfig{
			URL: v.GetString("redis_url"),
		},
	}

	from, err := mail.ParseAddress(v.GetString("default_from_email"))
	if err != nil {
		from = &mail.Address{Address: "noreply@localhost"}
	}
	if from.Name == "" {
		from.Name = conf.AppName
	}
	conf.DefaultFromEmail = *from

	return conf
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app_name", "Security Awareness Platform")
	v.SetDefault("build", "dev")
	v.SetDefault("jwt_secret", "")
	v.SetDefault("jwt_expires_in", 24*time.Hour)
	v.SetDefault("jwt_refresh_expires_in", 7*24*time.Hour)
	v.SetDefault("password_reset_timeout", 3*24*time.Hour)
	v.SetDefault("frontend_url", "http://localhost:3000")
	v.SetDefault("default_from_email", "noreply@localhost")
	v.SetDefault("sendgrid_api_key", "")
	v.SetDefault("rollbar_token", "")

	v.SetDefault("host", "")
	v.SetDefault("port", 5000)
	v.SetDefault("debug_host", ":5001")
	v.SetDefault("body_limit", "10M")
	v.SetDefault("shutdown_timeout", 10*time.Second)

	v.SetDefault("db_host", "localhost")
	v.SetDefault("db_port", 3306)
	v.SetDefault("db_user", "root")
	v.SetDefault("db_password", "")
	v.SetDefault("db_name", "security_awareness")
	v.SetDefault("db_max_open_conns", 10)
	v.SetDefault("db_max_idle_conns", 5)
	v.SetDefault("db_conn_max_lifetime", 5*time.Minute)

	v.SetDefault("rate_limit_window_ms", 15*60*1000)
	v.SetDefault("rate_limit_max_requests", 100)
	v.SetDefault("redis_url", "")
}

// currentEnv reads ENV, falling back to NODE_ENV for deployments carried over from the old stack.
func currentEnv() string {
	env := os.Getenv("ENV")
	if env == "" {
		env = os.Getenv("NODE_ENV")
	}
	switch strings.ToLower(CleanString(env)) {
	case "prod", EnvProduction:
		return EnvProduction
	case EnvTest:
		return EnvTest
	default:
		return EnvDevelopment
	}
}

// loadDotEnv loads `config/.env.<env>` if it exists (ignored if it does not).
func loadDotEnv(env string) {
	dotEnvPath := filepath.Join(Getwd(), "config", ".env."+env)
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
}

func (c *Config) String() string {
	return fmt.Sprintf("%s (%s, env=%s)", c.AppName, c.Build, c.Env)
}
