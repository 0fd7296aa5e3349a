package core

import (
	"crypto/rand"
	"encoding/hex"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

var errMissingSecretKey = errors.New("SECRET_KEY must be set outside DEBUG and TEST modes")

type (
	ServerConfig struct {
		Host                      string
		DebugHost                 string
		ShutdownTimeout           time.Duration
		JWTExpirationDelta        time.Duration
		JWTRefreshExpirationDelta time.Duration
		PasswordResetTimeoutDelta time.Duration
		CORSAllowOrigins          []string
	}

	DatabaseConfig struct {
		Path string
	}

	UploadConfig struct {
		Dir     string
		BaseURL string
		MaxSize int64
	}

	GoogleConfig struct {
		ClientID     string
		ClientSecret string
		RedirectURL  string
		TimeZone     string
	}

	PaymentConfig struct {
		LinkTTL time.Duration
	}

	Config struct {
		Env             string
		Build           string
		Debug           bool
		TestMode        bool
		AppName         string
		SecretKey       string
		WorkDir         string
		FrontendBaseURL string
		SendgridApiKey  string
		RollbarToken    string

		defaultFromEmail string

		Server   ServerConfig
		Database DatabaseConfig
		Uploads  UploadConfig
		Google   GoogleConfig
		Payments PaymentConfig
	}
)

// NewConfig loads the configuration of the current ENV (DEV by default) from the environment,
// optionally seeded by config/.env.<env>.
func NewConfig() (*Config, error) {
	env := strings.ToUpper(os.Getenv("ENV")) // DEV (local; default), TEST, PROD
	if env == "" {
		env = "DEV"
	}
	wd := Getwd()

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(wd, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			return nil, errors.Wrapf(err, "loading %s", dotEnvPath)
		}
	} else if !os.IsNotExist(err) {
		return nil, errors.Wrapf(err, "checking %s", dotEnvPath)
	}

	v := viper.New()
	v.SetEnvPrefix(env)
	v.AutomaticEnv()
	v.SetTypeByDefaultValue(true)

	// defaults
	v.SetDefault("DEBUG", env == "DEV")
	v.SetDefault("BUILD", "dev")
	v.SetDefault("APP_NAME", "Maraakiz API")
	v.SetDefault("SECRET_KEY", "")
	v.SetDefault("FRONTEND_BASE_URL", "http://localhost:5173")
	v.SetDefault("DEFAULT_FROM_EMAIL", "Maraakiz <noreply@maraakiz.local>")
	v.SetDefault("SENDGRID_API_KEY", "")
	v.SetDefault("ROLLBAR_TOKEN", "")

	v.SetDefault("HOST", ":8000")
	v.SetDefault("DEBUG_HOST", ":4000")
	v.SetDefault("SHUTDOWN_TIMEOUT", 5*time.Second)
	v.SetDefault("JWT_EXPIRATION_DELTA", 7*24*time.Hour)
	v.SetDefault("JWT_REFRESH_EXPIRATION_DELTA", 30*24*time.Hour)
	v.SetDefault("PASSWORD_RESET_TIMEOUT_DELTA", 3*24*time.Hour)
	v.SetDefault("CORS_ALLOW_ORIGINS", "*")

	v.SetDefault("DATABASE_PATH", "maraakiz.db")

	v.SetDefault("UPLOAD_DIR", "uploads")
	v.SetDefault("UPLOAD_BASE_URL", "/uploads")
	v.SetDefault("UPLOAD_MAX_SIZE", int64(50<<20))

	v.SetDefault("GOOGLE_CLIENT_ID", "")
	v.SetDefault("GOOGLE_CLIENT_SECRET", "")
	v.SetDefault("GOOGLE_REDIRECT_URL", "http://localhost:5173/calendrier/google/callback")
	v.SetDefault("GOOGLE_TIMEZONE", "Europe/Paris")

	v.SetDefault("PAYMENT_LINK_TTL", 7*24*time.Hour)

	conf := &Config{
		Env:              env,
		Build:            v.GetString("BUILD"),
		Debug:            v.GetBool("DEBUG"),
		TestMode:         env == "TEST",
		AppName:          v.GetString("APP_NAME"),
		SecretKey:        v.GetString("SECRET_KEY"),
		WorkDir:          wd,
		FrontendBaseURL:  strings.TrimSuffix(v.GetString("FRONTEND_BASE_URL"), "/"),
		SendgridApiKey:   v.GetString("SENDGRID_API_KEY"),
		RollbarToken:     v.GetString("ROLLBAR_TOKEN"),
		defaultFromEmail: v.GetString("DEFAULT_FROM_EMAIL"),
		Server: ServerConfig{
			Host:                      v.GetString("HOST"),
			DebugHost:                 v.GetString("DEBUG_HOST"),
			ShutdownTimeout:           v.GetDuration("SHUTDOWN_TIMEOUT"),
			JWTExpirationDelta:        v.GetDuration("JWT_EXPIRATION_DELTA"),
			JWTRefreshExpirationDelta: v.GetDuration("JWT_REFRESH_EXPIRATION_DELTA"),
			PasswordResetTimeoutDelta: v.GetDuration("PASSWORD_RESET_TIMEOUT_DELTA"),
			CORSAllowOrigins:          splitList(v.GetString("CORS_ALLOW_ORIGINS")),
		},
		Database: DatabaseConfig{
			Path: v.GetString("DATABASE_PATH"),
		},
		Uploads: UploadConfig{
			Dir:     v.GetString("UPLOAD_DIR"),
			BaseURL: strings.TrimSuffix(v.GetString("UPLOAD_BASE_URL"), "/"),
			MaxSize: v.GetInt64("UPLOAD_MAX_SIZE"),
		},
		Google: GoogleConfig{
			ClientID:     v.GetString("GOOGLE_CLIENT_ID"),
			ClientSecret: v.GetString("GOOGLE_CLIENT_SECRET"),
			RedirectURL:  v.GetString("GOOGLE_REDIRECT_URL"),
			TimeZone:     v.GetString("GOOGLE_TIMEZONE"),
		},
		Payments: PaymentConfig{
			LinkTTL: v.GetDuration("PAYMENT_LINK_TTL"),
		},
	}

	if conf.SecretKey == "" {
		if !(conf.Debug || conf.TestMode) {
			return nil, errMissingSecretKey
		}
		key, err := randomKey()
		if err != nil {
			return nil, errors.Wrap(err, "generating secret key")
		}
		conf.SecretKey = key
	}
	return conf, nil
}

// DefaultFromEmail parses the configured sender address, falling back to a bare address.
func (c *Config) DefaultFromEmail() mail.Address {
	if addr, err := mail.ParseAddress(c.defaultFromEmail); err == nil {
		return *addr
	}
	return mail.Address{Address: c.defaultFromEmail}
}

// SetDefaultFromEmail is used by tests building a Config by hand.
func (c *Config) SetDefaultFromEmail(from string) {
	c.defaultFromEmail = from
}

func (c *Config) GoogleEnabled() bool {
	return c.Google.ClientID != "" && c.Google.ClientSecret != ""
}

func randomKey() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
