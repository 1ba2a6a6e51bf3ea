package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration required by the API process.
// All values must come from env (or env-file loaded by the process runner).
// No business logic should depend on raw environment variables.
type Config struct {
	App   AppConfig
	DB    DBConfig
	Redis RedisConfig
	Token TokenConfig
	Voice VoiceConfig
}

type AppConfig struct {
	Env  string
	Port int
}

type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string

	// SSLMode is kept explicit for managed-Postgres posture.
	// Accepts: disable, require, verify-ca, verify-full
	SSLMode string
}

type RedisConfig struct {
	Host string
	Port int
}

// TokenConfig drives the capability-token endpoint.
// PrivateKeyPEM signs platform tokens (RS256); APIKey gates the endpoint.
type TokenConfig struct {
	APIKey        string
	ApplicationID string
	PrivateKeyPEM string
	TokenTTL      time.Duration

	// MaxSessionsPerUser bounds concurrently issued tokens per subject.
	// Enforced via Redis; 0 applies the default.
	MaxSessionsPerUser int

	// SessionSlotTTL reclaims session slots from clients that vanish without
	// releasing. Deliberately much shorter than TokenTTL so a crashed client
	// does not lock its user out for the token lifetime.
	SessionSlotTTL time.Duration
}

// VoiceConfig holds platform-facing call-control settings.
type VoiceConfig struct {
	// FromNumber is the origin number bridged into every outbound call (E.164).
	FromNumber string

	// EventURL is the absolute URL of our own event webhook, handed back to
	// the platform inside call-control scripts.
	EventURL string
}

func Load() (Config, error) {
	c := Config{}
	var parseErrs []error

	c.App.Env = strings.TrimSpace(os.Getenv("APP_ENV"))
	{
		n, err := mustInt("APP_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.App.Port = n
	}

	c.DB.Host = strings.TrimSpace(os.Getenv("DB_HOST"))
	{
		n, err := mustInt("DB_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.DB.Port = n
	}
	c.DB.User = strings.TrimSpace(os.Getenv("DB_USER"))
	c.DB.Password = os.Getenv("DB_PASSWORD")
	c.DB.Name = strings.TrimSpace(os.Getenv("DB_NAME"))
	c.DB.SSLMode = strings.TrimSpace(os.Getenv("DB_SSLMODE"))

	c.Redis.Host = strings.TrimSpace(os.Getenv("REDIS_HOST"))
	{
		n, err := mustInt("REDIS_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.Redis.Port = n
	}

	c.Token.APIKey = os.Getenv("TOKEN_API_KEY")
	c.Token.ApplicationID = strings.TrimSpace(os.Getenv("VOICE_APPLICATION_ID"))
	c.Token.PrivateKeyPEM = os.Getenv("VOICE_PRIVATE_KEY")
	{
		d, err := optionalDuration("TOKEN_TTL")
		if err != nil {
			parseErrs = append(parseErrs, err)
		}
		c.Token.TokenTTL = d
	}
	{
		n, err := optionalInt("TOKEN_MAX_SESSIONS_PER_USER")
		if err != nil {
			parseErrs = append(parseErrs, err)
		}
		c.Token.MaxSessionsPerUser = n
	}
	{
		d, err := optionalDuration("TOKEN_SESSION_TTL")
		if err != nil {
			parseErrs = append(parseErrs, err)
		}
		c.Token.SessionSlotTTL = d
	}

	c.Voice.FromNumber = strings.TrimSpace(os.Getenv("VOICE_FROM_NUMBER"))
	c.Voice.EventURL = strings.TrimSpace(os.Getenv("VOICE_EVENT_URL"))

	if err := joinErrors(parseErrs); err != nil {
		return Config{}, err
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func (c *Config) Validate() error {
	var errs []error

	if c.App.Env == "" {
		errs = append(errs, errors.New("APP_ENV is required"))
	} else if !isValidEnv(c.App.Env) {
		errs = append(errs, fmt.Errorf("APP_ENV must be one of local, dev, staging, production, got %q", c.App.Env))
	}
	if c.App.Port <= 0 || c.App.Port > 65535 {
		errs = append(errs, fmt.Errorf("APP_PORT must be a valid port, got %d", c.App.Port))
	}

	if c.DB.Host == "" {
		errs = append(errs, errors.New("DB_HOST is required"))
	}
	if c.DB.Port <= 0 || c.DB.Port > 65535 {
		errs = append(errs, fmt.Errorf("DB_PORT must be a valid port, got %d", c.DB.Port))
	}
	if c.DB.User == "" {
		errs = append(errs, errors.New("DB_USER is required"))
	}
	if c.DB.Name == "" {
		errs = append(errs, errors.New("DB_NAME is required"))
	}
	if strings.TrimSpace(c.DB.SSLMode) == "" {
		if c.IsProduction() {
			errs = append(errs, errors.New("DB_SSLMODE is required in production"))
		} else {
			// Local-friendly default; production must be explicit.
			c.DB.SSLMode = "disable"
		}
	}
	if c.DB.SSLMode != "" && !isValidSSLMode(c.DB.SSLMode) {
		errs = append(errs, fmt.Errorf("DB_SSLMODE must be one of disable, require, verify-ca, verify-full, got %q", c.DB.SSLMode))
	}

	if c.Redis.Host == "" {
		errs = append(errs, errors.New("REDIS_HOST is required"))
	}
	if c.Redis.Port <= 0 || c.Redis.Port > 65535 {
		errs = append(errs, fmt.Errorf("REDIS_PORT must be a valid port, got %d", c.Redis.Port))
	}

	if c.Token.APIKey == "" {
		errs = append(errs, errors.New("TOKEN_API_KEY is required"))
	}
	if c.Token.ApplicationID == "" {
		errs = append(errs, errors.New("VOICE_APPLICATION_ID is required"))
	}
	if c.Token.PrivateKeyPEM == "" {
		errs = append(errs, errors.New("VOICE_PRIVATE_KEY is required"))
	}
	if c.Token.TokenTTL <= 0 {
		// Default: day-long platform tokens.
		c.Token.TokenTTL = 24 * time.Hour
	}
	if c.Token.MaxSessionsPerUser <= 0 {
		c.Token.MaxSessionsPerUser = 3
	}
	if c.Token.SessionSlotTTL <= 0 {
		c.Token.SessionSlotTTL = time.Hour
	}

	if c.Voice.FromNumber == "" {
		errs = append(errs, errors.New("VOICE_FROM_NUMBER is required"))
	}
	if c.Voice.EventURL == "" {
		errs = append(errs, errors.New("VOICE_EVENT_URL is required"))
	} else if !strings.HasPrefix(c.Voice.EventURL, "http://") && !strings.HasPrefix(c.Voice.EventURL, "https://") {
		errs = append(errs, fmt.Errorf("VOICE_EVENT_URL must be an absolute URL, got %q", c.Voice.EventURL))
	}

	return joinErrors(errs)
}

func (c Config) IsProduction() bool {
	return c.App.Env == "production"
}

func (c Config) HTTPAddr() string {
	return fmt.Sprintf(":%d", c.App.Port)
}

func (c Config) PostgresDSN() string {
	// Avoid logging this string; it contains secrets.
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host,
		c.DB.Port,
		c.DB.User,
		c.DB.Password,
		c.DB.Name,
		c.DB.SSLMode,
	)
}

func (c Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

func mustInt(key string) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, fmt.Errorf("%s is required", key)
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", key, v)
	}
	return n, nil
}

func optionalInt(key string) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", key, v)
	}
	return n, nil
}

func optionalDuration(key string) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration (e.g. 24h), got %q", key, v)
	}
	return d, nil
}

func appendParseErr(errs []error, n int, err error) (int, []error) {
	if err != nil {
		errs = append(errs, err)
	}
	return n, errs
}

func isValidEnv(v string) bool {
	switch v {
	case "local", "dev", "staging", "production":
		return true
	default:
		return false
	}
}

func isValidSSLMode(v string) bool {
	switch v {
	case "disable", "require", "verify-ca", "verify-full":
		return true
	default:
		return false
	}
}

func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	if len(errs) == 1 {
		return errs[0]
	}
	var b strings.Builder
	b.WriteString("config errors:\n")
	for _, e := range errs {
		b.WriteString("- ")
		b.WriteString(e.Error())
		b.WriteString("\n")
	}
	return errors.New(strings.TrimSpace(b.String()))
}
