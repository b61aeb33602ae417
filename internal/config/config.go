package config

import (
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	DBDriver      string
	DBHost        string
	DBPort        string
	DBUser        string
	DBPassword    string
	DBName        string
	DBMaxAttempts int
	RedisHost     string
	RedisPort     string
	RedisPassword string
	JWTSecret     string
	JWTTTL        time.Duration
	GinMode       string
	Port          string
	LogLevel      string
	CORSOrigins   []string
	OpenAIAPIKey  string
	SMTPHost      string
	SMTPPort      string
	SMTPUser      string
	SMTPPassword  string
	MailFrom      string

	// RequireOwnerConfirmation switches completion to the two-step flow in
	// which the owner confirms before points are awarded.
	RequireOwnerConfirmation bool
}

var defaults = map[string]interface{}{
	"DB_DRIVER":                  "mysql",
	"DB_HOST":                    "localhost",
	"DB_PORT":                    "3306",
	"DB_USER":                    "favoruser",
	"DB_PASSWORD":                "favorpassword",
	"DB_NAME":                    "favor_exchange",
	"DB_MAX_ATTEMPTS":            3,
	"REDIS_HOST":                 "",
	"REDIS_PORT":                 "6379",
	"REDIS_PASSWORD":             "",
	"JWT_SECRET":                 "default-secret-key-change-me",
	"JWT_TTL":                    "168h",
	"GIN_MODE":                   "debug",
	"PORT":                       "8080",
	"LOG_LEVEL":                  "info",
	"CORS_ORIGINS":               "http://localhost:3000",
	"OPENAI_API_KEY":             "",
	"SMTP_HOST":                  "",
	"SMTP_PORT":                  "465",
	"SMTP_USER":                  "",
	"SMTP_PASSWORD":              "",
	"MAIL_FROM":                  "",
	"REQUIRE_OWNER_CONFIRMATION": false,
}

// Load reads .env when present, then the environment, falling back to defaults.
func Load() *Config {
	_ = godotenv.Load()

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()

	return fromViper(v)
}

func fromViper(v *viper.Viper) *Config {
	ttl := v.GetDuration("JWT_TTL")
	if ttl <= 0 {
		ttl = 168 * time.Hour
	}
	attempts := v.GetInt("DB_MAX_ATTEMPTS")
	if attempts < 1 {
		attempts = 1
	}

	return &Config{
		DBDriver:                 strings.ToLower(v.GetString("DB_DRIVER")),
		DBHost:                   v.GetString("DB_HOST"),
		DBPort:                   v.GetString("DB_PORT"),
		DBUser:                   v.GetString("DB_USER"),
		DBPassword:               v.GetString("DB_PASSWORD"),
		DBName:                   v.GetString("DB_NAME"),
		DBMaxAttempts:            attempts,
		RedisHost:                v.GetString("REDIS_HOST"),
		RedisPort:                v.GetString("REDIS_PORT"),
		RedisPassword:            v.GetString("REDIS_PASSWORD"),
		JWTSecret:                v.GetString("JWT_SECRET"),
		JWTTTL:                   ttl,
		GinMode:                  v.GetString("GIN_MODE"),
		Port:                     v.GetString("PORT"),
		LogLevel:                 v.GetString("LOG_LEVEL"),
		CORSOrigins:              splitList(v.GetString("CORS_ORIGINS")),
		OpenAIAPIKey:             v.GetString("OPENAI_API_KEY"),
		SMTPHost:                 v.GetString("SMTP_HOST"),
		SMTPPort:                 v.GetString("SMTP_PORT"),
		SMTPUser:                 v.GetString("SMTP_USER"),
		SMTPPassword:             v.GetString("SMTP_PASSWORD"),
		MailFrom:                 v.GetString("MAIL_FROM"),
		RequireOwnerConfirmation: v.GetBool("REQUIRE_OWNER_CONFIRMATION"),
	}
}

// IsProduction reports whether gin runs in release mode.
func (c *Config) IsProduction() bool {
	return c.GinMode == "release"
}

// RedisAddr returns host:port, or "" when Redis is not configured.
func (c *Config) RedisAddr() string {
	if c.RedisHost == "" {
		return ""
	}
	return c.RedisHost + ":" + c.RedisPort
}

func splitList(raw string) []string {
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
