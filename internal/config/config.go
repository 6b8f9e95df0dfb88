package config

import (
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// Config is the process-wide configuration, read once at startup.
type Config struct {
	Port     string
	LogLevel string

	JWTSecret        string
	TokenExpiry      time.Duration
	ResetTokenExpiry time.Duration

	Argon2 Argon2Config

	ResendAPIKey string
	EmailFrom    string
	ResetURL     string

	FirebaseCredentialsPath string

	ReminderSchedule string
	ReminderTimezone string
	RemindersEnabled bool

	AllowedOrigins []string

	Security *SecurityConfig
}

type Argon2Config struct {
	Time       uint32
	Memory     uint32
	Threads    uint8
	KeyLength  uint32
	SaltLength int
}

// Load reads .env and the environment through viper and returns an immutable Config.
func Load(log logrus.FieldLogger) *Config {
	loadDotEnv(".env", log)
	viper.AutomaticEnv()

	viper.BindEnv("port", "PORT")
	viper.BindEnv("log.level", "LOG_LEVEL")

	viper.BindEnv("jwt.secret_key", "JWT_SECRET_KEY")
	viper.BindEnv("jwt.expiry", "JWT_EXPIRY")
	viper.BindEnv("jwt.reset_expiry", "RESET_TOKEN_EXPIRY")

	viper.BindEnv("argon2.time", "ARGON2_TIME")
	viper.BindEnv("argon2.memory", "ARGON2_MEMORY")
	viper.BindEnv("argon2.threads", "ARGON2_THREADS")
	viper.BindEnv("argon2.key_length", "ARGON2_KEY_LENGTH")
	viper.BindEnv("argon2.salt_length", "ARGON2_SALT_LENGTH")

	viper.BindEnv("email.resend_api_key", "RESEND_API_KEY")
	viper.BindEnv("email.from", "EMAIL_FROM")
	viper.BindEnv("email.reset_url", "PASSWORD_RESET_URL")

	viper.BindEnv("firebase.credentials_path", "FIREBASE_SERVICE_ACCOUNT_PATH")

	viper.BindEnv("reminders.schedule", "REMINDER_SCHEDULE")
	viper.BindEnv("reminders.timezone", "REMINDER_TIMEZONE")
	viper.BindEnv("reminders.enabled", "REMINDERS_ENABLED")

	viper.BindEnv("cors.allowed_origins", "CORS_ALLOWED_ORIGINS")

	viper.SetDefault("port", "8080")
	viper.SetDefault("log.level", "info")
	viper.SetDefault("jwt.expiry", 15*time.Minute)
	viper.SetDefault("jwt.reset_expiry", time.Hour)
	viper.SetDefault("argon2.time", 1)
	viper.SetDefault("argon2.memory", 64*1024)
	viper.SetDefault("argon2.threads", 4)
	viper.SetDefault("argon2.key_length", 32)
	viper.SetDefault("argon2.salt_length", 16)
	viper.SetDefault("email.from", "Campus Connect <onboarding@resend.dev>")
	viper.SetDefault("email.reset_url", "http://localhost:7000/reset-password")
	viper.SetDefault("reminders.schedule", "0 8 * * *")
	viper.SetDefault("reminders.timezone", "Africa/Dar_es_Salaam")
	viper.SetDefault("reminders.enabled", true)

	cfg := &Config{
		Port:             viper.GetString("port"),
		LogLevel:         viper.GetString("log.level"),
		JWTSecret:        viper.GetString("jwt.secret_key"),
		TokenExpiry:      viper.GetDuration("jwt.expiry"),
		ResetTokenExpiry: viper.GetDuration("jwt.reset_expiry"),
		Argon2: Argon2Config{
			Time:       viper.GetUint32("argon2.time"),
			Memory:     viper.GetUint32("argon2.memory"),
			Threads:    uint8(viper.GetUint("argon2.threads")),
			KeyLength:  viper.GetUint32("argon2.key_length"),
			SaltLength: viper.GetInt("argon2.salt_length"),
		},
		ResendAPIKey:            viper.GetString("email.resend_api_key"),
		EmailFrom:               viper.GetString("email.from"),
		ResetURL:                viper.GetString("email.reset_url"),
		FirebaseCredentialsPath: viper.GetString("firebase.credentials_path"),
		ReminderSchedule:        viper.GetString("reminders.schedule"),
		ReminderTimezone:        viper.GetString("reminders.timezone"),
		RemindersEnabled:        viper.GetBool("reminders.enabled"),
		AllowedOrigins:          splitList(viper.GetString("cors.allowed_origins")),
		Security:                LoadSecurityConfig(),
	}

	if cfg.JWTSecret == "" {
		log.Warn("JWT_SECRET_KEY is not set; tokens will be signed with an empty key")
	}
	if len(cfg.AllowedOrigins) == 0 {
		log.Warn("CORS_ALLOWED_ORIGINS is not set; browser requests from any origin are allowed")
	}

	return cfg
}

// DefaultArgon2 returns the parameters used when nothing is configured.
func DefaultArgon2() Argon2Config {
	return Argon2Config{Time: 1, Memory: 64 * 1024, Threads: 4, KeyLength: 32, SaltLength: 16}
}

// loadDotEnv exports the entries of a dotenv file into the process environment so the
// BindEnv'd keys above see them. Variables already set in the environment win.
func loadDotEnv(path string, log logrus.FieldLogger) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("env")
	if err := v.ReadInConfig(); err != nil {
		log.Infof("Config file not found, using environment and defaults: %v", err)
		return
	}
	for _, key := range v.AllKeys() {
		name := strings.ToUpper(key)
		if os.Getenv(name) == "" {
			os.Setenv(name, v.GetString(key))
		}
	}
}

// splitList parses a comma separated setting, dropping blanks.
func splitList(raw string) []string {
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
