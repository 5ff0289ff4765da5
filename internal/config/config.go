package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	WhatsApp WhatsAppConfig
	Notify   NotifyConfig
	RSVP     RSVPConfig
	Admin    AdminConfig
	Locale   string
}

type ServerConfig struct {
	Host string
	Port int
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type PostgresConfig struct {
	User     string
	Password string
	Name     string
	Host     string
	Port     int
	SSLMode  string
}

type WhatsAppConfig struct {
	// Enabled switches between the live WhatsApp dispatcher and the
	// dry-run log dispatcher.
	Enabled            bool
	DataDir            string
	DefaultCountryCode string
}

type NotifyConfig struct {
	Spacing time.Duration
}

type RSVPConfig struct {
	SubmitTimeout time.Duration
}

type AdminConfig struct {
	// MasterSecretHash gates event deletion and password rotation,
	// stored as sha256:<hex>.
	MasterSecretHash string
	PublicBaseURL    string
}

func New() (*Config, error) {
	const op = "config.New"

	_ = godotenv.Load()

	serverHost := os.Getenv("SERVER_HOST")
	if serverHost == "" {
		serverHost = "localhost"
	}

	serverPortStr := os.Getenv("SERVER_PORT")
	if serverPortStr == "" {
		serverPortStr = "8080"
	}

	serverPort, err := strconv.Atoi(serverPortStr)
	if err != nil {
		return nil, fmt.Errorf("%s: invalid SERVER_PORT: %w", op, err)
	}

	serverCfg := ServerConfig{
		Host: serverHost,
		Port: serverPort,
	}

	postgresHost := os.Getenv("POSTGRES_HOST")
	if postgresHost == "" {
		postgresHost = "localhost"
	}

	postgresPortStr := os.Getenv("POSTGRES_PORT")
	if postgresPortStr == "" {
		postgresPortStr = "5432"
	}

	postgresPort, err := strconv.Atoi(postgresPortStr)
	if err != nil {
		return nil, fmt.Errorf("%s: invalid POSTGRES_PORT: %w", op, err)
	}

	postgresUser := os.Getenv("POSTGRES_USER")
	if postgresUser == "" {
		return nil, fmt.Errorf("%s: missing POSTGRES_USER", op)
	}

	postgresPassword := os.Getenv("POSTGRES_PASSWORD")
	if postgresPassword == "" {
		return nil, fmt.Errorf("%s: missing POSTGRES_PASSWORD", op)
	}

	postgresDB := os.Getenv("POSTGRES_DB")
	if postgresDB == "" {
		return nil, fmt.Errorf("%s: missing POSTGRES_DB", op)
	}

	postgresSSLMode := os.Getenv("POSTGRES_SSLMODE")
	if postgresSSLMode == "" {
		postgresSSLMode = "disable"
	}

	postgresCfg := PostgresConfig{
		User:     postgresUser,
		Password: postgresPassword,
		Name:     postgresDB,
		Host:     postgresHost,
		Port:     postgresPort,
		SSLMode:  postgresSSLMode,
	}

	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}

	redisCfg := RedisConfig{
		Addr:     redisAddr,
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       0,
	}

	waEnabled := os.Getenv("WHATSAPP_ENABLED") == "true"

	waDataDir := os.Getenv("WHATSAPP_DATA_DIR")
	if waDataDir == "" {
		waDataDir = "./data"
	}

	waCountryCode := os.Getenv("WHATSAPP_COUNTRY_CODE")
	if waCountryCode == "" {
		waCountryCode = "90"
	}

	waCfg := WhatsAppConfig{
		Enabled:            waEnabled,
		DataDir:            waDataDir,
		DefaultCountryCode: waCountryCode,
	}

	notifySpacing, err := durationEnv("NOTIFY_SPACING", 400*time.Millisecond)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	submitTimeout, err := durationEnv("RSVP_SUBMIT_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	masterSecretHash := os.Getenv("ADMIN_MASTER_SECRET_HASH")
	if masterSecretHash == "" {
		return nil, fmt.Errorf("%s: missing ADMIN_MASTER_SECRET_HASH", op)
	}

	publicBaseURL := os.Getenv("PUBLIC_BASE_URL")
	if publicBaseURL == "" {
		publicBaseURL = fmt.Sprintf("http://%s:%d", serverHost, serverPort)
	}

	locale := os.Getenv("LOCALE")
	if locale == "" {
		locale = "tr"
	}

	return &Config{
		Server:   serverCfg,
		Postgres: postgresCfg,
		Redis:    redisCfg,
		WhatsApp: waCfg,
		Notify:   NotifyConfig{Spacing: notifySpacing},
		RSVP:     RSVPConfig{SubmitTimeout: submitTimeout},
		Admin: AdminConfig{
			MasterSecretHash: masterSecretHash,
			PublicBaseURL:    publicBaseURL,
		},
		Locale: locale,
	}, nil
}

func durationEnv(name string, def time.Duration) (time.Duration, error) {
	s := os.Getenv(name)
	if s == "" {
		return def, nil
	}

	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", name, err)
	}

	return d, nil
}
