package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

type Config struct {
	Environment      string
	DBHost           string
	DBPort           string
	DBUsername       string
	DBPassword       string
	DBName           string
	DBSSLMode        string
	Port             string
	Timezone         string
	SMTPHost         string
	SMTPPort         string
	SMTPUsername     string
	SMTPPassword     string
	SMTPFromAddress  string
	WWWRoot          string
	NotificationUser string
	NotificationPass string
}

func NewConfig() (*Config, error) {
	env := os.Getenv("MSG_ENV")
	if env == "" {
		env = "development"
	}

	if env == "development" {
		if err := godotenv.Load(); err != nil {
			fmt.Println("Warning: .env file not found, using environment variables")
		}
	}

	config := &Config{
		Environment:      env,
		DBHost:           getEnvOrDefault("MSG_DB_HOST", "localhost"),
		DBPort:           getEnvOrDefault("MSG_DB_PORT", "5432"),
		DBUsername:       getEnvOrDefault("MSG_DB_USER", "messaging"),
		DBPassword:       os.Getenv("MSG_DB_PASSWORD"),
		DBName:           getEnvOrDefault("MSG_DB_NAME", "messaging"),
		DBSSLMode:        getEnvOrDefault("MSG_DB_SSLMODE", "disable"),
		Port:             getEnvOrDefault("PORT", "8080"),
		Timezone:         getEnvOrDefault("TZ", "UTC"),
		SMTPHost:         getEnvOrDefault("MSG_SMTP_HOST", "localhost"),
		SMTPPort:         getEnvOrDefault("MSG_SMTP_PORT", "587"),
		SMTPUsername:     os.Getenv("MSG_SMTP_USER"),
		SMTPPassword:     os.Getenv("MSG_SMTP_PASSWORD"),
		SMTPFromAddress:  getEnvOrDefault("MSG_SMTP_FROM", "noreply@localhost"),
		WWWRoot:          getEnvOrDefault("MSG_WWWROOT", "http://localhost:8080"),
		NotificationUser: os.Getenv("MSG_NOTIFICATION_USER"),
		NotificationPass: os.Getenv("MSG_NOTIFICATION_PASSWORD"),
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func (c *Config) Validate() error {
	if c.DBPassword == "" {
		return fmt.Errorf("MSG_DB_PASSWORD is required")
	}

	if c.NotificationUser == "" || c.NotificationPass == "" {
		return fmt.Errorf("MSG_NOTIFICATION_USER and MSG_NOTIFICATION_PASSWORD are required")
	}

	return nil
}

func (c *Config) GetDatabaseURL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.DBUsername,
		c.DBPassword,
		c.DBHost,
		c.DBPort,
		c.DBName,
		c.DBSSLMode,
	)
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
