package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	ServiceName string
	Database    DatabaseConfig
	RabbitMQ    RabbitMQConfig
	HTTP        HTTPConfig
	SMTP        SMTPConfig
	Control     ControlConfig
	Anomaly     AnomalyConfig
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	URL      string
	MaxConns int32
	MinConns int32
}

// RabbitMQConfig holds RabbitMQ connection and queue settings
type RabbitMQConfig struct {
	URL              string
	IngestExchange   string
	IngestQueue      string
	IngestRoutingKey string
	EventExchange    string
	EventRoutingKey  string
	DLQQueue         string
	PrefetchCount    int
}

// HTTPConfig holds HTTP API settings
type HTTPConfig struct {
	Port int
}

// SMTPConfig holds outbound alert mail settings
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// ControlConfig holds flow control settings
type ControlConfig struct {
	// Timezone is the IANA name used to localize naive reading timestamps
	// and to derive the calendar day a reading belongs to.
	Timezone string
	Location *time.Location
}

// AnomalyConfig holds consumption spike detection settings
type AnomalyConfig struct {
	SpikeThreshold            float64
	MinDataPointsForDetection int
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		ServiceName: getEnv("SERVICE_NAME", "water-flow-control"),
		Database: DatabaseConfig{
			URL:      getEnv("DATABASE_URL", ""),
			MaxConns: int32(getEnvAsInt("DATABASE_MAX_CONNS", 8)),
			MinConns: int32(getEnvAsInt("DATABASE_MIN_CONNS", 2)),
		},
		RabbitMQ: RabbitMQConfig{
			URL:              getEnv("RABBITMQ_URL", ""),
			IngestExchange:   getEnv("RABBITMQ_INGEST_EXCHANGE", "water-flow.ingest.exchange"),
			IngestQueue:      getEnv("RABBITMQ_INGEST_QUEUE", "water-flow.ingest.queue"),
			IngestRoutingKey: getEnv("RABBITMQ_INGEST_ROUTING_KEY", "water.reading.raw"),
			EventExchange:    getEnv("RABBITMQ_EVENT_EXCHANGE", "water-flow.events.exchange"),
			EventRoutingKey:  getEnv("RABBITMQ_EVENT_ROUTING_KEY", "water.reading.accepted"),
			DLQQueue:         getEnv("RABBITMQ_DLQ_QUEUE", "water-flow.ingest.dlq"),
			PrefetchCount:    getEnvAsInt("RABBITMQ_PREFETCH", 10),
		},
		HTTP: HTTPConfig{
			Port: getEnvAsInt("HTTP_PORT", 8080),
		},
		SMTP: SMTPConfig{
			Host:     getEnv("SMTP_HOST", "smtp.gmail.com"),
			Port:     getEnvAsInt("SMTP_PORT", 587),
			Username: getEnv("SMTP_USERNAME", ""),
			Password: getEnv("SMTP_PASSWORD", ""),
			From:     getEnv("SMTP_FROM", "noreply@example.com"),
		},
		Control: ControlConfig{
			Timezone: getEnv("CONTROL_TIMEZONE", "America/Sao_Paulo"),
		},
		Anomaly: AnomalyConfig{
			SpikeThreshold:            getEnvAsFloat("ANOMALY_SPIKE_THRESHOLD", 3.0),
			MinDataPointsForDetection: getEnvAsInt("ANOMALY_MIN_DATA_POINTS", 3),
		},
	}

	// Validate required fields
	if cfg.Database.URL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required but not set in environment variables")
	}
	if cfg.RabbitMQ.URL == "" {
		return nil, fmt.Errorf("RABBITMQ_URL is required but not set in environment variables")
	}

	loc, err := time.LoadLocation(cfg.Control.Timezone)
	if err != nil {
		return nil, fmt.Errorf("CONTROL_TIMEZONE %q is not a valid IANA timezone: %w", cfg.Control.Timezone, err)
	}
	cfg.Control.Location = loc

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}
