package config

import (
	"fmt"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"Server"`
	Database DatabaseConfig `mapstructure:"Database"`
	Sync     SyncConfig     `mapstructure:"Sync"`
	Transfer TransferConfig `mapstructure:"Transfer"`
	NATS     NATSConfig     `mapstructure:"NATS"`
}

type ServerConfig struct {
	Port     string `mapstructure:"Port"`
	MediaDir string `mapstructure:"MediaDir"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"Host"`
	Port     string `mapstructure:"Port"`
	User     string `mapstructure:"User"`
	Password string `mapstructure:"Password"`
	Name     string `mapstructure:"Name"`
	SSLMode  string `mapstructure:"SSLMode"`
}

type SyncConfig struct {
	IntervalSeconds int `mapstructure:"IntervalSeconds"`
	BatchThreshold  int `mapstructure:"BatchThreshold"`
}

type TransferConfig struct {
	MaxConcurrentUploads int `mapstructure:"MaxConcurrentUploads"`
	LocalCeiling         int `mapstructure:"LocalCeiling"`
}

type NATSConfig struct {
	URL     string `mapstructure:"URL"`
	Subject string `mapstructure:"Subject"`
}

func NewConfig(path string) (*Config, error) {
	v := viper.New()

	// Устанавливаем файл конфигурации
	v.SetConfigFile(path)

	// Привязываем переменные окружения
	v.BindEnv("Database.Host", "DATABASE_HOST")
	v.BindEnv("Database.Port", "DATABASE_PORT")
	v.BindEnv("Database.User", "DATABASE_USER")
	v.BindEnv("Database.Password", "DATABASE_PASSWORD")
	v.BindEnv("Database.Name", "DATABASE_NAME")
	v.BindEnv("Database.SSLMode", "DATABASE_SSLMODE")
	v.BindEnv("Server.Port", "HTTP_PORT")
	v.BindEnv("Server.MediaDir", "MEDIA_DIR")
	v.BindEnv("Sync.IntervalSeconds", "SYNC_INTERVAL_SECONDS")
	v.BindEnv("Sync.BatchThreshold", "SYNC_BATCH_THRESHOLD")
	v.BindEnv("Transfer.MaxConcurrentUploads", "TRANSFER_MAX_CONCURRENT_UPLOADS")
	v.BindEnv("Transfer.LocalCeiling", "TRANSFER_LOCAL_CEILING")
	v.BindEnv("NATS.URL", "NATS_URL")
	v.BindEnv("NATS.Subject", "NATS_SUBJECT")

	// Читаем конфигурацию из файла
	if err := v.ReadInConfig(); err != nil {
		fmt.Printf("Warning: using only environment variables: %v\n", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Проверяем переменные окружения напрямую если конфигурация неполная
	if cfg.Database.Host == "" {
		cfg.Database.Host = v.GetString("DATABASE_HOST")
	}
	if cfg.Database.Port == "" {
		cfg.Database.Port = v.GetString("DATABASE_PORT")
	}
	if cfg.Database.User == "" {
		cfg.Database.User = v.GetString("DATABASE_USER")
	}
	if cfg.Database.Password == "" {
		cfg.Database.Password = v.GetString("DATABASE_PASSWORD")
	}
	if cfg.Database.Name == "" {
		cfg.Database.Name = v.GetString("DATABASE_NAME")
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = v.GetString("DATABASE_SSLMODE")
	}
	if cfg.Server.Port == "" {
		cfg.Server.Port = v.GetString("HTTP_PORT")
	}

	// Проверяем, что все необходимые поля заполнены
	if cfg.Database.Host == "" ||
		cfg.Database.Port == "" ||
		cfg.Database.User == "" ||
		cfg.Database.Password == "" ||
		cfg.Database.Name == "" {
		return nil, fmt.Errorf("database configuration is incomplete: host=%s, port=%s, user=%s, name=%s",
			cfg.Database.Host, cfg.Database.Port, cfg.Database.User, cfg.Database.Name)
	}

	// Установка значений по умолчанию
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Server.Port == "" {
		cfg.Server.Port = "2525"
	}
	if cfg.Server.MediaDir == "" {
		cfg.Server.MediaDir = "/tmp/replaydrive"
	}
	if cfg.Sync.IntervalSeconds <= 0 {
		cfg.Sync.IntervalSeconds = 300
	}
	if cfg.Sync.BatchThreshold <= 0 {
		cfg.Sync.BatchThreshold = 20
	}
	if cfg.Transfer.MaxConcurrentUploads <= 0 {
		cfg.Transfer.MaxConcurrentUploads = 3
	}
	if cfg.Transfer.LocalCeiling <= 0 {
		cfg.Transfer.LocalCeiling = 100
	}
	if cfg.NATS.Subject == "" {
		cfg.NATS.Subject = "replaydrive.events"
	}

	return &cfg, nil
}

func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host,
		c.Port,
		c.User,
		c.Password,
		c.Name,
		c.SSLMode,
	)
}
