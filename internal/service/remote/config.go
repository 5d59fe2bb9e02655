package remote

import (
	"fmt"

	"github.com/spf13/viper"
)

// Config описывает подключение к удаленному объектному хранилищу
type Config struct {
	Provider        string `mapstructure:"Provider"` // s3, minio
	Endpoint        string `mapstructure:"Endpoint"`
	Region          string `mapstructure:"Region"`
	AccessKeyID     string `mapstructure:"AccessKeyID"`
	SecretAccessKey string `mapstructure:"SecretAccessKey"`
	Bucket          string `mapstructure:"Bucket"`
	UseSSL          bool   `mapstructure:"UseSSL"`
}

func NewConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	v.BindEnv("Provider", "STORAGE_PROVIDER")
	v.BindEnv("Endpoint", "STORAGE_ENDPOINT")
	v.BindEnv("Region", "STORAGE_REGION")
	v.BindEnv("AccessKeyID", "STORAGE_ACCESS_KEY_ID")
	v.BindEnv("SecretAccessKey", "STORAGE_SECRET_ACCESS_KEY")
	v.BindEnv("Bucket", "STORAGE_BUCKET")

	if err := v.ReadInConfig(); err != nil {
		fmt.Printf("Warning: using only environment variables: %v\n", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("cannot unmarshal storage config: %w", err)
	}

	// Значения по умолчанию
	if cfg.Provider == "" {
		cfg.Provider = "s3"
	}
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}

	// Проверяем, что все необходимые поля заполнены
	if cfg.AccessKeyID == "" {
		return nil, fmt.Errorf("AccessKeyID is required")
	}
	if cfg.SecretAccessKey == "" {
		return nil, fmt.Errorf("SecretAccessKey is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("Bucket is required")
	}

	return &cfg, nil
}
