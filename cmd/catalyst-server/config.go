package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	internalhttp "github.com/AlexRider935/catalyst-server/internal/api/http"
	"github.com/AlexRider935/catalyst-server/internal/db"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Log       LogConfig
	Http      internalhttp.Config
	Database  db.Config
	Monitor   MonitorConfig
	Ingestion IngestionConfig
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type MonitorConfig struct {
	Interval         time.Duration `mapstructure:"interval"`
	StaleThreshold   time.Duration `mapstructure:"stale_threshold"`
	InstantThreshold time.Duration `mapstructure:"instant_threshold"`
}

type IngestionConfig struct {
	EventsPerSecond float64 `mapstructure:"events_per_second"`
	Burst           int     `mapstructure:"burst"`
}

var config Config

func InitConfig() {
	_ = godotenv.Load()

	viper.SetConfigName("application")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./cmd/catalyst-server")
	viper.SetConfigType("yaml")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	_ = viper.BindEnv("database.url", "DATABASE_URL")
	_ = viper.BindEnv("database.schema", "DATABASE_SCHEMA")

	if err := viper.ReadInConfig(); err != nil {
		panic(err)
	}

	if err := viper.Unmarshal(&config); err != nil {
		panic(err)
	}

	initLogger(config.Log.Level)

	if strings.ToUpper(config.Log.Level) == LOG_LEVEL_DEBUG {
		configJSON, err := json.MarshalIndent(config, "", "  ")
		if err == nil {
			fmt.Println("Config loaded:")
			fmt.Println(string(configJSON))
		}
	}
}
