package config

import (
	"log"

	"gopkg.in/yaml.v3"

	"planner/pkg/config"
)

type AssistantConfig struct {
	// Max capture duration before the slot is auto-released, seconds.
	CaptureMaxSeconds int `yaml:"capture_max_seconds"`
	// Idle session eviction, minutes.
	SessionTTLMinutes int `yaml:"session_ttl_minutes"`
}

type SummaryConfig struct {
	CacheTTLMinutes int `yaml:"cache_ttl_minutes"`
}

type Config struct {
	Server    config.ServerConfig `yaml:"server"`
	DB        config.DBConfig     `yaml:"db"`
	Redis     config.RedisConfig  `yaml:"redis"`
	MQ        config.MQConfig     `yaml:"mq"`
	JWT       config.JWTConfig    `yaml:"jwt"`
	AI        config.AIConfig     `yaml:"ai"`
	Crypto    config.CryptoConfig `yaml:"crypto"`
	Assistant AssistantConfig     `yaml:"assistant"`
	Summary   SummaryConfig       `yaml:"summary"`
}

func Load() *Config {
	env := config.GetConfigEnv()
	configDir := config.GetEnv("CONFIG_DIR", "config")

	cfgMap, err := config.LoadConfig(env, configDir)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	var cfg Config
	cfgData, err := yaml.Marshal(cfgMap)
	if err != nil {
		log.Fatalf("failed to marshal config: %v", err)
	}
	if err := yaml.Unmarshal(cfgData, &cfg); err != nil {
		log.Fatalf("failed to unmarshal config: %v", err)
	}

	// Environment variables win over file values.
	config.OverrideServerFromEnv(&cfg.Server)
	config.OverrideDBFromEnv(&cfg.DB)
	config.OverrideRedisFromEnv(&cfg.Redis)
	config.OverrideMQFromEnv(&cfg.MQ)
	config.OverrideJWTFromEnv(&cfg.JWT)
	config.OverrideAIFromEnv(&cfg.AI)
	config.OverrideCryptoFromEnv(&cfg.Crypto)

	if cfg.Assistant.CaptureMaxSeconds == 0 {
		cfg.Assistant.CaptureMaxSeconds = 90
	}
	if cfg.Assistant.SessionTTLMinutes == 0 {
		cfg.Assistant.SessionTTLMinutes = 30
	}
	if cfg.Summary.CacheTTLMinutes == 0 {
		cfg.Summary.CacheTTLMinutes = 10
	}

	return &cfg
}
