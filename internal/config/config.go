// Package config provides configuration management for voicetalk
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	TTS      TTSConfig      `mapstructure:"tts"`
	Pipeline PipelineConfig `mapstructure:"pipeline"`
	Dialogue DialogueConfig `mapstructure:"dialogue"`
	Server   ServerConfig   `mapstructure:"server"`
	Storage  StorageConfig  `mapstructure:"storage"`
}

// TTSConfig configures text-to-speech synthesis
type TTSConfig struct {
	Provider string        `mapstructure:"provider"` // openai, azure, google, elevenlabs
	VoiceID  string        `mapstructure:"voice_id"`
	Speed    float64       `mapstructure:"speed"`
	Timeout  time.Duration `mapstructure:"timeout"`

	OpenAIAPIKey     string `mapstructure:"openai_api_key"`
	OpenAIModel      string `mapstructure:"openai_model"`
	AzureAPIKey      string `mapstructure:"azure_api_key"`
	AzureRegion      string `mapstructure:"azure_region"`
	AzureVoice       string `mapstructure:"azure_voice"`
	GoogleAPIKey     string `mapstructure:"google_api_key"`
	GoogleVoice      string `mapstructure:"google_voice"`
	ElevenLabsAPIKey string `mapstructure:"elevenlabs_api_key"`
	ElevenLabsVoice  string `mapstructure:"elevenlabs_voice"`
}

// PipelineConfig configures the speech pipeline
type PipelineConfig struct {
	MinRequestInterval time.Duration `mapstructure:"min_request_interval"` // floor between synthesis calls
	CommaBreakRunes    int           `mapstructure:"comma_break_runes"`    // run length before a comma splits
	TickWindow         int           `mapstructure:"tick_window"`          // samples per lip-sync window
}

// DialogueConfig configures the slot-filling flow
type DialogueConfig struct {
	IntroPrompt string `mapstructure:"intro_prompt"`
}

// ServerConfig configures the avatar frame server
type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

// StorageConfig configures profile persistence
type StorageConfig struct {
	DBPath string `mapstructure:"db_path"`
}

// DefaultConfig returns sensible default configuration
func DefaultConfig() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		TTS: TTSConfig{
			Provider:        "openai",
			VoiceID:         "nova",
			Speed:           1.0,
			Timeout:         30 * time.Second,
			OpenAIModel:     "tts-1",
			AzureRegion:     "eastasia",
			AzureVoice:      "zh-TW-HsiaoChenNeural",
			GoogleVoice:     "cmn-TW-Standard-A",
			ElevenLabsVoice: "21m00Tcm4TlvDq8ikWAM",
		},
		Pipeline: PipelineConfig{
			MinRequestInterval: 1000 * time.Millisecond,
			CommaBreakRunes:    20,
			TickWindow:         2048,
		},
		Dialogue: DialogueConfig{
			IntroPrompt: "您好，請問怎麼稱呼您？",
		},
		Server: ServerConfig{
			Addr: "127.0.0.1:8974",
		},
		Storage: StorageConfig{
			DBPath: filepath.Join(home, ".voicetalk", "profiles.db"),
		},
	}
}

// Load reads configuration from file and environment
func Load() (*Config, error) {
	cfg := DefaultConfig()

	configDir, err := GetConfigDir()
	if err != nil {
		return cfg, err
	}
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return cfg, err
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configDir)
	viper.AddConfigPath(".")

	// Environment variable overrides
	viper.SetEnvPrefix("VOICETALK")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return cfg, err
		}
		// Config file not found, use defaults and create one
		if err := Save(cfg); err != nil {
			return cfg, err
		}
	}

	if err := viper.Unmarshal(cfg); err != nil {
		return cfg, err
	}

	return cfg, nil
}

// Save writes the configuration to file
func Save(cfg *Config) error {
	configDir, err := GetConfigDir()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return err
	}

	viper.Set("tts", cfg.TTS)
	viper.Set("pipeline", cfg.Pipeline)
	viper.Set("dialogue", cfg.Dialogue)
	viper.Set("server", cfg.Server)
	viper.Set("storage", cfg.Storage)

	configPath := filepath.Join(configDir, "config.yaml")
	return viper.WriteConfigAs(configPath)
}

// GetConfigDir returns the configuration directory path
func GetConfigDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".voicetalk"), nil
}
