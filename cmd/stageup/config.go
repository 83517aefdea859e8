package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/openmined/stageup/internal/server"
)

const (
	envPrefix      = "STAGEUP"
	configFileName = "config"
)

func setDefaults(v *viper.Viper) {
	addr := server.DefaultAddr
	// PaaS style port, overridden by http.addr from any source
	if port := os.Getenv("PORT"); port != "" {
		addr = "0.0.0.0:" + port
	}
	engine := server.DefaultEngineConfig()

	v.SetDefault("http.addr", addr)
	v.SetDefault("http.cert_file", "")
	v.SetDefault("http.key_file", "")
	v.SetDefault("http.max_content_length", server.DefaultMaxContentLength)
	v.SetDefault("http.upload_rate", server.DefaultUploadRate)
	v.SetDefault("upload_dir", server.DefaultUploadDir)
	v.SetDefault("well_known_dir", server.DefaultWellKnownDir)
	v.SetDefault("log_dir", "")
	v.SetDefault("log_level", "info")
	v.SetDefault("engine.chunk_size", engine.ChunkSize)
	v.SetDefault("engine.max_retries", engine.MaxRetries)
	v.SetDefault("engine.base_delay", engine.BaseDelay)
	v.SetDefault("engine.chunk_timeout", engine.ChunkTimeout)
	v.SetDefault("engine.batch_retention", engine.BatchRetention)
	v.SetDefault("engine.batch_history", engine.BatchHistory)
}

func loadConfig(cmd *cobra.Command) (*server.Config, error) {
	// .env values never override the real environment
	envFile, _ := cmd.Flags().GetString("env-file")
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("env file '%s': %w", envFile, err)
		}
	}

	v := viper.New()
	setDefaults(v)

	if configFile, _ := cmd.Flags().GetString("config"); configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		home, _ := os.UserHomeDir()
		v.SetConfigName(configFileName)
		v.AddConfigPath(".")
		v.AddConfigPath(filepath.Join(home, ".config", "stageup"))
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config read '%s': %w", v.ConfigFileUsed(), err)
		}
	}

	flags := map[string]string{
		"http.addr":      "bind",
		"http.cert_file": "cert",
		"http.key_file":  "key",
		"upload_dir":     "upload-dir",
		"log_dir":        "log-dir",
		"log_level":      "log-level",
	}
	for key, flag := range flags {
		if f := cmd.Flags().Lookup(flag); f != nil && f.Changed {
			if err := v.BindPFlag(key, f); err != nil {
				return nil, err
			}
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &server.Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config decode: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}
