package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/redis/go-redis/v9"
	"gopkg.in/yaml.v3"

	"github.com/iliyamo/inventory-admin/internal/session"
)

// cliConfig is the YAML file inventoryctl reads, by default
// ~/.config/inventoryctl/config.yaml.  Flags override every field.
type cliConfig struct {
	Server  string        `yaml:"server"`
	Storage storageConfig `yaml:"storage"`
}

// storageConfig picks where the session lives.  "file" keeps it private to
// this machine; "redis" shares it between processes, like browser tabs
// sharing a profile.
type storageConfig struct {
	Kind  string `yaml:"kind"`
	Path  string `yaml:"path"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		Scope    string `yaml:"scope"`
	} `yaml:"redis"`
}

func defaultConfig() cliConfig {
	cfg := cliConfig{Server: "http://localhost:8080"}
	cfg.Storage.Kind = "file"
	if dir, err := os.UserConfigDir(); err == nil {
		cfg.Storage.Path = filepath.Join(dir, "inventoryctl", "session.json")
	} else {
		cfg.Storage.Path = ".inventoryctl-session.json"
	}
	cfg.Storage.Redis.Addr = "localhost:6379"
	cfg.Storage.Redis.Scope = "default"
	return cfg
}

func defaultConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "inventoryctl", "config.yaml")
}

// loadConfig overlays the file at path on the defaults.  A missing file is
// not an error unless the path was given explicitly.
func loadConfig(path string, explicit bool) (cliConfig, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) && !explicit {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// openStorage returns the configured storage and a close func.
func openStorage(s storageConfig) (session.Storage, func(), error) {
	switch s.Kind {
	case "", "file":
		return session.NewFileStorage(s.Path), func() {}, nil
	case "redis":
		rdb := redis.NewClient(&redis.Options{Addr: s.Redis.Addr, Password: s.Redis.Password, DB: s.Redis.DB})
		return session.NewRedisStorage(rdb, s.Redis.Scope), func() { _ = rdb.Close() }, nil
	}
	return nil, nil, fmt.Errorf("unknown storage kind %q (want file or redis)", s.Kind)
}
