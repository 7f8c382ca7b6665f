// Package config loads runtime configuration for the assetctl command from
// a YAML file and ASSETIMPORT_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/meigma/assetimport"
)

const (
	// AppName is the application name, used for the default cache directory.
	AppName = "assetimport"
	// ConfigFileName is the name of the config file searched for in the
	// working directory (without extension).
	ConfigFileName = "assetimport"
	// EnvPrefix prefixes environment variable overrides.
	EnvPrefix = "ASSETIMPORT"
)

// DefaultCacheDir returns the user cache directory for assetimport.
func DefaultCacheDir() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return filepath.Join(os.TempDir(), AppName)
	}
	return filepath.Join(dir, AppName)
}

// Load reads configuration from path, or from ./assetimport.yaml when
// path is empty. A missing default file is not an error. Environment
// variables such as ASSETIMPORT_CACHE_DIR override file values. Relative
// root and directory paths are resolved against the file's directory.
//
// It returns the configuration and the file it was read from, if any.
func Load(path string) (assetimport.Config, string, error) {
	v := viper.New()
	v.SetDefault("cache_dir", DefaultCacheDir())
	v.SetDefault("bootstrap_dir", "")
	v.SetDefault("snapshot_dir", "")
	v.SetDefault("roots", []any{})
	v.SetDefault("bootstrap", []any{})
	v.SetDefault("extract_packages", []string{})
	v.SetDefault("builtins", []string{})
	v.SetDefault("system_library_dirs", []string{})

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(ConfigFileName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return assetimport.Config{}, "", fmt.Errorf("failed to read config: %w", err)
		}
	}
	used := v.ConfigFileUsed()

	var cfg assetimport.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return assetimport.Config{}, "", fmt.Errorf("failed to parse config: %w", err)
	}
	if used != "" {
		resolvePaths(&cfg, filepath.Dir(used))
	}
	if err := Validate(cfg); err != nil {
		return assetimport.Config{}, "", err
	}
	return cfg, used, nil
}

func resolvePaths(cfg *assetimport.Config, base string) {
	abs := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(base, p)
	}
	cfg.CacheDir = abs(cfg.CacheDir)
	cfg.BootstrapDir = abs(cfg.BootstrapDir)
	cfg.SnapshotDir = abs(cfg.SnapshotDir)
	for i := range cfg.Roots {
		cfg.Roots[i].Path = abs(cfg.Roots[i].Path)
	}
	for i := range cfg.SystemLibraryDirs {
		cfg.SystemLibraryDirs[i] = abs(cfg.SystemLibraryDirs[i])
	}
}

// Validate checks constraints the file format cannot express.
func Validate(cfg assetimport.Config) error {
	if cfg.CacheDir == "" {
		return errors.New("config: cache_dir is required")
	}
	ids := make(map[string]bool, len(cfg.Roots))
	for i, r := range cfg.Roots {
		if r.ID == "" {
			return fmt.Errorf("config: roots[%d]: id is required", i)
		}
		if r.Path == "" {
			return fmt.Errorf("config: roots[%d] (%s): path is required", i, r.ID)
		}
		if ids[r.ID] {
			return fmt.Errorf("config: roots[%d]: duplicate id %q", i, r.ID)
		}
		ids[r.ID] = true
	}
	for i, b := range cfg.Bootstrap {
		if !ids[b.Root] {
			return fmt.Errorf("config: bootstrap[%d]: unknown root %q", i, b.Root)
		}
	}
	if len(cfg.Bootstrap) > 0 && cfg.BootstrapDir == "" {
		return errors.New("config: bootstrap entries require bootstrap_dir")
	}
	if err := cfg.CheckDirs(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}
