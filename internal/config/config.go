/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package config

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	keyring "github.com/zalando/go-keyring"
	"gopkg.in/yaml.v3"
)

// AppConfig is the user-editable configuration persisted to a YAML file in
// the user scope. Environment variables are treated as read-only overrides
// at runtime. The tracker token never touches the file; it lives in the OS
// keychain.
//
// config_version: bump when the structure changes in a backward-incompatible
// way.

type GeneralConfig struct {
	Theme string `yaml:"theme"` // "system" | "light" | "dark"
}

type ReaderConfig struct {
	ViewMode        string  `yaml:"view_mode"` // continuous | continuous-gaps | paged-ltr | paged-rtl
	FitMode         string  `yaml:"fit_mode"`  // default | width | original | page
	PageSpacing     float64 `yaml:"page_spacing"`
	PreloadMargin   int     `yaml:"preload_margin"`
	CacheSize       int     `yaml:"cache_size"`
	AnimatePageTurn bool    `yaml:"animate_page_turn"`
	SlideDurationMs int     `yaml:"slide_duration_ms"`
}

type TrackerConfig struct {
	BaseURL     string `yaml:"base_url"`
	TimeoutMs   int    `yaml:"timeout_ms"`
	TLSInsecure bool   `yaml:"tls_insecure"`
	// Token is not stored on disk; it lives in the OS keychain.
}

type LibraryConfig struct {
	Paths []string `yaml:"paths"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Source bool   `yaml:"source"`
	File   string `yaml:"file"`
}

type AppConfig struct {
	ConfigVersion int           `yaml:"config_version"`
	General       GeneralConfig `yaml:"general"`
	Reader        ReaderConfig  `yaml:"reader"`
	Tracker       TrackerConfig `yaml:"tracker"`
	Library       LibraryConfig `yaml:"library"`
	Logging       LoggingConfig `yaml:"logging"`
}

// Defaults returns the application defaults.
func Defaults() AppConfig {
	return AppConfig{
		ConfigVersion: 1,
		General:       GeneralConfig{Theme: "system"},
		Reader: ReaderConfig{
			ViewMode:        "paged-rtl",
			FitMode:         "default",
			PageSpacing:     8,
			PreloadMargin:   1,
			CacheSize:       32,
			AnimatePageTurn: true,
			SlideDurationMs: 400,
		},
		Tracker: TrackerConfig{BaseURL: "https://graphql.anilist.co", TimeoutMs: 15000},
		Logging: LoggingConfig{Level: "info", Format: "console"},
	}
}

// Env var names used as overrides.
const (
	EnvTrackerURL       = "YMK_TRACKER_URL"
	EnvTrackerTimeoutMs = "YMK_TRACKER_TIMEOUT_MS"
	EnvTrackerTLSInsec  = "YMK_TLS_INSECURE"
	EnvViewMode         = "YMK_VIEW_MODE"
	EnvFitMode          = "YMK_FIT_MODE"
	EnvPreloadMargin    = "YMK_PRELOAD_MARGIN"
	EnvCacheSize        = "YMK_CACHE_SIZE"
	// EnvLogLevel Logging envs
	EnvLogLevel  = "YMK_LOG_LEVEL"
	EnvLogFormat = "YMK_LOG_FORMAT"
	EnvLogSource = "YMK_LOG_SOURCE"
	EnvLogFile   = "YMK_LOG_FILE"
)

// Service/keys for OS keyring.
const (
	keyringService = "Yomiko"
	keyringToken   = "tracker_token"
)

// TokenStore abstracts the OS keyring, so tests can stub it.
type TokenStore interface {
	Get(service, key string) (string, error)
	Set(service, key, value string) error
	Delete(service, key string) error
}

var tokenStore TokenStore = &osKeyring{}

// osKeyring implements TokenStore via github.com/zalando/go-keyring.
type osKeyring struct{}

func (k *osKeyring) Get(service, key string) (string, error) {
	return keyring.Get(service, key)
}
func (k *osKeyring) Set(service, key, value string) error {
	return keyring.Set(service, key, value)
}
func (k *osKeyring) Delete(service, key string) error {
	return keyring.Delete(service, key)
}

// LoadToken reads the tracker token from the OS keychain; empty when unset.
func LoadToken() string {
	tok, _ := tokenStore.Get(keyringService, keyringToken)
	return tok
}

// SaveToken persists the tracker token into the OS keychain; an empty token
// deletes the entry.
func SaveToken(token string) error {
	if token == "" {
		err := tokenStore.Delete(keyringService, keyringToken)
		if errors.Is(err, keyring.ErrNotFound) {
			return nil
		}
		return err
	}
	return tokenStore.Set(keyringService, keyringToken, token)
}

// ConfigPath returns the per-user config file path.
func ConfigPath() (string, error) {
	var base string
	switch runtime.GOOS {
	case "windows":
		base = os.Getenv("AppData")
		if base == "" { // fallback
			base = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
		base = filepath.Join(base, "Yomiko")
	case "darwin":
		base = filepath.Join(os.Getenv("HOME"), "Library", "Application Support", "Yomiko")
	default: // linux and others
		base = filepath.Join(os.Getenv("HOME"), ".config", "yomiko")
	}
	if base == "" {
		return "", errors.New("cannot resolve config directory")
	}
	return filepath.Join(base, "config.yaml"), nil
}

// DataDir returns the per-user data directory (library index, crash
// reports). Created on demand.
func DataDir() (string, error) {
	path, err := ConfigPath()
	if err != nil {
		return "", err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return dir, nil
}

// Load reads the user config file (if present), applies defaults, and
// merges environment overrides. The tracker token is loaded separately via
// LoadToken.
func Load() (AppConfig, error) {
	cfg := Defaults()
	path, err := ConfigPath()
	if err != nil {
		return cfg, err
	}
	if data, err := os.ReadFile(path); err == nil {
		var fileCfg AppConfig
		if err := yaml.Unmarshal(data, &fileCfg); err == nil {
			mergeInto(&cfg, &fileCfg)
		}
	}
	applyEnvOverrides(&cfg)
	return cfg, nil
}

// Save writes the user config YAML.
func Save(cfg AppConfig) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

func mergeInto(dst *AppConfig, src *AppConfig) {
	if src.ConfigVersion != 0 {
		dst.ConfigVersion = src.ConfigVersion
	}
	if src.General.Theme != "" {
		dst.General.Theme = src.General.Theme
	}
	// reader
	if src.Reader.ViewMode != "" {
		dst.Reader.ViewMode = strings.ToLower(strings.TrimSpace(src.Reader.ViewMode))
	}
	if src.Reader.FitMode != "" {
		dst.Reader.FitMode = strings.ToLower(strings.TrimSpace(src.Reader.FitMode))
	}
	if src.Reader.PageSpacing > 0 {
		dst.Reader.PageSpacing = src.Reader.PageSpacing
	}
	if src.Reader.PreloadMargin > 0 {
		dst.Reader.PreloadMargin = src.Reader.PreloadMargin
	}
	if src.Reader.CacheSize > 0 {
		dst.Reader.CacheSize = src.Reader.CacheSize
	}
	if src.Reader.SlideDurationMs > 0 {
		dst.Reader.SlideDurationMs = src.Reader.SlideDurationMs
	}
	// booleans: copy directly from src (file) so user preferences persist
	dst.Reader.AnimatePageTurn = src.Reader.AnimatePageTurn
	// tracker
	if src.Tracker.BaseURL != "" {
		dst.Tracker.BaseURL = src.Tracker.BaseURL
	}
	if src.Tracker.TimeoutMs != 0 {
		dst.Tracker.TimeoutMs = src.Tracker.TimeoutMs
	}
	dst.Tracker.TLSInsecure = src.Tracker.TLSInsecure
	// library
	if len(src.Library.Paths) > 0 {
		dst.Library.Paths = append([]string(nil), src.Library.Paths...)
	}
	// logging
	if strings.TrimSpace(src.Logging.Level) != "" {
		dst.Logging.Level = strings.ToLower(strings.TrimSpace(src.Logging.Level))
	}
	if strings.TrimSpace(src.Logging.Format) != "" {
		dst.Logging.Format = strings.ToLower(strings.TrimSpace(src.Logging.Format))
	}
	dst.Logging.Source = src.Logging.Source
	if strings.TrimSpace(src.Logging.File) != "" {
		dst.Logging.File = strings.TrimSpace(src.Logging.File)
	}
}

func applyEnvOverrides(cfg *AppConfig) {
	if v := strings.TrimSpace(os.Getenv(EnvTrackerURL)); v != "" {
		cfg.Tracker.BaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvTrackerTimeoutMs)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Tracker.TimeoutMs = n
		}
	}
	if v := strings.TrimSpace(os.Getenv(EnvTrackerTLSInsec)); v != "" {
		cfg.Tracker.TLSInsecure = boolish(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvViewMode)); v != "" {
		cfg.Reader.ViewMode = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvFitMode)); v != "" {
		cfg.Reader.FitMode = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvPreloadMargin)); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.Reader.PreloadMargin = n
		}
	}
	if v := strings.TrimSpace(os.Getenv(EnvCacheSize)); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Reader.CacheSize = n
		}
	}
	// logging overrides
	if v := strings.TrimSpace(os.Getenv(EnvLogLevel)); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFormat)); v != "" {
		cfg.Logging.Format = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogSource)); v != "" {
		cfg.Logging.Source = boolish(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFile)); v != "" {
		cfg.Logging.File = v
	}
}

func boolish(v string) bool {
	lv := strings.ToLower(v)
	return lv == "1" || lv == "true" || lv == "on" || lv == "yes"
}

// EffectiveTimeout returns the tracker request timeout as a duration.
func (t TrackerConfig) EffectiveTimeout() time.Duration {
	ms := t.TimeoutMs
	if ms <= 0 {
		ms = Defaults().Tracker.TimeoutMs
	}
	return time.Duration(ms) * time.Millisecond
}

// SlideDuration returns the page-turn transition duration.
func (r ReaderConfig) SlideDuration() time.Duration {
	ms := r.SlideDurationMs
	if ms <= 0 {
		ms = Defaults().Reader.SlideDurationMs
	}
	return time.Duration(ms) * time.Millisecond
}
