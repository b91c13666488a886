package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/natefinch/atomic"

	"inlineedit/internal/models"
)

const (
	DefaultAPIURL         = "http://127.0.0.1:7340"
	DefaultDBFileName     = ".inlineedit.db"
	DefaultLogLevel       = "debug"
	DefaultLocale         = "en"
	DefaultPerPage        = 25
	MaxPerPage            = 500
	DefaultParentMode     = string(models.ParentModeDerived)
	configFileName        = ".inlineedit.toml"
	configDirEnvKey       = "INLINEEDIT_CONFIG_DIR"
	trustProjectEnvKey    = "INLINEEDIT_TRUST_PROJECT_CONFIG"
	apiURLEnvKey          = "INLINEEDIT_API_URL"
	dbPathEnvKey          = "INLINEEDIT_DB"
	relativeURLRootEnvKey = "INLINEEDIT_RELATIVE_URL_ROOT"
)

// IssueConfig controls how parent issue attributes are computed.
type IssueConfig struct {
	ParentIssueDoneRatio string `toml:"parent_issue_done_ratio"`
	ParentIssueDates     string `toml:"parent_issue_dates"`
	ParentIssuePriority  string `toml:"parent_issue_priority"`
}

// Config defines runtime configuration for inlineedit.
type Config struct {
	APIURL                   string      `toml:"api_url"`
	DBPath                   string      `toml:"db_path"`
	LogLevel                 string      `toml:"log_level"`
	DefaultLocale            string      `toml:"default_locale"`
	RelativeURLRoot          string      `toml:"relative_url_root"`
	PerPage                  int         `toml:"per_page"`
	Issues                   IssueConfig `toml:"issues"`
	TrustedProjectConfigPath string      `toml:"-"`
}

// Default returns default configuration values.
func Default() Config {
	return Config{
		APIURL:        DefaultAPIURL,
		DBPath:        "",
		LogLevel:      DefaultLogLevel,
		DefaultLocale: DefaultLocale,
		PerPage:       DefaultPerPage,
		Issues: IssueConfig{
			ParentIssueDoneRatio: DefaultParentMode,
			ParentIssueDates:     DefaultParentMode,
			ParentIssuePriority:  DefaultParentMode,
		},
	}
}

// ParentSettings converts the issue section into the immutable settings
// value consumed by the field policy.
func (c *Config) ParentSettings() (models.ParentSettings, error) {
	return models.NewParentSettings(c.Issues.ParentIssueDoneRatio, c.Issues.ParentIssueDates, c.Issues.ParentIssuePriority)
}

func loadFile(path string, cfg *Config) error {
	_, err := loadFileIfExists(path, cfg)
	return err
}

func loadFileIfExists(path string, cfg *Config) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	if info.IsDir() {
		return false, nil
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return false, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return true, nil
}

func overrideConfigPath() (string, bool) {
	dir := strings.TrimSpace(os.Getenv(configDirEnvKey))
	if dir == "" {
		return "", false
	}
	return filepath.Join(dir, configFileName), true
}

func trustProjectConfig() bool {
	raw := strings.TrimSpace(os.Getenv(trustProjectEnvKey))
	if raw == "" {
		return false
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return false
	}
	return value
}

var allowedKeys = []string{
	"api_url",
	"db_path",
	"log_level",
	"default_locale",
	"relative_url_root",
	"per_page",
	"issues.parent_issue_done_ratio",
	"issues.parent_issue_dates",
	"issues.parent_issue_priority",
}

// AllowedKeys returns the set of valid config keys.
func AllowedKeys() []string {
	return allowedKeys
}

// IsAllowedKey checks if a key is a valid config key.
func IsAllowedKey(key string) bool {
	for _, k := range allowedKeys {
		if k == key {
			return true
		}
	}
	return false
}

// Get returns the value of a config key.
func (c *Config) Get(key string) (string, error) {
	switch key {
	case "api_url":
		return c.APIURL, nil
	case "db_path":
		return c.DBPath, nil
	case "log_level":
		return c.LogLevel, nil
	case "default_locale":
		return c.DefaultLocale, nil
	case "relative_url_root":
		return c.RelativeURLRoot, nil
	case "per_page":
		return strconv.Itoa(c.PerPage), nil
	case "issues.parent_issue_done_ratio":
		return c.Issues.ParentIssueDoneRatio, nil
	case "issues.parent_issue_dates":
		return c.Issues.ParentIssueDates, nil
	case "issues.parent_issue_priority":
		return c.Issues.ParentIssuePriority, nil
	default:
		return "", fmt.Errorf("unknown key: %s", key)
	}
}

// GlobalPath returns the path to the global config file.
func GlobalPath() (string, error) {
	if path, ok := overrideConfigPath(); ok {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, configFileName), nil
}

// ProjectPath returns the path to the project config file.
func ProjectPath() (string, error) {
	if path, ok := overrideConfigPath(); ok {
		return path, nil
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(cwd, configFileName), nil
}

// SetKey reads the TOML file at path, sets key=value, and replaces the file
// atomically.
func SetKey(path, key, value string) error {
	if !IsAllowedKey(key) {
		return fmt.Errorf("unknown key: %s", key)
	}

	data := make(map[string]any)
	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, &data); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
	}

	parsedValue, err := parseSetValue(key, value)
	if err != nil {
		return err
	}
	if err := setNestedKey(data, strings.Split(key, "."), parsedValue); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(data); err != nil {
		return err
	}
	return atomic.WriteFile(path, &buf)
}

// Load reads config from trusted files and applies env overrides.
func Load() (*Config, error) {
	cfg := Default()

	if overridePath, ok := overrideConfigPath(); ok {
		if err := loadFile(overridePath, &cfg); err != nil {
			return nil, err
		}
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			if err := loadFile(filepath.Join(home, configFileName), &cfg); err != nil {
				return nil, err
			}
		}

		if trustProjectConfig() {
			if cwd, err := os.Getwd(); err == nil {
				projectPath := filepath.Join(cwd, configFileName)
				info, statErr := os.Stat(projectPath)
				switch {
				case statErr == nil && !info.IsDir():
					if err := loadFile(projectPath, &cfg); err != nil {
						return nil, err
					}
					cfg.TrustedProjectConfigPath = projectPath
				case statErr != nil && !os.IsNotExist(statErr):
					return nil, statErr
				}
			}
		}
	}

	if cfg.DBPath == "" {
		if cwd, err := os.Getwd(); err == nil {
			cfg.DBPath = filepath.Join(cwd, DefaultDBFileName)
		}
	}

	if apiURL := os.Getenv(apiURLEnvKey); apiURL != "" {
		cfg.APIURL = apiURL
	}
	if dbPath := os.Getenv(dbPathEnvKey); dbPath != "" {
		cfg.DBPath = dbPath
	}
	if root := os.Getenv(relativeURLRootEnvKey); root != "" {
		cfg.RelativeURLRoot = root
	}

	if err := cfg.normalize(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) normalize() error {
	if strings.TrimSpace(c.LogLevel) == "" {
		c.LogLevel = DefaultLogLevel
	}
	if strings.TrimSpace(c.DefaultLocale) == "" {
		c.DefaultLocale = DefaultLocale
	}
	if c.PerPage <= 0 {
		c.PerPage = DefaultPerPage
	}
	if c.PerPage > MaxPerPage {
		c.PerPage = MaxPerPage
	}
	c.RelativeURLRoot = strings.TrimRight(strings.TrimSpace(c.RelativeURLRoot), "/")

	modes := []*string{&c.Issues.ParentIssueDoneRatio, &c.Issues.ParentIssueDates, &c.Issues.ParentIssuePriority}
	for _, mode := range modes {
		if strings.TrimSpace(*mode) == "" {
			*mode = DefaultParentMode
		}
	}
	if _, err := c.ParentSettings(); err != nil {
		return fmt.Errorf("invalid issues config: %w", err)
	}
	return nil
}

func parseSetValue(key, value string) (any, error) {
	value = strings.TrimSpace(value)
	switch key {
	case "per_page":
		parsed, err := strconv.Atoi(value)
		if err != nil || parsed <= 0 || parsed > MaxPerPage {
			return nil, fmt.Errorf("%s must be an integer between 1 and %d", key, MaxPerPage)
		}
		return int64(parsed), nil
	case "issues.parent_issue_done_ratio", "issues.parent_issue_dates", "issues.parent_issue_priority":
		mode, err := models.ParseParentMode(value)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
		return string(mode), nil
	default:
		return value, nil
	}
}

func setNestedKey(data map[string]any, parts []string, value any) error {
	if len(parts) == 0 {
		return fmt.Errorf("invalid config key")
	}
	if len(parts) == 1 {
		data[parts[0]] = value
		return nil
	}
	childRaw, ok := data[parts[0]]
	if !ok {
		child := map[string]any{}
		data[parts[0]] = child
		return setNestedKey(child, parts[1:], value)
	}
	child, ok := childRaw.(map[string]any)
	if !ok {
		return fmt.Errorf("cannot set nested key %q", strings.Join(parts, "."))
	}
	return setNestedKey(child, parts[1:], value)
}
