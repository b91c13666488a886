package config

import (
	"os"
	"path/filepath"
	"testing"
)

func isolateEnv(t *testing.T) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	t.Setenv(configDirEnvKey, "")
	t.Setenv(trustProjectEnvKey, "")
	t.Setenv(apiURLEnvKey, "")
	t.Setenv(dbPathEnvKey, "")
	t.Setenv(relativeURLRootEnvKey, "")
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.APIURL != DefaultAPIURL {
		t.Fatalf("expected default API URL, got %q", cfg.APIURL)
	}
	if cfg.DBPath != "" {
		t.Fatalf("expected empty db path, got %q", cfg.DBPath)
	}
	if cfg.LogLevel != DefaultLogLevel {
		t.Fatalf("expected default log level %q, got %q", DefaultLogLevel, cfg.LogLevel)
	}
	if cfg.PerPage != DefaultPerPage {
		t.Fatalf("expected per_page %d, got %d", DefaultPerPage, cfg.PerPage)
	}

	settings, err := cfg.ParentSettings()
	if err != nil {
		t.Fatalf("parent settings: %v", err)
	}
	if !settings.DoneRatioDerived || !settings.DatesDerived || !settings.PriorityDerived {
		t.Fatalf("expected all parent fields derived by default, got %+v", settings)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), configFileName)
	if err := os.WriteFile(path, []byte(`api_url = "http://localhost:9999"
log_level = "warn"
per_page = 50

[issues]
parent_issue_dates = "independent"
`), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg := Default()
	if err := loadFile(path, &cfg); err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.APIURL != "http://localhost:9999" {
		t.Fatalf("expected api_url override, got %q", cfg.APIURL)
	}
	if cfg.PerPage != 50 {
		t.Fatalf("expected per_page 50, got %d", cfg.PerPage)
	}
	if cfg.Issues.ParentIssueDates != "independent" {
		t.Fatalf("expected independent dates, got %q", cfg.Issues.ParentIssueDates)
	}
	if cfg.Issues.ParentIssueDoneRatio != DefaultParentMode {
		t.Fatalf("expected default done ratio mode preserved, got %q", cfg.Issues.ParentIssueDoneRatio)
	}
}

func TestLoadFileMissing(t *testing.T) {
	cfg := Default()
	if err := loadFile("/nonexistent/path/"+configFileName, &cfg); err != nil {
		t.Fatalf("missing file should not error: %v", err)
	}
	if cfg.APIURL != DefaultAPIURL {
		t.Fatal("defaults should be preserved")
	}
}

func TestIsAllowedKey(t *testing.T) {
	for _, key := range AllowedKeys() {
		if !IsAllowedKey(key) {
			t.Fatalf("expected %q to be allowed", key)
		}
	}
	if IsAllowedKey("project_prefix") {
		t.Fatal("expected 'project_prefix' to not be allowed")
	}
}

func TestGetKey(t *testing.T) {
	cfg := Config{
		APIURL:          "http://test:1234",
		DBPath:          "/tmp/test.db",
		LogLevel:        "warn",
		DefaultLocale:   "de",
		RelativeURLRoot: "/redmine",
		PerPage:         40,
		Issues: IssueConfig{
			ParentIssueDoneRatio: "independent",
			ParentIssueDates:     "derived",
			ParentIssuePriority:  "independent",
		},
	}

	want := map[string]string{
		"api_url":                        "http://test:1234",
		"db_path":                        "/tmp/test.db",
		"log_level":                      "warn",
		"default_locale":                 "de",
		"relative_url_root":              "/redmine",
		"per_page":                       "40",
		"issues.parent_issue_done_ratio": "independent",
		"issues.parent_issue_dates":      "derived",
		"issues.parent_issue_priority":   "independent",
	}
	for key, expected := range want {
		got, err := cfg.Get(key)
		if err != nil || got != expected {
			t.Fatalf("%s: expected %q, got %q (err: %v)", key, expected, got, err)
		}
	}
	if _, err := cfg.Get("invalid"); err == nil {
		t.Fatal("expected error for invalid key")
	}
}

func TestSetKeyCreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "new.toml")
	if err := SetKey(path, "api_url", "http://127.0.0.1:9000"); err != nil {
		t.Fatalf("set: %v", err)
	}

	cfg := Default()
	if err := loadFile(path, &cfg); err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.APIURL != "http://127.0.0.1:9000" {
		t.Fatalf("expected api_url, got %q", cfg.APIURL)
	}
}

func TestSetKeyUpdatesExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "existing.toml")
	if err := os.WriteFile(path, []byte("log_level = \"info\"\napi_url = \"http://keep\"\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	if err := SetKey(path, "log_level", "error"); err != nil {
		t.Fatalf("set: %v", err)
	}

	cfg := Default()
	if err := loadFile(path, &cfg); err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.LogLevel != "error" {
		t.Fatalf("expected 'error', got %q", cfg.LogLevel)
	}
	if cfg.APIURL != "http://keep" {
		t.Fatalf("expected preserved api_url 'http://keep', got %q", cfg.APIURL)
	}
}

func TestSetNestedIssueKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "issues.toml")
	if err := SetKey(path, "issues.parent_issue_priority", "Independent"); err != nil {
		t.Fatalf("set nested key: %v", err)
	}
	if err := SetKey(path, "per_page", "100"); err != nil {
		t.Fatalf("set per_page: %v", err)
	}

	cfg := Default()
	if err := loadFile(path, &cfg); err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Issues.ParentIssuePriority != "independent" {
		t.Fatalf("expected normalized independent, got %q", cfg.Issues.ParentIssuePriority)
	}
	if cfg.PerPage != 100 {
		t.Fatalf("expected per_page 100, got %d", cfg.PerPage)
	}
}

func TestSetKeyRejectsInvalidValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.toml")
	if err := SetKey(path, "invalid_key", "value"); err == nil {
		t.Fatal("expected error for invalid key")
	}
	if err := SetKey(path, "issues.parent_issue_dates", "sometimes"); err == nil {
		t.Fatal("expected error for invalid parent mode")
	}
	if err := SetKey(path, "per_page", "0"); err == nil {
		t.Fatal("expected error for zero per_page")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("expected no file written on invalid input, stat err: %v", err)
	}
}

func TestConfigDirOverridePaths(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(configDirEnvKey, dir)

	globalPath, err := GlobalPath()
	if err != nil {
		t.Fatalf("global path: %v", err)
	}
	if globalPath != filepath.Join(dir, configFileName) {
		t.Fatalf("unexpected global path: %s", globalPath)
	}

	projectPath, err := ProjectPath()
	if err != nil {
		t.Fatalf("project path: %v", err)
	}
	if projectPath != filepath.Join(dir, configFileName) {
		t.Fatalf("unexpected project path: %s", projectPath)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	isolateEnv(t)
	t.Setenv(apiURLEnvKey, "http://example.com:8080")
	t.Setenv(dbPathEnvKey, "/tmp/override.db")
	t.Setenv(relativeURLRootEnvKey, "/tracker/")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.APIURL != "http://example.com:8080" {
		t.Fatalf("expected env override for API URL, got %q", cfg.APIURL)
	}
	if cfg.DBPath != "/tmp/override.db" {
		t.Fatalf("expected env override for DB path, got %q", cfg.DBPath)
	}
	if cfg.RelativeURLRoot != "/tracker" {
		t.Fatalf("expected trimmed relative url root, got %q", cfg.RelativeURLRoot)
	}
}

func TestLoadNormalizesEmptyValues(t *testing.T) {
	isolateEnv(t)
	dir := t.TempDir()
	t.Setenv(configDirEnvKey, dir)
	if err := os.WriteFile(filepath.Join(dir, configFileName), []byte("log_level = \"\"\nper_page = -3\n[issues]\nparent_issue_dates = \"\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.LogLevel != DefaultLogLevel {
		t.Fatalf("expected default log level, got %q", cfg.LogLevel)
	}
	if cfg.PerPage != DefaultPerPage {
		t.Fatalf("expected default per_page, got %d", cfg.PerPage)
	}
	if cfg.Issues.ParentIssueDates != DefaultParentMode {
		t.Fatalf("expected default dates mode, got %q", cfg.Issues.ParentIssueDates)
	}
}

func TestLoadRejectsInvalidParentMode(t *testing.T) {
	isolateEnv(t)
	dir := t.TempDir()
	t.Setenv(configDirEnvKey, dir)
	if err := os.WriteFile(filepath.Join(dir, configFileName), []byte("[issues]\nparent_issue_done_ratio = \"magic\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	if _, err := Load(); err == nil {
		t.Fatal("expected invalid parent mode to fail load")
	}
}

func TestLoadIgnoresProjectConfigByDefault(t *testing.T) {
	isolateEnv(t)
	workspace := t.TempDir()
	if err := os.WriteFile(filepath.Join(workspace, configFileName), []byte("log_level = \"error\"\n"), 0o644); err != nil {
		t.Fatalf("write workspace config: %v", err)
	}
	chdir(t, workspace)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.LogLevel != DefaultLogLevel {
		t.Fatalf("expected project config ignored, got log level %q", cfg.LogLevel)
	}
	if cfg.TrustedProjectConfigPath != "" {
		t.Fatalf("expected no trusted project path, got %q", cfg.TrustedProjectConfigPath)
	}
	if cfg.DBPath != filepath.Join(workspace, DefaultDBFileName) {
		t.Fatalf("expected default workspace db path, got %q", cfg.DBPath)
	}
}

func TestLoadAppliesProjectConfigWhenTrusted(t *testing.T) {
	isolateEnv(t)
	t.Setenv(trustProjectEnvKey, "true")
	workspace := t.TempDir()
	projectPath := filepath.Join(workspace, configFileName)
	if err := os.WriteFile(projectPath, []byte("log_level = \"error\"\n"), 0o644); err != nil {
		t.Fatalf("write workspace config: %v", err)
	}
	chdir(t, workspace)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.LogLevel != "error" {
		t.Fatalf("expected trusted project log level, got %q", cfg.LogLevel)
	}
	if cfg.TrustedProjectConfigPath != projectPath {
		t.Fatalf("expected trusted path %q, got %q", projectPath, cfg.TrustedProjectConfigPath)
	}
}

func chdir(t *testing.T, dir string) {
	t.Helper()
	oldWD, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	t.Cleanup(func() {
		_ = os.Chdir(oldWD)
	})
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
}
