package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestParseSettingsOverlaysDefaults(t *testing.T) {
	s, err := ParseSettings([]byte(`{"githubSync": {"enabled": true, "repo": "me/todos"}}`))
	if err != nil {
		t.Fatalf("ParseSettings failed: %v", err)
	}
	if !s.ShowFloatingIcon {
		t.Error("Expected showFloatingIcon to keep its default of true")
	}
	if !s.GitHubSync.Enabled || s.GitHubSync.Repo != "me/todos" {
		t.Errorf("Unexpected sync config %+v", s.GitHubSync)
	}
	if s.GitHubSync.Ready() {
		t.Error("Sync without a token should not be ready")
	}
}

func TestParseSettingsNullSync(t *testing.T) {
	s, err := ParseSettings([]byte(`{"showFloatingIcon": false, "githubSync": null}`))
	if err != nil {
		t.Fatalf("ParseSettings failed: %v", err)
	}
	if s.ShowFloatingIcon {
		t.Error("Expected showFloatingIcon false")
	}
	if s.GitHubSync == nil {
		t.Fatal("Expected a default sync config")
	}
}

func TestParseSettingsCorruptFallsBackToDefaults(t *testing.T) {
	s, err := ParseSettings([]byte(`{"showFloatingIcon": `))
	if err == nil {
		t.Fatal("Expected decode error")
	}
	if s == nil || !s.ShowFloatingIcon || s.GitHubSync == nil {
		t.Errorf("Expected defaults alongside the error, got %+v", s)
	}
}

func TestSettingsPatchApply(t *testing.T) {
	base := DefaultSettings()
	base.GitHubSync = &SyncConfig{Enabled: true, Repo: "a/b", Token: "t", LastSyncTime: 5}

	hide := false
	out := SettingsPatch{ShowFloatingIcon: &hide}.Apply(base)
	if out.ShowFloatingIcon {
		t.Error("Expected showFloatingIcon to be patched")
	}
	if out.GitHubSync.LastSyncTime != 5 {
		t.Error("Expected sync config to be retained when not patched")
	}

	out = SettingsPatch{GitHubSync: &SyncConfig{Enabled: true, Repo: " c/d ", Token: " x "}}.Apply(base)
	if out.GitHubSync.Repo != "c/d" || out.GitHubSync.Token != "x" {
		t.Errorf("Expected trimmed repo and token, got %+v", out.GitHubSync)
	}
	if base.GitHubSync.Repo != "a/b" {
		t.Error("Apply must not mutate its input")
	}
}

func TestLoadFromTOML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[storage]
backend = "sqlite"
dir = "` + filepath.ToSlash(dir) + `"

[retry]
max_retries = 5
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom failed: %v", err)
	}
	if cfg.Storage.Backend != BackendSQLite {
		t.Errorf("Expected sqlite backend, got %s", cfg.Storage.Backend)
	}
	if cfg.Retry.MaxRetries != 5 {
		t.Errorf("Expected 5 retries, got %d", cfg.Retry.MaxRetries)
	}
	if cfg.Retry.BaseDelayMS != 1000 {
		t.Errorf("Expected default base delay, got %d", cfg.Retry.BaseDelayMS)
	}
	if cfg.GitHub.Path != "todo.json" || cfg.GitHub.APIURL != "https://api.github.com" {
		t.Errorf("Expected github defaults, got %+v", cfg.GitHub)
	}
}

func TestLoadFromMissingFile(t *testing.T) {
	t.Setenv(HomeEnv, t.TempDir())
	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatalf("LoadFrom failed: %v", err)
	}
	if cfg.Storage.Backend != BackendFile {
		t.Errorf("Expected file backend, got %s", cfg.Storage.Backend)
	}
}

func TestSaveToRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	cfg := Default()
	cfg.Storage.Backend = BackendSQLite
	if err := SaveTo(path, cfg); err != nil {
		t.Fatalf("SaveTo failed: %v", err)
	}
	got, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom failed: %v", err)
	}
	if got.Storage.Backend != BackendSQLite {
		t.Errorf("Expected sqlite backend after round trip, got %s", got.Storage.Backend)
	}
}
