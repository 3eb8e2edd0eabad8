package config

import (
	"encoding/json"
	"fmt"
	"strings"
)

// SyncConfig is the GitHub synchronization part of the app settings.
type SyncConfig struct {
	Enabled bool   `json:"enabled"`
	Repo    string `json:"repo"`
	Token   string `json:"token"`
	// Unix milliseconds of the last successful push or pull.
	LastSyncTime int64 `json:"lastSyncTime,omitempty"`
	// AutoSyncMinutes > 0 pushes periodically while a session is running.
	AutoSyncMinutes int `json:"autoSyncMinutes,omitempty"`
}

// Ready reports whether sync is switched on and has everything it needs to talk to GitHub.
func (s *SyncConfig) Ready() bool {
	return s != nil && s.Enabled && strings.TrimSpace(s.Repo) != "" && strings.TrimSpace(s.Token) != ""
}

// Settings is the settings document persisted next to the task document.
type Settings struct {
	ShowFloatingIcon bool        `json:"showFloatingIcon"`
	GitHubSync       *SyncConfig `json:"githubSync,omitempty"`
}

func DefaultSettings() *Settings {
	return &Settings{
		ShowFloatingIcon: true,
		GitHubSync:       &SyncConfig{},
	}
}

// ParseSettings overlays the stored document onto DefaultSettings field by field,
// so older files with missing keys still load.
func ParseSettings(data []byte) (*Settings, error) {
	s := DefaultSettings()
	if err := json.Unmarshal(data, s); err != nil {
		return DefaultSettings(), fmt.Errorf("failed to decode settings: %w", err)
	}
	if s.GitHubSync == nil {
		s.GitHubSync = &SyncConfig{}
	}
	return s, nil
}

func MarshalSettings(s *Settings) ([]byte, error) {
	return json.MarshalIndent(s, "", "  ")
}

// Clone returns a copy that does not share the sync config pointer.
func (s *Settings) Clone() *Settings {
	out := *s
	if s.GitHubSync != nil {
		sc := *s.GitHubSync
		out.GitHubSync = &sc
	}
	return &out
}

// SettingsPatch is a partial settings update; nil fields are left untouched.
type SettingsPatch struct {
	ShowFloatingIcon *bool       `json:"showFloatingIcon,omitempty"`
	GitHubSync       *SyncConfig `json:"githubSync,omitempty"`
}

// Apply returns a copy of s with the patch applied. GitHubSync is replaced as a whole.
func (p SettingsPatch) Apply(s *Settings) *Settings {
	out := s.Clone()
	if p.ShowFloatingIcon != nil {
		out.ShowFloatingIcon = *p.ShowFloatingIcon
	}
	if p.GitHubSync != nil {
		sc := *p.GitHubSync
		sc.Repo = strings.TrimSpace(sc.Repo)
		sc.Token = strings.TrimSpace(sc.Token)
		out.GitHubSync = &sc
	}
	return out
}
