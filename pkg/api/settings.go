package api

import (
	"context"
	"strings"

	"github.com/harrisonrobin/quadra/pkg/auth"
	"github.com/harrisonrobin/quadra/pkg/config"
	"github.com/harrisonrobin/quadra/pkg/storage"
)

type Settings struct {
	store storage.Store
	sync  Syncer
}

func (s *Settings) Get(ctx context.Context) (*config.Settings, error) {
	return s.store.LoadSettings(ctx)
}

// Update applies patch, saves the result and returns it. An enabled GitHub
// configuration with a repository is handed to the shared client straight away;
// a blank token falls back to $GITHUB_TOKEN.
func (s *Settings) Update(ctx context.Context, patch config.SettingsPatch) (*config.Settings, error) {
	current, err := s.store.LoadSettings(ctx)
	if err != nil {
		return nil, err
	}
	next := patch.Apply(current)
	if err := s.store.SaveSettings(ctx, next); err != nil {
		return nil, err
	}

	if sc := next.GitHubSync; patch.GitHubSync != nil && sc.Enabled && strings.TrimSpace(sc.Repo) != "" {
		if token, err := auth.ResolveToken(sc.Token); err == nil {
			s.sync.Configure(sc.Repo, token)
		}
	}
	return next, nil
}
