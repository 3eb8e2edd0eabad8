package api

import (
	"fmt"
	"os/exec"
	"path/filepath"
	"runtime"

	"github.com/harrisonrobin/quadra/pkg/storage"
)

type Storage struct {
	store  storage.Store
	opener func(dir string) error
}

// GetPath returns where the task document is stored.
func (s *Storage) GetPath() string {
	return s.store.Path()
}

// OpenFolder shows the directory holding the task document in the file manager.
func (s *Storage) OpenFolder() error {
	dir := filepath.Dir(s.store.Path())
	if err := s.opener(dir); err != nil {
		return fmt.Errorf("could not open %s: %w", dir, err)
	}
	return nil
}

func openFolder(dir string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", dir)
	case "windows":
		cmd = exec.Command("explorer", dir)
	default:
		cmd = exec.Command("xdg-open", dir)
	}
	if err := cmd.Start(); err != nil {
		return err
	}
	go cmd.Wait()
	return nil
}
