package main

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/harrisonrobin/quadra/pkg/api"
	"github.com/harrisonrobin/quadra/pkg/config"
	"github.com/harrisonrobin/quadra/pkg/github"
	"github.com/harrisonrobin/quadra/pkg/index"
	"github.com/harrisonrobin/quadra/pkg/repository"
	"github.com/harrisonrobin/quadra/pkg/retry"
	"github.com/harrisonrobin/quadra/pkg/storage"
	"github.com/harrisonrobin/quadra/pkg/syncer"
)

var Version = "dev"

func main() {
	os.Exit(Execute(os.Args[1:], os.Stdout, os.Stderr))
}

// Execute runs the CLI with the given arguments and writers and returns the exit code.
func Execute(args []string, stdout, stderr io.Writer) int {
	log.SetOutput(stderr)

	root, cleanup := newRootCmd(stdout)
	defer cleanup()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(stderr, "Error:", err)
		return 1
	}
	return 0
}

// app holds everything a command needs. It is built once per invocation.
type app struct {
	cfg   *config.Config
	store storage.Store
	sync  *syncer.Orchestrator
	svc   *api.Service
}

func newApp(cfg *config.Config) (*app, error) {
	store, err := storage.Open(cfg)
	if err != nil {
		return nil, err
	}

	policy := retry.Policy{
		MaxRetries: cfg.Retry.MaxRetries,
		BaseDelay:  cfg.Retry.BaseDelay(),
	}
	repo := repository.New(store, repository.WithRetry(policy))

	versions, err := index.NewVersionIndex(cfg.Storage.Dir)
	if err != nil {
		log.Printf("Warning: failed to load remote version index: %v", err)
	}

	newClient := func() *github.Client {
		return github.New(
			github.WithBaseURL(cfg.GitHub.APIURL),
			github.WithPath(cfg.GitHub.Path),
		)
	}
	shared := github.New(
		github.WithBaseURL(cfg.GitHub.APIURL),
		github.WithPath(cfg.GitHub.Path),
		github.WithIndex(versions),
	)

	sync := syncer.New(repo, shared, syncer.WithRetry(policy))
	svc := api.New(repo, sync, api.WithClientFactory(newClient))

	return &app{cfg: cfg, store: store, sync: sync, svc: svc}, nil
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		log.Printf("Warning: failed to close storage: %v", err)
	}
}

// newRootCmd builds the command tree. The returned func releases whatever the
// command opened and must be called once it has run.
func newRootCmd(stdout io.Writer) (*cobra.Command, func()) {
	var (
		configPath string
		a          *app
	)

	root := &cobra.Command{
		Use:           "quadra",
		Short:         "Eisenhower matrix task manager with GitHub sync",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var (
				cfg *config.Config
				err error
			)
			if configPath != "" {
				cfg, err = config.LoadFrom(configPath)
			} else {
				cfg, err = config.Load()
			}
			if err != nil {
				return err
			}
			a, err = newApp(cfg)
			return err
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to config.toml (default: $QUADRA_HOME/config.toml)")

	get := func() *app { return a }
	root.AddCommand(
		listCmd(stdout, get),
		addCmd(stdout, get),
		updateCmd(stdout, get),
		deleteCmd(stdout, get),
		moveCmd(stdout, get),
		reorderCmd(stdout, get),
		pathCmd(stdout, get),
		openCmd(get),
		settingsCmd(stdout, get),
		githubCmd(stdout, get),
		runCmd(stdout, get),
		configCmd(stdout, &configPath),
	)
	return root, func() {
		if a != nil {
			a.Close()
		}
	}
}
