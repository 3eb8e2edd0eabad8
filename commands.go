package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/harrisonrobin/quadra/pkg/api"
	"github.com/harrisonrobin/quadra/pkg/auth"
	"github.com/harrisonrobin/quadra/pkg/colors"
	"github.com/harrisonrobin/quadra/pkg/config"
	"github.com/harrisonrobin/quadra/pkg/model"
	"github.com/harrisonrobin/quadra/pkg/repository"
)

// shutdownTimeout bounds the exit push of a run session.
const shutdownTimeout = 30 * time.Second

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printTask(w io.Writer, t model.Task) {
	fmt.Fprintf(w, "%s  %-9s  %s\n", colors.ShortID(t.ID), t.Quadrant.Label(), t.Title)
}

// resolveID accepts a full task id or an unambiguous prefix of one, as shown by list.
// Unknown ids are returned unchanged.
func resolveID(ctx context.Context, a *app, arg string) (string, error) {
	c, err := a.svc.Todos.Load(ctx)
	if err != nil {
		return "", err
	}
	var match string
	for _, t := range c.Todos {
		if t.ID == arg {
			return arg, nil
		}
		if strings.HasPrefix(t.ID, arg) {
			if match != "" {
				return "", fmt.Errorf("id prefix %q matches more than one task", arg)
			}
			match = t.ID
		}
	}
	if match == "" {
		return arg, nil
	}
	return match, nil
}

func listCmd(stdout io.Writer, get func() *app) *cobra.Command {
	var (
		asJSON bool
		width  int
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Show the task matrix",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := get().svc.Todos.Load(cmd.Context())
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(stdout, c)
			}
			fmt.Fprintln(stdout, colors.RenderMatrix(c, width))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the task document as JSON")
	cmd.Flags().IntVarP(&width, "width", "w", 100, "Width of the rendered matrix")
	return cmd
}

func addCmd(stdout io.Writer, get func() *app) *cobra.Command {
	var description string
	cmd := &cobra.Command{
		Use:   "add <quadrant> <title...>",
		Short: "Add a task at the end of a quadrant (1-4 or its name)",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := model.ParseQuadrant(args[0])
			if err != nil {
				return err
			}
			t, err := get().svc.Todos.Create(cmd.Context(), q, strings.Join(args[1:], " "), description)
			if err != nil {
				return err
			}
			printTask(stdout, t)
			return nil
		},
	}
	cmd.Flags().StringVarP(&description, "description", "d", "", "Task description")
	return cmd
}

func updateCmd(stdout io.Writer, get func() *app) *cobra.Command {
	var title, description string
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Change the title or description of a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var patch repository.Patch
			if cmd.Flags().Changed("title") {
				patch.Title = &title
			}
			if cmd.Flags().Changed("description") {
				patch.Description = &description
			}
			if patch.Title == nil && patch.Description == nil {
				return errors.New("nothing to update: pass --title or --description")
			}

			a := get()
			id, err := resolveID(cmd.Context(), a, args[0])
			if err != nil {
				return err
			}
			t, err := a.svc.Todos.Update(cmd.Context(), id, patch)
			if err != nil {
				return err
			}
			printTask(stdout, t)
			return nil
		},
	}
	cmd.Flags().StringVarP(&title, "title", "t", "", "New title")
	cmd.Flags().StringVarP(&description, "description", "d", "", "New description (empty clears it)")
	return cmd
}

func deleteCmd(stdout io.Writer, get func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := get()
			id, err := resolveID(cmd.Context(), a, args[0])
			if err != nil {
				return err
			}
			if err := a.svc.Todos.Delete(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(stdout, "Deleted %s\n", colors.ShortID(id))
			return nil
		},
	}
}

func moveCmd(stdout io.Writer, get func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "move <id> <quadrant>",
		Short: "Move a task to the end of another quadrant",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := model.ParseQuadrant(args[1])
			if err != nil {
				return err
			}
			a := get()
			id, err := resolveID(cmd.Context(), a, args[0])
			if err != nil {
				return err
			}
			t, err := a.svc.Todos.Move(cmd.Context(), id, q)
			if err != nil {
				return err
			}
			printTask(stdout, t)
			return nil
		},
	}
}

func reorderCmd(stdout io.Writer, get func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "reorder <quadrant> <moved-id> <target-id>",
		Short: "Put a task where another task of the same quadrant is",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := model.ParseQuadrant(args[0])
			if err != nil {
				return err
			}
			a := get()
			moved, err := resolveID(cmd.Context(), a, args[1])
			if err != nil {
				return err
			}
			target, err := resolveID(cmd.Context(), a, args[2])
			if err != nil {
				return err
			}
			tasks, err := a.svc.Todos.Reorder(cmd.Context(), q, moved, target)
			if err != nil {
				return err
			}
			for _, t := range tasks {
				printTask(stdout, t)
			}
			return nil
		},
	}
}

func pathCmd(stdout io.Writer, get func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print where the task document is stored",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(stdout, get().svc.Storage.GetPath())
			return nil
		},
	}
}

func openCmd(get func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "open",
		Short: "Open the storage folder in the file manager",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return get().svc.Storage.OpenFolder()
		},
	}
}

func maskToken(token string) string {
	if len(token) <= 4 {
		return strings.Repeat("*", len(token))
	}
	return strings.Repeat("*", len(token)-4) + token[len(token)-4:]
}

func settingsCmd(stdout io.Writer, get func() *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change app settings",
	}

	show := &cobra.Command{
		Use:   "get",
		Short: "Print the current settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := get().svc.Settings.Get(cmd.Context())
			if err != nil {
				return err
			}
			if s.GitHubSync != nil {
				s.GitHubSync.Token = maskToken(s.GitHubSync.Token)
			}
			return printJSON(stdout, s)
		},
	}

	var floatingIcon bool
	icon := &cobra.Command{
		Use:   "icon",
		Short: "Show or hide the floating icon",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := get().svc.Settings.Update(cmd.Context(), config.SettingsPatch{ShowFloatingIcon: &floatingIcon})
			return err
		},
	}
	icon.Flags().BoolVar(&floatingIcon, "show", true, "Whether the floating icon is shown")

	var (
		enable   bool
		repo     string
		token    string
		autoSync int
	)
	sync := &cobra.Command{
		Use:   "sync",
		Short: "Configure GitHub sync",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc := get().svc
			current, err := svc.Settings.Get(cmd.Context())
			if err != nil {
				return err
			}
			sc := config.SyncConfig{}
			if current.GitHubSync != nil {
				sc = *current.GitHubSync
			}
			flags := cmd.Flags()
			sc.Enabled = enable
			if flags.Changed("repo") {
				sc.Repo = repo
			}
			if flags.Changed("token") {
				sc.Token = token
			}
			if flags.Changed("auto-sync") {
				if autoSync < 0 {
					return errors.New("--auto-sync must not be negative")
				}
				sc.AutoSyncMinutes = autoSync
			}

			next, err := svc.Settings.Update(cmd.Context(), config.SettingsPatch{GitHubSync: &sc})
			if err != nil {
				return err
			}
			state := "disabled"
			if next.GitHubSync.Enabled {
				state = "enabled"
			}
			fmt.Fprintf(stdout, "GitHub sync %s for %q\n", state, next.GitHubSync.Repo)
			return nil
		},
	}
	sync.Flags().BoolVar(&enable, "enable", true, "Switch sync on or off")
	sync.Flags().StringVar(&repo, "repo", "", "Repository as owner/name")
	sync.Flags().StringVar(&token, "token", "", "GitHub access token (blank uses $"+auth.TokenEnv+")")
	sync.Flags().IntVar(&autoSync, "auto-sync", 0, "Push every N minutes during a run session (0 disables)")

	cmd.AddCommand(show, icon, sync)
	return cmd
}

func report(stdout io.Writer, r api.Result) error {
	if !r.Success {
		return errors.New(r.Message)
	}
	fmt.Fprintln(stdout, r.Message)
	if r.Repo != "" {
		fmt.Fprintf(stdout, "Repository: %s\n", r.Repo)
	}
	if r.LastSyncTime != 0 {
		fmt.Fprintf(stdout, "Last sync: %s\n", time.UnixMilli(r.LastSyncTime).Format(time.RFC1123))
	}
	return nil
}

// syncDefaults returns the stored repository and the token to use, honouring
// an explicit --token first.
func syncDefaults(ctx context.Context, a *app, token string) (string, string, error) {
	s, err := a.svc.Settings.Get(ctx)
	if err != nil {
		return "", "", err
	}
	var repo, stored string
	if s.GitHubSync != nil {
		repo, stored = s.GitHubSync.Repo, s.GitHubSync.Token
	}
	if token == "" {
		token = stored
	}
	token, err = auth.ResolveToken(token)
	return repo, token, err
}

func githubCmd(stdout io.Writer, get func() *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "github",
		Short: "Talk to the GitHub repository used for sync",
	}

	var token string
	test := &cobra.Command{
		Use:   "test [owner/repo]",
		Short: "Check that the repository is reachable with the token",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := get()
			repo, tok, err := syncDefaults(cmd.Context(), a, token)
			if err != nil {
				return err
			}
			if len(args) == 1 {
				repo = args[0]
			}
			return report(stdout, a.svc.GitHub.Test(cmd.Context(), repo, tok))
		},
	}
	test.Flags().StringVar(&token, "token", "", "Access token (defaults to the configured one)")

	var use bool
	create := &cobra.Command{
		Use:   "create-repo <name>",
		Short: "Create a private repository for sync",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := get()
			_, tok, err := syncDefaults(cmd.Context(), a, token)
			if err != nil {
				return err
			}
			r := a.svc.GitHub.CreateRepo(cmd.Context(), args[0], tok)
			if err := report(stdout, r); err != nil || !use {
				return err
			}
			current, err := a.svc.Settings.Get(cmd.Context())
			if err != nil {
				return err
			}
			sc := config.SyncConfig{}
			if current.GitHubSync != nil {
				sc = *current.GitHubSync
			}
			sc.Enabled = true
			sc.Repo = r.Repo
			if cmd.Flags().Changed("token") {
				sc.Token = token
			}
			_, err = a.svc.Settings.Update(cmd.Context(), config.SettingsPatch{GitHubSync: &sc})
			if err == nil {
				fmt.Fprintf(stdout, "GitHub sync enabled for %q\n", r.Repo)
			}
			return err
		},
	}
	create.Flags().StringVar(&token, "token", "", "Access token (defaults to the configured one)")
	create.Flags().BoolVar(&use, "use", false, "Enable sync with the new repository")

	push := &cobra.Command{
		Use:   "push",
		Short: "Upload the local tasks, replacing the remote copy",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return report(stdout, get().svc.GitHub.Push(cmd.Context()))
		},
	}

	pull := &cobra.Command{
		Use:   "pull",
		Short: "Download the remote tasks, replacing the local copy",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return report(stdout, get().svc.GitHub.Pull(cmd.Context()))
		},
	}

	cmd.AddCommand(test, create, push, pull)
	return cmd
}

func runCmd(stdout io.Writer, get func() *app) *cobra.Command {
	var (
		autoSync time.Duration
		duration time.Duration
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a session: pull on start, push periodically and on exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a := get()
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			if duration > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, duration)
				defer cancel()
			}

			a.sync.Startup(ctx)

			interval := autoSync
			if !cmd.Flags().Changed("auto-sync") {
				s, err := a.svc.Settings.Get(ctx)
				if err == nil && s.GitHubSync != nil && s.GitHubSync.AutoSyncMinutes > 0 {
					interval = time.Duration(s.GitHubSync.AutoSyncMinutes) * time.Minute
				}
			}
			if interval > 0 {
				if err := a.sync.StartAutoSync(interval); err != nil {
					return err
				}
			}

			fmt.Fprintln(stdout, "quadra is running, press Ctrl+C to sync and exit")
			<-ctx.Done()

			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			a.sync.Shutdown(shutdownCtx)
			fmt.Fprintln(stdout, "Bye")
			return nil
		},
	}
	cmd.Flags().DurationVar(&autoSync, "auto-sync", 0, "Push interval (overrides the autoSyncMinutes setting, 0 disables)")
	cmd.Flags().DurationVar(&duration, "for", 0, "End the session after this long (0 waits for a signal)")
	return cmd
}

func configCmd(stdout io.Writer, configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the host configuration file",
		// Writing the config file must not depend on the current one loading.
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	}

	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a config.toml with the default settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := *configPath
			if path == "" {
				p, err := config.GetConfigPath()
				if err != nil {
					return err
				}
				path = p
			}
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists, pass --force to overwrite it", path)
			}

			cfg := config.Default()
			var err error
			if *configPath != "" {
				err = config.SaveTo(path, cfg)
			} else {
				err = config.Save(cfg)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(stdout, "Wrote %s\n", path)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")

	cmd.AddCommand(initCmd)
	return cmd
}
