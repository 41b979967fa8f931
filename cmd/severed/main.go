// Command severed is the CLI entry point: a one-shot extraction pass over
// a project's configured files, or the same pass re-run under --watch.
// Structured as a cobra command tree, matching evanw-esbuild's own CLI
// layout (a root command plus flag-bound options), with fsnotify driving
// watch mode instead of a hand-rolled polling loop.
package main

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/calebeby/severed/internal/cache"
	"github.com/calebeby/severed/internal/config"
	"github.com/calebeby/severed/internal/coordinator"
	"github.com/calebeby/severed/internal/cssfrag"
	"github.com/calebeby/severed/internal/devserver"
	"github.com/calebeby/severed/internal/filebuffer"
	"github.com/calebeby/severed/internal/hostplugin"
	"github.com/calebeby/severed/internal/logger"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var configPath string
	var watch bool

	cmd := &cobra.Command{
		Use:   "severed",
		Short: "Extract css-tagged template literals into build-time CSS assets",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(configPath, watch)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "severed.config.yaml", "path to the project config file")
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "re-run extraction when a matched file changes")

	cmd.AddCommand(newServeCommand())

	return cmd
}

// newServeCommand wires internal/devserver into the CLI as a genuinely
// reachable second host, proving spec.md §4.5's hook protocol generalizes
// beyond the esbuild plugin in internal/hostplugin: a plain net/http
// server driving the same Adapter in pull mode, with fsnotify pushing
// reload notices over devserver's websocket instead of re-running a batch
// pass.
func newServeCommand() *cobra.Command {
	var configPath string
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run a pull-mode dev server that transforms files and serves css on request",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(configPath, addr)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "severed.config.yaml", "path to the project config file")
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "address for the dev server to listen on")

	return cmd
}

func serve(configPath, addr string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	baseDir := filepath.Dir(configPath)

	c, err := newCoordinator(cfg)
	if err != nil {
		return err
	}

	adapter := &hostplugin.Adapter{Coordinator: c, Buffer: c.Buffer, Mode: hostplugin.PullMode}
	srv := devserver.New(adapter)

	readSource := func(id string) (string, error) {
		b, err := os.ReadFile(filepath.Join(baseDir, filepath.FromSlash(id)))
		if err != nil {
			return "", err
		}
		return string(b), nil
	}

	go func() {
		if err := watchAndNotify(baseDir, srv); err != nil {
			fmt.Fprintln(os.Stderr, err)
		}
	}()

	fmt.Fprintf(os.Stderr, "severed: pull-mode dev server listening on %s\n", addr)
	return http.ListenAndServe(addr, srv.Handler(readSource))
}

// watchAndNotify re-sends sourceID (the changed file's baseDir-relative
// slash path) over the dev server's reload socket whenever fsnotify
// reports a write or create, so a connected client's devserver listener
// knows which module to re-request.
func watchAndNotify(dir string, srv *devserver.Server) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("severed: starting watcher: %w", err)
	}
	defer watcher.Close()

	if err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return watcher.Add(path)
		}
		return nil
	}); err != nil {
		return fmt.Errorf("severed: watching %q: %w", dir, err)
	}

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			rel, relErr := filepath.Rel(dir, event.Name)
			if relErr != nil {
				continue
			}
			srv.NotifyChanged(filepath.ToSlash(rel))
		case watchErr, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintln(os.Stderr, watchErr)
		}
	}
}

func run(configPath string, watch bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	baseDir := filepath.Dir(configPath)

	c, err := newCoordinator(cfg)
	if err != nil {
		return err
	}

	mode := hostplugin.PushMode
	if cfg.Mode == config.ModePull {
		mode = hostplugin.PullMode
	}
	adapter := &hostplugin.Adapter{Coordinator: c, Buffer: c.Buffer, Mode: mode}

	runOnce := func() error {
		return filepath.Walk(baseDir, func(path string, info os.FileInfo, err error) error {
			if err != nil || info.IsDir() {
				return err
			}
			rel, relErr := filepath.Rel(baseDir, path)
			if relErr != nil {
				return relErr
			}
			matched, matchErr := cfg.Matches(rel)
			if matchErr != nil {
				return matchErr
			}
			if !matched {
				return nil
			}
			source, readErr := os.ReadFile(path)
			if readErr != nil {
				return readErr
			}
			if _, _, transformErr := adapter.Transform(path, string(source)); transformErr != nil {
				return transformErr
			}
			return nil
		})
	}

	if err := runOnce(); err != nil {
		return err
	}
	if !watch {
		return nil
	}

	return watchAndRerun(baseDir, runOnce)
}

func newCoordinator(cfg *config.Config) (*coordinator.Coordinator, error) {
	size := cfg.CacheSize
	if size <= 0 {
		size = cache.DefaultSize
	}
	bundleCache, err := cache.NewBundleCache(size)
	if err != nil {
		return nil, fmt.Errorf("severed: constructing bundle cache: %w", err)
	}

	return &coordinator.Coordinator{
		Fragments: cssfrag.NewRegistry(),
		Buffer:    filebuffer.New(),
		Cache:     bundleCache,
		Post:      cssfrag.Passthrough,
	}, nil
}

// watchAndRerun runs a logger.Log-reported fsnotify loop over dir,
// re-running onChange on every write or create event, with no debouncing,
// until the process is killed. Directory additions are watched too, so new files under a
// pre-existing subdirectory get picked up without a restart.
func watchAndRerun(dir string, onChange func() error) error {
	log := logger.NewLog()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("severed: starting watcher: %w", err)
	}
	defer watcher.Close()

	if err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return watcher.Add(path)
		}
		return nil
	}); err != nil {
		return fmt.Errorf("severed: watching %q: %w", dir, err)
	}

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if err := onChange(); err != nil {
				log.AddError("", 0, err.Error())
				fmt.Fprintln(os.Stderr, err)
			}
		case watchErr, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintln(os.Stderr, watchErr)
		}
	}
}
