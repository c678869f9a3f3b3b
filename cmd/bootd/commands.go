package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/GoCodeAlone/bootstrap"
	"github.com/GoCodeAlone/bootstrap/config"
	"github.com/GoCodeAlone/bootstrap/feeders"
	_ "github.com/GoCodeAlone/bootstrap/scheduler"
)

// Version information
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

const shutdownTimeout = 10 * time.Second

type rootFlags struct {
	configFile string
	logLevel   string
	listen     string
	jsonOutput bool
}

// NewRootCommand creates the root command for bootd
func NewRootCommand() *cobra.Command {
	flags := &rootFlags{}
	cmd := &cobra.Command{
		Use:   "bootd",
		Short: "Boot a runtime and report its state",
		Long: `bootd boots the application runtime, acquiring the main instance lock,
determining the runtime level and initializing the discovered components.`,
		Version:       fmt.Sprintf("%s (commit: %s, built on: %s)", Version, Commit, Date),
		SilenceUsage:  true,
		SilenceErrors: true,
		Run: func(cmd *cobra.Command, args []string) {
			_ = cmd.Help()
		},
	}

	cmd.PersistentFlags().StringVarP(&flags.configFile, "config", "c", "", "YAML or TOML settings file (environment variables prefixed BOOT_ override it)")
	cmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "info", "Log level: debug, info, warn or error")

	cmd.AddCommand(NewServeCommand(flags))
	cmd.AddCommand(NewStateCommand(flags))

	return cmd
}

// NewServeCommand creates the serve command
func NewServeCommand(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Boot and serve the runtime status endpoint until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), flags)
		},
	}
	cmd.Flags().StringVarP(&flags.listen, "listen", "l", "", "Listen address (default from hosting.listen)")
	return cmd
}

// NewStateCommand creates the state command
func NewStateCommand(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "state",
		Short: "Boot once, print the runtime level and terminate",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runState(cmd, flags)
		},
	}
	cmd.Flags().BoolVar(&flags.jsonOutput, "json", false, "Print the full status as JSON")
	return cmd
}

func (f *rootFlags) loadSettings() (*config.Snapshot, error) {
	var sources []config.Feeder
	if f.configFile != "" {
		switch strings.ToLower(filepath.Ext(f.configFile)) {
		case ".toml":
			sources = append(sources, feeders.NewTomlFeeder(f.configFile))
		case ".yaml", ".yml":
			sources = append(sources, feeders.NewYamlFeeder(f.configFile))
		default:
			return nil, fmt.Errorf("%w: %s", errUnsupportedConfigFile, f.configFile)
		}
	}
	sources = append(sources, feeders.NewEnvFeeder(bootstrap.EnvPrefix))
	return config.Load(sources...)
}

func (f *rootFlags) newLogger() (*logrus.Logger, error) {
	level, err := logrus.ParseLevel(f.logLevel)
	if err != nil {
		return nil, err
	}
	l := logrus.New()
	l.SetLevel(level)
	l.SetOutput(os.Stderr)
	return l, nil
}

var errUnsupportedConfigFile = errors.New("unsupported config file extension")

// newRuntime builds a runtime from the command line flags.
func newRuntime(flags *rootFlags) (*bootstrap.CoreRuntime, *config.Snapshot, error) {
	settings, err := flags.loadSettings()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load settings: %w", err)
	}
	l, err := flags.newLogger()
	if err != nil {
		return nil, nil, err
	}
	logger := bootstrap.NewLogrusLogger(l)
	rt := bootstrap.NewCoreRuntime(
		bootstrap.WithLogger(func() bootstrap.Logger { return logger }),
		bootstrap.WithSettings(settings),
		bootstrap.WithEventSource("bootd"),
	)
	return rt, settings, nil
}

func runServe(ctx context.Context, flags *rootFlags) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, settings, err := newRuntime(flags)
	if err != nil {
		return err
	}
	if _, err := rt.Boot(ctx, nil); err != nil {
		return err
	}
	defer func() {
		tctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = rt.Terminate(tctx)
	}()

	addr := flags.listen
	if addr == "" {
		addr = settings.Hosting().Listen
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           NewStatusRouter(rt),
		ReadHeaderTimeout: 5 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		defer bootstrap.LogPanic()
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	var handedOff <-chan struct{}
	if md := rt.MainDom(); md != nil {
		handedOff = md.HandedOff()
	}

	select {
	case <-ctx.Done():
	case <-handedOff:
		fmt.Fprintln(os.Stderr, "Main instance handed off, shutting down")
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("status server failed: %w", err)
		}
	}

	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(sctx)
}

func runState(cmd *cobra.Command, flags *rootFlags) error {
	rt, _, err := newRuntime(flags)
	if err != nil {
		return err
	}
	if _, err := rt.Boot(cmd.Context(), nil); err != nil {
		return err
	}
	defer func() { _ = rt.Terminate(cmd.Context()) }()

	status := currentStatus(rt)
	out := cmd.OutOrStdout()
	if flags.jsonOutput {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(status)
	}
	fmt.Fprintf(out, "%s (%s)\n", status.Level, status.Reason)
	if status.Failure != "" {
		fmt.Fprintf(out, "failure: %s\n", status.Failure)
	}
	return nil
}
