package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"google.golang.org/grpc"

	"github.com/danielpatrickdp/pagbench/internal/config"
	"github.com/danielpatrickdp/pagbench/internal/discovery"
	"github.com/danielpatrickdp/pagbench/internal/logging"
)

// #region main

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := newApp(os.Stdout, os.Stderr)
	root, err := newRootCmd(a)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(2)
	}
	err = root.ExecuteContext(ctx)
	a.close()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		if errors.Is(err, config.ErrInvalidConfiguration) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

// #endregion main

// #region app

const userAgent = "pagbench"

// backendFactory dials the discovery service.
type backendFactory func(s config.Settings) (discovery.Backend, error)

type app struct {
	v          *viper.Viper
	configFile string
	stdout     io.Writer
	stderr     io.Writer

	settings config.Settings
	profiles *config.Profiles
	log      *slog.Logger
	logClose io.Closer

	newBackend backendFactory
}

func newApp(stdout, stderr io.Writer) *app {
	return &app{
		v:      config.NewViper(),
		stdout: stdout,
		stderr: stderr,
		log:    logging.Discard(),
		newBackend: func(s config.Settings) (discovery.Backend, error) {
			c, err := discovery.NewClient(s.BackendAddr,
				discovery.WithTimeout(s.BackendTimeout),
				discovery.WithMaxMessageSize(s.BackendMaxMsg<<20),
				discovery.WithDialOptions(grpc.WithUserAgent(userAgent)),
			)
			if err != nil {
				return nil, err
			}
			return c, nil
		},
	}
}

// setup resolves settings, logging and profiles before any subcommand runs.
func (a *app) setup(cmd *cobra.Command, args []string) error {
	if err := config.ReadFile(a.v, a.configFile); err != nil {
		return err
	}
	s, err := config.Load(a.v)
	if err != nil {
		return err
	}
	a.settings = s

	logger, closer, err := logging.New(logging.Options{
		Level:  s.LogLevel,
		File:   s.LogFile,
		JSON:   s.LogFormat == "json",
		Stderr: a.stderr,
	})
	if err != nil {
		return fmt.Errorf("%w: %v", config.ErrInvalidConfiguration, err)
	}
	a.log, a.logClose = logger, closer

	p, err := config.LoadProfiles(s.ProfilesPath)
	if err != nil {
		return err
	}
	a.profiles = p
	return nil
}

func (a *app) close() {
	if a.logClose != nil {
		a.logClose.Close()
	}
}

// #endregion app

// #region root

func newRootCmd(a *app) (*cobra.Command, error) {
	root := &cobra.Command{
		Use:   "pagbench",
		Short: "Run FCI and GFCI over a grid of simulated datasets and write PAG adjacency matrices",
		Long: `pagbench enumerates an experiment grid, locates each input dataset,
asks the discovery service for a partial ancestral graph and writes it as CSV.
Missing inputs are skipped with a warning; a failed experiment never stops the batch.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)

	root.PersistentFlags().StringVar(&a.configFile, "config", "", "config file (yaml, toml or json)")
	if err := config.RegisterFlags(root.PersistentFlags(), a.v); err != nil {
		return nil, err
	}
	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return fmt.Errorf("%w: %v", config.ErrInvalidConfiguration, err)
	})

	root.AddCommand(newFCICmd(a), newGFCICmd(a), newRunsCmd(a))
	return root, nil
}

// #endregion root
