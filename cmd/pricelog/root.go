package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/crimson-sun/pricelog/internal/config"
	"github.com/crimson-sun/pricelog/internal/logging"
)

// app carries the state shared by all subcommands.
type app struct {
	configPath string
	logLevel   string
	logFormat  string

	cfg     config.Config
	log     *zap.Logger
	restore func()
	stderr  io.Writer
}

func newRootCmd() *cobra.Command {
	a := &app{stderr: os.Stderr}

	root := &cobra.Command{
		Use:   "pricelog",
		Short: "Extract pricing events from branch-and-price solver transcripts",
		Long: `pricelog reads console transcripts of GCG/SCIP runs and turns every
solver instance into a structured snapshot: pricing events, variable
creation records, the root bounds table and the normalized gap series.

Configuration is read from an optional YAML file, then PRICELOG_*
environment variables, then command-line flags.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			a.teardown()
		},
	}
	root.SetErr(a.stderr)

	pf := root.PersistentFlags()
	pf.StringVar(&a.configPath, "config", "", "YAML config file")
	pf.StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn, error")
	pf.StringVar(&a.logFormat, "log-format", "", "log format: console, json")

	root.AddCommand(newParseCmd(a), newShowCmd(a), newVersionCmd())
	return root
}

// setup loads configuration and installs the logger. Flags of the running
// subcommand are applied before validation.
func (a *app) setup(cmd *cobra.Command) error {
	var err error
	if a.configPath != "" {
		a.cfg, err = config.LoadFile(a.configPath)
		if err != nil {
			return err
		}
	} else {
		a.cfg = config.Load()
	}
	if a.logLevel != "" {
		a.cfg.Log.Level = a.logLevel
	}
	if a.logFormat != "" {
		a.cfg.Log.Format = a.logFormat
	}
	if apply, ok := flagAppliers[cmd.Name()]; ok {
		apply(cmd, &a.cfg)
	}
	if err := a.cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration:\n%w", err)
	}
	a.log, a.restore = logging.Init(logging.ParseLevel(a.cfg.Log.Level), a.cfg.Log.Format, a.stderr)
	return nil
}

func (a *app) teardown() {
	if a.log != nil {
		_ = a.log.Sync()
	}
	if a.restore != nil {
		a.restore()
	}
}

// flagAppliers copies explicitly set subcommand flags over the loaded config.
var flagAppliers = map[string]func(*cobra.Command, *config.Config){}
