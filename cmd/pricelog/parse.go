package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/crimson-sun/pricelog/internal/config"
	"github.com/crimson-sun/pricelog/internal/connector"
	"github.com/crimson-sun/pricelog/internal/engine"
	"github.com/crimson-sun/pricelog/internal/output"
	"github.com/crimson-sun/pricelog/internal/output/async"
	"github.com/crimson-sun/pricelog/internal/output/file"
	"github.com/crimson-sun/pricelog/internal/output/multi"
	"github.com/crimson-sun/pricelog/internal/output/sqlite"
	"github.com/crimson-sun/pricelog/internal/output/stdout"
	"github.com/crimson-sun/pricelog/internal/output/webhook"
	"github.com/crimson-sun/pricelog/internal/pipeline"

	// Register connector implementations.
	_ "github.com/crimson-sun/pricelog/internal/connector/file"
	_ "github.com/crimson-sun/pricelog/internal/connector/remote"
	_ "github.com/crimson-sun/pricelog/internal/connector/stdin"
)

func init() {
	flagAppliers["parse"] = applyParseFlags
}

func newParseCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "parse [transcript...]",
		Short: "Parse solver transcripts into instance snapshots",
		Long: `Parses each transcript in order and writes one snapshot per solver
instance to the configured outputs.

Transcripts ending in .gz, .zst or .lz4 are decompressed. With the stdin
connector and no arguments, a single transcript is read from standard input.

Examples:
  pricelog parse runs/bpp_*.out.gz
  pricelog parse --output stdout,sqlite --sqlite runs.db --best-bound runs/*.out
  cat run.out | pricelog parse --connector stdin --verbosity minimal`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runParse(cmd, args)
		},
	}

	f := cmd.Flags()
	f.String("connector", "", "transcript source: file, stdin, http")
	f.String("endpoint", "", "base directory (file) or base URL (http)")
	f.String("compression", "", "force compression: none, gzip, zstd, lz4")
	f.String("output", "", "comma-separated outputs: stdout, file, sqlite, webhook")
	f.String("output-file", "", "path for the file output")
	f.String("encoding", "", "file output encoding: json, cbor")
	f.Int64("max-size", 0, "rotate the file output at this many bytes")
	f.String("sqlite", "", "database path for the sqlite output")
	f.String("webhook", "", "URL for the webhook output")
	f.String("verbosity", "", "snapshot verbosity: minimal, standard")
	f.Bool("pretty", false, "indent stdout JSON")
	f.Bool("async", false, "decouple outputs from parsing with a buffered queue")
	f.Int("min-round", 0, "lowest pricing round kept")
	f.Int("max-round", 0, "highest pricing round kept (0 = no limit)")
	f.Int("min-node", 0, "lowest branch-and-bound node kept")
	f.Int("max-node", 0, "highest branch-and-bound node kept (0 = no limit)")
	f.StringSlice("instance", nil, "keep only instances whose name contains one of these")
	f.Bool("aggregate", false, "merge the subproblem results of a round into one record")
	f.Int("line-limit", 0, "pricing and variable lines accepted per instance")
	f.Bool("best-bound", false, "compute the gap from best bounds seen so far")
	f.Int("max-line-bytes", 0, "drop transcript lines longer than this")
	return cmd
}

func applyParseFlags(cmd *cobra.Command, cfg *config.Config) {
	f := cmd.Flags()
	setString(f, "connector", &cfg.Connector.Provider)
	setString(f, "endpoint", &cfg.Connector.Endpoint)
	if f.Changed("compression") {
		v, _ := f.GetString("compression")
		if cfg.Connector.Extra == nil {
			cfg.Connector.Extra = map[string]string{}
		}
		cfg.Connector.Extra["compression"] = v
	}
	setString(f, "output", &cfg.Output.Format)
	setString(f, "output-file", &cfg.Output.FilePath)
	setString(f, "encoding", &cfg.Output.FileEncoding)
	if f.Changed("max-size") {
		cfg.Output.FileMaxSize, _ = f.GetInt64("max-size")
	}
	setString(f, "sqlite", &cfg.Output.SQLitePath)
	setString(f, "webhook", &cfg.Output.WebhookURL)
	setString(f, "verbosity", &cfg.Output.Verbosity)
	setBool(f, "pretty", &cfg.Output.Pretty)
	setBool(f, "async", &cfg.Output.Async)
	setInt(f, "min-round", &cfg.Engine.MinRound)
	setInt(f, "max-round", &cfg.Engine.MaxRound)
	setInt(f, "min-node", &cfg.Engine.MinNode)
	setInt(f, "max-node", &cfg.Engine.MaxNode)
	if f.Changed("instance") {
		cfg.Engine.InstanceFilter, _ = f.GetStringSlice("instance")
	}
	setBool(f, "aggregate", &cfg.Engine.Aggregate)
	setInt(f, "line-limit", &cfg.Engine.LineLimit)
	setBool(f, "best-bound", &cfg.Engine.BestBound)
	setInt(f, "max-line-bytes", &cfg.Engine.MaxLineBytes)
}

func setString(f *pflag.FlagSet, name string, dst *string) {
	if f.Changed(name) {
		*dst, _ = f.GetString(name)
	}
}

func setInt(f *pflag.FlagSet, name string, dst *int) {
	if f.Changed(name) {
		*dst, _ = f.GetInt(name)
	}
}

func setBool(f *pflag.FlagSet, name string, dst *bool) {
	if f.Changed(name) {
		*dst, _ = f.GetBool(name)
	}
}

func (a *app) runParse(cmd *cobra.Command, args []string) error {
	cfg := a.cfg
	names := args
	if len(names) == 0 {
		if cfg.Connector.Provider != "stdin" {
			return errors.New("no transcripts given")
		}
		names = []string{"-"}
	}

	ctor, err := connector.Get(cfg.Connector.Provider)
	if err != nil {
		return err
	}

	out, err := buildOutput(cfg, a.log)
	if err != nil {
		return err
	}

	eng := engine.New(cfg.EngineOptions(), out, a.log)
	connCfg := connector.ConnectorConfig{
		Provider: cfg.Connector.Provider,
		APIKey:   cfg.Connector.APIKey,
		Endpoint: cfg.Connector.Endpoint,
		Extra:    cfg.Connector.Extra,
	}
	p := pipeline.New(ctor(), connCfg, eng, out,
		pipeline.WithMaxLineBytes(cfg.Engine.MaxLineBytes),
		pipeline.WithLogger(a.log))

	a.log.Debug("starting",
		zap.String("connector", cfg.Connector.Provider),
		zap.Strings("outputs", cfg.Outputs()),
		zap.Int("transcripts", len(names)))

	runErr := p.Run(cmd.Context(), names)
	closeErr := p.Close()
	if runErr != nil {
		return errors.Join(runErr, closeErr)
	}
	if closeErr != nil {
		return fmt.Errorf("close outputs: %w", closeErr)
	}
	return nil
}

// buildOutput opens every configured output. On error, outputs opened so
// far are closed.
func buildOutput(cfg config.Config, log *zap.Logger) (output.Output, error) {
	verbosity := output.ParseVerbosity(cfg.Output.Verbosity)
	var outs []output.Output
	fail := func(err error) (output.Output, error) {
		multi.New(outs...).Close()
		return nil, err
	}

	for _, name := range cfg.Outputs() {
		switch name {
		case "stdout":
			outs = append(outs, stdout.New(verbosity, cfg.Output.Pretty))
		case "file":
			enc, err := file.ParseEncoding(cfg.Output.FileEncoding)
			if err != nil {
				return fail(err)
			}
			fo, err := file.New(cfg.Output.FilePath, verbosity,
				file.WithEncoding(enc),
				file.WithMaxSize(cfg.Output.FileMaxSize))
			if err != nil {
				return fail(err)
			}
			outs = append(outs, fo)
		case "sqlite":
			so, err := sqlite.New(cfg.Output.SQLitePath, verbosity)
			if err != nil {
				return fail(err)
			}
			outs = append(outs, so)
		case "webhook":
			var wo output.Output = webhook.New(cfg.Output.WebhookURL, webhook.WithLogger(log))
			if cfg.Output.Async {
				// A slow endpoint must not stall parsing; summaries may be dropped.
				wo = async.New(wo, async.WithDropOnFull(), async.WithLogger(log),
					async.WithBufferSize(cfg.Output.AsyncBuffer))
			}
			outs = append(outs, wo)
		default:
			return fail(fmt.Errorf("unknown output %q", name))
		}
	}

	var out output.Output = multi.New(outs...)
	if len(outs) == 1 {
		out = outs[0]
	}
	if cfg.Output.Async {
		out = async.New(out, async.WithLogger(log), async.WithBufferSize(cfg.Output.AsyncBuffer))
	}
	return out, nil
}
