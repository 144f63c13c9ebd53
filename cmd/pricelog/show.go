package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/crimson-sun/pricelog/internal/model"
	"github.com/crimson-sun/pricelog/internal/output"
	"github.com/crimson-sun/pricelog/internal/output/codec"
	"github.com/crimson-sun/pricelog/internal/output/file"
	"github.com/crimson-sun/pricelog/internal/output/sqlite"
	"github.com/crimson-sun/pricelog/internal/output/stdout"
)

func newShowCmd(a *app) *cobra.Command {
	var (
		format    string
		summary   bool
		verbosity string
		pretty    bool
		diag      bool
	)
	cmd := &cobra.Command{
		Use:   "show <stored-snapshots>",
		Short: "Print snapshots stored by the file or sqlite output",
		Long: `Reloads snapshots written by a previous parse and prints them as JSON.

The format is taken from the file extension unless --format is given:
.db and .sqlite are SQLite databases, .cbor is a CBOR sequence, anything
else is NDJSON. --diag prints a CBOR file item by item in CBOR diagnostic
notation without decoding it into snapshots.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if diag {
				return diagnoseStored(cmd, args[0], format)
			}
			snaps, err := loadStored(cmd, args[0], format)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if summary {
				enc := json.NewEncoder(w)
				for _, s := range snaps {
					if err := enc.Encode(output.Summarize(s)); err != nil {
						return err
					}
				}
				return nil
			}
			out := stdout.NewWriter(w, output.ParseVerbosity(verbosity), pretty)
			for _, s := range snaps {
				if err := out.Write(cmd.Context(), s); err != nil {
					return err
				}
			}
			return out.Close()
		},
	}
	f := cmd.Flags()
	f.StringVar(&format, "format", "", "stored format: json, cbor, sqlite")
	f.BoolVar(&summary, "summary", false, "print one summary line per instance")
	f.StringVar(&verbosity, "verbosity", "standard", "snapshot verbosity: minimal, standard")
	f.BoolVar(&pretty, "pretty", false, "indent JSON")
	f.BoolVar(&diag, "diag", false, "print CBOR diagnostic notation (cbor files only)")
	return cmd
}

func loadStored(cmd *cobra.Command, path, format string) ([]model.Snapshot, error) {
	if format == "" {
		format = detectStoredFormat(path)
	}
	switch format {
	case "sqlite":
		return sqlite.Load(cmd.Context(), path)
	case "json", "cbor":
		enc, err := file.ParseEncoding(format)
		if err != nil {
			return nil, err
		}
		return file.ReadAll(path, enc)
	default:
		return nil, fmt.Errorf("unknown stored format %q", format)
	}
}

func diagnoseStored(cmd *cobra.Command, path, format string) error {
	if format == "" {
		format = detectStoredFormat(path)
	}
	if format != "cbor" {
		return fmt.Errorf("--diag needs a cbor file, got %s", format)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	items, err := codec.Diagnose(data)
	w := cmd.OutOrStdout()
	for _, item := range items {
		fmt.Fprintln(w, item)
	}
	return err
}

func detectStoredFormat(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".db", ".sqlite", ".sqlite3":
		return "sqlite"
	case ".cbor":
		return "cbor"
	default:
		return "json"
	}
}
