package main

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/OCAP2/missionsim/internal/config"
	"github.com/spf13/pflag"
)

// options holds the flags that are not config keys.
type options struct {
	ScenarioPath string
	ConfigDir    string
	RunName      string

	flags *pflag.FlagSet
}

// exportOptions holds the flags of the export subcommand.
type exportOptions struct {
	DBPath    string
	RunID     uint
	OutputDir string
	Compress  bool
}

func newFlagSet(opts *options) *pflag.FlagSet {
	fs := pflag.NewFlagSet("missionsim", pflag.ContinueOnError)
	fs.StringVarP(&opts.ScenarioPath, "scenario", "s", "", "scenario JSON file")
	fs.StringVar(&opts.ConfigDir, "config-dir", ".", "directory holding "+config.FileName)
	fs.StringVar(&opts.RunName, "name", "", "run name (default: scenario file name)")

	// bound to config keys, see config.BindFlags
	fs.String("timeline-log", "./timeline.ndjson", "timeline output file")
	fs.String("event-log", "./events.ndjson", "event output file")
	fs.String("storage", "ndjson", "storage backend: ndjson, memory, sqlite, postgres, mysql, influx, websocket")
	fs.String("log-level", "info", "log level: debug, info, warn, error")
	fs.Int("start-sec", 0, "first simulated second")
	fs.Int("end-sec", 86400, "last simulated second")
	fs.Bool("upload", false, "upload the exported recording to the web frontend")

	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage:\n  missionsim [flags] --scenario <file>\n  missionsim export --db <file> --run <id>\n\nFlags:\n")
		fs.PrintDefaults()
	}
	return fs
}

// parseFlags parses the simulate command line. The scenario may also be
// given as the only positional argument.
func parseFlags(args []string) (*options, error) {
	opts := &options{}
	fs := newFlagSet(opts)
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if opts.ScenarioPath == "" {
		if fs.NArg() != 1 {
			return nil, errors.New("a scenario file is required (--scenario)")
		}
		opts.ScenarioPath = fs.Arg(0)
	} else if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}

	if opts.RunName == "" {
		opts.RunName = runNameFromPath(opts.ScenarioPath)
	}
	opts.flags = fs
	return opts, nil
}

func parseExportFlags(args []string) (*exportOptions, error) {
	opts := &exportOptions{}
	fs := pflag.NewFlagSet("missionsim export", pflag.ContinueOnError)
	fs.StringVar(&opts.DBPath, "db", "", "SQLite recording to read")
	fs.UintVar(&opts.RunID, "run", 0, "run ID to export")
	fs.StringVar(&opts.OutputDir, "out", "./recordings", "output directory")
	fs.BoolVar(&opts.Compress, "compress", true, "gzip the export")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if opts.DBPath == "" {
		return nil, errors.New("export: --db is required")
	}
	if opts.RunID == 0 {
		return nil, errors.New("export: --run is required")
	}
	return opts, nil
}

func runNameFromPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
