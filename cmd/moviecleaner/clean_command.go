package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/moviedata/internal/config"
	"github.com/JonMunkholm/moviedata/internal/core"
	"github.com/JonMunkholm/moviedata/internal/logging"
)

type cleanFlags struct {
	input        string
	output       string
	orient       string
	encoding     string
	delimiter    string
	lowMemory    bool
	dropColumns  []string
	genresPolicy string
}

func newCleanCommand(ctx *commandContext) *cobra.Command {
	var flags cleanFlags

	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Load, clean, report on and export a movie CSV",
		Long: `Load the input CSV, run the cleaning pipeline, print the unique movie
count, the average vote and the movies-per-year table, then write the
cleaned table as JSON. Use --output - to write the JSON to stdout.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := ctx.config
			applyCleanFlags(cmd, cfg, flags)
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("config validation: %w", err)
			}
			if cfg.Output.Path == "-" {
				// keep stdout for the JSON document
				ctx.logger = logging.Setup(cfg.Logging.Level, cfg.Logging.Format, cmd.ErrOrStderr())
			}
			return runClean(cmd.OutOrStdout(), ctx, cfg)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&flags.input, "input", "i", "", "CSV file to clean")
	f.StringVarP(&flags.output, "output", "o", "", "JSON file to write, or - for stdout")
	f.StringVar(&flags.orient, "orient", "", "JSON layout: records, split, index, columns, values")
	f.StringVar(&flags.encoding, "encoding", "", "Input text encoding, e.g. utf-8 or latin1")
	f.StringVar(&flags.delimiter, "delimiter", "", "Input field delimiter (tab for tab-separated)")
	f.BoolVar(&flags.lowMemory, "low-memory", false, "Stream the input with strict quoting")
	f.StringSliceVar(&flags.dropColumns, "drop-columns", nil, "Columns to drop instead of the built-in list")
	f.StringVar(&flags.genresPolicy, "genres-policy", "", "Malformed genres handling: strict or null")

	return cmd
}

// applyCleanFlags overrides cfg with the flags the user set.
func applyCleanFlags(cmd *cobra.Command, cfg *config.Config, flags cleanFlags) {
	f := cmd.Flags()
	if f.Changed("input") {
		cfg.Input.Path = flags.input
	}
	if f.Changed("output") {
		cfg.Output.Path = flags.output
	}
	if f.Changed("orient") {
		cfg.Output.Orient = flags.orient
	}
	if f.Changed("encoding") {
		cfg.Input.Encoding = flags.encoding
	}
	if f.Changed("delimiter") {
		cfg.Input.Delimiter = flags.delimiter
	}
	if f.Changed("low-memory") {
		cfg.Input.LowMemory = flags.lowMemory
	}
	if f.Changed("drop-columns") {
		cfg.Clean.DropColumns = append([]string{}, flags.dropColumns...)
	}
	if f.Changed("genres-policy") {
		cfg.Clean.GenresPolicy = flags.genresPolicy
	}
}

func runClean(out io.Writer, ctx *commandContext, cfg *config.Config) error {
	orient, err := core.ParseOrient(cfg.Output.Orient)
	if err != nil {
		return core.NewUserError(err)
	}
	policy, err := core.ParseGenresPolicy(cfg.Clean.GenresPolicy)
	if err != nil {
		return core.NewUserError(err)
	}

	ds, err := core.Load(cfg.Input.Path, core.LoadOptions{
		Encoding:   cfg.Input.Encoding,
		LowMemory:  cfg.Input.LowMemory,
		Delimiter:  cfg.Input.DelimiterRune(),
		NullValues: cfg.Input.NullValues,
	}, ctx.logger)
	if err != nil {
		return core.NewUserError(err)
	}
	loaded := ds.Len()

	if _, err := ds.Clean(core.CleanOptions{
		DropColumns:  cfg.Clean.DropColumns,
		GenresPolicy: policy,
	}); err != nil {
		fmt.Fprint(out, core.RenderHistory(ds.History()), "\n")
		return core.NewUserError(err)
	}

	// Reports always run; with "-o -" only their log lines (on stderr) show.
	unique, uniqueOK := ds.UniqueCount("")
	average, averageOK := ds.AverageByColumn("")
	years, yearsOK := ds.MoviesPerYear("")

	if cfg.Output.Path == "-" {
		if err := ds.WriteJSON(out, orient); err != nil {
			return core.NewUserError(err)
		}
		fmt.Fprintln(out)
		return nil
	}

	fmt.Fprintln(out, core.RenderHistory(ds.History()))
	fmt.Fprintln(out, ds.Summary().Render())

	results := [][2]string{
		{"Rows loaded", strconv.Itoa(loaded)},
		{"Rows kept", strconv.Itoa(ds.Len())},
		{"Unique movies", reportValue(strconv.Itoa(unique), uniqueOK)},
		{"Average vote", reportValue(strconv.FormatFloat(average, 'f', 2, 64), averageOK)},
	}
	fmt.Fprintln(out, core.RenderPairs("Report", "Value", results))
	if yearsOK {
		fmt.Fprintln(out, core.RenderYearCounts(years))
	}

	if err := ds.SaveJSON(cfg.Output.Path, orient); err != nil {
		return core.NewUserError(err)
	}
	fmt.Fprintf(out, "Wrote %d rows to %s (%s)\n", ds.Len(), cfg.Output.Path, orient)
	return nil
}

func reportValue(v string, ok bool) string {
	if !ok {
		return "n/a"
	}
	return v
}
