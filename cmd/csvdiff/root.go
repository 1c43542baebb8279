package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/csvdiff/internal/compare"
	"github.com/JonMunkholm/csvdiff/internal/core"
	"github.com/JonMunkholm/csvdiff/internal/logging"
	"github.com/JonMunkholm/csvdiff/internal/report"
	"github.com/JonMunkholm/csvdiff/internal/store"
	"github.com/JonMunkholm/csvdiff/internal/table"
)

// errDifferences is returned by compare when --exit-code is set and the
// files differ.
var errDifferences = errors.New("files differ")

// options holds the flag values shared by the subcommands.
type options struct {
	// Comparison
	key          string
	duplicates   string
	ignore       string
	delimiter    string
	encoding     string
	trimSpace    bool
	nullTokens   string
	stripFormula bool
	workers      int

	// Output
	format   string
	limit    int
	out      string
	exitCode bool

	// Global
	store    string
	logLevel string
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "csvdiff",
		Short: "Compare two versions of a CSV file by a key column",
		Long: `csvdiff matches the rows of a before and an after CSV file by a key
column and reports added rows, removed rows and changed cells.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			// A .env file may set CSVDIFF_STORE; missing is fine
			_ = godotenv.Load()
			if opts.store == "" {
				opts.store = os.Getenv("CSVDIFF_STORE")
			}
			logging.SetupWriter(cmd.ErrOrStderr(), opts.logLevel, "text")
		},
	}

	root.PersistentFlags().StringVar(&opts.store, "store", "", "Bolt database file to save comparisons in (default: $CSVDIFF_STORE, none)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "Log level: debug, info, warn, error")

	root.AddCommand(
		newColumnsCmd(opts),
		newCompareCmd(opts),
		newWatchCmd(opts),
		newHistoryCmd(opts),
		newShowCmd(opts),
	)
	return root
}

// addCompareFlags registers the flags that shape a comparison.
func addCompareFlags(cmd *cobra.Command, opts *options) {
	f := cmd.Flags()
	f.StringVarP(&opts.key, "key", "k", "", "Key column that identifies each row (required)")
	f.StringVar(&opts.duplicates, "duplicates", "fail", "Duplicate key policy: fail, first, last")
	f.StringVar(&opts.ignore, "ignore", "", "Comma-separated columns to leave out of the comparison")
	f.IntVar(&opts.workers, "workers", 4, "Goroutines for the cell diff of large files")
	cmd.MarkFlagRequired("key")
}

// addLoadFlags registers the flags that control how files are read.
func addLoadFlags(cmd *cobra.Command, opts *options) {
	f := cmd.Flags()
	f.StringVarP(&opts.delimiter, "delimiter", "d", ",", "Field delimiter: a character, or tab, semicolon, pipe")
	f.StringVar(&opts.encoding, "encoding", "utf-8", "Character set: "+strings.Join(table.SupportedEncodings, ", "))
	f.BoolVar(&opts.trimSpace, "trim", false, "Trim spaces around cell values")
	f.StringVar(&opts.nullTokens, "null-tokens", "", `Comma-separated cell values to treat as empty; "pandas" adds NA, NaN, null and friends`)
	f.BoolVar(&opts.stripFormula, "strip-formula", false, `Unwrap Excel text formulas such as ="00123"`)
}

// addOutputFlags registers the report flags.
func addOutputFlags(cmd *cobra.Command, opts *options) {
	f := cmd.Flags()
	f.StringVarP(&opts.format, "format", "f", "", "Report format: text, json, csv, yaml, html (default: from --out, else text)")
	f.IntVar(&opts.limit, "limit", 0, "Show at most this many changed cells (0: all)")
	f.StringVarP(&opts.out, "out", "o", "", "Write the report to this file instead of stdout")
}

// request builds a comparison request from the flags.
func (o *options) request() (core.Request, error) {
	req := core.Request{
		Key:          o.key,
		TrimSpace:    o.trimSpace,
		StripFormula: o.stripFormula,
		NullTokens:   table.ParseNullTokens(o.nullTokens),
	}

	policy, err := compare.ParseDuplicatePolicy(o.duplicates)
	if err != nil {
		return req, err
	}
	req.Duplicates = policy

	if req.Delimiter, err = table.ParseDelimiter(o.delimiter); err != nil {
		return req, err
	}
	if err := table.CheckEncoding(o.encoding); err != nil {
		return req, err
	}
	req.Encoding = o.encoding

	for _, col := range strings.Split(o.ignore, ",") {
		if col = strings.TrimSpace(col); col != "" {
			req.Ignore = append(req.Ignore, col)
		}
	}
	return req, nil
}

// reportFormat resolves --format, inferring it from the --out extension
// when unset.
func (o *options) reportFormat() (report.Format, error) {
	if o.format != "" {
		return report.ParseFormat(o.format)
	}
	if ext := filepath.Ext(o.out); ext != "" {
		if f, err := report.ParseFormat(ext); err == nil {
			return f, nil
		}
	}
	return report.FormatText, nil
}

// service opens the store named by --store, or an in-memory one.
func (o *options) service() (*core.Service, error) {
	var st core.Store = store.NewMemory()
	if o.store != "" {
		b, err := store.OpenBolt(o.store)
		if err != nil {
			return nil, err
		}
		st = b
	}
	return core.NewService(st, core.NewLimiter(1, 0), core.Options{Workers: o.workers}), nil
}

// requireStore fails commands that only make sense with saved comparisons.
func (o *options) requireStore() error {
	if o.store == "" {
		return errors.New("no store: pass --store FILE.db or set CSVDIFF_STORE")
	}
	return nil
}

// writeReport renders c to --out or to stdout. A note naming the file goes
// to stderr so stdout stays empty when --out is set.
func (o *options) writeReport(ctx context.Context, stdout, stderr io.Writer, c *core.Comparison) error {
	format, err := o.reportFormat()
	if err != nil {
		return err
	}
	ropts := report.Options{Limit: o.limit}

	if o.out == "" {
		return report.Write(ctx, stdout, format, c, ropts)
	}

	f, err := os.Create(o.out)
	if err != nil {
		return err
	}
	if err := report.Write(ctx, f, format, c, ropts); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	fmt.Fprintf(stderr, "report written to %s\n", o.out)
	return nil
}
