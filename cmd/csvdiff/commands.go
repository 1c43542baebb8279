package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/csvdiff/internal/core"
	"github.com/JonMunkholm/csvdiff/internal/watch"
)

func newColumnsCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "columns BEFORE AFTER",
		Short: "List the columns of both files and the key candidates they share",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := opts.request()
			if err != nil {
				return err
			}
			svc, err := opts.service()
			if err != nil {
				return err
			}
			defer svc.Store().Close()

			cols, err := svc.ColumnsFiles(cmd.Context(), args[0], args[1], req)
			if err != nil {
				return err
			}
			return writeColumns(cmd.OutOrStdout(), opts.format, cols)
		},
	}
	addLoadFlags(cmd, opts)
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json")
	return cmd
}

func writeColumns(w io.Writer, format string, cols core.Columns) error {
	if strings.EqualFold(format, "json") {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(cols)
	}
	fmt.Fprintf(w, "before: %s\n", strings.Join(cols.Before, ", "))
	fmt.Fprintf(w, "after:  %s\n", strings.Join(cols.After, ", "))
	fmt.Fprintf(w, "common: %s\n", strings.Join(cols.Common, ", "))
	return nil
}

func newCompareCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compare BEFORE AFTER",
		Short: "Compare two CSV files by a key column",
		Example: `  csvdiff compare old.csv new.csv --key id
  csvdiff compare old.csv.gz new.csv.gz -k sku --ignore updated_at -o diff.html
  csvdiff compare a.csv b.csv -k id --exit-code --format json`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := opts.request()
			if err != nil {
				return err
			}
			if _, err := opts.reportFormat(); err != nil {
				return err
			}
			svc, err := opts.service()
			if err != nil {
				return err
			}
			defer svc.Store().Close()

			c, err := svc.CompareFiles(cmd.Context(), args[0], args[1], req)
			if err != nil {
				return err
			}
			if err := opts.writeReport(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), c); err != nil {
				return err
			}
			if opts.store != "" {
				fmt.Fprintf(cmd.ErrOrStderr(), "saved as %s\n", c.ID)
			}
			if opts.exitCode && c.Result.Summary().HasDifferences() {
				return errDifferences
			}
			return nil
		},
	}
	addCompareFlags(cmd, opts)
	addLoadFlags(cmd, opts)
	addOutputFlags(cmd, opts)
	cmd.Flags().BoolVar(&opts.exitCode, "exit-code", false, "Exit with status 1 when the files differ")
	return cmd
}

func newWatchCmd(opts *options) *cobra.Command {
	var debounce string
	cmd := &cobra.Command{
		Use:   "watch BEFORE AFTER",
		Short: "Compare two CSV files and compare again whenever either changes",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := opts.request()
			if err != nil {
				return err
			}
			if _, err := opts.reportFormat(); err != nil {
				return err
			}
			wait, err := parseDebounce(debounce)
			if err != nil {
				return err
			}
			svc, err := opts.service()
			if err != nil {
				return err
			}
			defer svc.Store().Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			runOnce := func() {
				c, err := svc.CompareFiles(ctx, args[0], args[1], req)
				if err != nil {
					fmt.Fprintln(cmd.ErrOrStderr(), "csvdiff:", describe(err))
					return
				}
				if err := opts.writeReport(ctx, cmd.OutOrStdout(), cmd.ErrOrStderr(), c); err != nil {
					fmt.Fprintln(cmd.ErrOrStderr(), "csvdiff:", describe(err))
				}
			}

			w, err := watch.New(args, wait)
			if err != nil {
				return err
			}
			defer w.Close()

			runOnce()
			fmt.Fprintf(cmd.ErrOrStderr(), "watching %s and %s (Ctrl-C to stop)\n", args[0], args[1])
			return w.Run(ctx, func(changed []string) {
				slog.Info("files changed", "files", changed)
				fmt.Fprintln(cmd.OutOrStdout())
				runOnce()
			})
		},
	}
	addCompareFlags(cmd, opts)
	addLoadFlags(cmd, opts)
	addOutputFlags(cmd, opts)
	cmd.Flags().StringVar(&debounce, "debounce", watch.DefaultDebounce.String(), "Quiet period after a change before comparing again")
	return cmd
}

func newHistoryCmd(opts *options) *cobra.Command {
	var limit int
	var format string
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List saved comparisons, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := opts.requireStore(); err != nil {
				return err
			}
			svc, err := opts.service()
			if err != nil {
				return err
			}
			defer svc.Store().Close()

			infos, err := svc.List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			return writeHistory(cmd.OutOrStdout(), format, infos)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Number of comparisons to list")
	cmd.Flags().StringVarP(&format, "format", "f", "text", "Output format: text, json")
	return cmd
}

func writeHistory(w io.Writer, format string, infos []core.ComparisonInfo) error {
	if strings.EqualFold(format, "json") {
		if infos == nil {
			infos = []core.ComparisonInfo{}
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(infos)
	}
	if len(infos) == 0 {
		fmt.Fprintln(w, "no saved comparisons")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCREATED\tBEFORE\tAFTER\tKEY\tADDED\tREMOVED\tCHANGED")
	for _, info := range infos {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			info.ID, humanize.Time(info.CreatedAt), info.BeforeName, info.AfterName, info.KeyColumn,
			humanize.Comma(int64(info.Summary.Added)),
			humanize.Comma(int64(info.Summary.Removed)),
			humanize.Comma(int64(info.Summary.Changed)))
	}
	return tw.Flush()
}

func newShowCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show ID",
		Short: "Print the report of a saved comparison",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.requireStore(); err != nil {
				return err
			}
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("%w: %q", core.ErrNotFound, args[0])
			}
			svc, err := opts.service()
			if err != nil {
				return err
			}
			defer svc.Store().Close()

			c, err := svc.Get(cmd.Context(), id)
			if err != nil {
				return err
			}
			return opts.writeReport(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), c)
		},
	}
	addOutputFlags(cmd, opts)
	return cmd
}

// parseDebounce accepts a Go duration such as 500ms or 2s.
func parseDebounce(s string) (wait time.Duration, err error) {
	wait, err = time.ParseDuration(s)
	if err != nil || wait < 0 {
		return 0, fmt.Errorf("invalid --debounce %q", s)
	}
	return wait, nil
}
