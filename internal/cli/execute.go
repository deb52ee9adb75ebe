package cli

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/remp2020/crm-segment-module/internal/segment"
	"github.com/remp2020/crm-segment-module/internal/service"
)

// NewQueryCommand creates the query command.
func NewQueryCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "query <code>",
		Short: "Print the executable SQL of a stored segment",
		Long: `Print the executable SQL of a stored segment, with fields, table and
nested segments substituted.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, rootOpts, func(a *app, formatter *OutputFormatter) error {
				seg, err := a.service.Segment(cmd.Context(), args[0])
				if err != nil {
					return fail(formatter, err)
				}
				sql, err := seg.Query()
				if err != nil {
					return fail(formatter, err)
				}
				if formatter.JSON() {
					return formatter.Success(map[string]string{"code": args[0], "query": sql})
				}
				return formatter.Success(sql)
			})
		},
	}
}

// CountOptions holds flags for the count command.
type CountOptions struct {
	*RootOptions
	Table    string
	Criteria string
}

// NewCountCommand creates the count command.
func NewCountCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CountOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "count [code]",
		Short: "Count the rows of a stored segment or of an unsaved criteria tree",
		Long: `Count the rows of a stored segment, or of an unsaved criteria tree given
with --table and --criteria.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCount(opts, args, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Table, "table", "t", "", "table of the unsaved criteria tree")
	cmd.Flags().StringVar(&opts.Criteria, "criteria", "", "unsaved criteria tree: file, - for stdin, or inline JSON")

	return cmd
}

func runCount(opts *CountOptions, args []string, cmd *cobra.Command) error {
	return withApp(cmd, opts.RootOptions, func(a *app, formatter *OutputFormatter) error {
		ctx := cmd.Context()
		var (
			count int64
			err   error
		)
		switch {
		case len(args) == 1:
			var seg *segment.Segment
			if seg, err = a.service.Segment(ctx, args[0]); err == nil {
				count, err = seg.TotalCount(ctx)
			}
		case opts.Criteria != "":
			var tree []byte
			if tree, err = readInput(cmd, opts.Criteria); err == nil {
				count, err = a.service.Count(ctx, opts.Table, tree)
			}
		default:
			return usage(formatter, "a segment code or --criteria is required")
		}
		if err != nil {
			return fail(formatter, err)
		}

		if formatter.JSON() {
			return formatter.Success(map[string]int64{"count": count})
		}
		return formatter.Success(count)
	})
}

// NewIDsCommand creates the ids command.
func NewIDsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "ids <code>",
		Short:         "List the ids of a stored segment's rows",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, rootOpts, func(a *app, formatter *OutputFormatter) error {
				seg, err := a.service.Segment(cmd.Context(), args[0])
				if err != nil {
					return fail(formatter, err)
				}
				ids, err := seg.IDs(cmd.Context())
				if err != nil {
					return fail(formatter, err)
				}
				if formatter.JSON() {
					if ids == nil {
						ids = []int64{}
					}
					return formatter.Success(map[string]interface{}{"code": args[0], "ids": ids})
				}
				for _, id := range ids {
					fmt.Fprintln(formatter.Writer, id)
				}
				return nil
			})
		},
	}
}

// CheckOptions holds flags for the check command.
type CheckOptions struct {
	*RootOptions
	By string
}

// NewCheckCommand creates the check command.
func NewCheckCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CheckOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "check <code> <value>",
		Short: "Check whether a row belongs to a stored segment",
		Long: `Check whether a row belongs to a stored segment. The row is identified
by id or by email (--by). Exits with 1 when the row is not a member.`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.By, "by", service.ResolveByID, "resolver type (id|email)")

	return cmd
}

func runCheck(opts *CheckOptions, args []string, cmd *cobra.Command) error {
	return withApp(cmd, opts.RootOptions, func(a *app, formatter *OutputFormatter) error {
		code, value := args[0], args[1]
		in, err := a.service.Check(cmd.Context(), code, opts.By, value)
		if err != nil {
			return fail(formatter, err)
		}

		if formatter.JSON() {
			if err := formatter.Success(map[string]bool{"check": in}); err != nil {
				return err
			}
		} else if in {
			formatter.Done("%s %s is in segment %s", opts.By, value, code)
		} else {
			fmt.Fprintf(formatter.Writer, "%s %s %s is not in segment %s\n", failMark("✗"), opts.By, value, code)
		}
		if !in {
			return NewExitError(ExitFailure, "not a member")
		}
		return nil
	})
}

// NewSimulateCommand creates the simulate command.
func NewSimulateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "simulate <code>",
		Short: "Ask the target database to plan a stored segment's query",
		Long: `Ask the target database to plan a stored segment's query without
materializing rows. Fails when the query does not compile on the target.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, rootOpts, func(a *app, formatter *OutputFormatter) error {
				seg, err := a.service.Segment(cmd.Context(), args[0])
				if err != nil {
					return fail(formatter, err)
				}
				if err := seg.Simulate(cmd.Context()); err != nil {
					return fail(formatter, err)
				}
				if formatter.JSON() {
					return formatter.Success(map[string]string{"code": args[0]})
				}
				formatter.Done("Segment %s simulated", args[0])
				return nil
			})
		},
	}
}

// DumpOptions holds flags for the dump command.
type DumpOptions struct {
	*RootOptions
	PageSize int
}

// NewDumpCommand creates the dump command.
func NewDumpCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DumpOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "dump <code>",
		Short: "Print every row of a stored segment",
		Long: `Print every row of a stored segment, fetched page by page.

Text output is tab-separated with a header line; JSON output is one
object per line.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDump(opts, args, cmd)
		},
	}

	cmd.Flags().IntVar(&opts.PageSize, "page-size", -1, "rows per page, 0 for a single page (default: page_size setting)")

	return cmd
}

func runDump(opts *DumpOptions, args []string, cmd *cobra.Command) error {
	return withApp(cmd, opts.RootOptions, func(a *app, formatter *OutputFormatter) error {
		seg, err := a.service.Segment(cmd.Context(), args[0])
		if err != nil {
			return fail(formatter, err)
		}
		pageSize := opts.PageSize
		if pageSize < 0 {
			pageSize = a.cfg.PageSize
		}
		formatter.VerboseLog("dumping %s, page size %d", args[0], pageSize)

		enc := json.NewEncoder(formatter.Writer)
		var columns []string
		err = seg.Process(cmd.Context(), pageSize, func(row segment.Row) error {
			if formatter.JSON() {
				return enc.Encode(row)
			}
			if columns == nil {
				for col := range row {
					columns = append(columns, col)
				}
				slices.Sort(columns)
				fmt.Fprintln(formatter.Writer, strings.Join(columns, "\t"))
			}
			values := make([]string, len(columns))
			for i, col := range columns {
				values[i] = row.String(col)
			}
			_, err := fmt.Fprintln(formatter.Writer, strings.Join(values, "\t"))
			return err
		})
		if err != nil {
			return fail(formatter, err)
		}
		return nil
	})
}
