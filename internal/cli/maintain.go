package cli

import (
	"fmt"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/remp2020/crm-segment-module/internal/model"
	"github.com/remp2020/crm-segment-module/internal/service"
)

// RecalculateOptions holds flags for the recalculate command.
type RecalculateOptions struct {
	*RootOptions
	Due bool
}

// RecalculationOutput is one entry of the recalculate command payload.
type RecalculationOutput struct {
	Code    string  `json:"code"`
	Count   int64   `json:"count"`
	Seconds float64 `json:"seconds"`
	Slow    bool    `json:"slow,omitempty"`
	Error   string  `json:"error,omitempty"`
}

// NewRecalculateCommand creates the recalculate command.
func NewRecalculateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RecalculateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "recalculate [code]",
		Short: "Refresh cached segment counts",
		Long: `Refresh cached segment counts.

With a code, that segment is counted. With --due, every segment whose
cached count is older than its periodicity is counted, shortest
periodicity first; a failing segment is reported and the run continues.
Exits with 1 when any segment failed.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRecalculate(opts, args, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Due, "due", false, "recalculate every segment that is due")

	return cmd
}

func runRecalculate(opts *RecalculateOptions, args []string, cmd *cobra.Command) error {
	if (len(args) == 1) == opts.Due {
		return usage(newFormatter(cmd, opts.RootOptions), "give either a segment code or --due")
	}

	return withApp(cmd, opts.RootOptions, func(a *app, formatter *OutputFormatter) error {
		ctx := cmd.Context()
		var results []service.Recalculation
		if opts.Due {
			var err error
			if results, err = a.service.RecalculateDue(ctx); err != nil && len(results) == 0 {
				return fail(formatter, err)
			}
		} else {
			r, err := a.service.Recalculate(ctx, args[0])
			if err != nil {
				return fail(formatter, err)
			}
			results = append(results, r)
		}

		out := make([]RecalculationOutput, 0, len(results))
		failed := 0
		for _, r := range results {
			o := RecalculationOutput{Code: r.Code, Count: r.Count, Seconds: r.Elapsed.Seconds(), Slow: r.Slow}
			if r.Err != nil {
				o.Error = r.Err.Error()
				failed++
			}
			out = append(out, o)
		}

		if formatter.JSON() {
			if err := formatter.Success(map[string]interface{}{"segments": out}); err != nil {
				return err
			}
		} else {
			outputRecalculations(formatter, out)
		}
		if failed > 0 {
			return NewExitError(ExitFailure, fmt.Sprintf("%d segment(s) failed", failed))
		}
		return nil
	})
}

func outputRecalculations(formatter *OutputFormatter, out []RecalculationOutput) {
	if len(out) == 0 {
		fmt.Fprintln(formatter.Writer, "No segments due")
		return
	}
	for _, o := range out {
		switch {
		case o.Error != "":
			fmt.Fprintf(formatter.Writer, "%s %s: %s\n", failMark("✗"), o.Code, o.Error)
		case o.Slow:
			fmt.Fprintf(formatter.Writer, "%s %s: %d (%.3fs, slow)\n", warnMark("!"), o.Code, o.Count, o.Seconds)
		default:
			formatter.Done("%s: %d (%.3fs)", o.Code, o.Count, o.Seconds)
		}
	}
}

// StatsOptions holds flags for the stats command.
type StatsOptions struct {
	*RootOptions
	From string
	To   string
}

// NewStatsCommand creates the stats command.
func NewStatsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &StatsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "stats <code>",
		Short: "Show the highest recorded count per day",
		Long: `Show the highest recorded count of a segment per day, oldest first.
--from and --to are inclusive dates in YYYY-MM-DD form.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStats(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.From, "from", "", "first day (YYYY-MM-DD)")
	cmd.Flags().StringVar(&opts.To, "to", "", "last day (YYYY-MM-DD)")

	return cmd
}

func runStats(opts *StatsOptions, args []string, cmd *cobra.Command) error {
	formatter := newFormatter(cmd, opts.RootOptions)
	from, err := parseDay(opts.From)
	if err != nil {
		return usage(formatter, fmt.Sprintf("invalid --from: %v", err))
	}
	to, err := parseDay(opts.To)
	if err != nil {
		return usage(formatter, fmt.Sprintf("invalid --to: %v", err))
	}
	if !to.IsZero() {
		to = to.AddDate(0, 0, 1)
	}

	return withApp(cmd, opts.RootOptions, func(a *app, formatter *OutputFormatter) error {
		values, err := a.service.DailyValues(cmd.Context(), args[0], from, to)
		if err != nil {
			return fail(formatter, err)
		}
		if formatter.JSON() {
			if values == nil {
				values = []model.DailyValue{}
			}
			return formatter.Success(map[string]interface{}{"code": args[0], "values": values})
		}
		for _, v := range values {
			fmt.Fprintf(formatter.Writer, "%s\t%d\n", v.Date, v.Count)
		}
		return nil
	})
}

func parseDay(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.DateOnly, raw)
}

// NewImportCommand creates the import command.
func NewImportCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Create or update raw SQL segments from a YAML file",
		Long: `Create or update raw SQL segments from a YAML file ("-" for stdin).

Segments are matched by code. Missing groups are created. Every query is
validated before anything is written.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, rootOpts, func(a *app, formatter *OutputFormatter) error {
				var result service.ImportResult
				var err error
				if args[0] == "-" {
					result, err = a.service.Import(cmd.Context(), cmd.InOrStdin())
				} else {
					var f afero.File
					if f, err = AppFs.Open(args[0]); err != nil {
						return fail(formatter, err)
					}
					defer f.Close()
					result, err = a.service.Import(cmd.Context(), f)
				}
				if err != nil {
					return fail(formatter, err)
				}

				if formatter.JSON() {
					return formatter.Success(map[string][]string{
						"created": nonNil(result.Created),
						"updated": nonNil(result.Updated),
					})
				}
				formatter.Done("Imported %d segment(s): %d created, %d updated",
					len(result.Created)+len(result.Updated), len(result.Created), len(result.Updated))
				return nil
			})
		},
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// NewRenameCommand creates the rename command.
func NewRenameCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "rename <code> <new-code>",
		Short: "Change the code of a segment",
		Long: `Change the code of a segment. Refused while other segments reference
the current code.`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, rootOpts, func(a *app, formatter *OutputFormatter) error {
				seg, err := a.store.FindByCode(cmd.Context(), args[0])
				if err != nil {
					return fail(formatter, fmt.Errorf("segment code [%s] does not exist: %w", args[0], err))
				}
				renamed, err := a.service.Rename(cmd.Context(), seg.ID, args[1])
				if err != nil {
					return fail(formatter, err)
				}
				if formatter.JSON() {
					return formatter.Success(renamed)
				}
				formatter.Done("Renamed %s to %s", args[0], renamed.Code)
				return nil
			})
		},
	}
}

// NewDeleteCommand creates the delete command.
func NewDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <code>",
		Short: "Soft-delete a segment",
		Long: `Soft-delete a segment, freeing its code. Refused while other segments
reference it.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, rootOpts, func(a *app, formatter *OutputFormatter) error {
				seg, err := a.store.FindByCode(cmd.Context(), args[0])
				if err != nil {
					return fail(formatter, fmt.Errorf("segment code [%s] does not exist: %w", args[0], err))
				}
				if err := a.service.Delete(cmd.Context(), seg.ID); err != nil {
					return fail(formatter, err)
				}
				if formatter.JSON() {
					return formatter.Success(map[string]string{"deleted": seg.Code})
				}
				formatter.Done("Deleted segment %s", seg.Code)
				return nil
			})
		},
	}
}

// NewLockCommand creates the lock command, or the unlock command when
// lock is false.
func NewLockCommand(rootOpts *RootOptions, lock bool) *cobra.Command {
	use, short, verb := "lock", "Freeze a segment's definition", "Locked"
	if !lock {
		use, short, verb = "unlock", "Allow a locked segment's definition to change", "Unlocked"
	}

	return &cobra.Command{
		Use:           use + " <code>",
		Short:         short,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, rootOpts, func(a *app, formatter *OutputFormatter) error {
				ctx := cmd.Context()
				seg, err := a.store.FindByCode(ctx, args[0])
				if err != nil {
					return fail(formatter, fmt.Errorf("segment code [%s] does not exist: %w", args[0], err))
				}
				if lock {
					err = a.store.Lock(ctx, seg.ID)
				} else {
					err = a.store.Unlock(ctx, seg.ID)
				}
				if err != nil {
					return fail(formatter, err)
				}
				if formatter.JSON() {
					return formatter.Success(map[string]interface{}{"code": seg.Code, "locked": lock})
				}
				formatter.Done("%s segment %s", verb, seg.Code)
				return nil
			})
		},
	}
}
