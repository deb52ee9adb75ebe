package cli

import (
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/remp2020/crm-segment-module/internal/criteria"
	"github.com/remp2020/crm-segment-module/internal/model"
)

// NewCriteriaCommand creates the criteria command.
func NewCriteriaCommand(rootOpts *RootOptions) *cobra.Command {
	var table string

	cmd := &cobra.Command{
		Use:   "criteria",
		Short: "List the criteria available per table",
		Long: `List the criteria available per table with their params and the
fields each table exposes.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, rootOpts, func(a *app, formatter *OutputFormatter) error {
				blueprint, err := a.registry.Blueprint(cmd.Context())
				if err != nil {
					return fail(formatter, err)
				}
				if table != "" {
					blueprint = slices.DeleteFunc(blueprint, func(tb criteria.TableBlueprint) bool {
						return tb.Table != table
					})
					if len(blueprint) == 0 {
						return fail(formatter, &criteria.EmptyCriteriaError{Table: table})
					}
				}
				if formatter.JSON() {
					return formatter.Success(map[string]interface{}{"blueprint": blueprint})
				}
				outputBlueprint(formatter, blueprint)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&table, "table", "t", "", "only list criteria of this table")

	return cmd
}

func outputBlueprint(formatter *OutputFormatter, blueprint []criteria.TableBlueprint) {
	for _, tb := range blueprint {
		fmt.Fprintf(formatter.Writer, "%s (fields: %s)\n", tb.Table, strings.Join(tb.Fields, ", "))
		for _, c := range tb.Criteria {
			keys := make([]string, 0, len(c.Params))
			for k := range c.Params {
				keys = append(keys, k)
			}
			slices.Sort(keys)
			fmt.Fprintf(formatter.Writer, "  %s: %s %s\n", c.Key, c.Label, dim("["+strings.Join(keys, ", ")+"]"))
		}
		fmt.Fprintln(formatter.Writer)
	}
}

// RelatedOptions holds flags for the related command.
type RelatedOptions struct {
	*RootOptions
	Table    string
	Criteria string
}

// NewRelatedCommand creates the related command.
func NewRelatedCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RelatedOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "related",
		Short: "Find stored segments whose criteria cover a criteria tree",
		Long: `Find stored criteria segments of a table whose leaves cover every leaf
of the given tree. At most five segments are listed.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRelated(opts, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Table, "table", "t", "", "table the criteria apply to (required)")
	cmd.Flags().StringVar(&opts.Criteria, "criteria", "-", "criteria tree: file, - for stdin, or inline JSON")
	_ = cmd.MarkFlagRequired("table")

	return cmd
}

// RelatedSegment is one entry of the related command payload.
type RelatedSegment struct {
	ID    int64  `json:"id"`
	Code  string `json:"code"`
	Name  string `json:"name"`
	Count int64  `json:"cache_count"`
}

func runRelated(opts *RelatedOptions, cmd *cobra.Command) error {
	return withApp(cmd, opts.RootOptions, func(a *app, formatter *OutputFormatter) error {
		tree, err := readInput(cmd, opts.Criteria)
		if err != nil {
			return fail(formatter, err)
		}
		segments, err := a.service.Related(cmd.Context(), opts.Table, tree)
		if err != nil {
			return fail(formatter, err)
		}

		related := relatedSegments(segments)
		if formatter.JSON() {
			return formatter.Success(map[string]interface{}{"segments": related})
		}
		if len(related) == 0 {
			fmt.Fprintln(formatter.Writer, "No related segments")
			return nil
		}
		for _, r := range related {
			fmt.Fprintf(formatter.Writer, "%s\t%s\t%d\n", r.Code, r.Name, r.Count)
		}
		return nil
	})
}

func relatedSegments(segments []model.Segment) []RelatedSegment {
	out := make([]RelatedSegment, 0, len(segments))
	for _, s := range segments {
		out = append(out, RelatedSegment{ID: s.ID, Code: s.Code, Name: s.Name, Count: s.CacheCount})
	}
	return out
}
