package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/remp2020/crm-segment-module/internal/model"
	"github.com/remp2020/crm-segment-module/internal/service"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Table    string
	Criteria string
	Fields   string
}

// CompileOutput is the compile command payload.
type CompileOutput struct {
	Name   string   `json:"name"`
	Fields []string `json:"fields"`
	Query  string   `json:"query"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile",
		Short: "Compile a criteria tree into a segment query template",
		Long: `Compile a criteria tree into a segment query template.

The tree is read from --criteria: a file path, "-" for stdin or inline JSON.
The generated name, the selected fields and the template are printed.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Table, "table", "t", "", "table the criteria apply to (required)")
	cmd.Flags().StringVar(&opts.Criteria, "criteria", "-", "criteria tree: file, - for stdin, or inline JSON")
	cmd.Flags().StringVar(&opts.Fields, "fields", "", "comma-separated fields overriding the tree's fields")
	_ = cmd.MarkFlagRequired("table")

	return cmd
}

func runCompile(opts *CompileOptions, cmd *cobra.Command) error {
	return withApp(cmd, opts.RootOptions, func(a *app, formatter *OutputFormatter) error {
		tree, err := readInput(cmd, opts.Criteria)
		if err != nil {
			return fail(formatter, err)
		}
		var fields []string
		if opts.Fields != "" {
			fields = splitList(opts.Fields)
		}

		compiled, err := a.service.Compile(cmd.Context(), opts.Table, tree, fields)
		if err != nil {
			return fail(formatter, err)
		}
		out := CompileOutput{Name: compiled.Name, Fields: compiled.Fields, Query: compiled.Query}

		if formatter.JSON() {
			return formatter.Success(out)
		}
		formatter.Done("Compiled %q", out.Name)
		fmt.Fprintf(formatter.Writer, "\nFields: %s\n\n%s\n", strings.Join(out.Fields, ", "), out.Query)
		return nil
	})
}

// SaveOptions holds flags for the save command.
type SaveOptions struct {
	*RootOptions
	ID       int64
	Name     string
	Code     string
	Table    string
	Group    string
	Criteria string
	Fields   string
	Note     string
}

// NewSaveCommand creates the save command.
func NewSaveCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SaveOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "save",
		Short: "Create or update a segment from a criteria tree",
		Long: `Create or update a segment from a criteria tree.

The compiled query is validated and simulated before it is stored. Without
--id a new segment is created; its code is generated from the name unless
--code is given.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSave(opts, cmd)
		},
	}

	cmd.Flags().Int64Var(&opts.ID, "id", 0, "id of the segment to update")
	cmd.Flags().StringVar(&opts.Name, "name", "", "segment name (generated from the criteria when empty)")
	cmd.Flags().StringVar(&opts.Code, "code", "", "segment code (generated from the name when empty)")
	cmd.Flags().StringVarP(&opts.Table, "table", "t", "", "table the criteria apply to (required)")
	cmd.Flags().StringVarP(&opts.Group, "group", "g", "", "segment group code (required)")
	cmd.Flags().StringVar(&opts.Criteria, "criteria", "-", "criteria tree: file, - for stdin, or inline JSON")
	cmd.Flags().StringVar(&opts.Fields, "fields", "", "comma-separated fields overriding the tree's fields")
	cmd.Flags().StringVar(&opts.Note, "note", "", "free-form note")
	_ = cmd.MarkFlagRequired("table")
	_ = cmd.MarkFlagRequired("group")

	return cmd
}

func runSave(opts *SaveOptions, cmd *cobra.Command) error {
	return withApp(cmd, opts.RootOptions, func(a *app, formatter *OutputFormatter) error {
		tree, err := readInput(cmd, opts.Criteria)
		if err != nil {
			return fail(formatter, err)
		}
		req := service.SegmentRequest{
			ID:        opts.ID,
			Name:      opts.Name,
			Code:      opts.Code,
			TableName: opts.Table,
			GroupCode: opts.Group,
			Criteria:  json.RawMessage(tree),
			Note:      opts.Note,
		}
		if opts.Fields != "" {
			req.Fields = splitList(opts.Fields)
		}

		seg, err := a.service.CreateOrUpdate(cmd.Context(), req)
		if err != nil {
			return fail(formatter, err)
		}
		return outputSegment(formatter, seg, opts.ID == 0)
	})
}

func outputSegment(formatter *OutputFormatter, seg model.Segment, created bool) error {
	if formatter.JSON() {
		return formatter.Success(seg)
	}
	verb := "Updated"
	if created {
		verb = "Created"
	}
	formatter.Done("%s segment %s (id %d)", verb, seg.Code, seg.ID)
	fmt.Fprintf(formatter.Writer, "  name:   %s\n  table:  %s\n  fields: %s\n", seg.Name, seg.TableName, seg.Fields)
	return nil
}
