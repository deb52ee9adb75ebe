package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/remp2020/crm-segment-module/internal/validator"
)

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	*RootOptions
	File string
}

// ValidateOutput is the validate command payload.
type ValidateOutput struct {
	Valid           bool     `json:"valid"`
	ForbiddenTables []string `json:"forbidden_tables"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate [sql]",
		Short: "Check a segment query for forbidden operations and tables",
		Long: `Check a segment query for forbidden operations and tables.

The query is given as the argument or read from --file ("-" for stdin).
Forbidden tables come from the forbidden_tables setting. Exits with 1
when the query is rejected.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(opts, args, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.File, "file", "f", "", "read the query from a file, - for stdin")

	return cmd
}

func runValidate(opts *ValidateOptions, args []string, cmd *cobra.Command) error {
	formatter := newFormatter(cmd, opts.RootOptions)

	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return fail(formatter, err)
	}

	var sql string
	switch {
	case len(args) == 1:
		sql = args[0]
	case opts.File != "":
		data, err := readInput(cmd, opts.File)
		if err != nil {
			return fail(formatter, err)
		}
		sql = string(data)
	}
	if strings.TrimSpace(sql) == "" {
		return usage(formatter, "a query argument or --file is required")
	}

	v := validator.New(cfg.ForbiddenTables...)
	if err := v.Validate(sql); err != nil {
		return reject(formatter, err)
	}

	out := ValidateOutput{Valid: true, ForbiddenTables: v.ForbiddenTables()}
	if formatter.JSON() {
		return formatter.Success(out)
	}
	formatter.Done("Query is valid")
	return nil
}
