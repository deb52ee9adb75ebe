package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/remp2020/crm-segment-module/internal/catalog"
	"github.com/remp2020/crm-segment-module/internal/config"
	"github.com/remp2020/crm-segment-module/internal/criteria"
	"github.com/remp2020/crm-segment-module/internal/database"
	"github.com/remp2020/crm-segment-module/internal/segment"
	"github.com/remp2020/crm-segment-module/internal/service"
	"github.com/remp2020/crm-segment-module/internal/store"
	"github.com/remp2020/crm-segment-module/internal/validator"
)

// AppFs is the filesystem input files and catalog directories are read from.
var AppFs = afero.NewOsFs()

// app is the wired application behind every command that touches a database.
type app struct {
	cfg      *config.Config
	store    *store.Store
	target   *sql.DB
	registry *criteria.Storage
	service  *service.Service
}

// loadConfig reads the configuration named by --config.
func loadConfig(opts *RootOptions) (*config.Config, error) {
	cfg, err := config.NewLoader(AppFs).Load(opts.Config)
	if err != nil {
		return nil, &setupError{code: ErrCodeConfig, err: err}
	}
	return cfg, nil
}

// openApp loads the configuration, opens the segment store and the target
// database, and builds the criteria registry and the service.
func openApp(ctx context.Context, opts *RootOptions) (*app, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}

	cat, err := loadCatalog(cfg)
	if err != nil {
		return nil, &setupError{code: ErrCodeCatalog, err: err}
	}

	st, err := store.Open(cfg.StorePath)
	if err != nil {
		return nil, &setupError{code: ErrCodeDatabase, err: fmt.Errorf("open segment store: %w", err)}
	}

	target, err := database.Open(ctx, cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		st.Close()
		return nil, &setupError{code: ErrCodeDatabase, err: fmt.Errorf("open target database: %w", err)}
	}

	registry := criteria.NewStorage()
	cat.Register(registry)
	if cfg.NestingEnabled {
		for _, table := range registry.Tables() {
			registry.Register(table, segment.CriteriaKey, segment.NewSegmentCriteria(table, st))
		}
	}

	svc := service.New(st, target, registry,
		service.WithValidator(validator.New(cfg.ForbiddenTables...)),
		service.WithMaxDepth(cfg.NestingMaxDepth),
		service.WithStatementTimeout(cfg.StatementTimeout),
		service.WithSlowThreshold(cfg.SlowRecalculateThreshold),
	)

	return &app{
		cfg:      cfg,
		store:    st,
		target:   target,
		registry: registry,
		service:  svc,
	}, nil
}

func loadCatalog(cfg *config.Config) (*catalog.Catalog, error) {
	if cfg.CatalogDir == "" {
		return catalog.Default()
	}
	return catalog.LoadFS(AppFs, cfg.CatalogDir)
}

// Close releases both databases.
func (a *app) Close() error {
	return errors.Join(a.target.Close(), a.store.Close())
}

// withApp opens the application for the duration of fn and reports any
// setup failure through the formatter.
func withApp(cmd *cobra.Command, opts *RootOptions, fn func(*app, *OutputFormatter) error) error {
	formatter := newFormatter(cmd, opts)
	a, err := openApp(cmd.Context(), opts)
	if err != nil {
		return fail(formatter, err)
	}
	defer a.Close()

	formatter.VerboseLog("store: %s, target: %s", a.cfg.StorePath, a.cfg.DatabaseDriver)
	return fn(a, formatter)
}

// readInput returns the content named by src: "-" reads stdin, a value
// starting with "{" is taken literally, anything else is a file path.
func readInput(cmd *cobra.Command, src string) ([]byte, error) {
	switch {
	case src == "":
		return nil, nil
	case src == "-":
		return io.ReadAll(cmd.InOrStdin())
	case strings.HasPrefix(strings.TrimSpace(src), "{"):
		return []byte(src), nil
	}
	data, err := afero.ReadFile(AppFs, src)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", src, err)
	}
	return data, nil
}

// splitList splits a comma-separated flag value, dropping blanks.
func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
