package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/remp2020/crm-segment-module/internal/model"
)

const groupColumns = `id, name, code, sorting, created_at`

// AddGroup inserts a segment group and returns it with ID and CreatedAt set.
func (s *Store) AddGroup(ctx context.Context, g model.Group) (model.Group, error) {
	created := s.timestamp()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO segment_groups (name, code, sorting, created_at)
		VALUES (?, ?, ?, ?)
	`, g.Name, g.Code, g.Sorting, created)
	if err != nil {
		if isUniqueViolation(err) {
			return model.Group{}, fmt.Errorf("add group %s: %w", g.Code, ErrDuplicateCode)
		}
		return model.Group{}, fmt.Errorf("add group %s: %w", g.Code, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.Group{}, fmt.Errorf("add group %s: %w", g.Code, err)
	}
	return s.FindGroupByID(ctx, id)
}

// FindGroupByCode returns the group with the given code.
func (s *Store) FindGroupByCode(ctx context.Context, code string) (model.Group, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+groupColumns+` FROM segment_groups WHERE code = ?`, code)
	g, err := scanGroup(row)
	if err != nil {
		return model.Group{}, fmt.Errorf("group %s: %w", code, err)
	}
	return g, nil
}

// FindGroupByID returns the group with the given id.
func (s *Store) FindGroupByID(ctx context.Context, id int64) (model.Group, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+groupColumns+` FROM segment_groups WHERE id = ?`, id)
	g, err := scanGroup(row)
	if err != nil {
		return model.Group{}, fmt.Errorf("group %d: %w", id, err)
	}
	return g, nil
}

// AllGroups returns every group ordered by sorting, then name.
func (s *Store) AllGroups(ctx context.Context) ([]model.Group, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+groupColumns+` FROM segment_groups
		ORDER BY sorting ASC, name ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query groups: %w", err)
	}
	defer rows.Close()

	groups := []model.Group{}
	for rows.Next() {
		g, err := scanGroup(rows)
		if err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate groups: %w", err)
	}
	return groups, nil
}

func scanGroup(sc scanner) (model.Group, error) {
	var (
		g       model.Group
		created string
	)
	if err := sc.Scan(&g.ID, &g.Name, &g.Code, &g.Sorting, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Group{}, model.ErrNotFound
		}
		return model.Group{}, fmt.Errorf("scan group: %w", err)
	}
	t, err := parseTime(created)
	if err != nil {
		return model.Group{}, err
	}
	g.CreatedAt = t
	return g, nil
}
