package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidSelectPasses(t *testing.T) {
	assert.NoError(t, New().Validate("SELECT * FROM users"))
}

func TestForbiddenOperations(t *testing.T) {
	tests := []struct {
		name string
		sql  string
		op   string
	}{
		{"insert", `INSERT INTO users (name) VALUES ("John")`, "INSERT"},
		{"update", `UPDATE users SET name = "John" WHERE id = 1`, "UPDATE"},
		{"delete", `DELETE FROM users WHERE id = 1`, "DELETE"},
		{"lowercase", `select 1; delete from users`, "DELETE"},
		{"multiline", "SELECT 1;\nUPDATE\n  users\nSET active = 0", "UPDATE"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New().Validate(tt.sql)
			require.Error(t, err)
			assert.True(t, IsValidationError(err))
			assert.Equal(t, "Query contains forbidden operation: "+tt.op+".", err.Error())
		})
	}
}

func TestColumnsNamedLikeKeywordsPass(t *testing.T) {
	v := New()
	assert.NoError(t, v.Validate("SELECT last_update, deleted_from FROM users"))
	assert.NoError(t, v.Validate("SELECT id FROM users WHERE last_update > '2024-01-01'"))
}

func TestForbiddenTables(t *testing.T) {
	tests := []struct {
		name      string
		forbidden []string
		sql       string
		table     string
	}{
		{"from", []string{"secret_table"}, "SELECT * FROM secret_table", "secret_table"},
		{"join", []string{"forbidden_table"}, "SELECT * FROM users JOIN forbidden_table ON users.id = forbidden_table.user_id", "forbidden_table"},
		{"multiple", []string{"table1", "table2"}, "SELECT * FROM table2", "table2"},
		{"case insensitive", []string{"SeCrEt_TaBlE"}, "select * from secret_table", "SeCrEt_TaBlE"},
		{"backtick quoted", []string{"forbidden_table"}, "SELECT * FROM `forbidden_table`", "forbidden_table"},
		{"double quoted", []string{"forbidden_table"}, `SELECT * FROM "forbidden_table"`, "forbidden_table"},
		{"trimmed name", []string{"  secret_table "}, "SELECT * FROM secret_table", "secret_table"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New(tt.forbidden...).Validate(tt.sql)
			require.Error(t, err)
			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.table, ve.Table)
			assert.Equal(t, "Query contains forbidden table: "+tt.table+".", err.Error())
		})
	}
}

func TestColumnSameAsForbiddenTableNamePasses(t *testing.T) {
	v := New("forbidden_table")
	assert.NoError(t, v.Validate("SELECT forbidden_table FROM users;"))
}

func TestTablePrefixIsNotForbidden(t *testing.T) {
	v := New("secret")
	assert.NoError(t, v.Validate("SELECT * FROM secret_archive"))
}

func TestAddForbiddenTables(t *testing.T) {
	v := New()
	v.AddForbiddenTables("a", "", "  ", "b")
	assert.Equal(t, []string{"a", "b"}, v.ForbiddenTables())

	assert.Error(t, v.Validate("SELECT * FROM b"))
}
