package testutil

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"
)

// User is a row of the users fixture table.
type User struct {
	Email  string
	Active bool
}

const usersSchema = `
CREATE TABLE users (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    email TEXT NOT NULL UNIQUE,
    active INTEGER NOT NULL DEFAULT 1,
    created_at TEXT NOT NULL DEFAULT '2024-01-01 00:00:00'
);

CREATE TABLE orders (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    user_id INTEGER NOT NULL REFERENCES users(id),
    amount REAL NOT NULL,
    status TEXT NOT NULL
);
`

// UsersDB opens a fresh SQLite database holding the users and orders
// fixture tables. It is closed when the test ends.
func UsersDB(t *testing.T) *sql.DB {
	t.Helper()
	return UsersDBAt(t, filepath.Join(t.TempDir(), "target.db"))
}

// UsersDBAt is UsersDB with the database file at path.
func UsersDBAt(t *testing.T, path string) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(usersSchema)
	require.NoError(t, err)
	return db
}

// SeedUsers inserts users in order and returns their ids keyed by email.
func SeedUsers(t *testing.T, db *sql.DB, users ...User) map[string]int64 {
	t.Helper()
	ids := make(map[string]int64, len(users))
	for _, u := range users {
		res, err := db.Exec(`INSERT INTO users (email, active) VALUES (?, ?)`, u.Email, u.Active)
		require.NoError(t, err)
		id, err := res.LastInsertId()
		require.NoError(t, err)
		ids[u.Email] = id
	}
	return ids
}

// SeedOrder inserts an order for userID.
func SeedOrder(t *testing.T, db *sql.DB, userID int64, amount float64, status string) {
	t.Helper()
	_, err := db.Exec(`INSERT INTO orders (user_id, amount, status) VALUES (?, ?, ?)`, userID, amount, status)
	require.NoError(t, err)
}

// Emails maps short names to addresses at example.com: "a" -> "a@example.com".
func Emails(names ...string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = fmt.Sprintf("%s@example.com", n)
	}
	return out
}

// StandardUsers returns the a..f active and x, y, z inactive fixture.
func StandardUsers() []User {
	var users []User
	for _, e := range Emails("a", "b", "c", "d", "e", "f") {
		users = append(users, User{Email: e, Active: true})
	}
	for _, e := range Emails("x", "y", "z") {
		users = append(users, User{Email: e, Active: false})
	}
	return users
}
