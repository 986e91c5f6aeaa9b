package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// Alias is a short local name for a box id. Favourites themselves live on the
// server; aliases only save typing ids on the command line.
type Alias struct {
	Name  string `json:"name"`
	BoxID int64  `json:"box_id"`
}

func ensureAliasesSchema(db *sql.DB) error {
	createTable := `
CREATE TABLE IF NOT EXISTS aliases (
  name TEXT PRIMARY KEY COLLATE NOCASE,
  box_id INTEGER NOT NULL
);`
	if _, err := db.Exec(createTable); err != nil {
		return fmt.Errorf("create aliases table: %w", err)
	}
	if _, err := db.Exec(`CREATE INDEX IF NOT EXISTS aliases_box_id ON aliases(box_id);`); err != nil {
		return fmt.Errorf("create aliases index: %w", err)
	}
	return nil
}

// SetAlias points name at boxID, replacing whatever it named before.
func SetAlias(db *sql.DB, name string, boxID int64) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("alias is required")
	}
	_, err := db.Exec(`
INSERT INTO aliases (name, box_id) VALUES (?, ?)
ON CONFLICT(name) DO UPDATE SET box_id = excluded.box_id`, name, boxID)
	return err
}

// ResolveAlias looks name up without regard to case.
func ResolveAlias(db *sql.DB, name string) (int64, bool, error) {
	var boxID int64
	err := db.QueryRow("SELECT box_id FROM aliases WHERE name = ?", strings.TrimSpace(name)).Scan(&boxID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return boxID, true, nil
}

func ListAliases(db *sql.DB) ([]Alias, error) {
	rows, err := db.Query("SELECT name, box_id FROM aliases ORDER BY name COLLATE NOCASE")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	aliases := []Alias{}
	for rows.Next() {
		var alias Alias
		if err := rows.Scan(&alias.Name, &alias.BoxID); err != nil {
			return nil, err
		}
		aliases = append(aliases, alias)
	}
	return aliases, rows.Err()
}

// AliasesByBox groups alias names by the box they point at.
func AliasesByBox(db *sql.DB) (map[int64][]string, error) {
	aliases, err := ListAliases(db)
	if err != nil {
		return nil, err
	}
	byBox := make(map[int64][]string, len(aliases))
	for _, alias := range aliases {
		byBox[alias.BoxID] = append(byBox[alias.BoxID], alias.Name)
	}
	return byBox, nil
}

func RemoveAlias(db *sql.DB, name string) (bool, error) {
	res, err := db.Exec("DELETE FROM aliases WHERE name = ?", strings.TrimSpace(name))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// RemoveAliasesFor drops every alias of boxID and reports how many went.
func RemoveAliasesFor(db *sql.DB, boxID int64) (int64, error) {
	res, err := db.Exec("DELETE FROM aliases WHERE box_id = ?", boxID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
