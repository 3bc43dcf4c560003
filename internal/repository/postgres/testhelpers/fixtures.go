package testhelpers

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
)

// LoadFixtures выполняет SQL-файлы фикстур по порядку
func LoadFixtures(db *sql.DB, fixturesPath string, files []string) error {
	for _, file := range files {
		content, err := os.ReadFile(filepath.Join(fixturesPath, file))
		if err != nil {
			return fmt.Errorf("read fixture %s: %w", file, err)
		}
		if _, err := db.Exec(string(content)); err != nil {
			return fmt.Errorf("load fixture %s: %w", file, err)
		}
	}
	return nil
}

// CountRows возвращает число строк в таблице
func CountRows(db *sql.DB, table string) (int, error) {
	var n int
	err := db.QueryRowContext(context.Background(),
		fmt.Sprintf("SELECT COUNT(*) FROM %s", table)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count rows in %s: %w", table, err)
	}
	return n, nil
}
