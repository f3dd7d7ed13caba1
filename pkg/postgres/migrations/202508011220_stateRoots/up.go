package _202508011220_stateRoots

import (
	"database/sql"

	"gorm.io/gorm"
)

type Migration struct {
}

func (m *Migration) Up(db *sql.DB, grm *gorm.DB) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS state_roots (
			height bigint not null,
			state_root varchar not null,
			created_at timestamp with time zone DEFAULT current_timestamp,
			unique(height)
		)`,
	}
	for _, query := range queries {
		if res := grm.Exec(query); res.Error != nil {
			return res.Error
		}
	}
	return nil
}

func (m *Migration) GetName() string {
	return "202508011220_stateRoots"
}
