// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// CheckMode selects the integrity pragma.
type CheckMode string

const (
	// QuickCheck skips index content verification; fast enough for every open.
	QuickCheck CheckMode = "quick_check"
	// FullCheck runs integrity_check.
	FullCheck CheckMode = "integrity_check"
)

// CorruptionError lists the diagnostics SQLite reported.
type CorruptionError struct {
	Mode   CheckMode
	Issues []string
}

func (e *CorruptionError) Error() string {
	return fmt.Sprintf("sqlite %s failed: %s", e.Mode, strings.Join(e.Issues, "; "))
}

// CheckIntegrity returns nil when the pragma reports exactly "ok", a
// *CorruptionError when it reports anything else.
func CheckIntegrity(ctx context.Context, db *sql.DB, mode CheckMode) error {
	rows, err := db.QueryContext(ctx, "PRAGMA "+string(mode))
	if err != nil {
		return fmt.Errorf("sqlite: %s: %w", mode, err)
	}
	defer rows.Close()

	var issues []string
	for rows.Next() {
		var line string
		if err := rows.Scan(&line); err != nil {
			return fmt.Errorf("sqlite: scan %s row: %w", mode, err)
		}
		issues = append(issues, line)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("sqlite: %s rows: %w", mode, err)
	}

	switch {
	case len(issues) == 1 && strings.EqualFold(issues[0], "ok"):
		return nil
	case len(issues) == 0:
		issues = []string{"no rows returned"}
	}
	return &CorruptionError{Mode: mode, Issues: issues}
}
