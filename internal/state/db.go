package state

import (
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/wcrbrm/traefik-guard/internal/engine"
	"github.com/wcrbrm/traefik-guard/internal/rule"

	_ "github.com/go-sql-driver/mysql"
)

// FromDSN loads every group from a MariaDB table instead of the rules
// directory. Rows carry one rule line each:
//
//	CREATE TABLE guard_rules (
//	    group_name VARCHAR(64) NOT NULL,
//	    position   INT NOT NULL,
//	    rule       TEXT NOT NULL
//	);
//
// Unparsable rows are logged and skipped. The returned service has no
// storage root, mutations stay in memory only.
func FromDSN(dsn string) (*Service, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("connecting to rules database: %w", err)
	}

	rows, err := db.Query("SELECT group_name, rule FROM guard_rules ORDER BY group_name, position")
	if err != nil {
		return nil, fmt.Errorf("loading rules: %w", err)
	}
	defer rows.Close()

	s := New("")
	for rows.Next() {
		var name, line string
		if err := rows.Scan(&name, &line); err != nil {
			return nil, err
		}
		r, err := rule.Parse(line)
		if err != nil {
			slog.Warn("skipping rule", "group", name, "line", line, "error", err)
			continue
		}
		g, ok := s.groups[name]
		if !ok {
			g = engine.NewGroup(name)
			s.groups[name] = g
		}
		g.Add(r)
	}
	return s, rows.Err()
}
