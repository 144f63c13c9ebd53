// Package sqlite stores instance snapshots in a SQLite database, one row per
// instance plus child tables for its pricing events, root bounds, variables
// and gap points.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/crimson-sun/pricelog/internal/model"
	"github.com/crimson-sun/pricelog/internal/output"
)

const schema = `
CREATE TABLE IF NOT EXISTS instances (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	instance_name TEXT NOT NULL,
	settings_name TEXT NOT NULL,
	status TEXT NOT NULL,
	file TEXT NOT NULL,
	lines INTEGER NOT NULL,
	diagnostics INTEGER NOT NULL,
	rounds INTEGER NOT NULL,
	anomalies INTEGER NOT NULL,
	gap_status TEXT NOT NULL,
	gap_direction TEXT NOT NULL,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_instances_name ON instances(instance_name, settings_name);

CREATE TABLE IF NOT EXISTS pricing_events (
	instance_id INTEGER NOT NULL REFERENCES instances(id),
	pos INTEGER NOT NULL,
	node INTEGER NOT NULL,
	round INTEGER NOT NULL,
	stab_round INTEGER NOT NULL,
	sequence INTEGER NOT NULL,
	prob INTEGER NOT NULL,
	elapsed REAL NOT NULL,
	vars INTEGER NOT NULL,
	farkas INTEGER NOT NULL,
	PRIMARY KEY (instance_id, pos)
);

CREATE TABLE IF NOT EXISTS root_bounds (
	instance_id INTEGER NOT NULL REFERENCES instances(id),
	pos INTEGER NOT NULL,
	iteration INTEGER NOT NULL,
	primal REAL NOT NULL,
	primal_known INTEGER NOT NULL,
	dual REAL NOT NULL,
	dual_known INTEGER NOT NULL,
	gap REAL NOT NULL,
	PRIMARY KEY (instance_id, pos)
);

CREATE TABLE IF NOT EXISTS variables (
	instance_id INTEGER NOT NULL REFERENCES instances(id),
	pos INTEGER NOT NULL,
	time REAL NOT NULL,
	incumbent INTEGER NOT NULL,
	root_lp INTEGER NOT NULL,
	PRIMARY KEY (instance_id, pos)
);

CREATE TABLE IF NOT EXISTS solution_times (
	instance_id INTEGER NOT NULL REFERENCES instances(id),
	kind TEXT NOT NULL,
	pos INTEGER NOT NULL,
	time REAL NOT NULL,
	PRIMARY KEY (instance_id, kind, pos)
);

CREATE TABLE IF NOT EXISTS gap_points (
	instance_id INTEGER NOT NULL REFERENCES instances(id),
	pos INTEGER NOT NULL,
	iteration INTEGER NOT NULL,
	round INTEGER NOT NULL,
	gap REAL NOT NULL,
	PRIMARY KEY (instance_id, pos)
);
`

const (
	timesIncumbent = "incumbent"
	timesRootLP    = "root_lp"
)

// Output writes each snapshot inside a single transaction.
type Output struct {
	db        *sql.DB
	mu        sync.Mutex
	verbosity output.Verbosity
}

// New opens (or creates) the database at path and ensures the schema.
func New(path string, verbosity output.Verbosity) (*Output, error) {
	db, err := open(path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite output: create schema: %w", err)
	}
	return &Output{db: db, verbosity: verbosity}, nil
}

func open(path string) (*sql.DB, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("sqlite output: create directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite output: open %s: %w", path, err)
	}
	// One connection keeps :memory: databases and write ordering consistent.
	db.SetMaxOpenConns(1)
	return db, nil
}

// Write stores the snapshot and all of its tables.
func (o *Output) Write(ctx context.Context, snap model.Snapshot) error {
	snap = output.FormatSnapshot(snap, o.verbosity)

	o.mu.Lock()
	defer o.mu.Unlock()

	tx, err := o.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite output: begin: %w", err)
	}
	if err := insert(ctx, tx, snap); err != nil {
		tx.Rollback()
		return fmt.Errorf("sqlite output: insert %s: %w", snap.Info.InstanceName, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite output: commit: %w", err)
	}
	return nil
}

func insert(ctx context.Context, tx *sql.Tx, snap model.Snapshot) error {
	info := snap.Info
	res, err := tx.ExecContext(ctx, `
		INSERT INTO instances (instance_name, settings_name, status, file, lines, diagnostics, rounds, anomalies, gap_status, gap_direction)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		info.InstanceName, info.SettingsName, info.Status.String(), info.File,
		info.Lines, info.Diagnostics, info.Rounds, info.Anomalies,
		snap.Gap.Status.String(), snap.Gap.Direction.String())
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}

	for i, ev := range snap.Events {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO pricing_events (instance_id, pos, node, round, stab_round, sequence, prob, elapsed, vars, farkas)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			id, i, ev.Node, ev.Round, ev.StabRound, ev.Sequence, ev.Prob, ev.Elapsed, ev.Vars, ev.Farkas); err != nil {
			return err
		}
	}
	for i, r := range snap.RootBounds {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO root_bounds (instance_id, pos, iteration, primal, primal_known, dual, dual_known, gap)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			id, i, r.Iteration, r.Primal.Value, r.Primal.Known, r.Dual.Value, r.Dual.Known, r.Gap); err != nil {
			return err
		}
	}
	for i, v := range snap.Variables {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO variables (instance_id, pos, time, incumbent, root_lp) VALUES (?, ?, ?, ?, ?)`,
			id, i, v.Time, v.Incumbent, v.RootLP); err != nil {
			return err
		}
	}
	for kind, times := range map[string][]float64{timesIncumbent: snap.IncumbentTimes, timesRootLP: snap.RootLPTimes} {
		for i, t := range times {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO solution_times (instance_id, kind, pos, time) VALUES (?, ?, ?, ?)`,
				id, kind, i, t); err != nil {
				return err
			}
		}
	}
	for i, p := range snap.Gap.Points {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO gap_points (instance_id, pos, iteration, round, gap) VALUES (?, ?, ?, ?, ?)`,
			id, i, p.Iteration, p.Round, p.Gap); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the database connection.
func (o *Output) Close() error {
	return o.db.Close()
}

// Load reads every stored snapshot back, in insertion order.
func Load(ctx context.Context, path string) ([]model.Snapshot, error) {
	db, err := open(path)
	if err != nil {
		return nil, err
	}
	defer db.Close()
	return load(ctx, db)
}

func load(ctx context.Context, db *sql.DB) ([]model.Snapshot, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, instance_name, settings_name, status, file, lines, diagnostics, rounds, anomalies, gap_status, gap_direction
		FROM instances ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("sqlite load: %w", err)
	}

	var ids []int64
	var snaps []model.Snapshot
	for rows.Next() {
		var (
			id                        int64
			s                         model.Snapshot
			status, gapStatus, gapDir string
		)
		if err := rows.Scan(&id, &s.Info.InstanceName, &s.Info.SettingsName, &status, &s.Info.File,
			&s.Info.Lines, &s.Info.Diagnostics, &s.Info.Rounds, &s.Info.Anomalies, &gapStatus, &gapDir); err != nil {
			rows.Close()
			return nil, fmt.Errorf("sqlite load: scan instance: %w", err)
		}
		if err := s.Info.Status.UnmarshalText([]byte(status)); err != nil {
			rows.Close()
			return nil, fmt.Errorf("sqlite load: instance %d: %w", id, err)
		}
		if err := s.Gap.Status.UnmarshalText([]byte(gapStatus)); err != nil {
			rows.Close()
			return nil, fmt.Errorf("sqlite load: instance %d: %w", id, err)
		}
		if err := s.Gap.Direction.UnmarshalText([]byte(gapDir)); err != nil {
			rows.Close()
			return nil, fmt.Errorf("sqlite load: instance %d: %w", id, err)
		}
		ids = append(ids, id)
		snaps = append(snaps, s)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite load: %w", err)
	}

	for i, id := range ids {
		if err := loadTables(ctx, db, id, &snaps[i]); err != nil {
			return nil, fmt.Errorf("sqlite load: instance %d: %w", id, err)
		}
	}
	return snaps, nil
}

func loadTables(ctx context.Context, db *sql.DB, id int64, s *model.Snapshot) error {
	err := each(ctx, db, `SELECT node, round, stab_round, sequence, prob, elapsed, vars, farkas
		FROM pricing_events WHERE instance_id = ? ORDER BY pos`, id, func(rows *sql.Rows) error {
		var ev model.PricingEvent
		if err := rows.Scan(&ev.Node, &ev.Round, &ev.StabRound, &ev.Sequence, &ev.Prob, &ev.Elapsed, &ev.Vars, &ev.Farkas); err != nil {
			return err
		}
		s.Events = append(s.Events, ev)
		return nil
	})
	if err != nil {
		return err
	}

	err = each(ctx, db, `SELECT iteration, primal, primal_known, dual, dual_known, gap
		FROM root_bounds WHERE instance_id = ? ORDER BY pos`, id, func(rows *sql.Rows) error {
		var r model.RootBoundRow
		if err := rows.Scan(&r.Iteration, &r.Primal.Value, &r.Primal.Known, &r.Dual.Value, &r.Dual.Known, &r.Gap); err != nil {
			return err
		}
		s.RootBounds = append(s.RootBounds, r)
		return nil
	})
	if err != nil {
		return err
	}

	err = each(ctx, db, `SELECT time, incumbent, root_lp
		FROM variables WHERE instance_id = ? ORDER BY pos`, id, func(rows *sql.Rows) error {
		var v model.VariableCreationEvent
		if err := rows.Scan(&v.Time, &v.Incumbent, &v.RootLP); err != nil {
			return err
		}
		s.Variables = append(s.Variables, v)
		return nil
	})
	if err != nil {
		return err
	}

	err = each(ctx, db, `SELECT kind, time
		FROM solution_times WHERE instance_id = ? ORDER BY kind, pos`, id, func(rows *sql.Rows) error {
		var (
			kind string
			t    float64
		)
		if err := rows.Scan(&kind, &t); err != nil {
			return err
		}
		switch kind {
		case timesIncumbent:
			s.IncumbentTimes = append(s.IncumbentTimes, t)
		case timesRootLP:
			s.RootLPTimes = append(s.RootLPTimes, t)
		}
		return nil
	})
	if err != nil {
		return err
	}

	return each(ctx, db, `SELECT iteration, round, gap
		FROM gap_points WHERE instance_id = ? ORDER BY pos`, id, func(rows *sql.Rows) error {
		var p model.GapPoint
		if err := rows.Scan(&p.Iteration, &p.Round, &p.Gap); err != nil {
			return err
		}
		s.Gap.Points = append(s.Gap.Points, p)
		return nil
	})
}

func each(ctx context.Context, db *sql.DB, query string, id int64, fn func(*sql.Rows) error) error {
	rows, err := db.QueryContext(ctx, query, id)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		if err := fn(rows); err != nil {
			return err
		}
	}
	return rows.Err()
}
