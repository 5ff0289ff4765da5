package postgres

import (
	"context"
	"time"

	"github.com/ecetin/wedsys/internal/domain"
	"github.com/jackc/pgx/v5/pgxpool"
)

type SeatingRepo struct {
	pool *pgxpool.Pool
	db   DB
}

func (r *SeatingRepo) With(db DB) *SeatingRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *SeatingRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

// ListAssignments loads the whole persisted assignment map for an event.
func (r *SeatingRepo) ListAssignments(ctx context.Context, eventID string) (domain.AssignmentMap, error) {
	const op = "postgres.SeatingRepo.ListAssignments"

	db := r.handle()

	rows, err := db.Query(ctx,
		`SELECT guest_id, table_label, updated_at, notified_at
       	 FROM assignments
      	 WHERE event_id = $1`,
		eventID,
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	defer rows.Close()

	m := make(domain.AssignmentMap)
	for rows.Next() {
		var guestID string
		var a domain.Assignment
		if err := rows.Scan(&guestID, &a.Table, &a.UpdatedAt, &a.NotifiedAt); err != nil {
			return nil, wrapDBErr(op, err)
		}
		m[guestID] = a
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDBErr(op, err)
	}

	return m, nil
}

// UpsertAssignment merge-writes a single entry. Save iterates entries
// one by one on purpose: a failed entry must not roll back the others.
func (r *SeatingRepo) UpsertAssignment(ctx context.Context, eventID, guestID string, a domain.Assignment) error {
	const op = "postgres.SeatingRepo.UpsertAssignment"

	db := r.handle()

	if _, err := db.Exec(ctx,
		`INSERT INTO assignments(event_id, guest_id, table_label, updated_at)
       	 VALUES ($1, $2, $3, $4)
     	 ON CONFLICT (event_id, guest_id) DO UPDATE
        	SET table_label = EXCLUDED.table_label, updated_at = EXCLUDED.updated_at`,
		eventID, guestID, a.Table, a.UpdatedAt,
	); err != nil {
		return wrapDBErr(op, err)
	}

	return nil
}

// DeleteAssignment removes a persisted entry, used when a saved map no
// longer contains a guest.
func (r *SeatingRepo) DeleteAssignment(ctx context.Context, eventID, guestID string) error {
	const op = "postgres.SeatingRepo.DeleteAssignment"

	db := r.handle()

	if _, err := db.Exec(ctx,
		`DELETE FROM assignments WHERE event_id = $1 AND guest_id = $2`,
		eventID, guestID,
	); err != nil {
		return wrapDBErr(op, err)
	}

	return nil
}

// RegisterTable records a table label for an event. Labels are seeded at
// layout-configuration time and lazily on first assignment against an
// unknown label.
func (r *SeatingRepo) RegisterTable(ctx context.Context, eventID, label string) error {
	const op = "postgres.SeatingRepo.RegisterTable"

	db := r.handle()

	if _, err := db.Exec(ctx,
		`INSERT INTO event_tables(event_id, label, created_at)
       	 VALUES ($1, $2, now())
     	 ON CONFLICT (event_id, label) DO NOTHING`,
		eventID, label,
	); err != nil {
		return wrapDBErr(op, err)
	}

	return nil
}

func (r *SeatingRepo) ListTables(ctx context.Context, eventID string) ([]domain.Table, error) {
	const op = "postgres.SeatingRepo.ListTables"

	db := r.handle()

	rows, err := db.Query(ctx,
		`SELECT event_id, label, created_at
       	 FROM event_tables
      	 WHERE event_id = $1
      	 ORDER BY label`,
		eventID,
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	defer rows.Close()

	var tables []domain.Table
	for rows.Next() {
		var t domain.Table
		if err := rows.Scan(&t.EventID, &t.Label, &t.CreatedAt); err != nil {
			return nil, wrapDBErr(op, err)
		}
		tables = append(tables, t)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDBErr(op, err)
	}

	return tables, nil
}

// MarkNotified stamps the advisory notified_at on a persisted
// assignment. Missing rows are not an error: the in-memory map may not
// have been saved yet.
func (r *SeatingRepo) MarkNotified(ctx context.Context, eventID, guestID string, at time.Time) error {
	const op = "postgres.SeatingRepo.MarkNotified"

	db := r.handle()

	if _, err := db.Exec(ctx,
		`UPDATE assignments SET notified_at = $3
      	 WHERE event_id = $1 AND guest_id = $2`,
		eventID, guestID, at,
	); err != nil {
		return wrapDBErr(op, err)
	}

	return nil
}
