package postgres

import (
	"context"
	"fmt"

	"github.com/ecetin/wedsys/internal/domain"
	"github.com/ecetin/wedsys/internal/repository"
	"github.com/jackc/pgx/v5/pgxpool"
)

type EventRepo struct {
	pool *pgxpool.Pool
	db   DB
}

func (r *EventRepo) With(db DB) *EventRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *EventRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

// Upsert creates an event or, when the id already exists, replaces its
// password hash. Mirrors the merge-write the console has always done
// for event records.
func (r *EventRepo) Upsert(ctx context.Context, id, passwordHash string) error {
	const op = "postgres.EventRepo.Upsert"

	db := r.handle()

	if _, err := db.Exec(ctx,
		`INSERT INTO events(id, password_hash, created_at, updated_at)
       	 VALUES ($1, $2, now(), now())
     	 ON CONFLICT (id) DO UPDATE
        	SET password_hash = EXCLUDED.password_hash, updated_at = now()`,
		id, passwordHash,
	); err != nil {
		return wrapDBErr(op, err)
	}

	return nil
}

// Get retrieves an event by its id.
//
// Returns:
//   - error: repository.ErrNotFound if the event is not found.
func (r *EventRepo) Get(ctx context.Context, id string) (*domain.Event, error) {
	const op = "postgres.EventRepo.Get"

	db := r.handle()

	var e domain.Event
	err := db.QueryRow(ctx,
		`SELECT id, password_hash, created_at, updated_at
       	 FROM events WHERE id = $1`,
		id,
	).Scan(&e.ID, &e.PasswordHash, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return &e, nil
}

func (r *EventRepo) List(ctx context.Context) ([]string, error) {
	const op = "postgres.EventRepo.List"

	db := r.handle()

	rows, err := db.Query(ctx, `SELECT id FROM events ORDER BY id`)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, wrapDBErr(op, err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDBErr(op, err)
	}

	return ids, nil
}

// Delete removes the event and everything scoped to it. Callers run this
// inside a transaction so a half-deleted event is never observable.
func (r *EventRepo) Delete(ctx context.Context, id string) error {
	const op = "postgres.EventRepo.Delete"

	db := r.handle()

	for _, q := range []string{
		`DELETE FROM notification_records WHERE event_id = $1`,
		`DELETE FROM assignments WHERE event_id = $1`,
		`DELETE FROM event_tables WHERE event_id = $1`,
		`DELETE FROM guests WHERE event_id = $1`,
	} {
		if _, err := db.Exec(ctx, q, id); err != nil {
			return wrapDBErr(op, err)
		}
	}

	ct, err := db.Exec(ctx, `DELETE FROM events WHERE id = $1`, id)
	if err != nil {
		return wrapDBErr(op, err)
	}

	if ct.RowsAffected() == 0 {
		return fmt.Errorf("%s:%w", op, repository.ErrNotFound)
	}

	return nil
}

func (r *EventRepo) RotatePassword(ctx context.Context, id, passwordHash string) error {
	const op = "postgres.EventRepo.RotatePassword"

	db := r.handle()

	ct, err := db.Exec(ctx,
		`UPDATE events SET password_hash = $2, updated_at = now() WHERE id = $1`,
		id, passwordHash,
	)
	if err != nil {
		return wrapDBErr(op, err)
	}

	if ct.RowsAffected() == 0 {
		return fmt.Errorf("%s:%w", op, repository.ErrNotFound)
	}

	return nil
}
