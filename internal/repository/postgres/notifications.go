package postgres

import (
	"context"

	"github.com/ecetin/wedsys/internal/domain"
	"github.com/jackc/pgx/v5/pgxpool"
)

type NotificationRepo struct {
	pool *pgxpool.Pool
	db   DB
}

func (r *NotificationRepo) With(db DB) *NotificationRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *NotificationRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

// UpsertRecord writes the once-per-guest dispatch marker. A record that
// already exists is left untouched: nothing ever removes or rewrites a
// NotificationRecord.
func (r *NotificationRepo) UpsertRecord(ctx context.Context, rec domain.NotificationRecord) error {
	const op = "postgres.NotificationRepo.UpsertRecord"

	db := r.handle()

	if _, err := db.Exec(ctx,
		`INSERT INTO notification_records(event_id, guest_id, table_label, sent_at)
       	 VALUES ($1, $2, $3, $4)
     	 ON CONFLICT (event_id, guest_id) DO NOTHING`,
		rec.EventID, rec.GuestID, rec.Table, rec.SentAt,
	); err != nil {
		return wrapDBErr(op, err)
	}

	return nil
}

func (r *NotificationRepo) ListByEvent(ctx context.Context, eventID string) ([]domain.NotificationRecord, error) {
	const op = "postgres.NotificationRepo.ListByEvent"

	db := r.handle()

	rows, err := db.Query(ctx,
		`SELECT event_id, guest_id, table_label, sent_at
       	 FROM notification_records
      	 WHERE event_id = $1
      	 ORDER BY sent_at`,
		eventID,
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	defer rows.Close()

	var recs []domain.NotificationRecord
	for rows.Next() {
		var rec domain.NotificationRecord
		if err := rows.Scan(&rec.EventID, &rec.GuestID, &rec.Table, &rec.SentAt); err != nil {
			return nil, wrapDBErr(op, err)
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDBErr(op, err)
	}

	return recs, nil
}
