package postgres

import (
	"context"

	"github.com/ecetin/wedsys/internal/domain"
	"github.com/jackc/pgx/v5/pgxpool"
)

type GuestRepo struct {
	pool *pgxpool.Pool
	db   DB
}

func (r *GuestRepo) With(db DB) *GuestRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *GuestRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

// Create inserts a guest record. A partial unique index on
// (event_id, phone) backs the pre-insert existence check, so a racing
// duplicate submit surfaces as repository.ErrConflict.
func (r *GuestRepo) Create(ctx context.Context, g domain.Guest) error {
	const op = "postgres.GuestRepo.Create"

	db := r.handle()

	if _, err := db.Exec(ctx,
		`INSERT INTO guests(
			id, event_id, first_name, last_name, phone, attendance,
			adult_count, child_count, guest_count, dietary_choice, created_at)
       	 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, now())`,
		g.ID, g.EventID, g.FirstName, g.LastName, g.Phone, g.Attendance,
		g.AdultCount, g.ChildCount, g.GuestCount, g.DietaryChoice,
	); err != nil {
		return wrapDBErr(op, err)
	}

	return nil
}

// ExistsByPhone reports whether the event already has a guest with the
// given phone. This is the friendly-path check; the unique index is the
// actual guarantee.
func (r *GuestRepo) ExistsByPhone(ctx context.Context, eventID, phone string) (bool, error) {
	const op = "postgres.GuestRepo.ExistsByPhone"

	db := r.handle()

	var exists bool
	err := db.QueryRow(ctx,
		`SELECT EXISTS(
			SELECT 1 FROM guests WHERE event_id = $1 AND phone = $2)`,
		eventID, phone,
	).Scan(&exists)
	if err != nil {
		return false, wrapDBErr(op, err)
	}

	return exists, nil
}

// ListByEvent retrieves every guest record for an event. The directory
// is always read fresh; there is deliberately no cache in front of it.
func (r *GuestRepo) ListByEvent(ctx context.Context, eventID string) ([]domain.Guest, error) {
	const op = "postgres.GuestRepo.ListByEvent"

	db := r.handle()

	rows, err := db.Query(ctx,
		`SELECT id, event_id, first_name, last_name, phone, attendance,
		        adult_count, child_count, guest_count, dietary_choice, created_at
       	 FROM guests
      	 WHERE event_id = $1
      	 ORDER BY created_at`,
		eventID,
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	defer rows.Close()

	var guests []domain.Guest
	for rows.Next() {
		var g domain.Guest
		if err := rows.Scan(
			&g.ID, &g.EventID, &g.FirstName, &g.LastName, &g.Phone, &g.Attendance,
			&g.AdultCount, &g.ChildCount, &g.GuestCount, &g.DietaryChoice, &g.CreatedAt,
		); err != nil {
			return nil, wrapDBErr(op, err)
		}
		guests = append(guests, g)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDBErr(op, err)
	}

	return guests, nil
}

// Get retrieves one guest scoped to an event.
//
// Returns:
//   - error: repository.ErrNotFound if the guest is not found.
func (r *GuestRepo) Get(ctx context.Context, eventID, guestID string) (*domain.Guest, error) {
	const op = "postgres.GuestRepo.Get"

	db := r.handle()

	var g domain.Guest
	err := db.QueryRow(ctx,
		`SELECT id, event_id, first_name, last_name, phone, attendance,
		        adult_count, child_count, guest_count, dietary_choice, created_at
       	 FROM guests
      	 WHERE event_id = $1 AND id = $2`,
		eventID, guestID,
	).Scan(
		&g.ID, &g.EventID, &g.FirstName, &g.LastName, &g.Phone, &g.Attendance,
		&g.AdultCount, &g.ChildCount, &g.GuestCount, &g.DietaryChoice, &g.CreatedAt,
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return &g, nil
}

// UpdateDietaryChoice is the only guest mutation the submission side
// performs after the fact.
func (r *GuestRepo) UpdateDietaryChoice(ctx context.Context, eventID, guestID, choice string) error {
	const op = "postgres.GuestRepo.UpdateDietaryChoice"

	db := r.handle()

	ct, err := db.Exec(ctx,
		`UPDATE guests SET dietary_choice = $3
      	 WHERE event_id = $1 AND id = $2`,
		eventID, guestID, choice,
	)
	if err != nil {
		return wrapDBErr(op, err)
	}

	if ct.RowsAffected() == 0 {
		return wrapDBErr(op, errNoRows)
	}

	return nil
}
