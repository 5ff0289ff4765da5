// Package rsvp handles the public submission flow: validate, dedup by
// phone within the event, insert, announce the change.
package rsvp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ecetin/wedsys/internal/clock"
	"github.com/ecetin/wedsys/internal/domain"
	"github.com/ecetin/wedsys/internal/repository"
	postgresrepo "github.com/ecetin/wedsys/internal/repository/postgres"
	redisrepo "github.com/ecetin/wedsys/internal/repository/redis"
	"github.com/ecetin/wedsys/internal/uow"
)

type Config struct {
	// SubmitTimeout bounds how long a submission waits for confirmation.
	// The write itself is not cancelled on expiry.
	SubmitTimeout time.Duration
}

type Publisher interface {
	PublishEventChanged(ctx context.Context, eventID string) error
}

type Service struct {
	store   *postgresrepo.Store
	locks   *redisrepo.SubmitLockStore
	limiter *redisrepo.SlidingWindowLimiter
	pub     Publisher
	uow     *uow.UoW
	clock   clock.Clock
	cfg     Config
	logger  *slog.Logger
}

func New(
	store *postgresrepo.Store,
	locks *redisrepo.SubmitLockStore,
	limiter *redisrepo.SlidingWindowLimiter,
	pub Publisher,
	clk clock.Clock,
	cfg Config,
	logger *slog.Logger,
) *Service {
	if cfg.SubmitTimeout <= 0 {
		cfg.SubmitTimeout = 10 * time.Second
	}

	return &Service{
		store:   store,
		locks:   locks,
		limiter: limiter,
		pub:     pub,
		uow:     uow.NewUoW(store),
		clock:   clk,
		cfg:     cfg,
		logger:  logger,
	}
}

// Submission is what the public form posts.
type Submission struct {
	FirstName     string
	LastName      string
	Phone         string
	Attendance    string
	AdultCount    int
	ChildCount    int
	DietaryChoice string
}

// SanitizePhone strips everything except digits and a leading plus.
func SanitizePhone(raw string) string {
	var b strings.Builder
	for i, r := range raw {
		if r >= '0' && r <= '9' || r == '+' && i == 0 {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// dedupKey is the phone reduced to digits, the same form notifications
// normalize to, so dedup survives formatting differences.
func dedupKey(phone string) string {
	return strings.TrimPrefix(SanitizePhone(phone), "+")
}

func (in *Submission) validate() (domain.Guest, error) {
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	in.Phone = SanitizePhone(in.Phone)

	switch {
	case in.FirstName == "":
		return domain.Guest{}, &ValidationError{Field: "first_name", Reason: "required"}
	case in.LastName == "":
		return domain.Guest{}, &ValidationError{Field: "last_name", Reason: "required"}
	case len(in.Phone) < 7:
		return domain.Guest{}, &ValidationError{Field: "phone", Reason: "a valid phone number is required"}
	}

	att := domain.Attendance(in.Attendance)
	if att != domain.AttendanceYes && att != domain.AttendanceNo {
		return domain.Guest{}, &ValidationError{Field: "attendance", Reason: "must be yes or no"}
	}

	adults := in.AdultCount
	if adults == 0 {
		adults = 1
	}
	if adults < 1 {
		return domain.Guest{}, &ValidationError{Field: "adult_count", Reason: "must be at least 1"}
	}
	if in.ChildCount < 0 {
		return domain.Guest{}, &ValidationError{Field: "child_count", Reason: "must not be negative"}
	}

	return domain.Guest{
		FirstName:     in.FirstName,
		LastName:      in.LastName,
		Phone:         in.Phone,
		Attendance:    att,
		AdultCount:    adults,
		ChildCount:    in.ChildCount,
		GuestCount:    adults + in.ChildCount,
		DietaryChoice: strings.TrimSpace(in.DietaryChoice),
	}, nil
}

// Submit records one RSVP for the event.
//
// The write runs on a context detached from the request, bounded only by
// SubmitTimeout: an expired wait reports rsvp.ErrTimeout while the
// insert may still complete behind it.
//
// Returns:
//   - string: the new guest id.
//   - error: rsvp.ErrEventNotFound, rsvp.ErrDuplicatePhone,
//     rsvp.ErrRateLimited, rsvp.ErrTimeout, or *rsvp.ValidationError.
func (s *Service) Submit(ctx context.Context, eventID, rlKey string, in Submission) (string, error) {
	const op = "service.rsvp.Submit"

	g, err := in.validate()
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	if s.limiter != nil && rlKey != "" {
		allowed, _, _, err := s.limiter.Allow(ctx, rlKey)
		if err != nil {
			s.logger.Warn("rate limiter unavailable, allowing", "error", err)
		} else if !allowed {
			return "", fmt.Errorf("%s: %w", op, ErrRateLimited)
		}
	}

	if _, err := s.store.Events().Get(ctx, eventID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", fmt.Errorf("%s: %w", op, ErrEventNotFound)
		}
		return "", fmt.Errorf("%s: %w", op, err)
	}

	key := dedupKey(g.Phone)
	if s.locks != nil {
		ok, err := s.locks.Acquire(ctx, eventID, key)
		if err != nil {
			s.logger.Warn("submit lock unavailable, relying on unique index", "error", err)
		} else if !ok {
			return "", fmt.Errorf("%s: %w", op, ErrDuplicatePhone)
		}
	}

	g.ID = uuid.NewString()
	g.EventID = eventID

	// The insert must outlive the request on timeout, so it runs on a
	// detached context and only the wait is bounded.
	writeCtx := context.WithoutCancel(ctx)
	done := make(chan error, 1)

	go func() {
		done <- s.uow.Do(writeCtx, func(ctx context.Context, tx postgresrepo.DB, after func(uow.AfterCommit)) error {
			exists, err := s.store.Guests().With(tx).ExistsByPhone(ctx, eventID, g.Phone)
			if err != nil {
				return err
			}
			if exists {
				return ErrDuplicatePhone
			}

			if err := s.store.Guests().With(tx).Create(ctx, g); err != nil {
				if errors.Is(err, repository.ErrConflict) {
					return ErrDuplicatePhone
				}
				return err
			}

			after(func(ctx context.Context) {
				if err := s.pub.PublishEventChanged(ctx, eventID); err != nil {
					s.logger.Warn("publish event changed", "event_id", eventID, "error", err)
				}
			})

			return nil
		})
	}()

	timer := make(chan struct{})
	timerCtx, cancelTimer := context.WithCancel(ctx)
	defer cancelTimer()
	go func() {
		_ = s.clock.Sleep(timerCtx, s.cfg.SubmitTimeout)
		close(timer)
	}()

	select {
	case err := <-done:
		if err != nil {
			if s.locks != nil && !errors.Is(err, ErrDuplicatePhone) {
				_ = s.locks.Release(writeCtx, eventID, key)
			}
			return "", fmt.Errorf("%s: %w", op, err)
		}
		return g.ID, nil
	case <-timer:
		// Unknown outcome: keep the lock so a retry cannot double-insert
		// before the index would catch it.
		s.logger.Warn("submission not confirmed in time",
			"event_id", eventID, "timeout", s.cfg.SubmitTimeout)
		return "", fmt.Errorf("%s: %w", op, ErrTimeout)
	}
}

// Guest looks up one submission, scoped to the event, so the form can
// show what was previously answered.
//
// Returns:
//   - error: repository.ErrNotFound when the guest is unknown.
func (s *Service) Guest(ctx context.Context, eventID, guestID string) (*domain.Guest, error) {
	const op = "service.rsvp.Guest"

	g, err := s.store.Guests().Get(ctx, eventID, guestID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return g, nil
}

// UpdateDietaryChoice changes the stored choice for one guest.
//
// Returns:
//   - error: repository.ErrNotFound when the guest is unknown.
func (s *Service) UpdateDietaryChoice(ctx context.Context, eventID, guestID, choice string) error {
	const op = "service.rsvp.UpdateDietaryChoice"

	if err := s.store.Guests().UpdateDietaryChoice(ctx, eventID, guestID, strings.TrimSpace(choice)); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := s.pub.PublishEventChanged(ctx, eventID); err != nil {
		s.logger.Warn("publish event changed", "event_id", eventID, "error", err)
	}

	return nil
}
