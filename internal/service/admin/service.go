// Package admin covers the event lifecycle: creation, per-event login,
// password rotation and deletion. Deletion and rotation are gated by a
// master secret only the operator knows; like event passwords it is
// kept as a sha256 hash, never plaintext.
package admin

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/ecetin/wedsys/internal/domain"
	redisx "github.com/ecetin/wedsys/internal/redis"
	"github.com/ecetin/wedsys/internal/repository"
	postgresrepo "github.com/ecetin/wedsys/internal/repository/postgres"
	redisrepo "github.com/ecetin/wedsys/internal/repository/redis"
	"github.com/ecetin/wedsys/internal/uow"
)

type Config struct {
	// MasterSecretHash is the sha256:<hex> of the operator secret that
	// gates destructive operations.
	MasterSecretHash string
	// PublicBaseURL is where the RSVP form lives, used for invite links.
	PublicBaseURL string
}

type Service struct {
	store *postgresrepo.Store
	cache *redisrepo.Cache
	pub   Publisher
	uow   *uow.UoW
	cfg   Config
}

type Publisher interface {
	PublishEventChanged(ctx context.Context, eventID string) error
}

func New(store *postgresrepo.Store, cache *redisrepo.Cache, pub Publisher, cfg Config) *Service {
	return &Service{
		store: store,
		cache: cache,
		pub:   pub,
		uow:   uow.NewUoW(store),
		cfg:   cfg,
	}
}

// HashPassword renders the stored credential format, sha256:<hex>.
func HashPassword(password string) string {
	sum := sha256.Sum256([]byte(password))
	return "sha256:" + hex.EncodeToString(sum[:])
}

// VerifyPassword checks a candidate against a stored hash. Legacy rows
// stored the bare hex without the prefix; both forms are accepted.
func VerifyPassword(stored, candidate string) bool {
	want := strings.TrimPrefix(stored, "sha256:")
	got := strings.TrimPrefix(HashPassword(candidate), "sha256:")
	return subtle.ConstantTimeCompare([]byte(want), []byte(got)) == 1
}

// CreateEvent registers an event id with a password. An existing id has
// its password replaced, the merge-write the console has always done.
func (s *Service) CreateEvent(ctx context.Context, id, password string) error {
	const op = "service.admin.CreateEvent"

	id = strings.TrimSpace(id)
	if id == "" || password == "" {
		return fmt.Errorf("%s: %w", op, ErrBadEventID)
	}

	if err := s.store.Events().Upsert(ctx, id, HashPassword(password)); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	_ = s.cache.InvalidateEvent(ctx, id)

	return nil
}

// Login verifies per-event credentials. The event row is always read
// fresh; credentials are never served from cache.
//
// Returns:
//   - error: admin.ErrEventNotFound if the id is unknown.
//   - error: admin.ErrUnauthorized if the password does not match.
func (s *Service) Login(ctx context.Context, id, password string) (*domain.Event, error) {
	const op = "service.admin.Login"

	e, err := s.store.Events().Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", op, ErrEventNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if !VerifyPassword(e.PasswordHash, password) {
		return nil, fmt.Errorf("%s: %w", op, ErrUnauthorized)
	}

	return e, nil
}

func (s *Service) ListEvents(ctx context.Context) ([]string, error) {
	const op = "service.admin.ListEvents"

	ids, err := s.store.Events().List(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return ids, nil
}

// EventSummary is the public shape of an event: enough for the RSVP
// form to confirm the link is valid, nothing more.
type EventSummary struct {
	ID        string `json:"id"`
	CreatedAt int64  `json:"created_at"`
}

// GetEventSummary serves the public existence check, cached briefly.
func (s *Service) GetEventSummary(ctx context.Context, id string) (*EventSummary, error) {
	const op = "service.admin.GetEventSummary"

	key := redisx.KeyEventSummary(id)

	summary, err := redisrepo.GetOrSetJSON(
		ctx,
		s.cache,
		key,
		60*time.Second,
		func(ctx context.Context) (EventSummary, error) {
			e, err := s.store.Events().Get(ctx, id)
			if err != nil {
				if errors.Is(err, repository.ErrNotFound) {
					return EventSummary{}, ErrEventNotFound
				}

				return EventSummary{}, err
			}

			return EventSummary{ID: e.ID, CreatedAt: e.CreatedAt.Unix()}, nil
		},
	)
	if err != nil {
		if errors.Is(err, ErrEventNotFound) {
			return nil, fmt.Errorf("%s: %w", op, ErrEventNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &summary, nil
}

func (s *Service) checkMasterSecret(secret string) error {
	if s.cfg.MasterSecretHash == "" || !VerifyPassword(s.cfg.MasterSecretHash, secret) {
		return ErrForbidden
	}
	return nil
}

// DeleteEvent removes an event and everything scoped to it, in one
// transaction. Requires the master secret.
func (s *Service) DeleteEvent(ctx context.Context, id, masterSecret string) error {
	const op = "service.admin.DeleteEvent"

	if err := s.checkMasterSecret(masterSecret); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	err := s.uow.Do(ctx, func(ctx context.Context, tx postgresrepo.DB, after func(uow.AfterCommit)) error {
		if err := s.store.Events().With(tx).Delete(ctx, id); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return fmt.Errorf("%s: %w", op, ErrEventNotFound)
			}
			return fmt.Errorf("%s: %w", op, err)
		}

		after(func(ctx context.Context) {
			_ = s.cache.InvalidateEvent(ctx, id)
			_ = s.pub.PublishEventChanged(ctx, id)
		})

		return nil
	})

	return err
}

// RotatePassword replaces the event password. Requires the master
// secret; the event is otherwise immutable.
func (s *Service) RotatePassword(ctx context.Context, id, masterSecret, newPassword string) error {
	const op = "service.admin.RotatePassword"

	if err := s.checkMasterSecret(masterSecret); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if newPassword == "" {
		return fmt.Errorf("%s: %w", op, ErrBadEventID)
	}

	if err := s.store.Events().RotatePassword(ctx, id, HashPassword(newPassword)); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%s: %w", op, ErrEventNotFound)
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	_ = s.cache.InvalidateEvent(ctx, id)

	return nil
}

// RSVPLink builds the shareable form link for an event.
func (s *Service) RSVPLink(eventID string) string {
	u, err := url.Parse(s.cfg.PublicBaseURL)
	if err != nil || s.cfg.PublicBaseURL == "" {
		u = &url.URL{Path: "/"}
	}

	q := u.Query()
	q.Set("wedding", eventID)
	u.RawQuery = q.Encode()

	return u.String()
}

// PersonalLink builds an invite link with the guest's name and phone
// prefilled. The first word becomes the first name, the rest the last
// name, same split the form applies.
func (s *Service) PersonalLink(eventID, fullName, phone string) string {
	u, err := url.Parse(s.RSVPLink(eventID))
	if err != nil {
		return s.RSVPLink(eventID)
	}

	first, last := SplitName(fullName)

	q := u.Query()
	if first != "" {
		q.Set("fn", first)
	}
	if last != "" {
		q.Set("ln", last)
	}
	if phone != "" {
		q.Set("ph", phone)
	}
	u.RawQuery = q.Encode()

	return u.String()
}

// SplitName splits a display name into first and last parts.
func SplitName(full string) (first, last string) {
	parts := strings.Fields(full)
	if len(parts) == 0 {
		return "", ""
	}

	return parts[0], strings.Join(parts[1:], " ")
}
