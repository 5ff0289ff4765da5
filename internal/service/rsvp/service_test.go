package rsvp

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecetin/wedsys/internal/clock"
)

type noopPub struct{}

func (noopPub) PublishEventChanged(context.Context, string) error { return nil }

// Validation failures return before any store access, so a service with
// no backing store is enough to exercise them.
func newValidationService(t *testing.T) *Service {
	t.Helper()
	return New(nil, nil, nil, noopPub{}, clock.Real{}, Config{SubmitTimeout: time.Second}, slog.New(slog.DiscardHandler))
}

func validSubmission() Submission {
	return Submission{
		FirstName:  "Ayşe",
		LastName:   "Yılmaz",
		Phone:      "+90 532 111 22 33",
		Attendance: "yes",
		AdultCount: 2,
		ChildCount: 1,
	}
}

func TestSubmitRejectsMissingFields(t *testing.T) {
	svc := newValidationService(t)

	cases := []struct {
		name   string
		mutate func(*Submission)
		field  string
	}{
		{"missing first name", func(s *Submission) { s.FirstName = "  " }, "first_name"},
		{"missing last name", func(s *Submission) { s.LastName = "" }, "last_name"},
		{"short phone", func(s *Submission) { s.Phone = "123" }, "phone"},
		{"unset attendance", func(s *Submission) { s.Attendance = "" }, "attendance"},
		{"bogus attendance", func(s *Submission) { s.Attendance = "maybe" }, "attendance"},
		{"negative adults", func(s *Submission) { s.AdultCount = -1 }, "adult_count"},
		{"negative children", func(s *Submission) { s.ChildCount = -2 }, "child_count"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := validSubmission()
			tc.mutate(&in)

			_, err := svc.Submit(context.Background(), "w1", "", in)

			var vErr *ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Equal(t, tc.field, vErr.Field)
		})
	}
}

func TestSubmissionValidateDerivesCounts(t *testing.T) {
	in := Submission{
		FirstName:  "Ayşe",
		LastName:   "Yılmaz",
		Phone:      "0532-111-22-33",
		Attendance: "no",
		ChildCount: 2,
	}

	g, err := in.validate()
	require.NoError(t, err)

	// Zero adults defaults to one; the total is always derived.
	assert.Equal(t, 1, g.AdultCount)
	assert.Equal(t, 2, g.ChildCount)
	assert.Equal(t, 3, g.GuestCount)
	assert.Equal(t, "05321112233", g.Phone)
}

func TestSanitizePhone(t *testing.T) {
	assert.Equal(t, "+905321112233", SanitizePhone("+90 (532) 111-22-33"))
	assert.Equal(t, "05321112233", SanitizePhone("0532 111 22 33"))
	assert.Equal(t, "5321112233", SanitizePhone("532+111+22+33"))
}

func TestDedupKeyDropsPlus(t *testing.T) {
	assert.Equal(t, dedupKey("+90 532 111 22 33"), dedupKey("90 (532) 111 22 33"))
}
