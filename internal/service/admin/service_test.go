package admin

import (
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashPasswordFormat(t *testing.T) {
	h := HashPassword("sifre123")

	assert.True(t, strings.HasPrefix(h, "sha256:"))
	assert.Len(t, strings.TrimPrefix(h, "sha256:"), 64)
	assert.Equal(t, h, HashPassword("sifre123"))
}

func TestVerifyPassword(t *testing.T) {
	stored := HashPassword("sifre123")

	assert.True(t, VerifyPassword(stored, "sifre123"))
	assert.False(t, VerifyPassword(stored, "yanlis"))

	// Legacy rows carry the bare hex digest without the prefix.
	legacy := strings.TrimPrefix(stored, "sha256:")
	assert.True(t, VerifyPassword(legacy, "sifre123"))
}

func TestSplitName(t *testing.T) {
	first, last := SplitName("Ayşe Nur Yılmaz")
	assert.Equal(t, "Ayşe", first)
	assert.Equal(t, "Nur Yılmaz", last)

	first, last = SplitName("Ayşe")
	assert.Equal(t, "Ayşe", first)
	assert.Empty(t, last)

	first, last = SplitName("   ")
	assert.Empty(t, first)
	assert.Empty(t, last)
}

func TestRSVPLink(t *testing.T) {
	svc := New(nil, nil, nil, Config{PublicBaseURL: "https://example.com/rsvp"})

	link := svc.RSVPLink("wedding-1")

	u, err := url.Parse(link)
	require.NoError(t, err)
	assert.Equal(t, "wedding-1", u.Query().Get("wedding"))
}

func TestPersonalLinkPrefillsGuest(t *testing.T) {
	svc := New(nil, nil, nil, Config{PublicBaseURL: "https://example.com/rsvp"})

	link := svc.PersonalLink("wedding-1", "Ayşe Nur Yılmaz", "+90 532 111 22 33")

	u, err := url.Parse(link)
	require.NoError(t, err)
	q := u.Query()
	assert.Equal(t, "wedding-1", q.Get("wedding"))
	assert.Equal(t, "Ayşe", q.Get("fn"))
	assert.Equal(t, "Nur Yılmaz", q.Get("ln"))
	assert.Equal(t, "+90 532 111 22 33", q.Get("ph"))
}

func TestCheckMasterSecret(t *testing.T) {
	svc := New(nil, nil, nil, Config{MasterSecretHash: HashPassword("master")})

	assert.NoError(t, svc.checkMasterSecret("master"))
	assert.ErrorIs(t, svc.checkMasterSecret("guess"), ErrForbidden)

	// An unconfigured hash always refuses, it never falls open.
	unset := New(nil, nil, nil, Config{})
	assert.ErrorIs(t, unset.checkMasterSecret(""), ErrForbidden)
}
