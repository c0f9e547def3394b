package source

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dancefeed/internal/model"
)

func str(s string) *string { return &s }

func TestRosterMatch_RosterOrder(t *testing.T) {
	r := Roster{"Alan Rosenthal", "Lisa Greenleaf", "Stomp Rocket"}
	got := r.Match("with LISA GREENLEAF calling", "music by stomp rocket, alan rosenthal sitting in")
	assert.Equal(t, []string{"Alan Rosenthal", "Lisa Greenleaf", "Stomp Rocket"}, got)
	assert.Empty(t, r.Match("nobody we know"))
}

func TestNewEventParts(t *testing.T) {
	et, err := model.DateOnly(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	full := Record{
		URL:         str(" https://example.com/e "),
		Summary:     str("Contra Dance"),
		Description: str(""),
		Location:    str("Hall, Boston, MA, USA"),
		Time:        &et,
	}
	p, err := NewEventParts("https://feed", full)
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/e", p.URL)
	assert.Equal(t, "contra dance", p.SummaryLower)
	assert.Equal(t, []string{"Hall", "Boston", "MA", "USA"}, p.LocationParts(","))

	missing := full
	missing.Location = nil
	missing.URL = nil
	_, err = NewEventParts("https://feed", missing)
	require.ErrorIs(t, err, ErrMissingField)
	assert.Contains(t, err.Error(), "url")
	assert.Contains(t, err.Error(), "location")

	bad := full
	bad.TimeErr = errors.New("mismatched")
	_, err = NewEventParts("https://feed", bad)
	assert.EqualError(t, err, "mismatched")
}

func TestDecodeEntities(t *testing.T) {
	assert.Equal(t, "a & b <c> d e", DecodeEntities("a &amp; b &lt;c&gt; d&nbsp;e"))
	assert.Equal(t, `C:\new folder`, DecodeEntities(`C:\new folder`))
}

func TestHasCategory(t *testing.T) {
	p := EventParts{Categories: []string{"Contra Dance", " Online Event"}}
	assert.True(t, p.HasCategory("online event"))
	assert.False(t, p.HasCategory("English Country Dance"))
}
