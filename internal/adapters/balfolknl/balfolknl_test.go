package balfolknl

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dancefeed/internal/adapters"
	"dancefeed/internal/model"
	"dancefeed/internal/source"
)

func parts(summary, description string) *source.EventParts {
	start := time.Date(2024, 5, 4, 20, 0, 0, 0, time.FixedZone("", 2*3600))
	et, _ := model.DateTime(start, start.Add(3*time.Hour))
	p, _ := source.NewEventParts(FeedURL, source.Record{
		URL:         model.StringPtr("https://www.balfolk.nl/event/1"),
		Summary:     &summary,
		Description: &description,
		Location:    model.StringPtr("Wijkcentrum, Straat 1, Utrecht, Nederland"),
		Time:        &et,
	})
	return &p
}

func TestNames(t *testing.T) {
	raw, display := names("Folkbal - Naragonia, Utrecht")
	assert.Equal(t, "Folkbal - Naragonia", raw)
	assert.Equal(t, "Folkbal — Naragonia", display)

	raw, display = names("Dennefeest")
	assert.Equal(t, "Dennefeest", raw)
	assert.Equal(t, "Dennefeest", display)
}

func TestClassification(t *testing.T) {
	a := New(adapters.Options{})
	tests := []struct {
		summary, description string
		workshop, social     bool
	}{
		{"Folkbal met Naragonia, Utrecht", "", false, true},
		{"Balfolk workshop Bourrée, Utrecht", "", true, false},
		{"Socialles Mazurka, Zwolle", "", true, true},
		{"Dennefeest, Nijmegen", "", true, true},
		{"Avond, Utrecht", "Eerst de dansworkshop, daarna bal deel twee", true, true},
		{"Iets, Utrecht", "niets bijzonders", false, false},
	}
	for _, tc := range tests {
		t.Run(tc.summary, func(t *testing.T) {
			p := parts(tc.summary, tc.description)
			assert.Equal(t, tc.workshop, a.Workshop(p), "workshop")
			assert.Equal(t, tc.social, a.Social(p), "social")
		})
	}
}

func TestLocation(t *testing.T) {
	a := New(adapters.Options{})

	loc, err := a.Location(&source.EventParts{Location: "Wijkcentrum, Straat 1, Utrecht, Nederland"})
	require.NoError(t, err)
	assert.Equal(t, "Utrecht", loc.City)
	assert.Equal(t, "Netherlands", loc.Country)

	loc, err = a.Location(&source.EventParts{Location: "a, b, c, Amersfoort, e, f, g, h"})
	require.NoError(t, err)
	assert.Equal(t, "Amersfoort", loc.City)

	_, err = a.Location(&source.EventParts{Location: "Utrecht, Nederland"})
	assert.Error(t, err)
}

func TestFixup(t *testing.T) {
	a := New(adapters.Options{})

	p := parts("Folkbal - Naragonia, Utrecht", "Folkbal - Naragonia, Utrecht\nMet live muziek van Naragonia en Wilma.")
	e := model.Event{Name: p.Summary, Social: true, Bands: []string{"ignored"}}
	got, ok := a.Fixup(p, e)
	require.True(t, ok)
	assert.Equal(t, "Folkbal — Naragonia", got.Name)
	require.NotNil(t, got.Details)
	assert.Equal(t, "Utrecht\nMet live muziek van Naragonia en Wilma.", *got.Details)
	assert.Equal(t, []string{"Naragonia", "Wilma"}, got.Bands)

	e.Social = false
	got, ok = a.Fixup(p, e)
	require.True(t, ok)
	assert.Empty(t, got.Bands)

	_, ok = a.Fixup(parts("Muziekstage doedelzak, Utrecht", ""), model.Event{})
	assert.False(t, ok)
}

func TestDescriptor(t *testing.T) {
	d := New(adapters.Options{}).Descriptor()
	require.NotNil(t, d.DefaultTimezone)
	assert.Equal(t, "Europe/Amsterdam", *d.DefaultTimezone)
	assert.False(t, d.AcceptUTC)
	require.NotNil(t, d.DefaultOrganisation)
	assert.Equal(t, "balfolk.nl", *d.DefaultOrganisation)
	assert.Equal(t, []model.DanceStyle{model.Balfolk}, New(adapters.Options{}).Styles(nil))
}
