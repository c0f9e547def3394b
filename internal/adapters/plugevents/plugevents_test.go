package plugevents

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dancefeed/internal/adapters"
	"dancefeed/internal/model"
	"dancefeed/internal/source"
)

func TestNewRequiresToken(t *testing.T) {
	_, err := New(adapters.Options{})
	assert.Error(t, err)

	a, err := New(adapters.Options{PlugToken: "tok"})
	require.NoError(t, err)
	d := a.Descriptor()
	require.Len(t, d.URLs, 1)
	assert.Contains(t, d.URLs[0], "tok")
	assert.Nil(t, d.DefaultOrganisation)
}

func TestClassification(t *testing.T) {
	a, err := New(adapters.Options{PlugToken: "tok"})
	require.NoError(t, err)

	tests := []struct {
		name             string
		categories       []string
		summary, desc    string
		workshop, social bool
	}{
		{"social tag", []string{"Social Dancing"}, "Bal", "", false, true},
		{"class tag", []string{"Dance Class"}, "Kurs", "", true, false},
		{"festival", []string{"Festival"}, "Fest", "", true, true},
		{"polish summary", nil, "Cykl warsztatów balfolkowych", "", true, false},
		{"polish description", nil, "Balfolk", "Zapraszamy na warsztaty", true, false},
		{"unknown tag", []string{"Outdoor"}, "Picnic", "", false, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p := &source.EventParts{
				Categories:       tc.categories,
				Summary:          tc.summary,
				SummaryLower:     strings.ToLower(tc.summary),
				DescriptionLower: strings.ToLower(tc.desc),
			}
			assert.Equal(t, tc.workshop, a.Workshop(p), "workshop")
			assert.Equal(t, tc.social, a.Social(p), "social")
		})
	}
}

func TestLocation(t *testing.T) {
	a, err := New(adapters.Options{PlugToken: "tok"})
	require.NoError(t, err)

	loc, err := a.Location(&source.EventParts{Location: "Dom Kultury, Kraków, Małopolskie, Poland"})
	require.NoError(t, err)
	assert.Equal(t, "Kraków", loc.City)
	assert.Equal(t, "Poland", loc.Country)

	loc, err = a.Location(&source.EventParts{Location: "Hamburg, Germany"})
	require.NoError(t, err)
	assert.Equal(t, "Hamburg", loc.City)
	assert.Equal(t, "Germany", loc.Country)

	_, err = a.Location(&source.EventParts{Location: "Nowhere"})
	assert.Error(t, err)
}

func TestFixupRenamesOrganisation(t *testing.T) {
	a, err := New(adapters.Options{PlugToken: "tok"})
	require.NoError(t, err)

	got, ok := a.Fixup(nil, model.Event{Organisation: model.StringPtr("Chata Numinosum")})
	require.True(t, ok)
	assert.Equal(t, "Numinosum", *got.Organisation)

	got, ok = a.Fixup(nil, model.Event{Organisation: model.StringPtr("Balfolk Kraków")})
	require.True(t, ok)
	assert.Equal(t, "Balfolk Kraków", *got.Organisation)
}
