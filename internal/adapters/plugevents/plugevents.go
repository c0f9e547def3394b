// Package plugevents imports balfolk events published on plug.events.
package plugevents

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"dancefeed/internal/adapters"
	"dancefeed/internal/model"
	"dancefeed/internal/plug"
	"dancefeed/internal/source"
)

const Name = "plugevents"

// format is what a subinterest tag says about an event.
type format struct {
	workshop bool
	social   bool
}

// subinterests maps normalised tags (lower-case letters only) to formats.
// Tags not listed say nothing.
var subinterests = map[string]format{
	"bal":           {social: true},
	"balfolk":       {social: true},
	"balfolknl":     {social: true},
	"folkbal":       {social: true},
	"meeting":       {social: true},
	"dansavond":     {social: true},
	"livemusic":     {social: true},
	"livemuziek":    {social: true},
	"party":         {social: true},
	"social":        {social: true},
	"socialdancing": {social: true},
	"practica":      {social: true},
	"advanced":      {workshop: true},
	"class":         {workshop: true},
	"course":        {workshop: true},
	"danceclass":    {workshop: true},
	"dansles":       {workshop: true},
	"event":         {workshop: true},
	"les":           {workshop: true},
	"learning":      {workshop: true},
	"lessonseries":  {workshop: true},
	"intensive":     {workshop: true},
	"festival":      {workshop: true, social: true},
	"socialclass":   {workshop: true, social: true},
	"sociales":      {workshop: true, social: true},
}

// organisationNames renames publishers to the names used elsewhere.
var organisationNames = map[string]string{
	"Chata Numinosum": "Numinosum",
}

func init() {
	adapters.Register(Name, func(opts adapters.Options) (source.Adapter, error) {
		a, err := New(opts)
		if err != nil {
			return nil, err
		}
		return a, nil
	})
}

type Adapter struct {
	desc source.Descriptor
}

// New needs opts.PlugToken.
func New(opts adapters.Options) (*Adapter, error) {
	token := strings.TrimSpace(opts.PlugToken)
	if token == "" {
		return nil, errors.New("plugevents: no plug.events token configured")
	}
	return &Adapter{desc: source.Descriptor{
		Name:    Name,
		URLs:    []string{plug.EndpointURL(token)},
		Decoder: plug.Decoder{},
		Horizon: opts.HorizonOr(adapters.DefaultHorizon),
	}}, nil
}

func (a *Adapter) Descriptor() source.Descriptor { return a.desc }

func normaliseTag(tag string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) {
			return unicode.ToLower(r)
		}
		return -1
	}, tag)
}

func classify(p *source.EventParts) format {
	var f format
	for _, tag := range p.Categories {
		sub := subinterests[normaliseTag(tag)]
		f.workshop = f.workshop || sub.workshop
		f.social = f.social || sub.social
	}
	return f
}

// Workshop also catches Polish workshop announcements, which are rarely tagged.
func (a *Adapter) Workshop(p *source.EventParts) bool {
	return classify(p).workshop ||
		strings.Contains(p.SummaryLower, "warsztatów") ||
		strings.Contains(p.DescriptionLower, "warsztaty")
}

func (a *Adapter) Social(p *source.EventParts) bool {
	return classify(p).social
}

func (a *Adapter) Styles(*source.EventParts) []model.DanceStyle {
	return []model.DanceStyle{model.Balfolk}
}

// Location reads venueLocale, e.g. "Venue, City, Region, Country". The
// country is always last; the city is second when there are more than three
// parts.
func (a *Adapter) Location(p *source.EventParts) (source.Location, error) {
	parts := p.LocationParts(", ")
	if len(parts) < 2 {
		return source.Location{}, fmt.Errorf("venueLocale only has one part: %q", p.Location)
	}
	city := parts[0]
	if len(parts) > 3 {
		city = parts[1]
	}
	return source.Location{Country: parts[len(parts)-1], City: city}, nil
}

func (a *Adapter) Fixup(p *source.EventParts, e model.Event) (model.Event, bool) {
	if e.Organisation != nil {
		if renamed, ok := organisationNames[*e.Organisation]; ok {
			e.Organisation = &renamed
		}
	}
	return e, true
}
