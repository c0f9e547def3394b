// Package balfolknl imports the balfolk.nl calendar of Dutch balfolk events.
package balfolknl

import (
	"fmt"
	"strings"

	"dancefeed/internal/adapters"
	"dancefeed/internal/ics"
	appLog "dancefeed/internal/log"
	"dancefeed/internal/model"
	"dancefeed/internal/source"
)

const (
	Name     = "balfolknl"
	FeedURL  = "https://www.balfolk.nl/events.ics"
	timezone = "Europe/Amsterdam"
)

var bands = source.Roster{
	"Achterband",
	"Androneda",
	"Artisjok",
	"Aurélien Claranbaux",
	"Beat Bouet Trio",
	"Berkenwerk",
	"BmB",
	"Celts without Borders",
	"Duo Absynthe",
	"Duo Mackie/Hendrix",
	"Duo Roblin-Thebaut",
	"Emelie Waldken",
	"Fahrenheit",
	"Geronimo",
	"Hartwin Dhoore",
	"La Sauterelle",
	"Laouen",
	"Les Bottines Artistiques",
	"Les Zéoles",
	"Madlot",
	"Mieneke",
	"Momiro",
	"Naragonia",
	"Nebel",
	"Nubia",
	"Paracetamol",
	"QuiVive",
	"Swinco",
	"Wilma",
	"Wouter en de Draak",
	"Wouter Kuyper",
}

// Keyword tables, lower-case. Name rules apply to the cleaned event name,
// description rules to the description.
var (
	workshopNameContains = []string{"fundamentals", "basis van", "beginnerslessen", "danslessen", "workshop"}
	workshopNamePrefix   = []string{"socialles ", "proefles "}
	workshopNameExact    = []string{"dennefeest", "folkbal wilhelmina"}
	workshopDescContains = []string{
		"dansworkshop", "workshopbeschrijving", "workshop ", "dans uitleg",
		"dansuitleg", " leren ", "vooraf dansuitleg", "de docent",
	}

	socialNameContains = []string{"social dance", "balfolkbal", "avondbal", "bal in", "balfolk bal", "vuurbal"}
	socialNamePrefix   = []string{
		"balfolk wilhelmina", "fest noz", "folkwoods", "folkbal", "socialles ",
		"verjaardagsbal", "balfolk utrecht bal",
	}
	socialNameExact    = []string{"balfolk café nijmegen", "dennefeest", "folkbal wilhelmina"}
	socialDescContains = []string{"bal deel"}
)

func init() {
	adapters.Register(Name, func(opts adapters.Options) (source.Adapter, error) {
		return New(opts), nil
	})
}

type Adapter struct {
	desc source.Descriptor
}

func New(opts adapters.Options) *Adapter {
	org, tz := "balfolk.nl", timezone
	return &Adapter{desc: source.Descriptor{
		Name:                Name,
		URLs:                []string{FeedURL},
		Decoder:             ics.Decoder{},
		DefaultOrganisation: &org,
		DefaultTimezone:     &tz,
		Horizon:             opts.HorizonOr(adapters.DefaultHorizon),
		Bands:               bands,
	}}
}

func (a *Adapter) Descriptor() source.Descriptor { return a.desc }

// names splits the summary into the raw name (the part before the trailing
// ", city") and the display name.
func names(summary string) (raw, display string) {
	raw = summary
	if i := strings.LastIndex(summary, ","); i >= 0 {
		raw = summary[:i]
	}
	raw = strings.TrimSpace(raw)
	return raw, strings.ReplaceAll(raw, " - ", " — ")
}

func (a *Adapter) Workshop(p *source.EventParts) bool {
	_, name := names(p.Summary)
	return matchName(strings.ToLower(name), workshopNameContains, workshopNamePrefix, workshopNameExact) ||
		containsAny(p.DescriptionLower, workshopDescContains)
}

func (a *Adapter) Social(p *source.EventParts) bool {
	_, name := names(p.Summary)
	return matchName(strings.ToLower(name), socialNameContains, socialNamePrefix, socialNameExact) ||
		containsAny(p.DescriptionLower, socialDescContains)
}

func (a *Adapter) Styles(*source.EventParts) []model.DanceStyle {
	return []model.DanceStyle{model.Balfolk}
}

// Location takes the city from a depth-dependent position.
func (a *Adapter) Location(p *source.EventParts) (source.Location, error) {
	parts := p.LocationParts(",")
	var city string
	switch n := len(parts); {
	case n == 8:
		city = parts[3]
	case n >= 4:
		city = parts[2]
	default:
		return source.Location{}, fmt.Errorf("invalid location %q", p.Location)
	}
	return source.Location{Country: "Netherlands", City: city}, nil
}

// Fixup cleans the name, drops music workshops, strips the name from the
// start of the details and limits band detection to socials.
func (a *Adapter) Fixup(p *source.EventParts, e model.Event) (model.Event, bool) {
	raw, name := names(p.Summary)
	if strings.HasPrefix(name, "Muziekstage") {
		appLog.Info("balfolknl: skipping music workshop", "name", name, "url", p.URL)
		return model.Event{}, false
	}
	e.Name = name
	e.Details = model.StringPtr(strings.TrimSpace(strings.TrimPrefix(p.Description, raw+", ")))
	if e.Social {
		e.Bands = a.desc.Bands.Match(p.Description)
	} else {
		e.Bands = nil
	}
	return e, true
}

func matchName(name string, contains, prefix, exact []string) bool {
	if containsAny(name, contains) {
		return true
	}
	for _, p := range prefix {
		if strings.HasPrefix(name, p) {
			return true
		}
	}
	for _, x := range exact {
		if name == x {
			return true
		}
	}
	return false
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
