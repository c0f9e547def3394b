// Package dresden imports the two calendars of Folktanz Dresden, the
// irregular balls and the weekly Tuesday dance.
package dresden

import (
	"strings"
	"time"

	"dancefeed/internal/adapters"
	"dancefeed/internal/ics"
	appLog "dancefeed/internal/log"
	"dancefeed/internal/model"
	"dancefeed/internal/source"
)

const (
	Name         = "dresden"
	organisation = "Folktanz Dresden e.V."
	timezone     = "Europe/Berlin"

	MainFeedURL   = "https://www.gugelhupf-dresden.de/tanz-in-dresden/calendar/icslist/calendar.ics"
	WeeklyFeedURL = "https://www.gugelhupf-dresden.de/tanz-am-dienstag/calendar/icslist/calendar.ics"

	mainPage   = "https://www.gugelhupf-dresden.de/tanz-in-dresden/"
	weeklyPage = "https://www.gugelhupf-dresden.de/tanz-am-dienstag/"
)

func init() {
	adapters.Register(Name, func(opts adapters.Options) (source.Adapter, error) {
		return New(opts), nil
	})
}

type Adapter struct {
	desc   source.Descriptor
	berlin *time.Location
}

func New(opts adapters.Options) *Adapter {
	org, tz := organisation, timezone
	berlin, err := time.LoadLocation(timezone)
	if err != nil {
		// tzdata is embedded by cmd/dancefeed; this only happens in stripped builds.
		appLog.Error("dresden: cannot load timezone", err, "tz", timezone)
	}
	return &Adapter{
		berlin: berlin,
		desc: source.Descriptor{
			Name:                Name,
			URLs:                []string{MainFeedURL, WeeklyFeedURL},
			Decoder:             ics.Decoder{},
			DefaultOrganisation: &org,
			DefaultTimezone:     &tz,
			AcceptUTC:           true,
			Horizon:             opts.HorizonOr(adapters.DefaultHorizon),
		},
	}
}

func (a *Adapter) Descriptor() source.Descriptor { return a.desc }

func weekly(p *source.EventParts) bool { return p.FeedURL == WeeklyFeedURL }

// Workshop: every Tuesday dance starts with a class; the balls only for a Tanzfest.
func (a *Adapter) Workshop(p *source.EventParts) bool {
	return weekly(p) || strings.Contains(p.SummaryLower, "tanzfest")
}

func (a *Adapter) Social(*source.EventParts) bool { return true }

func (a *Adapter) Styles(*source.EventParts) []model.DanceStyle {
	return []model.DanceStyle{model.Balfolk}
}

func (a *Adapter) Location(p *source.EventParts) (source.Location, error) {
	city := "Dresden"
	if !weekly(p) && strings.Contains(p.Summary, "Hohnstein") {
		city = "Hohnstein"
	}
	return source.Location{Country: "Germany", City: city}, nil
}

// Fixup corrects the times, which the feeds label as UTC although they are
// local Dresden time, and adds the calendar's landing page as a link.
func (a *Adapter) Fixup(p *source.EventParts, e model.Event) (model.Event, bool) {
	e.Organisation = model.StringPtr(organisation)

	if !e.Time.IsDateOnly() {
		if _, off := e.Time.Start().Zone(); off == 0 && a.berlin != nil {
			start, err := ics.InZone(e.Time.Start(), a.berlin)
			if err != nil {
				appLog.Warn("dresden: skipping event with unresolvable start", "err", err, "summary", p.Summary, "url", p.URL)
				return model.Event{}, false
			}
			end, err := ics.InZone(e.Time.End(), a.berlin)
			if err != nil {
				appLog.Warn("dresden: skipping event with unresolvable end", "err", err, "summary", p.Summary, "url", p.URL)
				return model.Event{}, false
			}
			if e.Time, err = model.DateTime(start, end); err != nil {
				appLog.Warn("dresden: skipping event", "err", err, "summary", p.Summary, "url", p.URL)
				return model.Event{}, false
			}
		}
	}

	page := mainPage
	if weekly(p) {
		page = weeklyPage
	}
	if !containsLink(e.Links, page) {
		e.Links = append(e.Links, page)
	}
	return e, true
}

func containsLink(links []string, link string) bool {
	for _, l := range links {
		if l == link {
			return true
		}
	}
	return false
}
