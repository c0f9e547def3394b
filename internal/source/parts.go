package source

import (
	"fmt"
	"strings"

	"dancefeed/internal/model"
)

// EventParts is a Record whose mandatory fields were all present. It is what
// adapter hooks classify.
type EventParts struct {
	FeedURL     string
	URL         string
	Summary     string
	Description string
	Location    string
	Organiser   *string
	Categories  []string
	Price       *string
	Cancelled   bool
	Time        model.EventTime

	// Lower-cased copies for keyword matching.
	SummaryLower     string
	DescriptionLower string
}

// NewEventParts validates r. A missing URL, summary, description, time or
// location yields an error wrapping ErrMissingField; a time resolution error
// is returned as is.
func NewEventParts(feedURL string, r Record) (EventParts, error) {
	if r.Err != nil {
		return EventParts{}, r.Err
	}
	if r.TimeErr != nil {
		return EventParts{}, r.TimeErr
	}
	var missing []string
	if r.URL == nil || strings.TrimSpace(*r.URL) == "" {
		missing = append(missing, "url")
	}
	if r.Summary == nil || strings.TrimSpace(*r.Summary) == "" {
		missing = append(missing, "summary")
	}
	if r.Description == nil {
		missing = append(missing, "description")
	}
	if r.Time == nil {
		missing = append(missing, "time")
	}
	if r.Location == nil || strings.TrimSpace(*r.Location) == "" {
		missing = append(missing, "location")
	}
	if len(missing) > 0 {
		return EventParts{}, fmt.Errorf("%w: %s", ErrMissingField, strings.Join(missing, ", "))
	}

	return EventParts{
		FeedURL:          feedURL,
		URL:              strings.TrimSpace(*r.URL),
		Summary:          *r.Summary,
		Description:      *r.Description,
		Location:         *r.Location,
		Organiser:        r.Organiser,
		Categories:       r.Categories,
		Price:            r.Price,
		Cancelled:        r.Cancelled,
		Time:             *r.Time,
		SummaryLower:     strings.ToLower(*r.Summary),
		DescriptionLower: strings.ToLower(*r.Description),
	}, nil
}

// HasCategory reports whether c is among the record's upstream categories.
func (p *EventParts) HasCategory(c string) bool {
	for _, cat := range p.Categories {
		if strings.EqualFold(strings.TrimSpace(cat), c) {
			return true
		}
	}
	return false
}

// LocationParts splits the raw location on sep, trimming each element.
func (p *EventParts) LocationParts(sep string) []string {
	raw := strings.Split(p.Location, sep)
	out := make([]string, 0, len(raw))
	for _, s := range raw {
		out = append(out, strings.TrimSpace(s))
	}
	return out
}

// DecodeEntities replaces the handful of HTML entities feeds leave in text
// fields. Format-level escaping is the decoder's job.
func DecodeEntities(s string) string {
	return entityReplacer.Replace(s)
}

var entityReplacer = strings.NewReplacer(
	"&amp;", "&",
	"&gt;", ">",
	"&lt;", "<",
	"&nbsp;", " ",
)
