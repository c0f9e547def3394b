// Package plug decodes the plug.events embed API, a JSON list of events.
package plug

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"dancefeed/internal/model"
	"dancefeed/internal/source"
)

// EndpointURL is the embed API for a publisher token.
func EndpointURL(token string) string {
	return "https://api1.plug.events/api1/embed/embed1?token=" + token
}

// EventList is the top-level API response.
type EventList struct {
	Events []Event `json:"events"`
}

// Event is one entry of the API response.
type Event struct {
	Name             string    `json:"name"`
	Description      string    `json:"description"`
	VenueLocale      *string   `json:"venueLocale"`
	Subinterests     []string  `json:"subinterests"`
	StartDateTimeISO time.Time `json:"startDateTimeIso"`
	EndDateTimeISO   time.Time `json:"endDateTimeIso"`
	Timezone         string    `json:"timezone"`
	IsFree           bool      `json:"isFree"`
	PriceDisplay     *string   `json:"priceDisplay"`
	PublishedByName  *string   `json:"publishedByName"`
	PlugURL          string    `json:"plugUrl"`
}

// Decoder decodes API responses into records.
type Decoder struct{}

var _ source.Decoder = Decoder{}

// Decode parses body as an EventList.
func (Decoder) Decode(body []byte, _ source.DecodeOptions) ([]source.Record, error) {
	var list EventList
	if err := json.Unmarshal(body, &list); err != nil {
		return nil, fmt.Errorf("parse event list: %w", err)
	}
	records := make([]source.Record, 0, len(list.Events))
	for _, ev := range list.Events {
		records = append(records, ev.record())
	}
	return records, nil
}

func (ev Event) record() source.Record {
	name, description := ev.Name, ev.Description
	rec := source.Record{
		URL:         model.StringPtr(ev.PlugURL),
		Summary:     &name,
		Description: &description,
		Location:    ev.VenueLocale,
		Categories:  ev.Subinterests,
		Organiser:   ev.PublishedByName,
	}

	price, err := FormatPrice(ev.IsFree, ev.PriceDisplay)
	if err != nil {
		rec.Err = err
	}
	rec.Price = price

	et, err := ev.eventTime()
	if err != nil {
		rec.TimeErr = err
	} else {
		rec.Time = &et
	}
	return rec
}

func (ev Event) eventTime() (model.EventTime, error) {
	if ev.StartDateTimeISO.IsZero() || ev.EndDateTimeISO.IsZero() {
		return model.EventTime{}, fmt.Errorf("%w: start or end timestamp", source.ErrMissingField)
	}
	loc, err := time.LoadLocation(strings.TrimSpace(ev.Timezone))
	if err != nil || ev.Timezone == "" {
		return model.EventTime{}, fmt.Errorf("unknown timezone %q", ev.Timezone)
	}
	start := ev.StartDateTimeISO.In(loc).Truncate(time.Minute)
	end := ev.EndDateTimeISO.In(loc)
	return model.DateTime(start, end)
}

// FormatPrice renders the price: "free" for free events, otherwise the
// normalised display price if any.
func FormatPrice(isFree bool, display *string) (*string, error) {
	if isFree {
		free := "free"
		return &free, nil
	}
	if display == nil || strings.TrimSpace(*display) == "" {
		return nil, nil
	}
	p, err := model.FormatPrice(*display)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
