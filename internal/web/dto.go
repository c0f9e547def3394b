package web

import (
	"errors"
	"fmt"
	"time"

	"dancefeed/internal/aggregate"
	"dancefeed/internal/model"
)

type eventsResponse struct {
	Months []monthDTO `json:"months"`
	Count  int        `json:"count"`
}

type monthDTO struct {
	Name   string     `json:"name"`
	Start  string     `json:"start"`
	Events []eventDTO `json:"events"`
}

// eventDTO is the JSON form of an event, for both responses and
// submissions. Whole-day events carry start_date/end_date, timestamped ones
// start/end in RFC 3339.
type eventDTO struct {
	Name         string   `json:"name" validate:"required"`
	Details      *string  `json:"details,omitempty"`
	Links        []string `json:"links" validate:"required,min=1,dive,url"`
	StartDate    string   `json:"start_date,omitempty"`
	EndDate      string   `json:"end_date,omitempty"`
	Start        string   `json:"start,omitempty"`
	End          string   `json:"end,omitempty"`
	Country      string   `json:"country" validate:"required"`
	State        *string  `json:"state,omitempty"`
	City         string   `json:"city" validate:"required"`
	Styles       []string `json:"styles" validate:"required,min=1"`
	Workshop     bool     `json:"workshop"`
	Social       bool     `json:"social"`
	Bands        []string `json:"bands,omitempty"`
	Callers      []string `json:"callers,omitempty"`
	Price        *string  `json:"price,omitempty"`
	Organisation *string  `json:"organisation,omitempty"`
	Cancelled    bool     `json:"cancelled,omitempty"`
	// MultiDay is only set on responses.
	MultiDay bool `json:"multi_day,omitempty"`
	Source       *string  `json:"source,omitempty"`
}

type styleDTO struct {
	Tag  string `json:"tag"`
	Name string `json:"name"`
}

type submitResponse struct {
	PullRequest string `json:"pull_request"`
	Request     string `json:"request"`
}

type statusResponse struct {
	Events    int       `json:"events"`
	LastCycle *cycleDTO `json:"last_cycle,omitempty"`
}

type cycleDTO struct {
	ID          string    `json:"id"`
	Started     time.Time `json:"started"`
	DurationSec float64   `json:"duration_seconds"`
	Sources     int       `json:"sources"`
	Failed      int       `json:"failed_sources"`
	Imported    int       `json:"imported"`
	Total       int       `json:"total"`
	SourceError string    `json:"source_error,omitempty"`
}

func toCycleDTO(s aggregate.Summary) *cycleDTO {
	dto := &cycleDTO{
		ID:          s.ID,
		Started:     s.Started,
		DurationSec: s.Duration.Seconds(),
		Sources:     s.Sources,
		Failed:      s.Failed,
		Imported:    s.Imported,
		Total:       s.Total,
	}
	if s.SourceErr != nil {
		dto.SourceError = s.SourceErr.Error()
	}
	return dto
}

func toDTO(e model.Event) eventDTO {
	dto := eventDTO{
		Name:         e.Name,
		Details:      e.Details,
		Links:        e.Links,
		Country:      e.Country,
		State:        e.State,
		City:         e.City,
		Workshop:     e.Workshop,
		Social:       e.Social,
		Bands:        e.Bands,
		Callers:      e.Callers,
		Price:        e.Price,
		Organisation: e.Organisation,
		Cancelled:    e.Cancelled,
		Source:       e.Source,
		MultiDay:     e.Time.MultiDay(),
	}
	for _, s := range e.Styles {
		dto.Styles = append(dto.Styles, string(s))
	}
	if e.Time.IsDateOnly() {
		dto.StartDate = e.Time.Start().Format(model.DateLayout)
		dto.EndDate = e.Time.End().Format(model.DateLayout)
	} else {
		dto.Start = e.Time.Start().Format(time.RFC3339)
		dto.End = e.Time.End().Format(time.RFC3339)
	}
	return dto
}

// event converts a submission. Submissions never carry a source; they are
// hand-entered by definition.
func (d eventDTO) event() (model.Event, error) {
	e := model.Event{
		Name:         d.Name,
		Details:      nonBlank(d.Details),
		Links:        d.Links,
		Country:      d.Country,
		State:        nonBlank(d.State),
		City:         d.City,
		Workshop:     d.Workshop,
		Social:       d.Social,
		Bands:        d.Bands,
		Callers:      d.Callers,
		Organisation: nonBlank(d.Organisation),
		Cancelled:    d.Cancelled,
	}

	var styles []model.DanceStyle
	for _, s := range d.Styles {
		st, err := model.ParseDanceStyle(s)
		if err != nil {
			return model.Event{}, err
		}
		styles = append(styles, st)
	}
	e.Styles = model.StyleSet(styles...)

	if p := nonBlank(d.Price); p != nil {
		price, err := model.FormatPrice(*p)
		if err != nil {
			return model.Event{}, err
		}
		e.Price = &price
	}

	var err error
	switch {
	case d.StartDate != "" && d.Start == "" && d.End == "":
		end := d.EndDate
		if end == "" {
			end = d.StartDate
		}
		var s, en time.Time
		if s, err = time.Parse(model.DateLayout, d.StartDate); err != nil {
			return model.Event{}, fmt.Errorf("start_date: %w", err)
		}
		if en, err = time.Parse(model.DateLayout, end); err != nil {
			return model.Event{}, fmt.Errorf("end_date: %w", err)
		}
		e.Time, err = model.DateOnly(s, en)
	case d.Start != "" && d.End != "" && d.StartDate == "" && d.EndDate == "":
		var s, en time.Time
		if s, err = time.Parse(time.RFC3339, d.Start); err != nil {
			return model.Event{}, fmt.Errorf("start: %w", err)
		}
		if en, err = time.Parse(time.RFC3339, d.End); err != nil {
			return model.Event{}, fmt.Errorf("end: %w", err)
		}
		e.Time, err = model.DateTime(s, en)
	default:
		return model.Event{}, errors.New("give either start_date[/end_date] or both start and end")
	}
	if err != nil {
		return model.Event{}, err
	}
	return e, nil
}

func nonBlank(s *string) *string {
	if s == nil {
		return nil
	}
	return model.StringPtr(*s)
}
