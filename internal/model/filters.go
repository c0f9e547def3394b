package model

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// Filters selects a subset of events. Every nil field is unconstrained.
type Filters struct {
	Country      *string
	State        *string
	City         *string
	Style        *DanceStyle
	Organisation *string
	Band         *string
	Caller       *string
	Name         *string
	Workshop     *bool
	Social       *bool
}

// Matches reports whether e satisfies every constraint in f. Country, state,
// style and organisation compare exactly; city, band, caller and name match
// case-insensitive substrings.
func (e Event) Matches(f Filters) bool {
	if f.Country != nil && e.Country != *f.Country {
		return false
	}
	if f.State != nil && (e.State == nil || *e.State != *f.State) {
		return false
	}
	if f.City != nil && !containsFold(e.City, *f.City) {
		return false
	}
	if f.Style != nil && !e.HasStyle(*f.Style) {
		return false
	}
	if f.Organisation != nil && (e.Organisation == nil || *e.Organisation != *f.Organisation) {
		return false
	}
	if f.Band != nil && !anyContainsFold(e.Bands, *f.Band) {
		return false
	}
	if f.Caller != nil && !anyContainsFold(e.Callers, *f.Caller) {
		return false
	}
	if f.Name != nil && !containsFold(e.Name, *f.Name) {
		return false
	}
	if f.Workshop != nil && e.Workshop != *f.Workshop {
		return false
	}
	if f.Social != nil && e.Social != *f.Social {
		return false
	}
	return true
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}

func anyContainsFold(values []string, sub string) bool {
	for _, v := range values {
		if containsFold(v, sub) {
			return true
		}
	}
	return false
}

// ParseFilters reads filters from URL query parameters. Empty parameters are
// treated as absent.
func ParseFilters(q url.Values) (Filters, error) {
	var f Filters
	str := func(key string) *string {
		v := strings.TrimSpace(q.Get(key))
		if v == "" {
			return nil
		}
		return &v
	}
	f.Country = str("country")
	f.State = str("state")
	f.City = str("city")
	f.Organisation = str("organisation")
	f.Band = str("band")
	f.Caller = str("caller")
	f.Name = str("name")

	if v := str("style"); v != nil {
		s, err := ParseDanceStyle(*v)
		if err != nil {
			return Filters{}, err
		}
		f.Style = &s
	}
	for key, dst := range map[string]**bool{"workshop": &f.Workshop, "social": &f.Social} {
		v := str(key)
		if v == nil {
			continue
		}
		b, err := strconv.ParseBool(*v)
		if err != nil {
			return Filters{}, fmt.Errorf("invalid %s filter %q", key, *v)
		}
		*dst = &b
	}
	return f, nil
}
