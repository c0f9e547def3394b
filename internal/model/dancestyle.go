package model

import (
	"fmt"
	"sort"
)

// DanceStyle is one of the enumerated dance styles an event can carry.
// The string value is the tag used in persisted files and query strings.
type DanceStyle string

const (
	Balfolk              DanceStyle = "balfolk"
	Cajun                DanceStyle = "cajun"
	Contra               DanceStyle = "contra"
	EnglishCeilidh       DanceStyle = "e-ceilidh"
	EnglishCountryDance  DanceStyle = "ecd"
	Playford             DanceStyle = "playford"
	Scandinavian         DanceStyle = "scandi"
	ScottishCeilidh      DanceStyle = "s-ceilidh"
	ScottishCountryDance DanceStyle = "scd"
	Squares              DanceStyle = "squares"
)

var allStyles = []DanceStyle{
	Balfolk,
	Cajun,
	Contra,
	EnglishCeilidh,
	EnglishCountryDance,
	Playford,
	Scandinavian,
	ScottishCeilidh,
	ScottishCountryDance,
	Squares,
}

// DanceStyles returns every known style in tag order.
func DanceStyles() []DanceStyle {
	out := make([]DanceStyle, len(allStyles))
	copy(out, allStyles)
	return out
}

// ParseDanceStyle looks up a style by tag.
func ParseDanceStyle(tag string) (DanceStyle, error) {
	for _, s := range allStyles {
		if string(s) == tag {
			return s, nil
		}
	}
	return "", fmt.Errorf("unknown dance style %q", tag)
}

// Name is the human readable label.
func (s DanceStyle) Name() string {
	switch s {
	case Balfolk:
		return "Balfolk"
	case Cajun:
		return "Cajun"
	case Contra:
		return "Contra"
	case EnglishCeilidh:
		return "English Ceilidh"
	case EnglishCountryDance:
		return "English Country Dance"
	case Playford:
		return "Playford"
	case Scandinavian:
		return "Scandinavian"
	case ScottishCeilidh:
		return "Scottish Ceilidh"
	case ScottishCountryDance:
		return "Scottish Country Dance"
	case Squares:
		return "Squares"
	default:
		return string(s)
	}
}

// StyleSet deduplicates styles and orders them by tag, so that two sets with
// the same members compare equal.
func StyleSet(styles ...DanceStyle) []DanceStyle {
	if len(styles) == 0 {
		return nil
	}
	seen := make(map[DanceStyle]struct{}, len(styles))
	out := make([]DanceStyle, 0, len(styles))
	for _, s := range styles {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
