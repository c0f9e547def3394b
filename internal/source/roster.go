package source

import "strings"

// Roster is a fixed list of known performer names.
type Roster []string

// Match returns every name found as a case-insensitive substring of any of
// texts, in roster order.
func (r Roster) Match(texts ...string) []string {
	var out []string
	for _, name := range r {
		needle := strings.ToLower(name)
		for _, t := range texts {
			if strings.Contains(strings.ToLower(t), needle) {
				out = append(out, name)
				break
			}
		}
	}
	return out
}
