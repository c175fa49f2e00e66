package steam

import (
	"regexp"
	"strings"
	"time"
)

var unreleased = regexp.MustCompile(`(?i)(coming soon|\btba\b|\btbd\b|to be announced)`)

// releaseLayouts are tried in order; day-first forms come before month-first.
var releaseLayouts = []string{
	"2 Jan, 2006",
	"Jan 2, 2006",
	"January 2, 2006",
	"2 January, 2006",
	"2 Jan 2006",
	"Jan 2006",
	"January 2006",
	"2006-01-02",
}

// ParseReleaseDate normalizes the storefront's free-text release date.
// Empty, unannounced or unrecognized values yield nil.
func ParseReleaseDate(s string) *time.Time {
	s = strings.Join(strings.Fields(s), " ")
	if s == "" || unreleased.MatchString(s) {
		return nil
	}
	for _, layout := range releaseLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}
