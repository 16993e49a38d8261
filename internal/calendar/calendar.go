// Package calendar fetches upcoming meetings from a calendar provider and
// hands them to the core as model.Event values, already stripped of entries
// that are not meetings.
package calendar

import (
	"context"
	"errors"
	"regexp"
	"sort"
	"strings"
	"time"

	"focusdisplay/internal/model"
)

// ErrFetch wraps every provider failure. Callers treat it like a lost
// connection.
var ErrFetch = errors.New("calendar: fetch failed")

// Fetcher lists meetings overlapping [min, max), ordered by start.
type Fetcher interface {
	FetchEvents(ctx context.Context, min, max time.Time) ([]model.Event, error)
}

var (
	videoHosts = []string{
		"meet.google.com",
		"zoom.us",
		"teams.microsoft.com",
		"teams.live.com",
		"webex.com",
		"whereby.com",
		"meet.jit.si",
		"chime.aws",
	}
	phonePattern = regexp.MustCompile(`(?i)(^tel:|\+?\d[\d\s().-]{7,}\d)`)
)

// Classify guesses how a meeting is attended from its location and any
// conference hints.
func Classify(location, hints string) model.MeetingType {
	l := strings.ToLower(location + " " + hints)
	for _, h := range videoHosts {
		if strings.Contains(l, h) {
			return model.MeetingVideo
		}
	}
	if phonePattern.MatchString(strings.TrimSpace(location)) || strings.Contains(l, "tel:") {
		return model.MeetingPhone
	}
	if strings.TrimSpace(location) != "" {
		return model.MeetingInPerson
	}
	return model.MeetingUnknown
}

// sortByStart orders events by start, stable on ties.
func sortByStart(evs []model.Event) {
	sort.SliceStable(evs, func(i, j int) bool { return evs[i].Start.Before(evs[j].Start) })
}
