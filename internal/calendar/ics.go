package calendar

import (
	"context"
	"errors"
	"fmt"
	"time"

	"focusdisplay/internal/config"
	"focusdisplay/internal/ics"
	appLog "focusdisplay/internal/log"
	"focusdisplay/internal/model"
)

// ICS merges one or more ICS subscriptions. A source that fails is skipped
// as long as at least one source produced data.
type ICS struct {
	fetcher *ics.Fetcher
	sources []ics.Source
	max     int
}

// NewICS builds the provider from the calendar section.
func NewICS(cc config.CalendarConfig, fetcher *ics.Fetcher) (*ICS, error) {
	if len(cc.ICS) == 0 {
		return nil, errors.New("calendar: no ics sources configured")
	}
	p := &ICS{fetcher: fetcher, max: cc.MaxResults}
	for i, s := range cc.ICS {
		id := s.ID
		if id == "" {
			id = fmt.Sprintf("ics-%d", i)
		}
		p.sources = append(p.sources, ics.Source{ID: id, URL: s.URL, Self: cc.SelfEmail})
	}
	return p, nil
}

func (p *ICS) FetchEvents(ctx context.Context, min, max time.Time) ([]model.Event, error) {
	results, errs := p.fetcher.FetchAll(ctx, p.sources)
	if len(results) == 0 {
		return nil, fmt.Errorf("%w: %v", ErrFetch, errors.Join(errs...))
	}

	var occ []ics.Occurrence
	for _, r := range results {
		parsed, err := ics.ParseICS(r.Source, r.Body, time.UTC)
		if err != nil {
			appLog.Warn("ics source unparsable", "id", r.Source.ID, "err", err)
			continue
		}
		o, err := ics.ExpandOccurrences(parsed, ics.ExpandConfig{RangeStart: min, RangeEnd: max})
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrFetch, err)
		}
		occ = append(occ, o...)
	}

	out := make([]model.Event, 0, len(occ))
	for _, o := range occ {
		if o.AllDay || o.Cancelled || o.Declined {
			continue
		}
		title := o.Summary
		if title == "" {
			title = "No title"
		}
		out = append(out, model.NewEvent(title, o.Start, o.End, Classify(o.Location, o.URL+" "+o.Description), o.Location))
	}
	sortByStart(out)
	if p.max > 0 && len(out) > p.max {
		out = out[:p.max]
	}
	return out, nil
}
