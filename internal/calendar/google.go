package calendar

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	appLog "focusdisplay/internal/log"
	"focusdisplay/internal/model"
)

// Google event types that can be meetings; every other type is dropped.
const (
	eventTypeDefault   = "default"
	eventTypeFromGmail = "fromGmail"
)

var googleEndpoint = oauth2.Endpoint{
	AuthURL:   "https://accounts.google.com/o/oauth2/auth",
	TokenURL:  "https://oauth2.googleapis.com/token",
	AuthStyle: oauth2.AuthStyleInParams,
}

// GoogleConfig parameterizes the Google Calendar provider.
type GoogleConfig struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
	CalendarID   string
	MaxResults   int

	// Endpoint and TokenURL override the public Google URLs (tests).
	Endpoint string
	TokenURL string
	// HTTPClient is the transport underneath OAuth (tests, proxies).
	HTTPClient *http.Client
}

// Google reads one calendar through the Calendar v3 API with an OAuth
// refresh token. The access token is cached between cycles of one process.
type Google struct {
	cfg    GoogleConfig
	tokens oauth2.TokenSource
}

// NewGoogle validates credentials and prepares the token source.
func NewGoogle(cfg GoogleConfig) (*Google, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" || cfg.RefreshToken == "" {
		return nil, fmt.Errorf("calendar: google client_id, client_secret and refresh_token are required")
	}
	if cfg.CalendarID == "" {
		cfg.CalendarID = "primary"
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = 10
	}
	ep := googleEndpoint
	if cfg.TokenURL != "" {
		ep.TokenURL = cfg.TokenURL
	}
	oc := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Endpoint:     ep,
		Scopes:       []string{gcal.CalendarReadonlyScope},
	}
	tctx := context.Background()
	if cfg.HTTPClient != nil {
		tctx = context.WithValue(tctx, oauth2.HTTPClient, cfg.HTTPClient)
	}
	return &Google{
		cfg:    cfg,
		tokens: oauth2.ReuseTokenSource(nil, oc.TokenSource(tctx, &oauth2.Token{RefreshToken: cfg.RefreshToken})),
	}, nil
}

func (g *Google) FetchEvents(ctx context.Context, min, max time.Time) ([]model.Event, error) {
	base := http.DefaultTransport
	if g.cfg.HTTPClient != nil && g.cfg.HTTPClient.Transport != nil {
		base = g.cfg.HTTPClient.Transport
	}
	client := &http.Client{Transport: &oauth2.Transport{Source: g.tokens, Base: base}}

	opts := []option.ClientOption{option.WithHTTPClient(client)}
	if g.cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(g.cfg.Endpoint))
	}
	svc, err := gcal.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: google service: %v", ErrFetch, err)
	}

	resp, err := svc.Events.List(g.cfg.CalendarID).
		TimeMin(min.UTC().Format(time.RFC3339)).
		TimeMax(max.UTC().Format(time.RFC3339)).
		SingleEvents(true).
		OrderBy("startTime").
		MaxResults(int64(g.cfg.MaxResults)).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("%w: google list: %v", ErrFetch, err)
	}

	out := make([]model.Event, 0, len(resp.Items))
	for _, it := range resp.Items {
		ev, ok := fromGoogle(it)
		if !ok {
			continue
		}
		out = append(out, ev)
	}
	sortByStart(out)
	appLog.Info("google calendar fetched", "items", len(resp.Items), "meetings", len(out))
	return out, nil
}

// fromGoogle converts one item, rejecting cancelled, declined, all-day and
// non-meeting entries.
func fromGoogle(it *gcal.Event) (model.Event, bool) {
	if it == nil || it.Status == "cancelled" {
		return model.Event{}, false
	}
	if it.EventType != "" && it.EventType != eventTypeDefault && it.EventType != eventTypeFromGmail {
		// outOfOffice, focusTime, workingLocation, birthday
		return model.Event{}, false
	}
	for _, a := range it.Attendees {
		if a != nil && a.Self && a.ResponseStatus == "declined" {
			return model.Event{}, false
		}
	}
	if it.Start == nil || it.End == nil || it.Start.DateTime == "" || it.End.DateTime == "" {
		return model.Event{}, false
	}
	start, err := time.Parse(time.RFC3339, it.Start.DateTime)
	if err != nil {
		return model.Event{}, false
	}
	end, err := time.Parse(time.RFC3339, it.End.DateTime)
	if err != nil {
		return model.Event{}, false
	}

	title := it.Summary
	if title == "" {
		title = "No title"
	}
	return model.NewEvent(title, start, end, classifyGoogle(it), it.Location), true
}

func classifyGoogle(it *gcal.Event) model.MeetingType {
	if it.ConferenceData != nil {
		for _, ep := range it.ConferenceData.EntryPoints {
			if ep != nil && ep.EntryPointType == "video" {
				return model.MeetingVideo
			}
		}
		for _, ep := range it.ConferenceData.EntryPoints {
			if ep != nil && ep.EntryPointType == "phone" {
				return model.MeetingPhone
			}
		}
	}
	if it.HangoutLink != "" {
		return model.MeetingVideo
	}
	return Classify(it.Location, it.Description)
}
