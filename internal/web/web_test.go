package web

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"focusdisplay/internal/battery"
	"focusdisplay/internal/config"
	"focusdisplay/internal/model"
)

type countingBattery struct {
	reads int
	err   error
}

func (c *countingBattery) Read(context.Context) (battery.Status, error) {
	c.reads++
	return battery.Status{Percent: 64, VoltageMv: 3800}, c.err
}

func sampleState() model.DisplayState {
	return model.DisplayState{
		Clocks: []model.CityTime{{Label: "BARCELONA", Hour: 14, Minute: 5}},
		Next: model.NextMeeting{
			MinutesUntil: model.IntPtr(55), Title: "Design review", TimeString: "3:00 PM",
		},
		Agenda: []model.AgendaItem{
			{Title: "Standup", StartHour: 9, DurationMin: 15, IsPast: true},
			{Title: "Design review", StartHour: 15, DurationMin: 60},
		},
		LocalHour:  14,
		DateString: "Thursday, Oct 15",
		BatteryPct: 87,
	}
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestServerBeforeFirstFrame(t *testing.T) {
	s := NewServer(config.WebConfig{}, 800, 480, nil)
	h := s.Handler()

	assert.Equal(t, http.StatusOK, get(t, h, "/health").Code)
	assert.Equal(t, http.StatusServiceUnavailable, get(t, h, "/api/state").Code)
	assert.Equal(t, http.StatusServiceUnavailable, get(t, h, "/display").Code)
	assert.Equal(t, http.StatusNotFound, get(t, h, "/preview.png").Code)
	assert.Equal(t, http.StatusServiceUnavailable, get(t, h, "/api/battery").Code)
}

func TestServerPublish(t *testing.T) {
	s := NewServer(config.WebConfig{}, 800, 480, nil)
	s.Publish(sampleState())
	s.SetPreview([]byte("\x89PNG"))
	h := s.Handler()

	rec := get(t, h, "/api/state")
	require.Equal(t, http.StatusOK, rec.Code)
	var got model.DisplayState
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, 87, got.BatteryPct)
	require.NotNil(t, got.Next.MinutesUntil)
	assert.Equal(t, 55, *got.Next.MinutesUntil)

	rec = get(t, h, "/preview.png")
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Equal(t, "\x89PNG", rec.Body.String())

	rec = get(t, h, "/display")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `data-ready="true"`)
	assert.Contains(t, body, "BARCELONA")
	assert.Contains(t, body, "2:05 PM")
	assert.Contains(t, body, "You can focus for")
	assert.Contains(t, body, "55 min")
	assert.Contains(t, body, "Next: Design review")
	assert.Contains(t, body, "TODAY - Thursday, Oct 15")
	assert.Contains(t, body, "87%")
	assert.Contains(t, body, "&gt;")
	assert.Contains(t, body, "width: 240px")

	s.PublishError("WiFi failed")
	body = get(t, h, "/display").Body.String()
	assert.Contains(t, body, "Error:")
	assert.Contains(t, body, "WiFi failed")
	assert.NotContains(t, body, "BARCELONA")
}

func TestServerBatteryCached(t *testing.T) {
	br := &countingBattery{}
	h := NewServer(config.WebConfig{}, 800, 480, br).Handler()

	for range 3 {
		rec := get(t, h, "/api/battery")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"percent":64,"voltage_mv":3800}`, rec.Body.String())
	}
	assert.Equal(t, 1, br.reads)

	failing := &countingBattery{err: errors.New("nack")}
	rec := get(t, NewServer(config.WebConfig{}, 800, 480, failing).Handler(), "/api/battery")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestBasicAuth(t *testing.T) {
	cfg := config.WebConfig{BasicAuth: &config.BasicAuthConfig{Username: "admin", Password: "pw"}}
	s := NewServer(cfg, 800, 480, nil)
	s.Publish(sampleState())
	h := s.Handler()

	assert.Equal(t, http.StatusOK, get(t, h, "/health").Code, "health stays open")
	rec := get(t, h, "/api/state")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("WWW-Authenticate"))

	req := httptest.NewRequest(http.MethodGet, "/api/state", nil)
	req.SetBasicAuth("admin", "pw")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	req.SetBasicAuth("admin", "nope")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestServeShutsDownOnCancel(t *testing.T) {
	s := NewServer(config.WebConfig{Listen: "127.0.0.1:0"}, 800, 480, nil)
	ctx, cancel := context.WithCancel(context.Background())
	ready := make(chan string, 1)
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ready) }()

	addr := <-ready
	resp, err := http.Get("http://" + addr + "/health")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, "OK", string(body))

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
