// Package clock provides the device time source and optional NTP resync.
package clock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/beevik/ntp"
	"golang.org/x/sys/unix"

	appLog "focusdisplay/internal/log"
)

// ErrSync is returned when an NTP resync fails. Callers treat it as
// non-fatal.
var ErrSync = errors.New("clock: ntp sync failed")

// Source reads the current instant.
type Source interface {
	Now() (time.Time, error)
}

// Setter accepts a corrected time.
type Setter interface {
	Set(t time.Time) error
}

// System is the host clock.
type System struct{}

func (System) Now() (time.Time, error) { return time.Now().UTC(), nil }

// SystemSetter writes the host clock. Requires CAP_SYS_TIME.
type SystemSetter struct{}

func (SystemSetter) Set(t time.Time) error {
	tv := unix.NsecToTimeval(t.UnixNano())
	if err := unix.Settimeofday(&tv); err != nil {
		return fmt.Errorf("clock: settimeofday: %w", err)
	}
	return nil
}

// queryFunc matches ntp.QueryWithOptions.
type queryFunc func(host string, opt ntp.QueryOptions) (*ntp.Response, error)

// NTPSyncer queries an NTP server and pushes the corrected time into the
// configured setters.
type NTPSyncer struct {
	Server  string
	Timeout time.Duration
	Setters []Setter

	query queryFunc
	now   func() time.Time
}

// NewNTPSyncer returns a syncer using the real NTP client.
func NewNTPSyncer(server string, timeout time.Duration, setters ...Setter) *NTPSyncer {
	return &NTPSyncer{
		Server:  server,
		Timeout: timeout,
		Setters: setters,
		query:   ntp.QueryWithOptions,
		now:     time.Now,
	}
}

// Sync returns the corrected time. The context bounds the overall query;
// an already expired context fails fast.
func (s *NTPSyncer) Sync(ctx context.Context) (time.Time, error) {
	if err := ctx.Err(); err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", ErrSync, err)
	}
	timeout := s.Timeout
	if dl, ok := ctx.Deadline(); ok {
		if rem := time.Until(dl); timeout <= 0 || rem < timeout {
			timeout = rem
		}
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	resp, err := s.query(s.Server, ntp.QueryOptions{Timeout: timeout})
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: query %s: %v", ErrSync, s.Server, err)
	}
	if err := resp.Validate(); err != nil {
		return time.Time{}, fmt.Errorf("%w: invalid response from %s: %v", ErrSync, s.Server, err)
	}

	corrected := s.now().Add(resp.ClockOffset).UTC()
	for _, st := range s.Setters {
		if err := st.Set(corrected); err != nil {
			// The offset is still useful to the remaining setters.
			appLog.Warn("clock set failed", "err", err)
		}
	}
	appLog.Info("ntp sync", "server", s.Server, "offset", resp.ClockOffset.String())
	return corrected, nil
}
