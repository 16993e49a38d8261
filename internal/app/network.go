package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"focusdisplay/internal/config"
	appLog "focusdisplay/internal/log"
	"focusdisplay/internal/sleep"
)

// ErrConnectivity means the network did not come up within the wait.
var ErrConnectivity = errors.New("app: no connectivity")

// Link brings the network up for a full refresh and drops it afterwards.
type Link interface {
	Up(ctx context.Context) error
	Down(ctx context.Context)
}

// ProbeLink runs an optional bring-up command and then waits until a TCP
// connection to a known host succeeds.
type ProbeLink struct {
	Address     string
	Timeout     time.Duration
	UpCommand   []string
	DownCommand []string
	// Retry is the pause between probes.
	Retry time.Duration

	dial func(ctx context.Context, network, addr string) (net.Conn, error)
	run  func(ctx context.Context, argv []string) error
}

// NewProbeLink builds a link from the network section.
func NewProbeLink(nc config.NetworkConfig) *ProbeLink {
	var d net.Dialer
	return &ProbeLink{
		Address:     nc.ProbeAddress,
		Timeout:     nc.Timeout(),
		UpCommand:   nc.UpCommand,
		DownCommand: nc.DownCommand,
		Retry:       time.Second,
		dial:        d.DialContext,
		run:         sleep.RunCommand,
	}
}

func (l *ProbeLink) Up(ctx context.Context) error {
	if l.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.Timeout)
		defer cancel()
	}
	if err := l.run(ctx, l.UpCommand); err != nil {
		return fmt.Errorf("%w: up command: %v", ErrConnectivity, err)
	}

	start := time.Now()
	for attempt := 1; ; attempt++ {
		conn, err := l.dial(ctx, "tcp", l.Address)
		if err == nil {
			conn.Close()
			appLog.Debug("network up", "probe", l.Address, "attempts", attempt, "took", time.Since(start).String())
			return nil
		}

		t := time.NewTimer(l.Retry)
		select {
		case <-ctx.Done():
			t.Stop()
			return fmt.Errorf("%w: probe %s: %v", ErrConnectivity, l.Address, err)
		case <-t.C:
		}
	}
}

// Down runs the tear-down command. ctx may already be spent by the refresh,
// so the command gets a short budget of its own.
func (l *ProbeLink) Down(ctx context.Context) {
	if len(l.DownCommand) == 0 {
		return
	}
	dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := l.run(dctx, l.DownCommand); err != nil {
		appLog.Warn("network down command failed", "err", err)
	}
}
