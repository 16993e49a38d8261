package app

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"focusdisplay/internal/config"
)

type recorder struct {
	ran [][]string
	err error
}

func (r *recorder) run(_ context.Context, argv []string) error {
	if len(argv) == 0 {
		return nil
	}
	r.ran = append(r.ran, argv)
	return r.err
}

func TestProbeLinkUpAndDown(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	l := NewProbeLink(config.NetworkConfig{
		ProbeAddress:   ln.Addr().String(),
		TimeoutSeconds: 5,
		UpCommand:      []string{"nmcli", "radio", "wifi", "on"},
		DownCommand:    []string{"nmcli", "radio", "wifi", "off"},
	})
	rec := &recorder{}
	l.run = rec.run

	require.NoError(t, l.Up(context.Background()))
	l.Down(context.Background())
	assert.Equal(t, [][]string{
		{"nmcli", "radio", "wifi", "on"},
		{"nmcli", "radio", "wifi", "off"},
	}, rec.ran)
}

func TestProbeLinkRetriesUntilReachable(t *testing.T) {
	l := NewProbeLink(config.NetworkConfig{ProbeAddress: "example.invalid:443", TimeoutSeconds: 5})
	l.Retry = time.Millisecond
	l.run = (&recorder{}).run

	attempts := 0
	l.dial = func(ctx context.Context, network, addr string) (net.Conn, error) {
		attempts++
		if attempts < 3 {
			return nil, errors.New("network is unreachable")
		}
		c1, c2 := net.Pipe()
		c2.Close()
		return c1, nil
	}
	require.NoError(t, l.Up(context.Background()))
	assert.Equal(t, 3, attempts)
}

func TestProbeLinkTimeout(t *testing.T) {
	l := NewProbeLink(config.NetworkConfig{ProbeAddress: "example.invalid:443"})
	l.Timeout = 50 * time.Millisecond
	l.Retry = 10 * time.Millisecond
	l.run = (&recorder{}).run
	l.dial = func(context.Context, string, string) (net.Conn, error) {
		return nil, errors.New("network is unreachable")
	}

	err := l.Up(context.Background())
	assert.ErrorIs(t, err, ErrConnectivity)
	assert.ErrorContains(t, err, "example.invalid:443")
}

func TestProbeLinkUpCommandFailure(t *testing.T) {
	l := NewProbeLink(config.NetworkConfig{ProbeAddress: "127.0.0.1:1", TimeoutSeconds: 1, UpCommand: []string{"wifi-up"}})
	l.run = (&recorder{err: errors.New("exit status 1")}).run

	err := l.Up(context.Background())
	assert.ErrorIs(t, err, ErrConnectivity)
	assert.ErrorContains(t, err, "up command")
}
