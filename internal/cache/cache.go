// Package cache persists the last calendar sync in a small bounded record
// that survives power-off between wake cycles.
//
// Record layout:
//
//	magic "FDC1" | payload length (uint32 BE) | CRC32-IEEE of payload (uint32 BE) | JSON payload
//
// A record that fails any check is reported as absent, never as an error.
package cache

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"hash/crc32"
	"time"

	appLog "focusdisplay/internal/log"
	"focusdisplay/internal/model"
)

// SchemaTag identifies the payload shape. Bump it when State changes
// incompatibly; older records then load as absent and force a full refresh.
const SchemaTag = "focusdisplay/sync/v1"

const (
	magic      = "FDC1"
	headerSize = 12

	DefaultCapacity   = 8 * 1024
	DefaultTruncateTo = 3
)

var (
	// ErrCorrupt covers every reason a stored record cannot be used. It never
	// leaves this package; Load reports such records as absent.
	ErrCorrupt = errors.New("cache: corrupt record")
	// ErrOverflow means the state did not fit even after truncating events.
	ErrOverflow = errors.New("cache: state exceeds capacity")
)

// State is the sync snapshot written after every successful full refresh.
type State struct {
	Schema string `json:"schema"`

	// Events are the upcoming meetings ordered by start time.
	Events []model.Event `json:"events"`

	// MinutesUntilNext is the countdown as measured at LastAPISync. It is
	// never rewritten by time-only cycles; nil means no upcoming meeting.
	MinutesUntilNext *int              `json:"minutes_until_next,omitempty"`
	NextTitle        string            `json:"next_title,omitempty"`
	NextTimeString   string            `json:"next_time_string,omitempty"`
	NextType         model.MeetingType `json:"next_type,omitempty"`
	NextLocation     string            `json:"next_location,omitempty"`

	LastAPISync time.Time `json:"last_api_sync"`
	LastNTPSync time.Time `json:"last_ntp_sync"`
}

// Slot is the raw durable storage behind the cache.
type Slot interface {
	// Read returns the stored bytes; an empty slot returns (nil, nil).
	Read() ([]byte, error)
	Write(data []byte) error
}

// Store encodes State into a Slot under a capacity limit.
type Store struct {
	slot       Slot
	capacity   int
	truncateTo int
}

// NewStore wraps slot. Non-positive limits fall back to the defaults.
func NewStore(slot Slot, capacity, truncateTo int) *Store {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if truncateTo <= 0 {
		truncateTo = DefaultTruncateTo
	}
	return &Store{slot: slot, capacity: capacity, truncateTo: truncateTo}
}

// Save writes st. When the record is too large the event list is cut to the
// earliest truncateTo entries and encoded once more; if that still does not
// fit, nothing is written and ErrOverflow is returned so the previous record
// stands.
func (s *Store) Save(st State) error {
	st = normalize(st)

	rec, err := encode(st)
	if err != nil {
		return err
	}
	if len(rec) > s.capacity {
		if len(st.Events) <= s.truncateTo {
			return fmt.Errorf("%w: %d > %d bytes", ErrOverflow, len(rec), s.capacity)
		}
		appLog.Warn("cache record over capacity; truncating events",
			"size", len(rec), "capacity", s.capacity, "events", len(st.Events), "keep", s.truncateTo)
		st.Events = st.Events[:s.truncateTo]
		rec, err = encode(st)
		if err != nil {
			return err
		}
		if len(rec) > s.capacity {
			return fmt.Errorf("%w: %d > %d bytes after truncation", ErrOverflow, len(rec), s.capacity)
		}
	}

	if err := s.slot.Write(rec); err != nil {
		return fmt.Errorf("cache: write slot: %w", err)
	}
	appLog.Debug("cache saved", "bytes", len(rec), "events", len(st.Events))
	return nil
}

// Load returns the stored state, or ok=false when the slot is empty,
// unreadable, truncated, corrupt or written under another schema.
func (s *Store) Load() (State, bool) {
	data, err := s.slot.Read()
	if err != nil {
		appLog.Warn("cache slot unreadable; treating as absent", "err", err)
		return State{}, false
	}
	if len(data) == 0 {
		return State{}, false
	}
	st, err := decode(data)
	if err != nil {
		appLog.Warn("cache record rejected; treating as absent", "err", err)
		return State{}, false
	}
	return st, true
}

func normalize(st State) State {
	st.Schema = SchemaTag
	st.LastAPISync = st.LastAPISync.UTC()
	st.LastNTPSync = st.LastNTPSync.UTC()
	if len(st.Events) > 0 {
		evs := make([]model.Event, len(st.Events))
		for i, ev := range st.Events {
			ev.Start = ev.Start.UTC()
			ev.End = ev.End.UTC()
			ev.IsPast = false
			evs[i] = ev
		}
		st.Events = evs
	}
	if st.MinutesUntilNext != nil {
		st.MinutesUntilNext = model.IntPtr(*st.MinutesUntilNext)
	}
	return st
}

func encode(st State) ([]byte, error) {
	payload, err := json.Marshal(st)
	if err != nil {
		return nil, fmt.Errorf("cache: encode: %w", err)
	}
	rec := make([]byte, headerSize+len(payload))
	copy(rec[0:4], magic)
	binary.BigEndian.PutUint32(rec[4:8], uint32(len(payload)))
	binary.BigEndian.PutUint32(rec[8:12], crc32.ChecksumIEEE(payload))
	copy(rec[headerSize:], payload)
	return rec, nil
}

func decode(rec []byte) (State, error) {
	if len(rec) < headerSize {
		return State{}, fmt.Errorf("%w: short header (%d bytes)", ErrCorrupt, len(rec))
	}
	if string(rec[0:4]) != magic {
		return State{}, fmt.Errorf("%w: bad magic", ErrCorrupt)
	}
	n := binary.BigEndian.Uint32(rec[4:8])
	if uint64(len(rec)-headerSize) != uint64(n) {
		return State{}, fmt.Errorf("%w: length %d, have %d", ErrCorrupt, n, len(rec)-headerSize)
	}
	payload := rec[headerSize:]
	if crc32.ChecksumIEEE(payload) != binary.BigEndian.Uint32(rec[8:12]) {
		return State{}, fmt.Errorf("%w: crc mismatch", ErrCorrupt)
	}

	var st State
	if err := json.Unmarshal(payload, &st); err != nil {
		return State{}, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if st.Schema != SchemaTag {
		return State{}, fmt.Errorf("%w: schema %q", ErrCorrupt, st.Schema)
	}
	return st, nil
}
