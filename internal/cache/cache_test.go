package cache

import (
	"encoding/binary"
	"errors"
	"hash/crc32"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"focusdisplay/internal/model"
)

// memSlot is an in-memory Slot that can be told to fail writes.
type memSlot struct {
	data     []byte
	writeErr error
	readErr  error
}

func (m *memSlot) Read() ([]byte, error) { return m.data, m.readErr }

func (m *memSlot) Write(b []byte) error {
	if m.writeErr != nil {
		return m.writeErr
	}
	m.data = append([]byte(nil), b...)
	return nil
}

var syncAt = time.Date(2026, 10, 15, 9, 20, 0, 0, time.UTC)

func events(n int, titleLen int) []model.Event {
	out := make([]model.Event, n)
	for i := range out {
		start := syncAt.Add(time.Duration(i+1) * time.Hour)
		title := strings.Repeat("x", titleLen)
		out[i] = model.NewEvent(title, start, start.Add(30*time.Minute), model.MeetingVideo, "Room 4")
	}
	return out
}

func sampleState() State {
	return State{
		Events:           events(4, 12),
		MinutesUntilNext: model.IntPtr(40),
		NextTitle:        "Design review",
		NextTimeString:   "10:00 AM",
		NextType:         model.MeetingVideo,
		NextLocation:     "Room 4",
		LastAPISync:      syncAt,
		LastNTPSync:      syncAt.Add(-30 * time.Minute),
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	slot := &memSlot{}
	s := NewStore(slot, DefaultCapacity, DefaultTruncateTo)

	want := sampleState()
	require.NoError(t, s.Save(want))

	got, ok := s.Load()
	require.True(t, ok)
	want.Schema = SchemaTag
	assert.Equal(t, want, got)
}

func TestSaveNormalizesToUTCAndDropsIsPast(t *testing.T) {
	s := NewStore(&memSlot{}, 0, 0)
	madrid := time.FixedZone("CEST", 2*3600)

	st := sampleState()
	st.LastAPISync = syncAt.In(madrid)
	st.Events[0].IsPast = true
	require.NoError(t, s.Save(st))

	got, ok := s.Load()
	require.True(t, ok)
	assert.True(t, got.LastAPISync.Equal(syncAt))
	assert.Equal(t, time.UTC, got.LastAPISync.Location())
	assert.False(t, got.Events[0].IsPast)
	// The caller's value is untouched.
	assert.True(t, st.Events[0].IsPast)
}

func TestSaveTruncatesOversizedEventList(t *testing.T) {
	slot := &memSlot{}
	s := NewStore(slot, DefaultCapacity, DefaultTruncateTo)

	st := sampleState()
	st.Events = events(20, 500)
	require.NoError(t, s.Save(st))
	assert.LessOrEqual(t, len(slot.data), DefaultCapacity)

	got, ok := s.Load()
	require.True(t, ok)
	assert.Equal(t, SchemaTag, got.Schema)
	require.Len(t, got.Events, DefaultTruncateTo)
	// Earliest events are kept.
	assert.True(t, got.Events[0].Start.Equal(st.Events[0].Start))
	assert.True(t, got.Events[2].Start.Equal(st.Events[2].Start))
	assert.Equal(t, 40, *got.MinutesUntilNext)
}

func TestSaveOverflowKeepsPreviousRecord(t *testing.T) {
	slot := &memSlot{}
	s := NewStore(slot, 2048, 3)

	prev := sampleState()
	require.NoError(t, s.Save(prev))
	before := append([]byte(nil), slot.data...)

	huge := sampleState()
	huge.Events = events(5, 2000)
	err := s.Save(huge)
	require.ErrorIs(t, err, ErrOverflow)
	assert.Equal(t, before, slot.data)

	few := sampleState()
	few.Events = events(2, 3000)
	require.ErrorIs(t, s.Save(few), ErrOverflow)

	got, ok := s.Load()
	require.True(t, ok)
	assert.Len(t, got.Events, len(prev.Events))
}

func TestSaveWriteFailureLeavesSlot(t *testing.T) {
	slot := &memSlot{}
	s := NewStore(slot, 0, 0)
	require.NoError(t, s.Save(sampleState()))
	before := append([]byte(nil), slot.data...)

	slot.writeErr = errors.New("eeprom busy")
	require.Error(t, s.Save(State{LastAPISync: syncAt}))
	assert.Equal(t, before, slot.data)
}

func TestLoadRejectsDamagedRecords(t *testing.T) {
	good, err := encode(normalize(sampleState()))
	require.NoError(t, err)

	flipped := append([]byte(nil), good...)
	flipped[len(flipped)-3] ^= 0xFF

	badMagic := append([]byte(nil), good...)
	copy(badMagic, "XXXX")

	otherSchema := normalize(sampleState())
	otherSchema.Schema = "focusdisplay/sync/v0"
	// encode() keeps whatever schema it is given; normalize() is what stamps it.
	stale, err := encode(otherSchema)
	require.NoError(t, err)

	notJSON := append([]byte(nil), good[:headerSize]...)
	notJSON = append(notJSON, []byte(strings.Repeat("{", len(good)-headerSize))...)
	binary.BigEndian.PutUint32(notJSON[8:12], crc32.ChecksumIEEE(notJSON[headerSize:]))

	cases := map[string][]byte{
		"crc mismatch":  flipped,
		"bad magic":     badMagic,
		"truncated":     good[:len(good)-10],
		"short header":  good[:5],
		"schema change": stale,
		"not json":      notJSON,
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			s := NewStore(&memSlot{data: data}, 0, 0)
			_, ok := s.Load()
			assert.False(t, ok)
		})
	}
}

func TestLoadEmptyAndUnreadable(t *testing.T) {
	_, ok := NewStore(&memSlot{}, 0, 0).Load()
	assert.False(t, ok)

	_, ok = NewStore(&memSlot{readErr: errors.New("i/o")}, 0, 0).Load()
	assert.False(t, ok)
}

func TestFileSlot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "sync.cache")
	s := NewStore(FileSlot{Path: path}, 0, 0)

	_, ok := s.Load()
	assert.False(t, ok, "missing file is absent")

	require.NoError(t, s.Save(sampleState()))
	got, ok := s.Load()
	require.True(t, ok)
	assert.Equal(t, "Design review", got.NextTitle)

	// Chop the file as a power cut mid-write on a naive store would.
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data[:len(data)/2], 0o600))
	_, ok = s.Load()
	assert.False(t, ok)
}
