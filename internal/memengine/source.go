package memengine

import (
	"fmt"
	"io"
	"sync"

	"transcode-orchestrator/internal/transcoder"
)

// Track describes one track of an in-memory source.
type Track struct {
	Format  *transcoder.Format
	Samples [][]byte
}

type sourceTrack struct {
	format   *transcoder.Format
	samples  [][]byte
	selected bool
	cursor   int
}

// Source is an in-memory sample source. Reads on different tracks are safe
// concurrently.
type Source struct {
	mu         sync.Mutex
	tracks     []*sourceTrack
	sequential bool
}

// NewSource builds a source from the given tracks. A track format without a
// duration gets one derived from its sample count.
func NewSource(tracks ...Track) *Source {
	s := &Source{}
	for _, t := range tracks {
		format := t.Format.Clone()
		if _, ok := format.GetInt64(transcoder.KeyDuration); !ok {
			format.SetInt64(transcoder.KeyDuration, int64(len(t.Samples))*sampleDurationUs)
		}
		s.tracks = append(s.tracks, &sourceTrack{format: format, samples: t.Samples})
	}
	return s
}

// TrackCount implements transcoder.SampleSource.
func (s *Source) TrackCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tracks)
}

// TrackFormat implements transcoder.SampleSource.
func (s *Source) TrackFormat(index int) (*transcoder.Format, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if index < 0 || index >= len(s.tracks) {
		return nil, fmt.Errorf("track index %d out of bounds", index)
	}
	return s.tracks[index].format, nil
}

// SelectTrack implements transcoder.SampleSource.
func (s *Source) SelectTrack(index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if index < 0 || index >= len(s.tracks) {
		return fmt.Errorf("track index %d out of bounds", index)
	}
	s.tracks[index].selected = true
	return nil
}

// ReadSample implements transcoder.SampleSource. It returns io.EOF once the
// track is exhausted.
func (s *Source) ReadSample(index int) (transcoder.Sample, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if index < 0 || index >= len(s.tracks) {
		return transcoder.Sample{}, fmt.Errorf("track index %d out of bounds", index)
	}
	t := s.tracks[index]
	if !t.selected {
		return transcoder.Sample{}, fmt.Errorf("track %d is not selected", index)
	}
	if t.cursor >= len(t.samples) {
		return transcoder.Sample{}, io.EOF
	}

	sample := transcoder.Sample{
		TrackIndex: index,
		Data:       t.samples[t.cursor],
		TimeUs:     int64(t.cursor) * sampleDurationUs,
	}
	if t.cursor == 0 {
		sample.Flags |= transcoder.SampleFlagSync
	}
	t.cursor++
	return sample, nil
}

// SetEnforceSequentialAccess implements transcoder.SampleSource. Reads are
// served from memory, so the knob is recorded but changes nothing about
// ordering.
func (s *Source) SetEnforceSequentialAccess(enforce bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sequential = enforce
}

// SequentialAccess reports the last value passed to
// SetEnforceSequentialAccess.
func (s *Source) SequentialAccess() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sequential
}
