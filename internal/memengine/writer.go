package memengine

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"transcode-orchestrator/internal/transcoder"
)

// queueDepth bounds the writer's input queue; a worker blocks on Consume
// once it is full.
const queueDepth = 16

// writerMagic heads the demo output container.
var writerMagic = [4]byte{'M', 'E', 'M', '1'}

var errWriterStopped = errors.New("sample writer stopped")

// writerTrack is one destination track's queue and format.
type writerTrack struct {
	index  int
	format *transcoder.Format
}

// trackConsumer pushes a worker's output into the writer's shared queue,
// stamping samples with the writer-side track index.
type trackConsumer struct {
	index   int
	samples chan<- transcoder.Sample
	stopCh  <-chan struct{}
}

func (c *trackConsumer) Consume(s transcoder.Sample) error {
	s.TrackIndex = c.index
	select {
	case c.samples <- s:
		return nil
	case <-c.stopCh:
		return errWriterStopped
	}
}

// writer multiplexes per-track sample streams into a trivially framed binary
// output: a header describing the tracks, one record per sample, and a
// sample count patched into the header once all tracks have drained.
type writer struct {
	mu     sync.Mutex
	dst    io.WriteSeeker
	events transcoder.WriterEvents
	tracks []*writerTrack

	samples chan transcoder.Sample

	started  atomic.Bool
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func newWriter() *writer {
	return &writer{
		samples: make(chan transcoder.Sample, queueDepth),
		stopCh:  make(chan struct{}),
	}
}

// Init implements transcoder.SampleWriter.
func (w *writer) Init(dst io.WriteSeeker, events transcoder.WriterEvents) bool {
	if dst == nil || events == nil {
		return false
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.dst = dst
	w.events = events
	return true
}

// AddTrack implements transcoder.SampleWriter.
func (w *writer) AddTrack(format *transcoder.Format) (transcoder.SampleConsumer, error) {
	if format == nil {
		return nil, errors.New("track format cannot be nil")
	}
	if w.started.Load() {
		return nil, errors.New("cannot add tracks after start")
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	t := &writerTrack{index: len(w.tracks), format: format.Clone()}
	w.tracks = append(w.tracks, t)
	return &trackConsumer{index: t.index, samples: w.samples, stopCh: w.stopCh}, nil
}

// Start implements transcoder.SampleWriter.
func (w *writer) Start() bool {
	w.mu.Lock()
	ready := w.dst != nil && len(w.tracks) > 0
	w.mu.Unlock()
	if !ready {
		return false
	}
	if !w.started.CompareAndSwap(false, true) {
		return false
	}

	w.wg.Add(1)
	go w.drain()
	return true
}

// Stop implements transcoder.SampleWriter. Safe to call before Start and
// more than once.
func (w *writer) Stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })
	w.wg.Wait()
}

func (w *writer) drain() {
	defer w.wg.Done()

	w.mu.Lock()
	dst, events, tracks := w.dst, w.events, w.tracks
	w.mu.Unlock()

	if err := writeHeader(dst, tracks); err != nil {
		events.OnWriterFinished(fmt.Errorf("writing header: %w", err))
		return
	}

	// Progress is measured against the longest track duration known from
	// the added formats; without one, only completion is reported.
	var durationUs int64
	for _, t := range tracks {
		if d, ok := t.format.GetInt64(transcoder.KeyDuration); ok && d > durationUs {
			durationUs = d
		}
	}

	var (
		sampleCount  uint64
		eosSeen      int
		lastProgress = -1
	)

	for eosSeen < len(tracks) {
		var sample transcoder.Sample
		select {
		case sample = <-w.samples:
		case <-w.stopCh:
			return
		}

		if sample.Flags&transcoder.SampleFlagEndOfStream != 0 {
			eosSeen++
			continue
		}

		if err := writeRecord(dst, sample); err != nil {
			events.OnWriterFinished(fmt.Errorf("writing sample: %w", err))
			return
		}
		sampleCount++

		if durationUs > 0 {
			percent := int(sample.TimeUs * 100 / durationUs)
			if percent > 100 {
				percent = 100
			}
			if percent > lastProgress {
				lastProgress = percent
				events.OnWriterProgress(percent)
			}
		}
	}

	if err := patchSampleCount(dst, sampleCount); err != nil {
		events.OnWriterFinished(fmt.Errorf("finalizing output: %w", err))
		return
	}

	if lastProgress < 100 {
		events.OnWriterProgress(100)
	}
	events.OnWriterFinished(nil)
}

// Header layout: magic, uint64 sample count (patched at finish), uint32
// track count, then per track: mime (uint32 length + bytes), int32 width,
// int32 height.
func writeHeader(dst io.WriteSeeker, tracks []*writerTrack) error {
	if _, err := dst.Write(writerMagic[:]); err != nil {
		return err
	}
	if err := binary.Write(dst, binary.BigEndian, uint64(0)); err != nil {
		return err
	}
	if err := binary.Write(dst, binary.BigEndian, uint32(len(tracks))); err != nil {
		return err
	}

	for _, t := range tracks {
		mime, _ := t.format.GetString(transcoder.KeyMime)
		if err := binary.Write(dst, binary.BigEndian, uint32(len(mime))); err != nil {
			return err
		}
		if _, err := dst.Write([]byte(mime)); err != nil {
			return err
		}
		width, _ := t.format.GetInt32(transcoder.KeyWidth)
		height, _ := t.format.GetInt32(transcoder.KeyHeight)
		if err := binary.Write(dst, binary.BigEndian, width); err != nil {
			return err
		}
		if err := binary.Write(dst, binary.BigEndian, height); err != nil {
			return err
		}
	}
	return nil
}

func writeRecord(dst io.WriteSeeker, s transcoder.Sample) error {
	if err := binary.Write(dst, binary.BigEndian, uint32(s.TrackIndex)); err != nil {
		return err
	}
	if err := binary.Write(dst, binary.BigEndian, s.Flags); err != nil {
		return err
	}
	if err := binary.Write(dst, binary.BigEndian, s.TimeUs); err != nil {
		return err
	}
	if err := binary.Write(dst, binary.BigEndian, uint32(len(s.Data))); err != nil {
		return err
	}
	_, err := dst.Write(s.Data)
	return err
}

func patchSampleCount(dst io.WriteSeeker, count uint64) error {
	if _, err := dst.Seek(int64(len(writerMagic)), io.SeekStart); err != nil {
		return err
	}
	return binary.Write(dst, binary.BigEndian, count)
}
