package memengine

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"transcode-orchestrator/internal/transcoder"
)

// worker drives one source track on its own goroutine: it announces its
// output format, waits for the orchestrator to bind a consumer, then pumps
// samples until the track drains or it is stopped. The transcoding variant
// differs only in the format it advertises; sample payloads pass through
// unchanged either way.
type worker struct {
	events    transcoder.TrackEvents
	transcode bool

	mu         sync.Mutex
	src        transcoder.SampleSource
	trackIndex int
	format     *transcoder.Format
	output     *transcoder.Format
	consumer   transcoder.SampleConsumer

	consumerSet chan struct{}
	setOnce     sync.Once

	started  atomic.Bool
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func newWorker(events transcoder.TrackEvents, transcode bool) *worker {
	return &worker{
		events:      events,
		transcode:   transcode,
		consumerSet: make(chan struct{}),
		stopCh:      make(chan struct{}),
	}
}

// Configure implements transcoder.TrackWorker.
func (w *worker) Configure(src transcoder.SampleSource, trackIndex int, format *transcoder.Format) error {
	if src == nil {
		return errors.New("worker needs a sample source")
	}
	if trackIndex < 0 || trackIndex >= src.TrackCount() {
		return fmt.Errorf("track index %d out of bounds", trackIndex)
	}
	if w.transcode && format == nil {
		return errors.New("transcoding worker needs a destination format")
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.src = src
	w.trackIndex = trackIndex
	w.format = format
	return nil
}

// Start implements transcoder.TrackWorker.
func (w *worker) Start() bool {
	w.mu.Lock()
	configured := w.src != nil
	w.mu.Unlock()
	if !configured {
		return false
	}
	if !w.started.CompareAndSwap(false, true) {
		return false
	}

	w.wg.Add(1)
	go w.run()
	return true
}

// Stop implements transcoder.TrackWorker. It halts the pump and joins the
// worker goroutine; safe to call before Start and more than once.
func (w *worker) Stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })
	w.wg.Wait()
}

// SetSampleConsumer implements transcoder.TrackWorker.
func (w *worker) SetSampleConsumer(c transcoder.SampleConsumer) {
	w.mu.Lock()
	w.consumer = c
	w.mu.Unlock()
	w.setOnce.Do(func() { close(w.consumerSet) })
}

// OutputFormat implements transcoder.TrackWorker. Valid once the worker has
// reported format-available.
func (w *worker) OutputFormat() *transcoder.Format {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.output
}

func (w *worker) run() {
	defer w.wg.Done()

	w.mu.Lock()
	src, index := w.src, w.trackIndex
	if w.transcode {
		w.output = w.format.Clone()
	} else {
		f, err := src.TrackFormat(index)
		if err != nil {
			w.mu.Unlock()
			w.events.OnTrackError(w, err)
			return
		}
		w.output = f.Clone()
	}
	w.mu.Unlock()

	w.events.OnTrackFormatAvailable(w)

	// The orchestrator binds the consumer during the callback above; it only
	// stays unbound when the pipeline is already failing or tearing down.
	select {
	case <-w.consumerSet:
	case <-w.stopCh:
		return
	}
	w.mu.Lock()
	consumer := w.consumer
	w.mu.Unlock()

	for {
		select {
		case <-w.stopCh:
			return
		default:
		}

		sample, err := src.ReadSample(index)
		if err == io.EOF {
			eos := transcoder.Sample{TrackIndex: index, Flags: transcoder.SampleFlagEndOfStream}
			if err := consumer.Consume(eos); err != nil {
				w.events.OnTrackError(w, err)
				return
			}
			w.events.OnTrackFinished(w)
			return
		}
		if err != nil {
			w.events.OnTrackError(w, err)
			return
		}

		if err := consumer.Consume(sample); err != nil {
			w.events.OnTrackError(w, err)
			return
		}
	}
}
