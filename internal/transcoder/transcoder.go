package transcoder

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
)

// PausedState is the opaque token produced by Pause. It does not yet capture
// reader/writer positions, so Resume restarts the pipeline rather than
// continuing mid-stream.
type PausedState struct{}

// Transcoder owns the sample source, the sample writer and one worker per
// configured track. It reacts to callbacks delivered on worker and writer
// goroutines and holds no goroutine of its own.
//
// Lifecycle: New → ConfigureSource → ConfigureTrack* → ConfigureDestination
// → Start → exactly one of the client's OnFinished/OnError callbacks →
// asynchronous teardown.
type Transcoder struct {
	callbacks Callbacks
	engine    Engine
	log       *slog.Logger

	reader        SampleSource
	writer        SampleWriter
	sourceFormats []*Format
	workers       []TrackWorker

	// tracksAdded holds the workers that have registered their output format
	// with the writer. Guarded by tracksAddedMu because workers report from
	// concurrent goroutines.
	tracksAddedMu sync.Mutex
	tracksAdded   map[TrackWorker]struct{}

	// cancelled and callbackSent are lock-free test-and-set flags so that
	// terminal dispatch and cancellation never take a lock from arbitrary
	// callback goroutines.
	cancelled    atomic.Bool
	callbackSent atomic.Bool
}

// New returns a Transcoder that reports to callbacks and builds its
// collaborators through engine. A nil log falls back to slog.Default.
func New(callbacks Callbacks, engine Engine, log *slog.Logger) (*Transcoder, error) {
	if callbacks == nil {
		return nil, fmt.Errorf("%w: callbacks cannot be nil", ErrInvalidParameter)
	}
	if engine == nil {
		return nil, fmt.Errorf("%w: engine cannot be nil", ErrInvalidParameter)
	}
	if log == nil {
		log = slog.Default()
	}
	return &Transcoder{
		callbacks:   callbacks,
		engine:      engine,
		log:         log,
		tracksAdded: make(map[TrackWorker]struct{}),
	}, nil
}

// ConfigureSource opens the source spanning size bytes of src and records an
// immutable snapshot of every track's format. Calling it a second time is
// not guarded: the new source replaces the old one.
func (t *Transcoder) ConfigureSource(src io.ReaderAt, size int64) error {
	if src == nil || size < 0 {
		return fmt.Errorf("%w: invalid source handle", ErrInvalidParameter)
	}

	reader, err := t.engine.OpenSource(src, 0, size)
	if err != nil {
		t.log.Error("unable to parse source", slog.String("error", err.Error()))
		return fmt.Errorf("%w: parsing source: %v", ErrUnsupported, err)
	}
	t.reader = reader
	t.sourceFormats = t.sourceFormats[:0]

	for i := 0; i < reader.TrackCount(); i++ {
		format, err := reader.TrackFormat(i)
		if err != nil || format == nil {
			t.log.Error("source track has no format", slog.Int("track", i))
			return fmt.Errorf("%w: track %d has no format", ErrMalformed, i)
		}
		t.sourceFormats = append(t.sourceFormats, format)
	}
	return nil
}

// TrackFormats returns deep, independent copies of the recorded source track
// formats.
func (t *Transcoder) TrackFormats() []*Format {
	formats := make([]*Format, 0, len(t.sourceFormats))
	for _, f := range t.sourceFormats {
		formats = append(formats, f.Clone())
	}
	return formats
}

// ConfigureTrack selects the source track at index and appends a worker for
// it. A nil requested format selects a pass-through worker; otherwise the
// source track must be video, the requested mime (if any) must be video, and
// the worker is configured with the merge of source and requested formats.
func (t *Transcoder) ConfigureTrack(index int, requested *Format) error {
	if t.reader == nil {
		return fmt.Errorf("%w: source must be configured before tracks", ErrInvalidOperation)
	}
	if index < 0 || index >= len(t.sourceFormats) {
		return fmt.Errorf("%w: track index %d out of bounds (track count %d)",
			ErrInvalidParameter, index, len(t.sourceFormats))
	}

	if err := t.reader.SelectTrack(index); err != nil {
		t.log.Error("unable to select track", slog.Int("track", index), slog.String("error", err.Error()))
		return err
	}

	var worker TrackWorker
	var format *Format

	if requested == nil {
		worker = t.engine.NewPassthroughWorker(t)
	} else {
		srcMime, ok := t.sourceFormats[index].GetString(KeyMime)
		if !ok {
			return fmt.Errorf("%w: source track %d has no mime type", ErrMalformed, index)
		}
		if !strings.HasPrefix(srcMime, VideoMimePrefix) {
			t.log.Error("only video tracks can be transcoded",
				slog.Int("track", index), slog.String("mime", srcMime))
			return fmt.Errorf("%w: cannot transcode track %d with mime %q", ErrUnsupported, index, srcMime)
		}
		if dstMime, ok := requested.GetString(KeyMime); ok && !strings.HasPrefix(dstMime, VideoMimePrefix) {
			t.log.Error("unable to convert media types",
				slog.Int("track", index), slog.String("from", srcMime), slog.String("to", dstMime))
			return fmt.Errorf("%w: cannot convert track %d from %q to %q",
				ErrUnsupported, index, srcMime, dstMime)
		}

		merged, err := Merge(t.sourceFormats[index], requested)
		if err != nil {
			return fmt.Errorf("%w: merging source and destination formats: %v", ErrUnknown, err)
		}
		worker = t.engine.NewVideoWorker(t)
		format = merged
	}

	if err := worker.Configure(t.reader, index, format); err != nil {
		t.log.Error("configuring track worker failed",
			slog.Int("track", index), slog.String("error", err.Error()))
		return err
	}

	t.workers = append(t.workers, worker)
	return nil
}

// ConfigureDestination initializes the sample writer bound to dst, with this
// transcoder as its event receiver.
func (t *Transcoder) ConfigureDestination(dst io.WriteSeeker) error {
	if dst == nil {
		return fmt.Errorf("%w: invalid destination handle", ErrInvalidParameter)
	}
	if t.writer != nil {
		return fmt.Errorf("%w: destination is already configured", ErrInvalidOperation)
	}

	writer := t.engine.NewSampleWriter()
	if !writer.Init(dst, t) {
		t.log.Error("unable to initialize sample writer")
		return fmt.Errorf("%w: initializing sample writer", ErrUnknown)
	}

	t.writer = writer
	return nil
}

// Start launches every configured worker. The writer is not started here; it
// starts once the last worker reports its output format. If any worker fails
// to start, all already-started workers are cancelled.
func (t *Transcoder) Start() error {
	if len(t.workers) == 0 {
		return fmt.Errorf("%w: no tracks are configured", ErrInvalidOperation)
	}
	if t.writer == nil {
		return fmt.Errorf("%w: destination is not configured", ErrInvalidOperation)
	}

	for _, w := range t.workers {
		if !w.Start() {
			t.log.Error("unable to start track worker")
			_ = t.Cancel()
			return fmt.Errorf("%w: starting track worker", ErrUnknown)
		}
	}
	return nil
}

// Pause stops the pipeline and returns an opaque resumable-state token. The
// token is a placeholder: it does not capture mid-stream positions, and
// Resume restarts from scratch.
func (t *Transcoder) Pause() (*PausedState, error) {
	// TODO: capture reader and writer positions so Resume can continue
	// mid-stream instead of restarting.
	return &PausedState{}, t.Cancel()
}

// Resume restarts the pipeline. It does not restore state from a pause
// token; it is equivalent to Start.
func (t *Transcoder) Resume() error {
	return t.Start()
}

// Cancel tears the pipeline down: the writer is stopped, sequential access
// is disabled on the source, and every worker is stopped. Only the first
// call performs teardown; repeat and concurrent calls are no-op successes.
func (t *Transcoder) Cancel() error {
	if !t.cancelled.CompareAndSwap(false, true) {
		return nil
	}

	t.log.Info("cancelling pipeline")
	if t.writer != nil {
		t.writer.Stop()
	}
	if t.reader != nil {
		t.reader.SetEnforceSequentialAccess(false)
	}
	for _, w := range t.workers {
		w.Stop()
	}
	return nil
}

// Cancelled reports whether teardown has been requested.
func (t *Transcoder) Cancelled() bool {
	return t.cancelled.Load()
}

// sendCallback dispatches the single client-visible terminal event and
// schedules teardown.
func (t *Transcoder) sendCallback(err error) {
	// After an explicit cancel, tracks and the writer report errors for the
	// abort itself; those must not reach the client as pipeline errors. A
	// success racing with the cancel is still reported, best-effort.
	if t.cancelled.Load() && err != nil {
		return
	}

	if !t.callbackSent.CompareAndSwap(false, true) {
		return
	}

	if err == nil {
		t.callbacks.OnFinished(t)
	} else {
		t.callbacks.OnError(t, err)
	}

	// Teardown must not run on the reporting goroutine: Cancel joins the
	// workers, and this may be a worker's own goroutine.
	go func() { _ = t.Cancel() }()
}

// OnTrackFormatAvailable registers a worker's output format with the writer
// and starts the writer once every worker has reported. Duplicate reports
// from the same worker are ignored.
func (t *Transcoder) OnTrackFormatAvailable(w TrackWorker) {
	t.tracksAddedMu.Lock()
	defer t.tracksAddedMu.Unlock()

	if _, ok := t.tracksAdded[w]; ok {
		return
	}

	consumer, err := t.writer.AddTrack(w.OutputFormat())
	if err != nil {
		t.log.Error("unable to add track to sample writer", slog.String("error", err.Error()))
		t.sendCallback(fmt.Errorf("%w: adding track to sample writer: %v", ErrUnknown, err))
		return
	}
	w.SetSampleConsumer(consumer)

	t.tracksAdded[w] = struct{}{}
	if len(t.tracksAdded) == len(t.workers) {
		// Sequential access is only safe once every worker has a draining
		// consumer; before that a worker stalled on a full output queue
		// could block the other workers' reads.
		t.reader.SetEnforceSequentialAccess(true)
		t.log.Info("all tracks added, starting sample writer")
		if !t.writer.Start() {
			t.log.Error("unable to start sample writer")
			t.sendCallback(fmt.Errorf("%w: starting sample writer", ErrUnknown))
		}
	}
}

// OnTrackFinished records that a worker drained its track. The pipeline
// terminates on the writer's terminal event, not here.
func (t *Transcoder) OnTrackFinished(w TrackWorker) {
	t.log.Debug("track worker finished")
}

// OnTrackError surfaces a worker's failure as the pipeline's terminal error.
func (t *Transcoder) OnTrackError(w TrackWorker, err error) {
	if err == nil {
		err = ErrUnknown
	}
	t.log.Error("track worker error", slog.String("error", err.Error()))
	t.sendCallback(err)
}

// OnWriterFinished surfaces the writer's terminal status as the pipeline's.
func (t *Transcoder) OnWriterFinished(err error) {
	if err != nil {
		t.log.Error("sample writer finished", slog.String("error", err.Error()))
	} else {
		t.log.Debug("sample writer finished")
	}
	t.sendCallback(err)
}

// OnWriterProgress forwards writer progress to the client.
func (t *Transcoder) OnWriterProgress(percent int) {
	t.callbacks.OnProgressUpdate(t, percent)
}
