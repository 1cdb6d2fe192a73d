package transcoder

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// --- Fakes ---

type fakeSource struct {
	formats   []*Format
	selectErr error

	mu         sync.Mutex
	selected   []int
	sequential []bool
}

func (s *fakeSource) TrackCount() int { return len(s.formats) }

func (s *fakeSource) TrackFormat(index int) (*Format, error) {
	f := s.formats[index]
	if f == nil {
		return nil, fmt.Errorf("no format for track %d", index)
	}
	return f, nil
}

func (s *fakeSource) SelectTrack(index int) error {
	if s.selectErr != nil {
		return s.selectErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selected = append(s.selected, index)
	return nil
}

func (s *fakeSource) ReadSample(index int) (Sample, error) {
	return Sample{}, io.EOF
}

func (s *fakeSource) SetEnforceSequentialAccess(enforce bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sequential = append(s.sequential, enforce)
}

func (s *fakeSource) sequentialToggles() []bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]bool(nil), s.sequential...)
}

type fakeConsumer struct{}

func (fakeConsumer) Consume(s Sample) error { return nil }

type fakeWriter struct {
	initOK  bool
	addErr  error
	startOK bool
	events  WriterEvents

	mu         sync.Mutex
	tracks     []*Format
	startCalls int
	stopCalls  int
}

func newFakeWriter() *fakeWriter {
	return &fakeWriter{initOK: true, startOK: true}
}

func (w *fakeWriter) Init(dst io.WriteSeeker, events WriterEvents) bool {
	w.events = events
	return w.initOK
}

func (w *fakeWriter) AddTrack(format *Format) (SampleConsumer, error) {
	if w.addErr != nil {
		return nil, w.addErr
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.tracks = append(w.tracks, format)
	return fakeConsumer{}, nil
}

func (w *fakeWriter) Start() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.startCalls++
	return w.startOK
}

func (w *fakeWriter) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.stopCalls++
}

func (w *fakeWriter) counts() (started, stopped, added int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.startCalls, w.stopCalls, len(w.tracks)
}

type fakeWorker struct {
	passthrough  bool
	configureErr error
	startOK      bool

	// stopBlocksUntil, when set, makes Stop wait for the channel. Used to
	// prove that teardown never runs on the goroutine Stop would join.
	stopBlocksUntil <-chan struct{}

	mu         sync.Mutex
	src        SampleSource
	trackIndex int
	format     *Format
	consumer   SampleConsumer
	output     *Format
	starts     int
	stops      int
}

func (w *fakeWorker) Configure(src SampleSource, trackIndex int, format *Format) error {
	if w.configureErr != nil {
		return w.configureErr
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.src = src
	w.trackIndex = trackIndex
	w.format = format
	if format != nil {
		w.output = format
	} else {
		f, _ := src.TrackFormat(trackIndex)
		w.output = f
	}
	return nil
}

func (w *fakeWorker) Start() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.starts++
	return w.startOK
}

func (w *fakeWorker) Stop() {
	if w.stopBlocksUntil != nil {
		<-w.stopBlocksUntil
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.stops++
}

func (w *fakeWorker) SetSampleConsumer(c SampleConsumer) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.consumer = c
}

func (w *fakeWorker) OutputFormat() *Format {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.output
}

func (w *fakeWorker) stopCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stops
}

type fakeEngine struct {
	source  *fakeSource
	openErr error
	writer  *fakeWriter

	mu      sync.Mutex
	workers []*fakeWorker
}

func (e *fakeEngine) OpenSource(r io.ReaderAt, offset, length int64) (SampleSource, error) {
	if e.openErr != nil {
		return nil, e.openErr
	}
	return e.source, nil
}

func (e *fakeEngine) NewSampleWriter() SampleWriter { return e.writer }

func (e *fakeEngine) newWorker(passthrough bool) TrackWorker {
	w := &fakeWorker{passthrough: passthrough, startOK: true}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.workers = append(e.workers, w)
	return w
}

func (e *fakeEngine) NewPassthroughWorker(events TrackEvents) TrackWorker { return e.newWorker(true) }
func (e *fakeEngine) NewVideoWorker(events TrackEvents) TrackWorker      { return e.newWorker(false) }

type recordingCallbacks struct {
	mu       sync.Mutex
	finished int
	errs     []error
	progress []int
}

func (c *recordingCallbacks) OnFinished(t *Transcoder) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.finished++
}

func (c *recordingCallbacks) OnError(t *Transcoder, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errs = append(c.errs, err)
}

func (c *recordingCallbacks) OnProgressUpdate(t *Transcoder, percent int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.progress = append(c.progress, percent)
}

func (c *recordingCallbacks) terminalCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.finished + len(c.errs)
}

func (c *recordingCallbacks) errorCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.errs)
}

func (c *recordingCallbacks) finishedCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.finished
}

// --- Helpers ---

type discardSeeker struct{}

func (discardSeeker) Write(p []byte) (int, error) { return len(p), nil }

func (discardSeeker) Seek(int64, int) (int64, error) { return 0, nil }

type zeroReaderAt struct{}

func (zeroReaderAt) ReadAt(p []byte, off int64) (int, error) { return len(p), nil }

func videoTrackFormat(mime string) *Format {
	f := NewFormat()
	f.SetString(KeyMime, mime)
	f.SetInt32(KeyWidth, 640)
	f.SetInt32(KeyHeight, 480)
	return f
}

func newTestEngine(mimes ...string) *fakeEngine {
	formats := make([]*Format, 0, len(mimes))
	for _, m := range mimes {
		formats = append(formats, videoTrackFormat(m))
	}
	return &fakeEngine{source: &fakeSource{formats: formats}, writer: newFakeWriter()}
}

// newStartedTranscoder configures every track as pass-through and starts the
// pipeline.
func newStartedTranscoder(t *testing.T, engine *fakeEngine) (*Transcoder, *recordingCallbacks) {
	t.Helper()
	cb := &recordingCallbacks{}
	tr, err := New(cb, engine, nil)
	require.NoError(t, err)
	require.NoError(t, tr.ConfigureSource(zeroReaderAt{}, 1024))
	for i := range engine.source.formats {
		require.NoError(t, tr.ConfigureTrack(i, nil))
	}
	require.NoError(t, tr.ConfigureDestination(discardSeeker{}))
	require.NoError(t, tr.Start())
	return tr, cb
}

func eventually(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	require.Eventually(t, cond, 2*time.Second, 5*time.Millisecond, msg)
}

// --- Construction and configuration ---

func TestNew_nil_arguments(t *testing.T) {
	engine := newTestEngine("video/avc")
	_, err := New(nil, engine, nil)
	require.ErrorIs(t, err, ErrInvalidParameter)

	_, err = New(&recordingCallbacks{}, nil, nil)
	require.ErrorIs(t, err, ErrInvalidParameter)
}

func TestConfigureSource(t *testing.T) {
	t.Run("nil_handle", func(t *testing.T) {
		tr, err := New(&recordingCallbacks{}, newTestEngine("video/avc"), nil)
		require.NoError(t, err)
		require.ErrorIs(t, tr.ConfigureSource(nil, 10), ErrInvalidParameter)
	})

	t.Run("unparseable_source", func(t *testing.T) {
		engine := newTestEngine("video/avc")
		engine.openErr = errors.New("bad container")
		tr, err := New(&recordingCallbacks{}, engine, nil)
		require.NoError(t, err)
		require.ErrorIs(t, tr.ConfigureSource(zeroReaderAt{}, 10), ErrUnsupported)
	})

	t.Run("track_without_format", func(t *testing.T) {
		engine := newTestEngine("video/avc")
		engine.source.formats = append(engine.source.formats, nil)
		tr, err := New(&recordingCallbacks{}, engine, nil)
		require.NoError(t, err)
		require.ErrorIs(t, tr.ConfigureSource(zeroReaderAt{}, 10), ErrMalformed)
	})

	t.Run("records_all_track_formats", func(t *testing.T) {
		engine := newTestEngine("video/avc", "audio/aac")
		tr, err := New(&recordingCallbacks{}, engine, nil)
		require.NoError(t, err)
		require.NoError(t, tr.ConfigureSource(zeroReaderAt{}, 10))
		require.Len(t, tr.TrackFormats(), 2)
	})
}

func TestTrackFormats_returns_independent_copies(t *testing.T) {
	engine := newTestEngine("video/avc")
	tr, err := New(&recordingCallbacks{}, engine, nil)
	require.NoError(t, err)
	require.NoError(t, tr.ConfigureSource(zeroReaderAt{}, 10))

	first := tr.TrackFormats()
	first[0].SetString(KeyMime, "video/hevc")

	second := tr.TrackFormats()
	mime, _ := second[0].GetString(KeyMime)
	require.Equal(t, "video/avc", mime, "caller mutation must not reach internal state")
}

func TestConfigureTrack(t *testing.T) {
	t.Run("before_source", func(t *testing.T) {
		tr, err := New(&recordingCallbacks{}, newTestEngine("video/avc"), nil)
		require.NoError(t, err)
		require.ErrorIs(t, tr.ConfigureTrack(0, nil), ErrInvalidOperation)
	})

	t.Run("index_out_of_bounds", func(t *testing.T) {
		tr, err := New(&recordingCallbacks{}, newTestEngine("video/avc"), nil)
		require.NoError(t, err)
		require.NoError(t, tr.ConfigureSource(zeroReaderAt{}, 10))
		require.ErrorIs(t, tr.ConfigureTrack(1, nil), ErrInvalidParameter)
		require.ErrorIs(t, tr.ConfigureTrack(-1, nil), ErrInvalidParameter)
	})

	t.Run("select_failure_propagates", func(t *testing.T) {
		engine := newTestEngine("video/avc")
		selectErr := errors.New("select failed")
		engine.source.selectErr = selectErr
		tr, err := New(&recordingCallbacks{}, engine, nil)
		require.NoError(t, err)
		require.NoError(t, tr.ConfigureSource(zeroReaderAt{}, 10))
		require.ErrorIs(t, tr.ConfigureTrack(0, nil), selectErr)
	})

	t.Run("transcoding_audio_track_unsupported", func(t *testing.T) {
		engine := newTestEngine("audio/aac")
		tr, err := New(&recordingCallbacks{}, engine, nil)
		require.NoError(t, err)
		require.NoError(t, tr.ConfigureSource(zeroReaderAt{}, 10))
		require.ErrorIs(t, tr.ConfigureTrack(0, NewFormat()), ErrUnsupported)
	})

	t.Run("cross_media_type_destination_unsupported", func(t *testing.T) {
		engine := newTestEngine("video/avc")
		tr, err := New(&recordingCallbacks{}, engine, nil)
		require.NoError(t, err)
		require.NoError(t, tr.ConfigureSource(zeroReaderAt{}, 10))

		requested := NewFormat()
		requested.SetString(KeyMime, "audio/aac")
		require.ErrorIs(t, tr.ConfigureTrack(0, requested), ErrUnsupported)
	})

	t.Run("passthrough_for_nil_format", func(t *testing.T) {
		engine := newTestEngine("audio/aac")
		tr, err := New(&recordingCallbacks{}, engine, nil)
		require.NoError(t, err)
		require.NoError(t, tr.ConfigureSource(zeroReaderAt{}, 10))
		require.NoError(t, tr.ConfigureTrack(0, nil))

		require.Len(t, engine.workers, 1)
		require.True(t, engine.workers[0].passthrough)
		require.Nil(t, engine.workers[0].format)
	})

	t.Run("transcoding_worker_gets_merged_format", func(t *testing.T) {
		engine := newTestEngine("video/avc")
		tr, err := New(&recordingCallbacks{}, engine, nil)
		require.NoError(t, err)
		require.NoError(t, tr.ConfigureSource(zeroReaderAt{}, 10))

		requested := NewFormat()
		requested.SetInt32(KeyWidth, 1280)
		require.NoError(t, tr.ConfigureTrack(0, requested))

		require.Len(t, engine.workers, 1)
		require.False(t, engine.workers[0].passthrough)
		w, _ := engine.workers[0].format.GetInt32(KeyWidth)
		require.EqualValues(t, 1280, w)
		h, _ := engine.workers[0].format.GetInt32(KeyHeight)
		require.EqualValues(t, 480, h, "base keys must survive the merge")
	})

	t.Run("worker_configure_failure_propagates", func(t *testing.T) {
		engine := newTestEngine("video/avc")
		tr, err := New(&recordingCallbacks{}, engine, nil)
		require.NoError(t, err)
		require.NoError(t, tr.ConfigureSource(zeroReaderAt{}, 10))

		// The fake engine hands out workers lazily, so arrange the failure
		// by pre-seeding the next worker.
		cfgErr := errors.New("configure failed")
		engineFail := &failingWorkerEngine{fakeEngine: engine, configureErr: cfgErr}
		trFail, err := New(&recordingCallbacks{}, engineFail, nil)
		require.NoError(t, err)
		require.NoError(t, trFail.ConfigureSource(zeroReaderAt{}, 10))
		require.ErrorIs(t, trFail.ConfigureTrack(0, nil), cfgErr)
	})
}

type failingWorkerEngine struct {
	*fakeEngine
	configureErr error
}

func (e *failingWorkerEngine) NewPassthroughWorker(events TrackEvents) TrackWorker {
	return &fakeWorker{passthrough: true, startOK: true, configureErr: e.configureErr}
}

func TestConfigureDestination(t *testing.T) {
	t.Run("nil_handle", func(t *testing.T) {
		tr, err := New(&recordingCallbacks{}, newTestEngine("video/avc"), nil)
		require.NoError(t, err)
		require.ErrorIs(t, tr.ConfigureDestination(nil), ErrInvalidParameter)
	})

	t.Run("init_failure_discards_writer", func(t *testing.T) {
		engine := newTestEngine("video/avc")
		engine.writer.initOK = false
		tr, err := New(&recordingCallbacks{}, engine, nil)
		require.NoError(t, err)
		require.ErrorIs(t, tr.ConfigureDestination(discardSeeker{}), ErrUnknown)

		// The partially-built writer was discarded, so configuring again works.
		engine.writer.initOK = true
		require.NoError(t, tr.ConfigureDestination(discardSeeker{}))
	})

	t.Run("already_configured", func(t *testing.T) {
		tr, err := New(&recordingCallbacks{}, newTestEngine("video/avc"), nil)
		require.NoError(t, err)
		require.NoError(t, tr.ConfigureDestination(discardSeeker{}))
		require.ErrorIs(t, tr.ConfigureDestination(discardSeeker{}), ErrInvalidOperation)
	})
}

// --- Start ---

func TestStart_lifecycle_errors(t *testing.T) {
	t.Run("no_tracks", func(t *testing.T) {
		tr, err := New(&recordingCallbacks{}, newTestEngine("video/avc"), nil)
		require.NoError(t, err)
		require.NoError(t, tr.ConfigureDestination(discardSeeker{}))
		require.ErrorIs(t, tr.Start(), ErrInvalidOperation)
	})

	t.Run("no_destination", func(t *testing.T) {
		engine := newTestEngine("video/avc")
		tr, err := New(&recordingCallbacks{}, engine, nil)
		require.NoError(t, err)
		require.NoError(t, tr.ConfigureSource(zeroReaderAt{}, 10))
		require.NoError(t, tr.ConfigureTrack(0, nil))
		require.ErrorIs(t, tr.Start(), ErrInvalidOperation)
	})
}

func TestStart_worker_failure_cancels_started_workers(t *testing.T) {
	engine := newTestEngine("video/avc", "video/avc")
	tr, err := New(&recordingCallbacks{}, engine, nil)
	require.NoError(t, err)
	require.NoError(t, tr.ConfigureSource(zeroReaderAt{}, 10))
	require.NoError(t, tr.ConfigureTrack(0, nil))
	require.NoError(t, tr.ConfigureTrack(1, nil))
	require.NoError(t, tr.ConfigureDestination(discardSeeker{}))

	engine.workers[1].startOK = false
	require.ErrorIs(t, tr.Start(), ErrUnknown)

	require.True(t, tr.Cancelled())
	require.Equal(t, 1, engine.workers[0].stopCount())
}

// --- Barrier ---

func TestBarrier_writer_starts_after_all_tracks_reported(t *testing.T) {
	engine := newTestEngine("video/avc", "audio/aac", "video/avc")
	tr, _ := newStartedTranscoder(t, engine)

	workers := engine.workers
	require.Len(t, workers, 3)

	tr.OnTrackFormatAvailable(workers[2])
	tr.OnTrackFormatAvailable(workers[0])
	tr.OnTrackFormatAvailable(workers[0]) // duplicate, must be ignored

	started, _, added := engine.writer.counts()
	require.Zero(t, started, "writer must not start before the barrier")
	require.Equal(t, 2, added)

	tr.OnTrackFormatAvailable(workers[1])

	started, _, added = engine.writer.counts()
	require.Equal(t, 1, started)
	require.Equal(t, 3, added)
	require.Equal(t, []bool{true}, engine.source.sequentialToggles(),
		"sequential access enabled exactly once, at barrier satisfaction")

	for _, w := range workers {
		w.mu.Lock()
		require.NotNil(t, w.consumer, "every worker must be bound to a consumer")
		w.mu.Unlock()
	}
}

func TestBarrier_concurrent_reports_start_writer_once(t *testing.T) {
	engine := newTestEngine("video/avc", "video/avc", "video/avc", "video/avc")
	tr, _ := newStartedTranscoder(t, engine)

	var wg sync.WaitGroup
	for _, w := range engine.workers {
		for i := 0; i < 3; i++ { // duplicates from every worker
			wg.Add(1)
			go func(w TrackWorker) {
				defer wg.Done()
				tr.OnTrackFormatAvailable(w)
			}(w)
		}
	}
	wg.Wait()

	started, _, added := engine.writer.counts()
	require.Equal(t, 1, started)
	require.Equal(t, 4, added)
}

func TestBarrier_add_track_failure_fails_pipeline(t *testing.T) {
	engine := newTestEngine("video/avc")
	tr, cb := newStartedTranscoder(t, engine)

	engine.writer.addErr = errors.New("muxer rejected track")
	tr.OnTrackFormatAvailable(engine.workers[0])

	eventually(t, func() bool { return cb.errorCount() == 1 }, "pipeline must fail")
	started, _, _ := engine.writer.counts()
	require.Zero(t, started)
	require.ErrorIs(t, cb.errs[0], ErrUnknown)
}

func TestBarrier_writer_start_failure_fails_pipeline(t *testing.T) {
	engine := newTestEngine("video/avc")
	engine.writer.startOK = false
	tr, cb := newStartedTranscoder(t, engine)

	tr.OnTrackFormatAvailable(engine.workers[0])

	eventually(t, func() bool { return cb.errorCount() == 1 }, "pipeline must fail")
	require.ErrorIs(t, cb.errs[0], ErrUnknown)
}

// --- Terminal dispatch ---

func TestTerminal_exactly_one_callback_under_races(t *testing.T) {
	engine := newTestEngine("video/avc", "video/avc")
	tr, cb := newStartedTranscoder(t, engine)

	boom := errors.New("decoder died")
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				tr.OnTrackError(engine.workers[i%2], boom)
			} else {
				tr.OnWriterFinished(nil)
			}
		}(i)
	}
	wg.Wait()

	require.Equal(t, 1, cb.terminalCount(), "exactly one terminal callback")
	eventually(t, func() bool { return tr.Cancelled() }, "teardown must follow the callback")
}

func TestTerminal_worker_error_surfaces_verbatim(t *testing.T) {
	engine := newTestEngine("video/avc")
	tr, cb := newStartedTranscoder(t, engine)

	boom := errors.New("encoder rejected frame")
	tr.OnTrackError(engine.workers[0], boom)

	require.Equal(t, 1, cb.errorCount())
	require.ErrorIs(t, cb.errs[0], boom)
}

func TestTerminal_track_finished_is_not_terminal(t *testing.T) {
	engine := newTestEngine("video/avc")
	tr, cb := newStartedTranscoder(t, engine)

	tr.OnTrackFinished(engine.workers[0])
	require.Zero(t, cb.terminalCount())

	tr.OnWriterFinished(nil)
	require.Equal(t, 1, cb.finishedCount())
}

func TestTerminal_nil_worker_error_normalized(t *testing.T) {
	engine := newTestEngine("video/avc")
	tr, cb := newStartedTranscoder(t, engine)

	tr.OnTrackError(engine.workers[0], nil)
	require.Equal(t, 1, cb.errorCount())
	require.ErrorIs(t, cb.errs[0], ErrUnknown)
}

func TestTerminal_teardown_not_on_reporting_goroutine(t *testing.T) {
	engine := newTestEngine("video/avc")
	tr, cb := newStartedTranscoder(t, engine)

	// The worker's Stop joins its goroutine: it cannot return until the
	// error callback below has. If teardown ran inline on the reporting
	// goroutine this would deadlock.
	reported := make(chan struct{})
	engine.workers[0].stopBlocksUntil = reported

	go func() {
		tr.OnTrackError(engine.workers[0], errors.New("boom"))
		close(reported)
	}()

	eventually(t, func() bool { return engine.workers[0].stopCount() == 1 },
		"teardown must complete without deadlock")
	require.Equal(t, 1, cb.errorCount())
}

// --- Cancellation ---

func TestCancel_concurrent_calls_tear_down_once(t *testing.T) {
	engine := newTestEngine("video/avc", "video/avc")
	tr, _ := newStartedTranscoder(t, engine)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = tr.Cancel() // always a success, idempotent
		}()
	}
	wg.Wait()

	_, stopped, _ := engine.writer.counts()
	require.Equal(t, 1, stopped)
	for _, w := range engine.workers {
		require.Equal(t, 1, w.stopCount())
	}
	require.Equal(t, []bool{false}, engine.source.sequentialToggles())
}

func TestCancel_before_configuration_is_safe(t *testing.T) {
	tr, err := New(&recordingCallbacks{}, newTestEngine("video/avc"), nil)
	require.NoError(t, err)
	require.NoError(t, tr.Cancel())
}

func TestCancel_suppresses_later_errors_not_success(t *testing.T) {
	t.Run("error_after_cancel_suppressed", func(t *testing.T) {
		engine := newTestEngine("video/avc")
		tr, cb := newStartedTranscoder(t, engine)

		require.NoError(t, tr.Cancel())
		tr.OnTrackError(engine.workers[0], errors.New("abort noise"))
		tr.OnWriterFinished(errors.New("abort noise"))

		require.Zero(t, cb.terminalCount(), "a cancelled client gets no error callback")
	})

	t.Run("success_after_cancel_still_reported", func(t *testing.T) {
		engine := newTestEngine("video/avc")
		tr, cb := newStartedTranscoder(t, engine)

		require.NoError(t, tr.Cancel())
		tr.OnWriterFinished(nil)

		require.Equal(t, 1, cb.finishedCount())
	})
}

func TestPause_returns_token_and_tears_down(t *testing.T) {
	engine := newTestEngine("video/avc")
	tr, _ := newStartedTranscoder(t, engine)

	state, err := tr.Pause()
	require.NoError(t, err)
	require.NotNil(t, state)
	require.True(t, tr.Cancelled())
	_, stopped, _ := engine.writer.counts()
	require.Equal(t, 1, stopped)
}

// --- Progress ---

func TestProgress_forwarded_verbatim(t *testing.T) {
	engine := newTestEngine("video/avc")
	tr, cb := newStartedTranscoder(t, engine)

	tr.OnWriterProgress(25)
	tr.OnWriterProgress(50)

	cb.mu.Lock()
	defer cb.mu.Unlock()
	require.Equal(t, []int{25, 50}, cb.progress)
	require.Zero(t, cb.finished+len(cb.errs))
}
