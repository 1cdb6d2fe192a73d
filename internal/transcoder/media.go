package transcoder

import "io"

// Sample flags.
const (
	// SampleFlagEndOfStream marks the final, empty sample of a track.
	SampleFlagEndOfStream uint32 = 1 << 0
	// SampleFlagSync marks a sync (key) sample.
	SampleFlagSync uint32 = 1 << 1
)

// Sample is one unit of media data moving through the pipeline.
type Sample struct {
	TrackIndex int
	Data       []byte
	TimeUs     int64
	Flags      uint32
}

// SampleConsumer receives output samples for a single destination track.
// Consume may block while the track's queue is full and returns an error
// once the writer has stopped.
type SampleConsumer interface {
	Consume(s Sample) error
}

// SampleSource is the demultiplexing side of the pipeline. Implementations
// must be safe for concurrent per-track reads.
type SampleSource interface {
	// TrackCount returns the number of tracks discovered in the source.
	TrackCount() int

	// TrackFormat returns the format of the track at index.
	TrackFormat(index int) (*Format, error)

	// SelectTrack marks the track at index for reading.
	SelectTrack(index int) error

	// ReadSample returns the next sample of the selected track at index, or
	// io.EOF when the track is exhausted.
	ReadSample(index int) (Sample, error)

	// SetEnforceSequentialAccess toggles the source's sequential read
	// ordering optimization. Only safe to enable once every track has a
	// draining consumer.
	SetEnforceSequentialAccess(enforce bool)
}

// WriterEvents receives terminal and progress events from a SampleWriter.
type WriterEvents interface {
	// OnWriterProgress reports multiplexing progress in percent.
	OnWriterProgress(percent int)

	// OnWriterFinished reports the writer's terminal status; nil means every
	// track was drained and the output completed.
	OnWriterFinished(err error)
}

// SampleWriter is the multiplexing sink. Tracks are added before Start;
// Stop must be safe to call even if the writer never started.
type SampleWriter interface {
	Init(dst io.WriteSeeker, events WriterEvents) bool
	AddTrack(format *Format) (SampleConsumer, error)
	Start() bool
	Stop()
}

// TrackEvents receives callbacks from a TrackWorker. Callbacks are delivered
// from the worker's own goroutine, in no guaranteed order across workers.
type TrackEvents interface {
	// OnTrackFormatAvailable signals that the worker has determined its
	// output format and is ready to be bound to a sample consumer.
	OnTrackFormatAvailable(w TrackWorker)

	// OnTrackFinished signals that the worker drained its track. Informational;
	// the pipeline terminates on the writer's terminal event.
	OnTrackFinished(w TrackWorker)

	// OnTrackError reports the worker's terminal error.
	OnTrackError(w TrackWorker, err error)
}

// TrackWorker processes one source track: either transcoding it to a new
// format or passing samples through untouched. The orchestrator never
// inspects which variant it holds.
type TrackWorker interface {
	// Configure binds the worker to a source track. A nil format selects
	// pass-through behavior.
	Configure(src SampleSource, trackIndex int, format *Format) error

	// Start launches the worker's goroutine. Returns false if the worker is
	// not configured or was already started.
	Start() bool

	// Stop halts the worker and joins its goroutine. Safe to call even if
	// the worker never started, and safe to call more than once.
	Stop()

	// SetSampleConsumer binds the destination-side consumer. Called by the
	// orchestrator once the worker has joined the writer.
	SetSampleConsumer(c SampleConsumer)

	// OutputFormat returns the worker's output format. Valid only after the
	// worker has reported OnTrackFormatAvailable.
	OutputFormat() *Format
}

// Engine bundles the collaborator constructors a Transcoder needs. The
// concrete demultiplexing, multiplexing and transform implementations live
// behind it.
type Engine interface {
	// OpenSource parses the byte range [offset, offset+length) of r and
	// returns a sample source for it.
	OpenSource(r io.ReaderAt, offset, length int64) (SampleSource, error)

	// NewSampleWriter returns an uninitialized sample writer.
	NewSampleWriter() SampleWriter

	// NewPassthroughWorker returns a worker that copies samples unchanged.
	NewPassthroughWorker(events TrackEvents) TrackWorker

	// NewVideoWorker returns a worker that transcodes a video track.
	NewVideoWorker(events TrackEvents) TrackWorker
}

// Callbacks is the client-visible event boundary. OnFinished and OnError are
// mutually exclusive and delivered exactly once per pipeline run; progress
// updates may arrive from a writer goroutine at any time before that.
type Callbacks interface {
	OnFinished(t *Transcoder)
	OnError(t *Transcoder, err error)
	OnProgressUpdate(t *Transcoder, percent int)
}
