// Package memengine is an in-process implementation of the transcoder's
// collaborator contracts, used by tests and the demo server. It keeps the
// pipeline's concurrency shape intact (one goroutine per track worker, one
// writer goroutine fed by a single bounded queue shared across tracks) but
// does not parse
// real containers or re-encode: source bytes are chunked into samples and
// pass through unchanged, and a transcoded track only changes its advertised
// format.
package memengine

import (
	"errors"
	"fmt"
	"io"

	"transcode-orchestrator/internal/transcoder"
)

// chunkSize is the sample payload size OpenSource splits a source into.
const chunkSize = 4096

// sampleDurationUs is the nominal presentation duration of one sample.
const sampleDurationUs = int64(33333)

// Engine implements transcoder.Engine over in-memory sources.
type Engine struct {
	// fixed, when set, is returned by OpenSource regardless of the handle.
	fixed *Source
}

// New returns an engine that builds a single-track source from the raw bytes
// of whatever handle it is given.
func New() *Engine {
	return &Engine{}
}

// NewFixedSource returns an engine whose OpenSource always yields src. Used
// by tests that need multi-track sources.
func NewFixedSource(src *Source) *Engine {
	return &Engine{fixed: src}
}

// OpenSource implements transcoder.Engine.
func (e *Engine) OpenSource(r io.ReaderAt, offset, length int64) (transcoder.SampleSource, error) {
	if e.fixed != nil {
		return e.fixed, nil
	}
	if r == nil || length <= 0 {
		return nil, errors.New("empty source")
	}

	data, err := io.ReadAll(io.NewSectionReader(r, offset, length))
	if err != nil {
		return nil, fmt.Errorf("reading source: %w", err)
	}

	var samples [][]byte
	for len(data) > 0 {
		n := chunkSize
		if n > len(data) {
			n = len(data)
		}
		samples = append(samples, data[:n])
		data = data[n:]
	}

	format := transcoder.NewFormat()
	format.SetString(transcoder.KeyMime, "video/raw")
	format.SetInt32(transcoder.KeyWidth, 640)
	format.SetInt32(transcoder.KeyHeight, 480)

	return NewSource(Track{Format: format, Samples: samples}), nil
}

// NewSampleWriter implements transcoder.Engine.
func (e *Engine) NewSampleWriter() transcoder.SampleWriter {
	return newWriter()
}

// NewPassthroughWorker implements transcoder.Engine.
func (e *Engine) NewPassthroughWorker(events transcoder.TrackEvents) transcoder.TrackWorker {
	return newWorker(events, false)
}

// NewVideoWorker implements transcoder.Engine.
func (e *Engine) NewVideoWorker(events transcoder.TrackEvents) transcoder.TrackWorker {
	return newWorker(events, true)
}
