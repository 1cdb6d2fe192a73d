package orchestrator

import (
	"time"

	"transcode-orchestrator/internal/transcoder"
)

// JobID uniquely identifies a transcode job.
type JobID string

// JobState is the lifecycle state of a transcode job.
type JobState string

const (
	// JobRunning means the pipeline is transferring samples.
	JobRunning JobState = "running"
	// JobPaused means the pipeline was paused and can be resumed.
	JobPaused JobState = "paused"
	// JobFinished means the pipeline completed and the output is usable.
	JobFinished JobState = "finished"
	// JobFailed means the pipeline reported an error. The partial output is
	// left in place; the client owns cleanup.
	JobFailed JobState = "failed"
	// JobCancelled means the client cancelled the job.
	JobCancelled JobState = "cancelled"
)

// Terminal reports whether s is an end state. Terminal states never change.
func (s JobState) Terminal() bool {
	return s == JobFinished || s == JobFailed || s == JobCancelled
}

// Job is the record of one transcode job. The same struct backs the JSON API
// and the SQLite store.
type Job struct {
	ID         JobID    `json:"id" gorm:"primaryKey"`
	State      JobState `json:"state" gorm:"index"`
	Progress   int      `json:"progress"`
	Error      string   `json:"error,omitempty"`
	SourcePath string   `json:"source_path"`
	DestPath   string   `json:"dest_path"`
	TrackCount int      `json:"track_count"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SubmitRequest is the input JSON payload for creating a job.
// An empty Tracks list means every source track is passed through unchanged.
type SubmitRequest struct {
	SourcePath string         `json:"source_path"`
	DestPath   string         `json:"dest_path"`
	Tracks     []TrackRequest `json:"tracks,omitempty"`
}

// TrackRequest selects one source track and says how to treat it. Profile
// names a preset destination format; Format gives one inline. With neither,
// the track is passed through. Setting both is rejected.
type TrackRequest struct {
	Index   int            `json:"index"`
	Profile string         `json:"profile,omitempty"`
	Format  *FormatRequest `json:"format,omitempty"`
}

// FormatRequest is the inline destination-format payload. Zero-valued fields
// are omitted from the resulting format.
type FormatRequest struct {
	Mime           string  `json:"mime,omitempty"`
	Width          int32   `json:"width,omitempty"`
	Height         int32   `json:"height,omitempty"`
	Bitrate        int32   `json:"bitrate,omitempty"`
	FrameRate      int32   `json:"frame_rate,omitempty"`
	IFrameInterval int32   `json:"i_frame_interval,omitempty"`
	OperatingRate  float32 `json:"operating_rate,omitempty"`
	Priority       int32   `json:"priority,omitempty"`
}

// toFormat converts the payload to a track format, dropping zero fields.
func (fr *FormatRequest) toFormat() *transcoder.Format {
	f := transcoder.NewFormat()
	if fr.Mime != "" {
		f.SetString(transcoder.KeyMime, fr.Mime)
	}
	if fr.Width != 0 {
		f.SetInt32(transcoder.KeyWidth, fr.Width)
	}
	if fr.Height != 0 {
		f.SetInt32(transcoder.KeyHeight, fr.Height)
	}
	if fr.Bitrate != 0 {
		f.SetInt32(transcoder.KeyBitRate, fr.Bitrate)
	}
	if fr.FrameRate != 0 {
		f.SetInt32(transcoder.KeyFrameRate, fr.FrameRate)
	}
	if fr.IFrameInterval != 0 {
		f.SetInt32(transcoder.KeyIFrameInterval, fr.IFrameInterval)
	}
	if fr.OperatingRate != 0 {
		f.SetFloat(transcoder.KeyOperatingRate, fr.OperatingRate)
	}
	if fr.Priority != 0 {
		f.SetInt32(transcoder.KeyPriority, fr.Priority)
	}
	return f
}
