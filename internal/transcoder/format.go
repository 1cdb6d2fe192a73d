// Package transcoder implements a multi-track media transcoding pipeline:
// one worker per source track (transcoding or pass-through) feeding a single
// multiplexing sample writer, coordinated by a Transcoder that reports a
// single terminal callback to the client.
package transcoder

import "errors"

// Key identifies a typed entry in a Format. The names match the container
// metadata fields they are read from.
type Key string

const (
	KeyMime           Key = "mime"
	KeyDuration       Key = "durationUs"
	KeyWidth          Key = "width"
	KeyHeight         Key = "height"
	KeyBitRate        Key = "bitrate"
	KeyProfile        Key = "profile"
	KeyLevel          Key = "level"
	KeyColorFormat    Key = "color-format"
	KeyColorRange     Key = "color-range"
	KeyColorStandard  Key = "color-standard"
	KeyColorTransfer  Key = "color-transfer"
	KeyFrameRate      Key = "frame-rate"
	KeyIFrameInterval Key = "i-frame-interval"
	KeyPriority       Key = "priority"
	KeyOperatingRate  Key = "operating-rate"
)

// VideoMimePrefix is the media-type prefix required of tracks selected for
// transcoding and of requested destination mime types.
const VideoMimePrefix = "video/"

// Format is a mapping from a fixed set of keys to string, int32, int64 or
// float32 values. Source track formats are recorded once at configuration
// time and never mutated afterwards; callers receive independent copies.
type Format struct {
	entries map[Key]any
}

// NewFormat returns an empty format.
func NewFormat() *Format {
	return &Format{entries: make(map[Key]any)}
}

func (f *Format) SetString(k Key, v string) { f.entries[k] = v }
func (f *Format) SetInt32(k Key, v int32)   { f.entries[k] = v }
func (f *Format) SetInt64(k Key, v int64)   { f.entries[k] = v }
func (f *Format) SetFloat(k Key, v float32) { f.entries[k] = v }

// GetString returns the string value for k, if present with that type.
func (f *Format) GetString(k Key) (string, bool) {
	v, ok := f.entries[k].(string)
	return v, ok
}

// GetInt32 returns the int32 value for k, if present with that type.
func (f *Format) GetInt32(k Key) (int32, bool) {
	v, ok := f.entries[k].(int32)
	return v, ok
}

// GetInt64 returns the int64 value for k, if present with that type.
func (f *Format) GetInt64(k Key) (int64, bool) {
	v, ok := f.entries[k].(int64)
	return v, ok
}

// GetFloat returns the float32 value for k, if present with that type.
func (f *Format) GetFloat(k Key) (float32, bool) {
	v, ok := f.entries[k].(float32)
	return v, ok
}

// Len returns the number of entries.
func (f *Format) Len() int { return len(f.entries) }

// Clone returns a deep, independent copy of f.
func (f *Format) Clone() *Format {
	c := NewFormat()
	for k, v := range f.entries {
		c.entries[k] = v
	}
	return c
}

// entryCopier copies one allow-listed key from an overlay format into a
// merged format, applying the key's type conversion.
type entryCopier struct {
	key  Key
	copy func(k Key, dst, src *Format)
}

func copyString(k Key, dst, src *Format) {
	if v, ok := src.GetString(k); ok {
		dst.SetString(k, v)
	}
}

func copyInt32(k Key, dst, src *Format) {
	if v, ok := src.GetInt32(k); ok {
		dst.SetInt32(k, v)
	}
}

func copyInt64(k Key, dst, src *Format) {
	if v, ok := src.GetInt64(k); ok {
		dst.SetInt64(k, v)
	}
}

// copyFloatOrInt32 copies a float value, converting it to int32 when the
// destination already stores that key as int32. Falls back to an int32
// overlay value.
func copyFloatOrInt32(k Key, dst, src *Format) {
	if v, ok := src.GetFloat(k); ok {
		if _, isInt := dst.GetInt32(k); isInt {
			dst.SetInt32(k, int32(v))
		} else {
			dst.SetFloat(k, v)
		}
		return
	}
	if v, ok := src.GetInt32(k); ok {
		dst.SetInt32(k, v)
	}
}

// mergeableEntries is the fixed allow-list of keys propagated from a
// requested destination format onto a source track format. Keys absent from
// this list are never copied from the overlay.
var mergeableEntries = []entryCopier{
	{KeyMime, copyString},
	{KeyDuration, copyInt64},
	{KeyWidth, copyInt32},
	{KeyHeight, copyInt32},
	{KeyBitRate, copyInt32},
	{KeyProfile, copyInt32},
	{KeyLevel, copyInt32},
	{KeyColorFormat, copyInt32},
	{KeyColorRange, copyInt32},
	{KeyColorStandard, copyInt32},
	{KeyColorTransfer, copyInt32},
	{KeyFrameRate, copyInt32},
	{KeyIFrameInterval, copyInt32},
	{KeyPriority, copyInt32},
	{KeyOperatingRate, copyFloatOrInt32},
}

// Merge combines a source track format with a requested destination format.
// Every key of base is copied verbatim; allow-listed keys present in overlay
// then overwrite the copy. The result is a new, independent format.
func Merge(base, overlay *Format) (*Format, error) {
	if base == nil || overlay == nil {
		return nil, errors.New("cannot merge nil formats")
	}

	merged := base.Clone()
	for _, e := range mergeableEntries {
		e.copy(e.key, merged, overlay)
	}
	return merged, nil
}
