package transcoder

import "errors"

// Error taxonomy for configuration and execution failures. Callers match
// with errors.Is; wrapped messages carry the detail.
var (
	// ErrInvalidParameter is returned for a bad handle or an out-of-bounds
	// track index.
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrInvalidOperation is returned when a call is made out of the required
	// lifecycle order, e.g. configuring a track before the source.
	ErrInvalidOperation = errors.New("invalid operation")

	// ErrUnsupported is returned for a source the engine cannot parse, or a
	// media-type conversion the pipeline does not perform.
	ErrUnsupported = errors.New("unsupported")

	// ErrMalformed is returned when a source track is missing required
	// metadata.
	ErrMalformed = errors.New("malformed")

	// ErrUnknown covers internal failures: composing formats, registering a
	// track with the writer, or starting the writer.
	ErrUnknown = errors.New("unknown error")
)
