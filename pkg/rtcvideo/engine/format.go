package engine

// Format describes the stream a session is initialized with.
type Format struct {
	// MimeType is the codec of the stream.
	MimeType MimeType

	// Width and Height are the coded picture dimensions.
	Width  int
	Height int

	// MaxWidth and MaxHeight enable adaptive playback up to this size.
	MaxWidth  int
	MaxHeight int

	// RealtimePriority asks the codec to schedule for low latency rather
	// than throughput.
	RealtimePriority bool

	// LowLatency enables the decoder's low-latency path. Only honored on
	// platforms that support it (Android API level 30+).
	LowLatency bool
}

// NewFormat returns a Format with realtime priority set, the baseline for
// a remote-display stream.
func NewFormat(mimeType MimeType, width, height int) *Format {
	return &Format{
		MimeType:         mimeType,
		Width:            width,
		Height:           height,
		MaxWidth:         width,
		MaxHeight:        height,
		RealtimePriority: true,
	}
}
