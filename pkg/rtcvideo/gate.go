package rtcvideo

// KeyFrameGate keeps inter-frame data away from the decoder until a valid
// IDR frame has been observed. Feeding a decoder a partial GOP produces
// corrupted output with no visible error, so everything before the first
// key frame (and after any loss) is dropped.
//
// Two states: awaiting-key-frame and streaming. Loss of any kind must call
// Invalidate to fall back to awaiting.
type KeyFrameGate struct {
	streaming bool
}

// Admit reports whether accessUnit may be submitted to the decoder.
//
// While awaiting a key frame, only a unit whose leading NAL type is IDR is
// admitted; admitting one transitions the gate to streaming. While
// streaming, every unit is admitted.
func (g *KeyFrameGate) Admit(accessUnit []byte) bool {
	if g.streaming {
		return true
	}
	typ, ok := leadingNALUType(accessUnit)
	if !ok || typ != naluTypeIDR {
		return false
	}
	g.streaming = true
	return true
}

// Invalidate returns the gate to the awaiting-key-frame state.
func (g *KeyFrameGate) Invalidate() {
	g.streaming = false
}

// Streaming reports whether a reference frame has been established.
func (g *KeyFrameGate) Streaming() bool {
	return g.streaming
}
