package rtcvideo

import "fmt"

// MaxAccessUnitSize is the default scratch capacity for one reassembled
// access unit. Chosen generously; overflow is a hard error rather than
// silent truncation.
const MaxAccessUnitSize = 250_000

// Depacketizer reassembles access units from RTP payloads into a
// caller-owned buffer.
//
// Usage: WrapBuffer binds the destination, Push is called once per payload
// until it returns nil (ErrNeedMoreInput means the unit spans further
// payloads), Finish returns the byte count and resets the cursor. The
// buffer must be re-wrapped before reuse.
type Depacketizer interface {
	WrapBuffer(dst []byte)
	Push(payload []byte) error
	Finish() int
}

// H264Depacketizer reassembles H.264 NAL units from RTP payloads
// (RFC 6184). Single NAL units, STAP-A aggregates and FU-A fragments are
// supported; each reassembled NAL is written with an Annex-B start code.
type H264Depacketizer struct {
	dst      []byte
	n        int
	fuActive bool
}

// NewH264Depacketizer returns a depacketizer bound to dst.
func NewH264Depacketizer(dst []byte) *H264Depacketizer {
	d := &H264Depacketizer{}
	d.WrapBuffer(dst)
	return d
}

// WrapBuffer binds dst as the output buffer and resets all state.
func (d *H264Depacketizer) WrapBuffer(dst []byte) {
	d.dst = dst
	d.n = 0
	d.fuActive = false
}

// Finish returns the number of bytes written and resets the cursor.
func (d *H264Depacketizer) Finish() int {
	n := d.n
	d.n = 0
	d.fuActive = false
	return n
}

// Push consumes one RTP payload. A nil return means a complete access unit
// is available via Finish. ErrNeedMoreInput means the unit continues in the
// next payload. Any other error invalidates whatever has been accumulated.
func (d *H264Depacketizer) Push(payload []byte) error {
	if len(payload) == 0 {
		return ErrShortPayload
	}

	typ := payload[0] & naluTypeMask
	switch {
	case typ >= 1 && typ < naluTypeSTAPA:
		if d.fuActive {
			return fmt.Errorf("%w: single nalu during fragment reassembly", ErrUnexpectedStartFragment)
		}
		return d.writeNALU(payload)

	case typ == naluTypeSTAPA:
		if d.fuActive {
			return fmt.Errorf("%w: aggregate during fragment reassembly", ErrUnexpectedStartFragment)
		}
		return d.pushSTAPA(payload[1:])

	case typ == naluTypeFUA:
		return d.pushFUA(payload)

	default:
		return fmt.Errorf("%w: %d", ErrUnhandledNALUType, typ)
	}
}

func (d *H264Depacketizer) pushSTAPA(b []byte) error {
	if len(b) == 0 {
		return ErrShortPayload
	}
	for len(b) > 0 {
		if len(b) < 2 {
			return ErrShortPayload
		}
		size := int(b[0])<<8 | int(b[1])
		b = b[2:]
		if size == 0 || size > len(b) {
			return ErrShortPayload
		}
		if err := d.writeNALU(b[:size]); err != nil {
			return err
		}
		b = b[size:]
	}
	return nil
}

func (d *H264Depacketizer) pushFUA(payload []byte) error {
	if len(payload) < 3 {
		return ErrShortPayload
	}

	fuHeader := payload[1]
	start := fuHeader&0x80 != 0
	end := fuHeader&0x40 != 0

	if start {
		if d.fuActive {
			return ErrUnexpectedStartFragment
		}
		// Rebuild the NAL header: F and NRI from the indicator, the type
		// from the FU header.
		header := payload[0]&0xE0 | fuHeader&naluTypeMask
		if err := d.write(naluStartCode[:]); err != nil {
			return err
		}
		if err := d.write([]byte{header}); err != nil {
			return err
		}
		d.fuActive = true
	} else if !d.fuActive {
		return ErrMissingStartFragment
	}

	if err := d.write(payload[2:]); err != nil {
		return err
	}

	if end {
		d.fuActive = false
		return nil
	}
	return ErrNeedMoreInput
}

func (d *H264Depacketizer) writeNALU(nalu []byte) error {
	if err := d.write(naluStartCode[:]); err != nil {
		return err
	}
	return d.write(nalu)
}

func (d *H264Depacketizer) write(b []byte) error {
	if d.n+len(b) > len(d.dst) {
		return ErrBufferOverflow
	}
	copy(d.dst[d.n:], b)
	d.n += len(b)
	return nil
}
