package rtcvideo

import (
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/pion/rtp"
)

// ReorderBufferConfig configures a ReorderBuffer.
type ReorderBufferConfig struct {
	// Capacity is the reorder window size in packets. Must be a power of
	// two so that sequence numbers map cleanly onto slots.
	Capacity int

	// ReadTimeout bounds each track read so cancellation is observed with
	// bounded latency. Zero disables the deadline.
	ReadTimeout time.Duration

	// MaxPacketSize is the size of the raw packet read buffer.
	MaxPacketSize int
}

// DefaultReorderBufferConfig returns the default reorder buffer
// configuration: a 128-packet window and a 500ms read deadline.
func DefaultReorderBufferConfig() ReorderBufferConfig {
	return ReorderBufferConfig{
		Capacity:      128,
		ReadTimeout:   500 * time.Millisecond,
		MaxPacketSize: 1500,
	}
}

// seqDiff returns the wraparound-aware distance from b to a: positive when
// a is ahead of b in 16-bit sequence space.
func seqDiff(a, b uint16) int16 {
	return int16(a - b)
}

type reorderSlot struct {
	seq     uint16
	payload []byte
	set     bool
}

// ReorderBuffer pulls packets from a Track and yields their payloads in
// strictly increasing sequence-number order within a bounded window.
//
// Single-owner: all methods must be called from one goroutine.
type ReorderBuffer struct {
	cfg     ReorderBufferConfig
	track   Track
	readBuf []byte
	slots   []reorderSlot
	mask    uint16
	next    uint16
	started bool
}

// NewReorderBuffer creates a ReorderBuffer over track. Panics if the
// configured capacity is not a power of two.
func NewReorderBuffer(track Track, cfg ReorderBufferConfig) *ReorderBuffer {
	if cfg.Capacity <= 0 || cfg.Capacity&(cfg.Capacity-1) != 0 {
		panic("rtcvideo: reorder buffer capacity must be a power of two")
	}
	if cfg.MaxPacketSize <= 0 {
		cfg.MaxPacketSize = DefaultReorderBufferConfig().MaxPacketSize
	}
	return &ReorderBuffer{
		cfg:     cfg,
		track:   track,
		readBuf: make([]byte, cfg.MaxPacketSize),
		slots:   make([]reorderSlot, cfg.Capacity),
		mask:    uint16(cfg.Capacity - 1),
	}
}

// Recv returns the payload of the next packet in sequence order, pulling
// from the track until it is available.
//
// The returned slice is valid until the corresponding slot is reused, which
// cannot happen before Capacity further packets have been delivered;
// callers that hold payloads longer must copy.
//
// Errors: ErrReadTimeout and ErrPacketTooShort are benign, ErrHeaderParsing
// and ErrTrackRead and ErrBufferFull signal loss (see isLossError).
// ErrBufferFull is returned exactly once per unrecoverable gap; the buffer
// resynchronizes past the gap before returning it.
func (b *ReorderBuffer) Recv() ([]byte, error) {
	for {
		if b.started {
			s := &b.slots[b.next&b.mask]
			if s.set && s.seq == b.next {
				s.set = false
				b.next++
				return s.payload, nil
			}
		}

		pkt, err := b.readPacket()
		if err != nil {
			return nil, err
		}

		seq := pkt.SequenceNumber
		if !b.started {
			b.started = true
			b.next = seq
		}

		d := seqDiff(seq, b.next)
		if d < 0 {
			// Already delivered (late duplicate); drop.
			continue
		}
		if int(d) >= b.cfg.Capacity {
			b.resync(pkt)
			return nil, ErrBufferFull
		}
		b.store(pkt)
	}
}

// SSRC returns the track's synchronization source identifier.
func (b *ReorderBuffer) SSRC() uint32 {
	return b.track.SSRC()
}

func (b *ReorderBuffer) readPacket() (rtp.Packet, error) {
	var pkt rtp.Packet

	if b.cfg.ReadTimeout > 0 {
		if err := b.track.SetReadDeadline(time.Now().Add(b.cfg.ReadTimeout)); err != nil {
			return pkt, fmt.Errorf("%w: %v", ErrTrackRead, err)
		}
	}

	n, err := b.track.Read(b.readBuf)
	if err != nil {
		var ne net.Error
		if errors.Is(err, os.ErrDeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout()) {
			return pkt, ErrReadTimeout
		}
		return pkt, fmt.Errorf("%w: %v", ErrTrackRead, err)
	}

	if err := pkt.Unmarshal(b.readBuf[:n]); err != nil {
		return pkt, fmt.Errorf("%w: %v", ErrHeaderParsing, err)
	}
	if len(pkt.Payload) == 0 {
		return pkt, ErrPacketTooShort
	}
	return pkt, nil
}

// store copies the packet's payload into its window slot. Inserting a
// sequence number already pending is a no-op.
func (b *ReorderBuffer) store(pkt rtp.Packet) {
	s := &b.slots[pkt.SequenceNumber&b.mask]
	if s.set && s.seq == pkt.SequenceNumber {
		return
	}
	s.seq = pkt.SequenceNumber
	s.payload = append(s.payload[:0], pkt.Payload...)
	s.set = true
}

// resync advances past an unrecoverable gap: the next expected sequence
// becomes the oldest buffered one. If the incoming packet is too far ahead
// even of that, all pending state is discarded and the stream restarts at
// the incoming packet.
func (b *ReorderBuffer) resync(pkt rtp.Packet) {
	oldest := pkt.SequenceNumber
	found := false
	for i := range b.slots {
		s := &b.slots[i]
		if !s.set {
			continue
		}
		if !found || seqDiff(s.seq, oldest) < 0 {
			oldest = s.seq
			found = true
		}
	}

	if found && int(seqDiff(pkt.SequenceNumber, oldest)) < b.cfg.Capacity {
		b.next = oldest
		b.store(pkt)
		return
	}

	for i := range b.slots {
		b.slots[i].set = false
	}
	b.next = pkt.SequenceNumber
	b.store(pkt)
}
