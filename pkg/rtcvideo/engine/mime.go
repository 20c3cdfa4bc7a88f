package engine

import (
	"fmt"
	"strings"
)

// MimeType identifies a codec across the SDP and platform naming schemes.
type MimeType int

const (
	MimeUnknown MimeType = iota
	MimeAudioPCMA
	MimeAudioPCMU
	MimeAudioOpus
	MimeVideoAV1
	MimeVideoH264
	MimeVideoH265
	MimeVideoVP8
)

// Video reports whether the MIME type is a video codec.
func (m MimeType) Video() bool {
	switch m {
	case MimeVideoAV1, MimeVideoH264, MimeVideoH265, MimeVideoVP8:
		return true
	}
	return false
}

// SDP returns the MIME type as it appears in SDP.
func (m MimeType) SDP() string {
	switch m {
	case MimeAudioPCMA:
		return "audio/PCMA"
	case MimeAudioPCMU:
		return "audio/PCMU"
	case MimeAudioOpus:
		return "audio/opus"
	case MimeVideoAV1:
		return "video/AV1"
	case MimeVideoH264:
		return "video/H264"
	case MimeVideoH265:
		return "video/H265"
	case MimeVideoVP8:
		return "video/VP8"
	}
	return "unknown"
}

// Platform returns the MIME type in the spelling Android's codec framework
// expects.
func (m MimeType) Platform() string {
	switch m {
	case MimeAudioPCMA:
		return "audio/g711-alaw"
	case MimeAudioPCMU:
		return "audio/g711-mlaw"
	case MimeAudioOpus:
		return "audio/opus"
	case MimeVideoAV1:
		return "video/av01"
	case MimeVideoH264:
		return "video/avc"
	case MimeVideoH265:
		return "video/hevc"
	case MimeVideoVP8:
		return "video/x-vnd.on2.vp8"
	}
	return "unknown"
}

func (m MimeType) String() string { return m.SDP() }

// ParseMimeType accepts both SDP and platform spellings, case-insensitively.
func ParseMimeType(s string) (MimeType, error) {
	for _, m := range []MimeType{
		MimeAudioPCMA, MimeAudioPCMU, MimeAudioOpus,
		MimeVideoAV1, MimeVideoH264, MimeVideoH265, MimeVideoVP8,
	} {
		if strings.EqualFold(s, m.SDP()) || strings.EqualFold(s, m.Platform()) {
			return m, nil
		}
	}
	return MimeUnknown, fmt.Errorf("unknown mime type %q", s)
}
