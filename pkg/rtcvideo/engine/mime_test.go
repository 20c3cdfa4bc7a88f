package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMimeType(t *testing.T) {
	cases := []struct {
		in   string
		want MimeType
	}{
		{"video/H264", MimeVideoH264},
		{"video/h264", MimeVideoH264},
		{"video/avc", MimeVideoH264},
		{"video/AVC", MimeVideoH264},
		{"video/H265", MimeVideoH265},
		{"video/hevc", MimeVideoH265},
		{"video/VP8", MimeVideoVP8},
		{"video/x-vnd.on2.vp8", MimeVideoVP8},
		{"video/AV1", MimeVideoAV1},
		{"video/av01", MimeVideoAV1},
		{"audio/opus", MimeAudioOpus},
		{"audio/PCMA", MimeAudioPCMA},
		{"audio/g711-alaw", MimeAudioPCMA},
		{"audio/PCMU", MimeAudioPCMU},
		{"audio/g711-mlaw", MimeAudioPCMU},
	}
	for _, c := range cases {
		got, err := ParseMimeType(c.in)
		require.NoError(t, err, c.in)
		assert.Equal(t, c.want, got, c.in)
	}
}

func TestParseMimeType_Unknown(t *testing.T) {
	for _, in := range []string{"", "video/mjpeg", "text/plain"} {
		got, err := ParseMimeType(in)
		assert.Error(t, err, in)
		assert.Equal(t, MimeUnknown, got)
	}
}

func TestMimeType_RoundTrip(t *testing.T) {
	all := []MimeType{
		MimeAudioPCMA, MimeAudioPCMU, MimeAudioOpus,
		MimeVideoAV1, MimeVideoH264, MimeVideoH265, MimeVideoVP8,
	}
	for _, m := range all {
		bySDP, err := ParseMimeType(m.SDP())
		require.NoError(t, err)
		assert.Equal(t, m, bySDP)

		byPlatform, err := ParseMimeType(m.Platform())
		require.NoError(t, err)
		assert.Equal(t, m, byPlatform)
	}
}

func TestMimeType_Video(t *testing.T) {
	assert.True(t, MimeVideoH264.Video())
	assert.True(t, MimeVideoVP8.Video())
	assert.False(t, MimeAudioOpus.Video())
	assert.False(t, MimeUnknown.Video())
}

func TestNewFormat(t *testing.T) {
	f := NewFormat(MimeVideoH264, 1920, 1080)
	assert.Equal(t, 1920, f.Width)
	assert.Equal(t, 1080, f.Height)
	assert.Equal(t, 1920, f.MaxWidth)
	assert.Equal(t, 1080, f.MaxHeight)
	assert.True(t, f.RealtimePriority)
	assert.False(t, f.LowLatency)
}

func TestTimeoutFor(t *testing.T) {
	assert.Equal(t, Timeout(1000), TimeoutFor(time.Millisecond))
	assert.Equal(t, Timeout(0), TimeoutFor(0))
}
