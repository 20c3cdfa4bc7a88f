package rtcvideo

// H.264 NAL unit types (RFC 6184 §5.2, ITU-T H.264 Table 7-1).
const (
	naluTypeMask uint8 = 0x1F

	naluTypeIDR uint8 = 5
	naluTypeSPS uint8 = 7
	naluTypePPS uint8 = 8

	naluTypeSTAPA  uint8 = 24
	naluTypeSTAPB  uint8 = 25
	naluTypeMTAP16 uint8 = 26
	naluTypeMTAP24 uint8 = 27
	naluTypeFUA    uint8 = 28
	naluTypeFUB    uint8 = 29
)

// naluStartCode is the Annex-B delimiter written before every reassembled
// NAL unit.
var naluStartCode = [4]byte{0, 0, 0, 1}

// naluChunks splits an Annex-B byte stream into NAL units, stripping the
// start codes. Both 3- and 4-byte start codes are recognized. Input that
// does not begin with a start code yields no chunks.
func naluChunks(b []byte) [][]byte {
	var chunks [][]byte
	start := -1
	i := 0
	for i+2 < len(b) {
		if b[i] != 0 || b[i+1] != 0 {
			i++
			continue
		}
		var codeLen int
		switch {
		case b[i+2] == 1:
			codeLen = 3
		case i+3 < len(b) && b[i+2] == 0 && b[i+3] == 1:
			codeLen = 4
		default:
			i++
			continue
		}
		if start >= 0 && i > start {
			chunks = append(chunks, b[start:i])
		}
		i += codeLen
		start = i
	}
	if start >= 0 && start < len(b) {
		chunks = append(chunks, b[start:])
	}
	return chunks
}

// leadingNALUType returns the type field of the first NAL unit of an
// Annex-B access unit, or false when the unit is too short to carry one.
func leadingNALUType(accessUnit []byte) (uint8, bool) {
	if len(accessUnit) < len(naluStartCode)+1 {
		return 0, false
	}
	return accessUnit[len(naluStartCode)] & naluTypeMask, true
}
