// Package container sniffs pixel dimensions out of the first bytes of a
// media container without decoding any frames. Every read is bounds checked;
// a truncated or unfamiliar buffer yields "not found", never a guess.
package container

import "encoding/binary"

const boxHeaderSize = 8

// containerBoxes are BMFF boxes whose payload is itself a box sequence; the
// track header lives under moov/trak.
var containerBoxes = map[string]bool{
	"moov": true,
	"trak": true,
}

// BMFFDimensions walks the box structure of an ISO-BMFF buffer looking for a
// track header (tkhd) and returns its 16.16 fixed-point width and height.
// ok is false when the box is absent, truncated, or carries zero dimensions.
func BMFFDimensions(buf []byte) (width, height int, ok bool) {
	return walkBoxes(buf, 0)
}

func walkBoxes(buf []byte, depth int) (int, int, bool) {
	if depth > 4 {
		return 0, 0, false
	}

	offset := 0
	for offset+boxHeaderSize <= len(buf) {
		size := int(binary.BigEndian.Uint32(buf[offset : offset+4]))
		boxType := string(buf[offset+4 : offset+8])

		if size < boxHeaderSize {
			// size 0 ("to end of file") and 1 (64-bit size) are not worth
			// chasing inside a capped probe buffer.
			return 0, 0, false
		}

		end := offset + size
		if end > len(buf) {
			end = len(buf)
		}
		payload := buf[offset+boxHeaderSize : end]

		switch {
		case boxType == "tkhd":
			return tkhdDimensions(payload)
		case containerBoxes[boxType]:
			if w, h, found := walkBoxes(payload, depth+1); found {
				return w, h, true
			}
		}

		offset += size
	}
	return 0, 0, false
}

// tkhdDimensions reads the fixed-point width/height out of a track header
// payload. The field offsets differ between version 0 (32-bit times) and
// version 1 (64-bit times).
func tkhdDimensions(payload []byte) (int, int, bool) {
	if len(payload) < 1 {
		return 0, 0, false
	}

	var widthOff int
	switch payload[0] {
	case 0:
		// version+flags(4) ctime(4) mtime(4) id(4) rsvd(4) duration(4)
		// rsvd(8) layer(2) group(2) volume(2) rsvd(2) matrix(36)
		widthOff = 4 + 4 + 4 + 4 + 4 + 4 + 8 + 2 + 2 + 2 + 2 + 36
	case 1:
		// version+flags(4) ctime(8) mtime(8) id(4) rsvd(4) duration(8)
		// rsvd(8) layer(2) group(2) volume(2) rsvd(2) matrix(36)
		widthOff = 4 + 8 + 8 + 4 + 4 + 8 + 8 + 2 + 2 + 2 + 2 + 36
	default:
		return 0, 0, false
	}

	if len(payload) < widthOff+8 {
		return 0, 0, false
	}

	// 16.16 fixed point.
	width := int(binary.BigEndian.Uint32(payload[widthOff:widthOff+4]) >> 16)
	height := int(binary.BigEndian.Uint32(payload[widthOff+4:widthOff+8]) >> 16)
	if width == 0 || height == 0 {
		return 0, 0, false
	}
	return width, height, true
}
