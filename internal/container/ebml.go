package container

// EBML element IDs for video pixel dimensions (Matroska/WebM).
const (
	ebmlPixelWidth  = 0xB0
	ebmlPixelHeight = 0xBA

	// ebmlScanLimit bounds the linear scan; dimensions live in the track
	// entry near the head of the file.
	ebmlScanLimit = 32 * 1024
)

// EBMLDimensions scans the head of an EBML container (WebM/MKV) for the
// pixel width and pixel height elements. Each candidate must be followed by
// a one-byte length descriptor of at most four bytes and a big-endian
// integer payload. The scan stops once both dimensions are found; a missing
// element leaves ok false.
func EBMLDimensions(buf []byte) (width, height int, ok bool) {
	limit := len(buf)
	if limit > ebmlScanLimit {
		limit = ebmlScanLimit
	}

	for i := 0; i < limit; i++ {
		var target *int
		switch buf[i] {
		case ebmlPixelWidth:
			target = &width
		case ebmlPixelHeight:
			target = &height
		default:
			continue
		}
		if *target != 0 {
			continue
		}

		value, valid := readEBMLUint(buf, i+1)
		if !valid {
			continue
		}
		*target = value

		if width != 0 && height != 0 {
			return width, height, true
		}
	}
	return 0, 0, false
}

// readEBMLUint reads a length-prefixed unsigned integer at offset: one
// length byte with the EBML size marker (0x80) set and a payload of at most
// four bytes.
func readEBMLUint(buf []byte, offset int) (int, bool) {
	if offset >= len(buf) {
		return 0, false
	}
	lengthByte := buf[offset]
	if lengthByte&0x80 == 0 {
		return 0, false
	}
	size := int(lengthByte & 0x7F)
	if size == 0 || size > 4 {
		return 0, false
	}
	if offset+1+size > len(buf) {
		return 0, false
	}

	value := 0
	for _, b := range buf[offset+1 : offset+1+size] {
		value = value<<8 | int(b)
	}
	if value == 0 {
		return 0, false
	}
	return value, true
}
