package container

import (
	"encoding/binary"
	"testing"
)

// buildBox assembles a BMFF box with the given type and payload.
func buildBox(boxType string, payload []byte) []byte {
	box := make([]byte, 8+len(payload))
	binary.BigEndian.PutUint32(box[0:4], uint32(8+len(payload)))
	copy(box[4:8], boxType)
	copy(box[8:], payload)
	return box
}

// buildTkhd builds a version-0 or version-1 track header payload with the
// given 16.16 fixed-point dimensions.
func buildTkhd(version byte, width, height int) []byte {
	var size int
	switch version {
	case 0:
		size = 4 + 4 + 4 + 4 + 4 + 4 + 8 + 2 + 2 + 2 + 2 + 36 + 8
	case 1:
		size = 4 + 8 + 8 + 4 + 4 + 8 + 8 + 2 + 2 + 2 + 2 + 36 + 8
	}
	payload := make([]byte, size)
	payload[0] = version
	binary.BigEndian.PutUint32(payload[size-8:size-4], uint32(width)<<16)
	binary.BigEndian.PutUint32(payload[size-4:size], uint32(height)<<16)
	return payload
}

func TestBMFFDimensions_Version0(t *testing.T) {
	tkhd := buildBox("tkhd", buildTkhd(0, 1920, 1080))
	trak := buildBox("trak", tkhd)
	moov := buildBox("moov", trak)
	ftyp := buildBox("ftyp", []byte("isom\x00\x00\x02\x00isomiso2"))

	buf := append(ftyp, moov...)

	w, h, ok := BMFFDimensions(buf)
	if !ok {
		t.Fatal("dimensions not found")
	}
	if w != 1920 || h != 1080 {
		t.Errorf("got %dx%d, want 1920x1080", w, h)
	}
}

func TestBMFFDimensions_Version1(t *testing.T) {
	tkhd := buildBox("tkhd", buildTkhd(1, 1280, 720))
	trak := buildBox("trak", tkhd)
	moov := buildBox("moov", trak)

	w, h, ok := BMFFDimensions(moov)
	if !ok {
		t.Fatal("dimensions not found")
	}
	if w != 1280 || h != 720 {
		t.Errorf("got %dx%d, want 1280x720", w, h)
	}
}

func TestBMFFDimensions_Truncated(t *testing.T) {
	tkhd := buildBox("tkhd", buildTkhd(0, 1920, 1080))
	trak := buildBox("trak", tkhd)
	moov := buildBox("moov", trak)

	// Cut the buffer inside the tkhd payload.
	truncated := moov[:len(moov)-12]
	if _, _, ok := BMFFDimensions(truncated); ok {
		t.Error("truncated buffer must not yield dimensions")
	}
}

func TestBMFFDimensions_NoTrackHeader(t *testing.T) {
	buf := buildBox("mdat", make([]byte, 64))
	if _, _, ok := BMFFDimensions(buf); ok {
		t.Error("buffer without tkhd must not yield dimensions")
	}
}

func TestBMFFDimensions_BogusSize(t *testing.T) {
	buf := buildBox("moov", nil)
	binary.BigEndian.PutUint32(buf[0:4], 3) // smaller than the header itself
	if _, _, ok := BMFFDimensions(buf); ok {
		t.Error("bogus box size must not yield dimensions")
	}
}

func TestEBMLDimensions(t *testing.T) {
	// Minimal track-entry fragment: PixelWidth 1920, PixelHeight 1080, each
	// a two-byte big-endian payload.
	buf := []byte{
		0x1A, 0x45, 0xDF, 0xA3, // EBML header magic, scanned over
		0xB0, 0x82, 0x07, 0x80, // PixelWidth = 1920
		0xBA, 0x82, 0x04, 0x38, // PixelHeight = 1080
	}

	w, h, ok := EBMLDimensions(buf)
	if !ok {
		t.Fatal("dimensions not found")
	}
	if w != 1920 || h != 1080 {
		t.Errorf("got %dx%d, want 1920x1080", w, h)
	}
}

func TestEBMLDimensions_MissingHeight(t *testing.T) {
	buf := []byte{0xB0, 0x82, 0x07, 0x80}
	if _, _, ok := EBMLDimensions(buf); ok {
		t.Error("width alone must not report found")
	}
}

func TestEBMLDimensions_BadLengthDescriptor(t *testing.T) {
	// Length byte without the size marker, then one with size 5 (> 4).
	buf := []byte{
		0xB0, 0x02, 0x07, 0x80,
		0xBA, 0x85, 0x00, 0x00, 0x00, 0x00, 0x01,
	}
	if _, _, ok := EBMLDimensions(buf); ok {
		t.Error("invalid length descriptors must be skipped")
	}
}

func TestEBMLDimensions_TruncatedPayload(t *testing.T) {
	buf := []byte{0xB0, 0x84, 0x00, 0x00} // claims 4 bytes, only 2 present
	if _, _, ok := EBMLDimensions(buf); ok {
		t.Error("truncated payload must not yield dimensions")
	}
}
