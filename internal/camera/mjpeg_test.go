package camera

import (
	"bytes"
	"testing"
)

func fakeJPEG(payload ...byte) []byte {
	out := []byte{0xFF, 0xD8}
	out = append(out, payload...)
	return append(out, 0xFF, 0xD9)
}

func TestParserSplitsConcatenatedFrames(t *testing.T) {
	a := fakeJPEG(1, 2, 3)
	b := fakeJPEG(4, 5)
	stream := append([]byte{0x00, 0x11}, a...)
	stream = append(stream, 0x22)
	stream = append(stream, b...)

	var got [][]byte
	p := NewParser(0)
	p.Feed(stream, func(f []byte) { got = append(got, f) })

	if len(got) != 2 || !bytes.Equal(got[0], a) || !bytes.Equal(got[1], b) {
		t.Fatalf("unexpected frames: %x", got)
	}
	if p.State() != SeekingStart {
		t.Fatalf("expected parser to wait for next frame, got %s", p.State())
	}
}

func TestParserHandlesMarkersSplitAcrossChunks(t *testing.T) {
	frames := [][]byte{fakeJPEG(9, 8, 7, 6), fakeJPEG(0xFF, 0x00, 5)}
	var stream []byte
	for _, f := range frames {
		stream = append(stream, 0x42)
		stream = append(stream, f...)
	}

	for chunkSize := 1; chunkSize <= len(stream); chunkSize++ {
		var got [][]byte
		p := NewParser(0)
		for i := 0; i < len(stream); i += chunkSize {
			end := min(i+chunkSize, len(stream))
			p.Feed(stream[i:end], func(f []byte) { got = append(got, f) })
		}
		if len(got) != len(frames) {
			t.Fatalf("chunk size %d: expected %d frames, got %d", chunkSize, len(frames), len(got))
		}
		for i := range frames {
			if !bytes.Equal(got[i], frames[i]) {
				t.Fatalf("chunk size %d: frame %d mismatch: %x", chunkSize, i, got[i])
			}
		}
	}
}

func TestParserResyncsAfterOversizedFrame(t *testing.T) {
	p := NewParser(16)
	var got [][]byte

	big := append([]byte{0xFF, 0xD8}, bytes.Repeat([]byte{0x01}, 32)...)
	p.Feed(big, func(f []byte) { got = append(got, f) })
	if p.Overflows() != 1 {
		t.Fatalf("expected one overflow, got %d", p.Overflows())
	}
	if p.State() != SeekingStart {
		t.Fatalf("expected resync to seeking_start, got %s", p.State())
	}

	small := fakeJPEG(7)
	p.Feed(append([]byte{0x01, 0xFF, 0xD9}, small...), func(f []byte) { got = append(got, f) })
	if len(got) != 1 || !bytes.Equal(got[0], small) {
		t.Fatalf("expected parser to recover with next frame, got %x", got)
	}
}

func TestParserEmitsPrivateCopies(t *testing.T) {
	p := NewParser(0)
	var first []byte
	p.Feed(fakeJPEG(1), func(f []byte) { first = f })
	p.Feed(fakeJPEG(2), func([]byte) {})
	if !bytes.Equal(first, fakeJPEG(1)) {
		t.Fatalf("emitted slice was overwritten: %x", first)
	}
}
