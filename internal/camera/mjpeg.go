package camera

import "bytes"

// ParserState is the position of the MJPEG splitter.
type ParserState int

const (
	SeekingStart ParserState = iota
	SeekingEnd
	Emit
)

func (s ParserState) String() string {
	switch s {
	case SeekingStart:
		return "seeking_start"
	case SeekingEnd:
		return "seeking_end"
	case Emit:
		return "emit"
	default:
		return "unknown"
	}
}

// DefaultMaxFrameBytes bounds a single JPEG image.
const DefaultMaxFrameBytes = 4 << 20

var (
	jpegSOI = []byte{0xFF, 0xD8}
	jpegEOI = []byte{0xFF, 0xD9}
)

// Parser splits a concatenated MJPEG byte stream into JPEG images. Each byte
// is examined once; scanning resumes where the previous chunk stopped.
type Parser struct {
	state     ParserState
	buf       []byte
	scan      int
	max       int
	overflows int
}

// NewParser returns a parser that discards frames larger than maxFrame bytes.
func NewParser(maxFrame int) *Parser {
	if maxFrame <= 0 {
		maxFrame = DefaultMaxFrameBytes
	}
	return &Parser{max: maxFrame, buf: make([]byte, 0, 64<<10)}
}

// State reports the current parser state.
func (p *Parser) State() ParserState { return p.state }

// Overflows counts frames dropped for exceeding the size bound.
func (p *Parser) Overflows() int { return p.overflows }

// Feed consumes chunk and calls emit for every complete image. The slice
// passed to emit is a private copy.
func (p *Parser) Feed(chunk []byte, emit func([]byte)) {
	p.buf = append(p.buf, chunk...)
	for {
		switch p.state {
		case SeekingStart:
			idx := bytes.Index(p.buf[p.scan:], jpegSOI)
			if idx < 0 {
				// Keep a trailing 0xFF: it may begin a marker split across chunks.
				if n := len(p.buf); n > 0 && p.buf[n-1] == 0xFF {
					p.buf = append(p.buf[:0], 0xFF)
				} else {
					p.buf = p.buf[:0]
				}
				p.scan = 0
				return
			}
			start := p.scan + idx
			p.buf = append(p.buf[:0], p.buf[start:]...)
			p.scan = len(jpegSOI)
			p.state = SeekingEnd
		case SeekingEnd:
			idx := bytes.Index(p.buf[p.scan:], jpegEOI)
			if idx < 0 {
				if len(p.buf) > p.max {
					p.overflows++
					p.buf = p.buf[:0]
					p.scan = 0
					p.state = SeekingStart
					return
				}
				p.scan = max(len(p.buf)-1, len(jpegSOI))
				return
			}
			end := p.scan + idx + len(jpegEOI)
			if end > p.max {
				p.overflows++
				p.buf = append(p.buf[:0], p.buf[end:]...)
				p.scan = 0
				p.state = SeekingStart
				continue
			}
			p.state = Emit
			frame := make([]byte, end)
			copy(frame, p.buf[:end])
			emit(frame)
			p.buf = append(p.buf[:0], p.buf[end:]...)
			p.scan = 0
			p.state = SeekingStart
		default:
			p.state = SeekingStart
		}
	}
}

// Reset drops any partial frame.
func (p *Parser) Reset() {
	p.buf = p.buf[:0]
	p.scan = 0
	p.state = SeekingStart
}
