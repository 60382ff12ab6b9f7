package providers

import (
	"bytes"
	"io"
)

// DoneSentinel is the payload that marks the end of an event stream.
const DoneSentinel = "[DONE]"

const sseReadSize = 4096

var (
	sseDelimiter = []byte("\n\n")
	sseDataField = []byte("data:")
)

// SSEScanner reads Server-Sent Events frames from a byte stream.
//
// A frame is complete only once its blank-line delimiter has been read; bytes
// after the last delimiter are held until the next read. Frames without a
// data field and frames carrying DoneSentinel are skipped. Bytes left
// without a delimiter at EOF are discarded.
type SSEScanner struct {
	r       io.Reader
	pending []byte
	readBuf []byte
	data    string
	err     error
	eof     bool

	// OnRead, when set, is called with the size of every non-empty read.
	OnRead func(n int)
}

// NewSSEScanner creates a new SSE scanner
func NewSSEScanner(r io.Reader) *SSEScanner {
	return &SSEScanner{r: r, readBuf: make([]byte, sseReadSize)}
}

// Scan advances to the next frame carrying data.
func (s *SSEScanner) Scan() bool {
	for {
		if frame, ok := s.nextFrame(); ok {
			data, found := frameData(frame)
			if !found || data == DoneSentinel {
				continue
			}
			s.data = data
			return true
		}
		if s.eof || s.err != nil {
			return false
		}
		s.fill()
	}
}

func (s *SSEScanner) fill() {
	n, err := s.r.Read(s.readBuf)
	if n > 0 {
		if s.OnRead != nil {
			s.OnRead(n)
		}
		// CR bytes are dropped so CRLF framing reduces to LF framing even when
		// the pair is split across reads.
		for _, b := range s.readBuf[:n] {
			if b != '\r' {
				s.pending = append(s.pending, b)
			}
		}
	}
	switch {
	case err == io.EOF:
		s.eof = true
	case err != nil:
		s.err = err
	}
}

func (s *SSEScanner) nextFrame() ([]byte, bool) {
	idx := bytes.Index(s.pending, sseDelimiter)
	if idx < 0 {
		return nil, false
	}
	frame := make([]byte, idx)
	copy(frame, s.pending[:idx])
	s.pending = s.pending[idx+len(sseDelimiter):]
	return frame, true
}

// frameData joins the values of every data line in a frame.
func frameData(frame []byte) (string, bool) {
	var (
		parts [][]byte
		found bool
	)
	for _, line := range bytes.Split(frame, []byte("\n")) {
		if !bytes.HasPrefix(line, sseDataField) {
			continue
		}
		value := bytes.TrimPrefix(line, sseDataField)
		value = bytes.TrimPrefix(value, []byte(" "))
		parts = append(parts, value)
		found = true
	}
	return string(bytes.Join(parts, []byte("\n"))), found
}

// Data returns the payload of the current frame.
func (s *SSEScanner) Data() string {
	return s.data
}

// Err returns the first non-EOF read error.
func (s *SSEScanner) Err() error {
	return s.err
}

// Pending returns the number of buffered bytes not yet forming a frame.
func (s *SSEScanner) Pending() int {
	return len(s.pending)
}
