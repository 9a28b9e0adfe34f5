// Package linescan provides a byte-exact, seekable line scanner shared by
// the extended and LDIF parsers. Both dialects are line-oriented with
// continuation rules layered on top, and both need the absolute byte
// offset of whatever they just read so peek/skip and the diff engine's
// fast-path byte compare can work. bufio.Reader alone doesn't expose that,
// so this wraps the caller's stream in a byte-counting reader the same way
// oba/internal/ber.BERDecoder tracks its own Offset() over an in-memory
// buffer, generalized here to a real seekable stream.
package linescan

import (
	"bufio"
	"io"
)

// Scanner reads lines from a seekable stream while tracking the absolute
// byte offset of the scanner's current position.
type Scanner struct {
	rs   io.ReadSeeker
	br   *bufio.Reader
	base int64 // stream offset where br's underlying reads began
	read int64 // bytes read from rs since base was set
}

// NewScanner wraps rs for scanning starting at its current position.
func NewScanner(rs io.ReadSeeker) (*Scanner, error) {
	pos, err := rs.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, err
	}
	s := &Scanner{rs: rs}
	s.reset(pos)
	return s, nil
}

func (s *Scanner) reset(base int64) {
	s.base = base
	s.read = 0
	s.br = bufio.NewReader(countingReader{s.rs, &s.read})
}

// SeekTo moves the scanner to an absolute offset. Passing a negative value
// other than a deliberate sentinel is a programming error; callers use
// record.Current to mean "don't seek".
func (s *Scanner) SeekTo(offset int64) error {
	if _, err := s.rs.Seek(offset, io.SeekStart); err != nil {
		return err
	}
	s.reset(offset)
	return nil
}

// Offset returns the absolute byte offset of the next byte the scanner
// will return.
func (s *Scanner) Offset() int64 {
	return s.base + s.read - int64(s.br.Buffered())
}

// ReadLine reads one logical line, without its trailing '\n', along with
// the absolute offset of its first byte. At end of stream with no
// remaining data it returns io.EOF. A final line lacking a trailing
// newline is still returned, with err == nil; the next call returns
// io.EOF.
func (s *Scanner) ReadLine() (line []byte, offset int64, err error) {
	offset = s.Offset()
	raw, err := s.br.ReadBytes('\n')
	if err != nil && err != io.EOF {
		return nil, offset, err
	}
	if len(raw) == 0 && err == io.EOF {
		return nil, offset, io.EOF
	}
	if len(raw) > 0 && raw[len(raw)-1] == '\n' {
		raw = raw[:len(raw)-1]
	}
	if err := s.sync(); err != nil {
		return nil, offset, err
	}
	return raw, offset, nil
}

// ReadByte reads and consumes a single byte, or io.EOF.
func (s *Scanner) ReadByte() (byte, error) {
	return s.br.ReadByte()
}

// PeekByte returns the next byte without consuming it, or io.EOF.
func (s *Scanner) PeekByte() (byte, error) {
	b, err := s.br.Peek(1)
	if err != nil {
		if err == io.EOF {
			return 0, io.EOF
		}
		return 0, err
	}
	c := b[0]
	if err := s.sync(); err != nil {
		return 0, err
	}
	return c, nil
}

// sync moves the underlying stream back to Offset(), dropping whatever
// bufio read ahead, so that after ReadLine or PeekByte the stream's own
// position is the scanner's logical position. Parsers end every record on
// one of those two calls, which lets callers read the position of the next
// record straight off the stream.
func (s *Scanner) sync() error {
	if s.br.Buffered() == 0 {
		return nil
	}
	return s.SeekTo(s.Offset())
}

// ReadN reads exactly n raw bytes, unconditionally (used by the extended
// dialect's ":N" literal-length encoding).
func (s *Scanner) ReadN(n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(s.br, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// countingReader wraps an io.Reader and accumulates the number of bytes it
// has yielded into *n, so Scanner.Offset can subtract the bufio.Reader's
// unread buffer back out.
type countingReader struct {
	r io.Reader
	n *int64
}

func (c countingReader) Read(p []byte) (int, error) {
	k, err := c.r.Read(p)
	*c.n += int64(k)
	return k, err
}
