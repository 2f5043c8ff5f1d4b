package linereader

import (
	"bufio"
	stderrors "errors"
	"fmt"
	"io"
)

const (
	// DefaultBufferSize is the read buffer size of a Reader.
	DefaultBufferSize = 64 * 1024
	// DefaultMaxLineSize is the longest line a Reader accepts.
	DefaultMaxLineSize = 1024 * 1024 // 1MB
)

// ErrLineTooLong describes a line above the maximum size. Readers skip such
// lines and report them as Oversized.
var ErrLineTooLong = stderrors.New("line too long")

// Result is the outcome of a single Reader.Next call.
type Result int

const (
	// Line means a complete line was read.
	Line Result = iota
	// EndOfStream means the source is exhausted.
	EndOfStream
	// Fault means the source failed; Err reports why.
	Fault
	// Oversized means a line above the maximum size was discarded. The
	// stream continues with the following line.
	Oversized
)

// String returns the result name.
func (r Result) String() string {
	switch r {
	case Line:
		return "line"
	case EndOfStream:
		return "end-of-stream"
	case Fault:
		return "fault"
	case Oversized:
		return "oversized"
	default:
		return fmt.Sprintf("unknown(%d)", int(r))
	}
}

// Reader splits a byte stream into lines. Only the '\n' terminator is
// removed; every other byte, '\r' included, is part of the line.
type Reader struct {
	br      *bufio.Reader
	maxLine int
	err     error
	done    bool
}

// NewReader creates a Reader with the given buffer and maximum line sizes.
// Non-positive sizes select the defaults.
func NewReader(r io.Reader, bufferSize, maxLineSize int) *Reader {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}

	if maxLineSize <= 0 {
		maxLineSize = DefaultMaxLineSize
	}

	return &Reader{
		br:      bufio.NewReaderSize(r, bufferSize),
		maxLine: maxLineSize,
	}
}

// Next returns the next line. Once Next has returned EndOfStream or Fault it
// keeps returning the same result. A trailing line without terminator is
// returned as a Line before EndOfStream.
func (r *Reader) Next() (string, Result) {
	if r.done {
		if r.err != nil {
			return "", Fault
		}

		return "", EndOfStream
	}

	var line []byte

	for {
		chunk, err := r.br.ReadSlice('\n')
		if len(line)+len(chunk) > r.maxLine+1 {
			return r.skip(err)
		}

		line = append(line, chunk...)

		switch {
		case err == nil:
			return string(line[:len(line)-1]), Line
		case stderrors.Is(err, bufio.ErrBufferFull):
			continue
		case stderrors.Is(err, io.EOF):
			r.done = true

			if len(line) > 0 {
				return string(line), Line
			}

			return "", EndOfStream
		default:
			return r.fail(err)
		}
	}
}

// skip discards the rest of an oversized line. err is the result of the read
// that crossed the limit.
func (r *Reader) skip(err error) (string, Result) {
	for {
		switch {
		case err == nil:
			return "", Oversized
		case stderrors.Is(err, bufio.ErrBufferFull):
			_, err = r.br.ReadSlice('\n')
		case stderrors.Is(err, io.EOF):
			r.done = true

			return "", Oversized
		default:
			return r.fail(err)
		}
	}
}

// Err returns the fault that ended the stream, if any.
func (r *Reader) Err() error {
	return r.err
}

func (r *Reader) fail(err error) (string, Result) {
	r.done = true
	r.err = err

	return "", Fault
}
