package pipeline

import (
	"bufio"
	"errors"
	"io"
)

const readBufSize = 64 * 1024 // 64KB

// lineBuffer splits a transcript into lines of at most max bytes. Longer
// lines are consumed whole and reported as overlong instead of returned.
type lineBuffer struct {
	r    *bufio.Reader
	max  int
	line []byte
	n    int // lines consumed, overlong ones included
}

func newLineBuffer(r io.Reader, max int) *lineBuffer {
	size := readBufSize
	if max < size {
		size = max
	}
	if size < 16 {
		size = 16 // bufio minimum
	}
	return &lineBuffer{r: bufio.NewReaderSize(r, size), max: max}
}

// next returns the next line without its terminator. overlong is set, and
// text is empty, when the line exceeded the limit. io.EOF ends the stream.
func (b *lineBuffer) next() (text string, overlong bool, err error) {
	b.line = b.line[:0]
	read := false
	for {
		chunk, isPrefix, err := b.r.ReadLine()
		if err != nil {
			if errors.Is(err, io.EOF) && read {
				break
			}
			return "", false, err
		}
		read = true
		if !overlong && len(b.line)+len(chunk) > b.max {
			overlong = true
			b.line = b.line[:0]
		}
		if !overlong {
			b.line = append(b.line, chunk...)
		}
		if !isPrefix {
			break
		}
	}
	b.n++
	if overlong {
		return "", true, nil
	}
	return string(b.line), false, nil
}

// number returns the 1-based number of the line last returned by next.
func (b *lineBuffer) number() int {
	return b.n
}
