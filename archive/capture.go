package archive

import (
	"bytes"
	"io"
)

// captureReader копирует прочитанные байты в буфер, не изменяя поток
type captureReader struct {
	body       io.ReadCloser
	limit      int64
	buf        bytes.Buffer
	eof        bool
	overflow   bool
	closed     bool
	onComplete func(data []byte)
	onSkip     func()
}

func (c *captureReader) Read(p []byte) (int, error) {
	n, err := c.body.Read(p)
	if n > 0 && !c.overflow {
		if int64(c.buf.Len()+n) > c.limit {
			c.overflow = true
			c.buf = bytes.Buffer{}
		} else {
			c.buf.Write(p[:n])
		}
	}
	if err == io.EOF {
		c.eof = true
	}
	return n, err
}

// Close передает тайл в архив, только если он прочитан полностью
func (c *captureReader) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true

	err := c.body.Close()
	if c.eof && !c.overflow && c.buf.Len() > 0 {
		c.onComplete(c.buf.Bytes())
	} else if c.onSkip != nil {
		c.onSkip()
	}
	return err
}
