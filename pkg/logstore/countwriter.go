package logstore

import "io"

// countingWriter tracks the total number of bytes written through it,
// seeded at construction with the file's size at the time the substream
// was first opened. The writer component uses the running count, rather
// than an os.File.Stat() call, to compute every mark's offset.
type countingWriter struct {
	w io.Writer
	n uint64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += uint64(n)
	return n, err
}

func (c *countingWriter) Count() uint64 { return c.n }
