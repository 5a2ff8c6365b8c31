package coltype

import (
	"encoding/binary"
	"fmt"
	"io"
)

// writeUvarint and readUvarint give every concrete data type the same
// variable-length integer encoding, following the same WriteVarint/
// ReadVarint split the teacher project's tomy_file package uses.

func writeUvarint(w io.Writer, value uint64) error {
	buf := make([]byte, binary.MaxVarintLen64)
	n := binary.PutUvarint(buf, value)
	if _, err := w.Write(buf[:n]); err != nil {
		return fmt.Errorf("coltype: write varint: %w", err)
	}
	return nil
}

func readUvarint(r io.Reader) (uint64, error) {
	br, ok := r.(io.ByteReader)
	if !ok {
		br = &byteReaderWrapper{r: r}
	}
	v, err := binary.ReadUvarint(br)
	if err != nil {
		return 0, fmt.Errorf("coltype: read varint: %w", err)
	}
	return v, nil
}

// byteReaderWrapper adapts any io.Reader to io.ByteReader one byte at a
// time; substream readers in practice are always *zstd.Decoder, which
// already implements io.ByteReader, so this path is only a safety net.
type byteReaderWrapper struct {
	r   io.Reader
	buf [1]byte
}

func (b *byteReaderWrapper) ReadByte() (byte, error) {
	if _, err := io.ReadFull(b.r, b.buf[:]); err != nil {
		return 0, err
	}
	return b.buf[0], nil
}

func zigzagEncode(n int64) uint64 {
	return uint64((n << 1) ^ (n >> 63))
}

func zigzagDecode(z uint64) int64 {
	return int64(z>>1) ^ -int64(z&1)
}
