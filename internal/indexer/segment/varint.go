package segment

import (
	"bufio"
	"encoding/binary"
	"errors"
	"io"
	"math"

	apperrors "github.com/Adithya-Monish-Kumar-K/plotsearch/pkg/errors"
)

// DefaultMaxBlockSize bounds any length or count read from disk.
const DefaultMaxBlockSize = 64 << 20

// preallocLimit caps the capacity reserved from an unverified count.
const preallocLimit = 1 << 16

// maxShift is the largest shift a well-formed uvarint byte may carry.
const maxShift = 63

// Encoder writes LEB128 varints, length-prefixed strings, and delta-coded
// ascending lists. The first write error is kept and returned by Flush.
type Encoder struct {
	w       *bufio.Writer
	scratch [binary.MaxVarintLen64]byte
	err     error
}

func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: bufio.NewWriterSize(w, 64<<10)}
}

func (e *Encoder) Uvarint(v uint64) {
	if e.err != nil {
		return
	}
	n := binary.PutUvarint(e.scratch[:], v)
	_, e.err = e.w.Write(e.scratch[:n])
}

func (e *Encoder) String(s string) {
	e.Uvarint(uint64(len(s)))
	if e.err != nil {
		return
	}
	_, e.err = e.w.WriteString(s)
}

// Deltas writes len(vals) followed by successive differences. Differences
// wrap modulo 2^32, so non-ascending input still decodes exactly.
func (e *Encoder) Deltas(vals []uint32) {
	e.Uvarint(uint64(len(vals)))
	var prev uint32
	for _, v := range vals {
		e.Uvarint(uint64(v - prev))
		prev = v
	}
}

// Deltas64 is Deltas over 64-bit values.
func (e *Encoder) Deltas64(vals []uint64) {
	e.Uvarint(uint64(len(vals)))
	var prev uint64
	for _, v := range vals {
		e.Uvarint(v - prev)
		prev = v
	}
}

func (e *Encoder) Err() error {
	return e.err
}

func (e *Encoder) Flush() error {
	if e.err != nil {
		return e.err
	}
	e.err = e.w.Flush()
	return e.err
}

// Decoder is the inverse of Encoder. Every length or count it reads is
// checked against maxBlock before anything is allocated.
type Decoder struct {
	r        *bufio.Reader
	maxBlock uint64
}

func NewDecoder(r io.Reader, maxBlock int) *Decoder {
	if maxBlock <= 0 {
		maxBlock = DefaultMaxBlockSize
	}
	return &Decoder{r: bufio.NewReaderSize(r, 64<<10), maxBlock: uint64(maxBlock)}
}

func (d *Decoder) Uvarint() (uint64, error) {
	var v uint64
	for shift := uint(0); ; shift += 7 {
		if shift > maxShift {
			return 0, apperrors.Formatf("varint exceeds %d bits of shift", maxShift)
		}
		b, err := d.r.ReadByte()
		if err != nil {
			return 0, d.readErr(err, "varint")
		}
		if shift == maxShift && b > 1 {
			return 0, apperrors.Formatf("varint overflows 64 bits")
		}
		v |= uint64(b&0x7f) << shift
		if b < 0x80 {
			return v, nil
		}
	}
}

func (d *Decoder) Uint32() (uint32, error) {
	v, err := d.Uvarint()
	if err != nil {
		return 0, err
	}
	if v > math.MaxUint32 {
		return 0, apperrors.Formatf("value %d does not fit in 32 bits", v)
	}
	return uint32(v), nil
}

func (d *Decoder) String() (string, error) {
	n, err := d.length("string")
	if err != nil {
		return "", err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(d.r, buf); err != nil {
		return "", d.readErr(err, "string body")
	}
	return string(buf), nil
}

func (d *Decoder) Deltas() ([]uint32, error) {
	n, err := d.length("list")
	if err != nil {
		return nil, err
	}
	vals := make([]uint32, 0, min(n, preallocLimit))
	var prev uint32
	for i := 0; i < n; i++ {
		delta, err := d.Uint32()
		if err != nil {
			return nil, err
		}
		prev += delta
		vals = append(vals, prev)
	}
	return vals, nil
}

func (d *Decoder) Deltas64() ([]uint64, error) {
	n, err := d.length("list")
	if err != nil {
		return nil, err
	}
	vals := make([]uint64, 0, min(n, preallocLimit))
	var prev uint64
	for i := 0; i < n; i++ {
		delta, err := d.Uvarint()
		if err != nil {
			return nil, err
		}
		prev += delta
		vals = append(vals, prev)
	}
	return vals, nil
}

// Count reads a varint element count bounded by the block size.
func (d *Decoder) Count(what string) (int, error) {
	return d.length(what)
}

func (d *Decoder) length(what string) (int, error) {
	n, err := d.Uvarint()
	if err != nil {
		return 0, err
	}
	if n > d.maxBlock {
		return 0, apperrors.Formatf("%s length %d exceeds max block size %d", what, n, d.maxBlock)
	}
	return int(n), nil
}

func (d *Decoder) readErr(err error, what string) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return apperrors.Formatf("truncated %s", what)
	}
	return apperrors.IOf(err, "reading %s", what)
}
