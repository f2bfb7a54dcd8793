package dnwire

import (
	"bytes"
	"encoding/binary"
	"errors"
)

var (
	errTruncated     = errors.New("dnwire: truncated payload")
	errUnterminated  = errors.New("dnwire: unterminated string")
	errTxtOverflow   = errors.New("dnwire: TXT segment exceeds record length")
	errTxtTooLong    = errors.New("dnwire: TXT segment exceeds 255 bytes")
	errStringHasNull = errors.New("dnwire: string contains null byte")
)

type payloadWriter struct {
	buf []byte
}

func (w *payloadWriter) uint32(v uint32) {
	w.buf = binary.BigEndian.AppendUint32(w.buf, v)
}

func (w *payloadWriter) uint16(v uint16) {
	w.buf = binary.BigEndian.AppendUint16(w.buf, v)
}

func (w *payloadWriter) string(s string) {
	w.buf = append(w.buf, s...)
	w.buf = append(w.buf, 0)
}

func (w *payloadWriter) bytes(b []byte) {
	w.buf = append(w.buf, b...)
}

// payloadReader reads fields sequentially, the first error is sticky.
type payloadReader struct {
	buf []byte
	off int
	err error
}

func (r *payloadReader) uint32() uint32 {
	b := r.take(4)
	if b == nil {
		return 0
	}

	return binary.BigEndian.Uint32(b)
}

func (r *payloadReader) uint16() uint16 {
	b := r.take(2)
	if b == nil {
		return 0
	}

	return binary.BigEndian.Uint16(b)
}

func (r *payloadReader) string() string {
	if r.err != nil {
		return ""
	}

	n := bytes.IndexByte(r.buf[r.off:], 0)
	if n < 0 {
		r.err = errUnterminated
		return ""
	}

	s := string(r.buf[r.off : r.off+n])
	r.off += n + 1

	return s
}

func (r *payloadReader) bytes(n int) []byte {
	b := r.take(n)
	if b == nil {
		return nil
	}

	return append([]byte(nil), b...)
}

func (r *payloadReader) take(n int) []byte {
	if r.err != nil {
		return nil
	}

	if n < 0 || len(r.buf)-r.off < n {
		r.err = errTruncated
		return nil
	}

	b := r.buf[r.off : r.off+n]
	r.off += n

	return b
}

// parseTxt splits the TXT record into its length-prefixed segments.
func parseTxt(blob []byte) ([][]byte, error) {
	var segments [][]byte

	for off := 0; off < len(blob); {
		n := int(blob[off])
		off++

		if off+n > len(blob) {
			return segments, errTxtOverflow
		}

		segments = append(segments, append([]byte(nil), blob[off:off+n]...))
		off += n
	}

	return segments, nil
}

// marshalTxt joins segments into the TXT record.
func marshalTxt(segments [][]byte) ([]byte, error) {
	var blob []byte

	for _, segment := range segments {
		if len(segment) > 255 {
			return nil, errTxtTooLong
		}

		blob = append(blob, byte(len(segment)))
		blob = append(blob, segment...)
	}

	return blob, nil
}

func validateStrings(strs ...string) error {
	for _, s := range strs {
		if bytes.IndexByte([]byte(s), 0) >= 0 {
			return errStringHasNull
		}
	}

	return nil
}
