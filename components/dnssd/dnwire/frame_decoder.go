package dnwire

import "fmt"

// FrameDecoder accumulates bytes read from the connection and splits them into frames.
//
// Remarks:
//   - Bytes can be fed in chunks of any size, a frame is returned only when its
//     header and payload are fully received.
//   - A header with unsupported version fails decoding with ErrIncompatible, the
//     payload length of such header can't be trusted, so the decoder can't be
//     used afterwards.
type FrameDecoder struct {
	buf []byte
	err error
}

// Feed adds received bytes.
func (d *FrameDecoder) Feed(p []byte) {
	d.buf = append(d.buf, p...)
}

// Buffered returns number of bytes waiting for a complete frame.
func (d *FrameDecoder) Buffered() int {
	return len(d.buf)
}

// Next returns the next complete frame.
//
// Returns false if more bytes are required.
func (d *FrameDecoder) Next() (Frame, bool, error) {
	if d.err != nil {
		return Frame{}, false, d.err
	}

	if len(d.buf) < HeaderSize {
		return Frame{}, false, nil
	}

	header, err := ParseHeader(d.buf)
	if err != nil {
		return Frame{}, false, err
	}

	if header.Version != Version {
		d.err = fmt.Errorf("dnwire: unsupported version %d: %w", header.Version, ErrIncompatible)
		return Frame{}, false, d.err
	}

	if header.DataLen > MaxDataLen {
		d.err = fmt.Errorf("dnwire: payload too large: len=%d", header.DataLen)
		return Frame{}, false, d.err
	}

	size := HeaderSize + int(header.DataLen)
	if len(d.buf) < size {
		return Frame{}, false, nil
	}

	frame := Frame{
		Header:  header,
		Payload: append([]byte(nil), d.buf[HeaderSize:size]...),
	}

	rest := copy(d.buf, d.buf[size:])
	d.buf = d.buf[:rest]

	return frame, true, nil
}
