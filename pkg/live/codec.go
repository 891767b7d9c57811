package live

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// maxFieldLen bounds a single string on the wire
const maxFieldLen = 1 << 20

// Encoder writes protocol primitives
type Encoder struct {
	w io.Writer
}

// NewEncoder creates a new encoder
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: w}
}

// WriteUvarint writes an unsigned varint
func (e *Encoder) WriteUvarint(v uint64) error {
	var buf [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(buf[:], v)
	_, err := e.w.Write(buf[:n])
	return err
}

// WriteString writes a length-prefixed string
func (e *Encoder) WriteString(s string) error {
	if err := e.WriteUvarint(uint64(len(s))); err != nil {
		return err
	}
	_, err := io.WriteString(e.w, s)
	return err
}

// WriteStrings writes a count followed by each string
func (e *Encoder) WriteStrings(ss []string) error {
	if err := e.WriteUvarint(uint64(len(ss))); err != nil {
		return err
	}
	for _, s := range ss {
		if err := e.WriteString(s); err != nil {
			return err
		}
	}
	return nil
}

// WriteByte writes a single byte
func (e *Encoder) WriteByte(b byte) error {
	_, err := e.w.Write([]byte{b})
	return err
}

// Decoder reads protocol primitives
type Decoder struct {
	r *bytes.Reader
}

// NewDecoder creates a decoder over a complete frame body
func NewDecoder(data []byte) *Decoder {
	return &Decoder{r: bytes.NewReader(data)}
}

// ReadUvarint reads an unsigned varint
func (d *Decoder) ReadUvarint() (uint64, error) {
	return binary.ReadUvarint(d.r)
}

// ReadByte reads a single byte
func (d *Decoder) ReadByte() (byte, error) {
	return d.r.ReadByte()
}

// ReadString reads a length-prefixed string
func (d *Decoder) ReadString() (string, error) {
	length, err := d.ReadUvarint()
	if err != nil {
		return "", err
	}
	if length > maxFieldLen || length > uint64(d.r.Len()) {
		return "", fmt.Errorf("string of %d bytes: %w", length, io.ErrUnexpectedEOF)
	}
	buf := make([]byte, length)
	if _, err := io.ReadFull(d.r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

// ReadStrings reads a count followed by that many strings
func (d *Decoder) ReadStrings() ([]string, error) {
	n, err := d.ReadUvarint()
	if err != nil {
		return nil, err
	}
	// each string takes at least one byte
	if n > uint64(d.r.Len()) {
		return nil, fmt.Errorf("%d strings: %w", n, io.ErrUnexpectedEOF)
	}
	if n == 0 {
		return nil, nil
	}
	out := make([]string, n)
	for i := range out {
		if out[i], err = d.ReadString(); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Remaining reports unread bytes
func (d *Decoder) Remaining() int {
	return d.r.Len()
}

func frameDecoder(data []byte, want MessageType) (*Decoder, error) {
	if len(data) == 0 {
		return nil, errors.New("empty frame")
	}
	if MessageType(data[0]) != want {
		return nil, fmt.Errorf("frame type 0x%02x, want 0x%02x", data[0], byte(want))
	}
	return NewDecoder(data[1:]), nil
}

// EncodeEvent encodes an event frame
func EncodeEvent(evt Event) []byte {
	var buf bytes.Buffer
	enc := NewEncoder(&buf)
	enc.WriteByte(byte(FrameEvent))
	enc.WriteByte(byte(evt.Type))
	enc.WriteStrings(evt.Args)
	return buf.Bytes()
}

// DecodeEvent decodes an event frame
func DecodeEvent(data []byte) (*Event, error) {
	dec, err := frameDecoder(data, FrameEvent)
	if err != nil {
		return nil, err
	}
	t, err := dec.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("event type: %w", err)
	}
	args, err := dec.ReadStrings()
	if err != nil {
		return nil, fmt.Errorf("event args: %w", err)
	}
	return &Event{Type: EventType(t), Args: args}, nil
}

// EncodeCommand encodes a command frame
func EncodeCommand(cmd Command) []byte {
	var buf bytes.Buffer
	enc := NewEncoder(&buf)
	enc.WriteByte(byte(FrameCommand))
	enc.WriteUvarint(cmd.Seq)
	enc.WriteString(cmd.Op)
	enc.WriteStrings(cmd.Args)
	return buf.Bytes()
}

// DecodeCommand decodes a command frame
func DecodeCommand(data []byte) (*Command, error) {
	dec, err := frameDecoder(data, FrameCommand)
	if err != nil {
		return nil, err
	}
	cmd := &Command{}
	if cmd.Seq, err = dec.ReadUvarint(); err != nil {
		return nil, fmt.Errorf("command seq: %w", err)
	}
	if cmd.Op, err = dec.ReadString(); err != nil {
		return nil, fmt.Errorf("command op: %w", err)
	}
	if cmd.Args, err = dec.ReadStrings(); err != nil {
		return nil, fmt.Errorf("command args: %w", err)
	}
	return cmd, nil
}

// EncodeReply encodes a reply frame
func EncodeReply(r Reply) []byte {
	var buf bytes.Buffer
	enc := NewEncoder(&buf)
	enc.WriteByte(byte(FrameReply))
	enc.WriteUvarint(r.Seq)
	enc.WriteString(r.Err)
	enc.WriteString(r.Result)
	return buf.Bytes()
}

// DecodeReply decodes a reply frame
func DecodeReply(data []byte) (*Reply, error) {
	dec, err := frameDecoder(data, FrameReply)
	if err != nil {
		return nil, err
	}
	r := &Reply{}
	if r.Seq, err = dec.ReadUvarint(); err != nil {
		return nil, fmt.Errorf("reply seq: %w", err)
	}
	if r.Err, err = dec.ReadString(); err != nil {
		return nil, fmt.Errorf("reply error: %w", err)
	}
	if r.Result, err = dec.ReadString(); err != nil {
		return nil, fmt.Errorf("reply result: %w", err)
	}
	return r, nil
}

// EncodeControl encodes a control frame
func EncodeControl(c Control) []byte {
	var buf bytes.Buffer
	enc := NewEncoder(&buf)
	enc.WriteByte(byte(FrameControl))
	enc.WriteString(c.Name)
	enc.WriteStrings(c.Args)
	return buf.Bytes()
}

// DecodeControl decodes a control frame
func DecodeControl(data []byte) (*Control, error) {
	dec, err := frameDecoder(data, FrameControl)
	if err != nil {
		return nil, err
	}
	c := &Control{}
	if c.Name, err = dec.ReadString(); err != nil {
		return nil, fmt.Errorf("control name: %w", err)
	}
	if c.Args, err = dec.ReadStrings(); err != nil {
		return nil, fmt.Errorf("control args: %w", err)
	}
	return c, nil
}
