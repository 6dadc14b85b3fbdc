package communication

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"sync"
)

// MaxMessageSize bounds a single frame.
const MaxMessageSize = 64 << 20

// StreamCommunicator sends length-prefixed JSON frames over a byte stream:
// a four-byte big-endian length followed by the encoded Message.
type StreamCommunicator struct {
	r      *bufio.Reader
	w      io.Writer
	closer io.Closer
	mutex  sync.Mutex
}

// NewStreamCommunicator returns a communicator reading from r and writing
// to w. Close closes closer, if it is not nil.
func NewStreamCommunicator(r io.Reader, w io.Writer, closer io.Closer) *StreamCommunicator {
	return &StreamCommunicator{
		r:      bufio.NewReader(r),
		w:      w,
		closer: closer,
	}
}

func (sc *StreamCommunicator) Send(msg *Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	if len(data) > MaxMessageSize {
		return fmt.Errorf("message too large: %d bytes", len(data))
	}
	frame := make([]byte, 4+len(data))
	binary.BigEndian.PutUint32(frame, uint32(len(data)))
	copy(frame[4:], data)

	sc.mutex.Lock()
	defer sc.mutex.Unlock()
	_, err = sc.w.Write(frame)
	return err
}

// Receive reads the next message. It returns io.EOF if the stream ended
// cleanly between frames.
func (sc *StreamCommunicator) Receive() (*Message, error) {
	var header [4]byte
	if _, err := io.ReadFull(sc.r, header[:]); err != nil {
		return nil, err
	}
	size := binary.BigEndian.Uint32(header[:])
	if size > MaxMessageSize {
		return nil, fmt.Errorf("message too large: %d bytes", size)
	}
	data := make([]byte, size)
	if _, err := io.ReadFull(sc.r, data); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("invalid message: %w", err)
	}
	return &msg, nil
}

func (sc *StreamCommunicator) Close() error {
	if sc.closer == nil {
		return nil
	}
	return sc.closer.Close()
}
