package communication

import "encoding/json"

// Communicator abstracts the link between the job driver and a worker.
type Communicator interface {
	Send(msg *Message) error
	Receive() (*Message, error)
	Close() error
}

type MessageType string

const (
	// JobMessage carries a job from the driver to a worker.
	JobMessage MessageType = "job"
	// ResponseMessage carries a completed job's response.
	ResponseMessage MessageType = "response"
	// FailedMessage reports a job that failed in an expected way.
	FailedMessage MessageType = "failed"
	// ErrorMessage reports an unexpected error in a worker.
	ErrorMessage MessageType = "error"
)

// Message is the envelope for everything sent between driver and worker.
// Kind names the job kind so the receiver can decode Body.
type Message struct {
	Type  MessageType     `json:"type"`
	Kind  string          `json:"kind,omitempty"`
	Seq   uint64          `json:"seq"`
	Body  json.RawMessage `json:"body,omitempty"`
	Error string          `json:"error,omitempty"`
}

// NewMessage encodes body into a message.
func NewMessage(t MessageType, kind string, seq uint64, body any) (*Message, error) {
	msg := &Message{Type: t, Kind: kind, Seq: seq}
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		msg.Body = data
	}
	return msg, nil
}

// Decode unmarshals the message body into v.
func (m *Message) Decode(v any) error {
	return json.Unmarshal(m.Body, v)
}
