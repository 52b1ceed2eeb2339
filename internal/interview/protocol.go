package interview

import (
	"encoding/json"
	"fmt"

	"github.com/coder/websocket"

	"github.com/ashureev/career-agent/internal/domain"
)

// State is the interviewer state announced to the client.
type State string

const (
	StateSpeaking   State = "SPEAKING"
	StateListening  State = "LISTENING"
	StateProcessing State = "PROCESSING"
	StateEnded      State = "ENDED"
)

// Frame is a server to client message. The set of implementations is closed.
type Frame interface {
	frame()
}

// SpeakingFrame announces an interviewer utterance; its audio follows.
type SpeakingFrame struct{ Text string }

// AudioFrame carries synthesized speech for the preceding SpeakingFrame.
type AudioFrame struct{ Audio []byte }

// ListeningFrame tells the client to send the candidate's answer.
type ListeningFrame struct{}

// ProcessingFrame acknowledges an answer while the next turn is prepared.
type ProcessingFrame struct{}

// EndedFrame is terminal and carries the interview feedback.
type EndedFrame struct{ Feedback domain.Feedback }

func (SpeakingFrame) frame()   {}
func (AudioFrame) frame()      {}
func (ListeningFrame) frame()  {}
func (ProcessingFrame) frame() {}
func (EndedFrame) frame()      {}

type stateMessage struct {
	State    State            `json:"state"`
	Text     string           `json:"text,omitempty"`
	Feedback *domain.Feedback `json:"feedback,omitempty"`
}

// EncodeFrame returns the websocket message type and payload for f.
func EncodeFrame(f Frame) (websocket.MessageType, []byte, error) {
	var msg stateMessage
	switch v := f.(type) {
	case AudioFrame:
		return websocket.MessageBinary, v.Audio, nil
	case SpeakingFrame:
		msg = stateMessage{State: StateSpeaking, Text: v.Text}
	case ListeningFrame:
		msg = stateMessage{State: StateListening}
	case ProcessingFrame:
		msg = stateMessage{State: StateProcessing}
	case EndedFrame:
		fb := v.Feedback
		msg = stateMessage{State: StateEnded, Feedback: &fb}
	default:
		return 0, nil, fmt.Errorf("unknown frame type %T", f)
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return 0, nil, fmt.Errorf("encode %s frame: %w", msg.State, err)
	}
	return websocket.MessageText, data, nil
}

// frameName labels a frame for logs.
func frameName(f Frame) string {
	switch f.(type) {
	case AudioFrame:
		return "AUDIO"
	case SpeakingFrame:
		return string(StateSpeaking)
	case ListeningFrame:
		return string(StateListening)
	case ProcessingFrame:
		return string(StateProcessing)
	case EndedFrame:
		return string(StateEnded)
	default:
		return "UNKNOWN"
	}
}

// Event is a client to server message.
type Event interface {
	event()
}

// AnswerEvent carries the candidate's transcribed answer.
type AnswerEvent struct{ Text string }

// UnknownEvent is any frame that is not a well-formed answer.
type UnknownEvent struct{ Type string }

func (AnswerEvent) event()  {}
func (UnknownEvent) event() {}

const eventUserAnswer = "user_answer"

type clientMessage struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// DecodeEvent parses a client text frame. Malformed input yields UnknownEvent.
func DecodeEvent(data []byte) Event {
	var msg clientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return UnknownEvent{}
	}
	if msg.Type != eventUserAnswer {
		return UnknownEvent{Type: msg.Type}
	}
	return AnswerEvent{Text: msg.Text}
}
