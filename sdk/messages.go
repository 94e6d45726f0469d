package sdk

import (
	"encoding/json"
	"fmt"
)

// MessageType is the "msg" field of every envelope exchanged with the game server.
type MessageType string

const (
	MessageJoin      MessageType = "join"
	MessageCreate    MessageType = "create"
	MessageStart     MessageType = "start"
	MessageEnd       MessageType = "end"
	MessagePositions MessageType = "positions"
	MessageApple     MessageType = "apple"
	MessageControl   MessageType = "control"
)

// Message is the envelope used in both directions.
type Message struct {
	Msg  MessageType     `json:"msg"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Decode unmarshals the payload into v.
func (m Message) Decode(v interface{}) error {
	if len(m.Data) == 0 {
		return fmt.Errorf("%s message has no data", m.Msg)
	}
	if err := json.Unmarshal(m.Data, v); err != nil {
		return fmt.Errorf("decoding %s message: %w", m.Msg, err)
	}
	return nil
}

// NewMessage wraps payload in an envelope of the given type.
func NewMessage(msg MessageType, payload interface{}) (Message, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Message{}, fmt.Errorf("encoding %s message: %w", msg, err)
	}
	return Message{Msg: msg, Data: data}, nil
}

type Player struct {
	Name string `json:"name"`
}

type Level struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// RoundStart is the payload of a "start" message. The order of Players defines the
// agent index used by every following positions message.
type RoundStart struct {
	Players []Player `json:"players"`
	Level   Level    `json:"level"`
}

func (r RoundStart) Names() []string {
	names := make([]string, len(r.Players))
	for i, p := range r.Players {
		names[i] = p.Name
	}
	return names
}

// AgentSnapshot is one agent's entry in a positions message.
type AgentSnapshot struct {
	Alive      bool      `json:"alive"`
	Body       []Coord   `json:"body"`
	Direction  Direction `json:"direction"`
	GrowLength int       `json:"growLength"`
}

// Positions is the per tick payload.
type Positions struct {
	Snakes   []AgentSnapshot `json:"snakes"`
	TimeLeft int             `json:"timeLeft"`
}

type Control struct {
	Direction Direction `json:"direction"`
}

type Join struct {
	Player Player `json:"player"`
}

func NewControl(dir Direction) (Message, error) {
	return NewMessage(MessageControl, Control{Direction: dir})
}

func NewJoin(name string) (Message, error) {
	return NewMessage(MessageJoin, Join{Player: Player{Name: name}})
}
