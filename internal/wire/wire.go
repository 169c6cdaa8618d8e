// Package wire defines the JSON envelope exchanged over a session and decodes
// inbound frames into a closed set of message variants.
package wire

import (
	"encoding/json"
	"errors"
	"fmt"

	"sketchsync/server/internal/types"
	"sketchsync/server/internal/validate"
)

// Event types. Inbound and outbound share the same names.
const (
	TypeJoinRoom      = "join-room"
	TypeCanvasHistory = "canvas-history"
	TypeDrawLine      = "draw-line"
	TypeDrawBatch     = "draw-batch"
	TypeMouseMove     = "mouse-move"
	TypeClear         = "clear"
)

var (
	// ErrRejected means the frame parsed but its payload failed validation.
	ErrRejected = errors.New("payload rejected")
	// ErrUnknownType means the envelope named an event the server does not handle.
	ErrUnknownType = errors.New("unknown message type")
)

// Envelope is the frame layout in both directions.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Rated reports whether the event kind counts against the per-session limiter.
func (e Envelope) Rated() bool {
	return e.Type == TypeDrawLine || e.Type == TypeDrawBatch
}

// Inbound is implemented by every decoded client message.
type Inbound interface {
	Kind() string
}

type JoinRoom struct {
	RoomID string
}

type DrawLine struct {
	RoomID string
	Stroke types.Stroke
}

// DrawBatch holds only the elements that passed validation, in order.
type DrawBatch struct {
	RoomID  string
	Strokes []types.Stroke
	Dropped int
}

type MouseMove struct {
	RoomID string
	X, Y   float64
}

type Clear struct {
	RoomID string
}

func (JoinRoom) Kind() string  { return TypeJoinRoom }
func (DrawLine) Kind() string  { return TypeDrawLine }
func (DrawBatch) Kind() string { return TypeDrawBatch }
func (MouseMove) Kind() string { return TypeMouseMove }
func (Clear) Kind() string     { return TypeClear }

// Cursor is the outbound mouse-move payload.
type Cursor struct {
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	SessionID string  `json:"sessionId"`
}

// ParseEnvelope reads the frame header only; the payload stays raw.
func ParseEnvelope(raw []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Envelope{}, fmt.Errorf("parse envelope: %w", err)
	}
	if env.Type == "" {
		return Envelope{}, fmt.Errorf("parse envelope: %w", ErrRejected)
	}
	return env, nil
}

// Decode turns an envelope into its variant. Every shape problem collapses
// into ErrRejected; variant-specific code never sees unvalidated data.
func Decode(env Envelope) (Inbound, error) {
	var v any
	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, &v); err != nil {
			return nil, ErrRejected
		}
	}
	switch env.Type {
	case TypeJoinRoom:
		if !validate.RoomID(v) {
			return nil, ErrRejected
		}
		return JoinRoom{RoomID: v.(string)}, nil

	case TypeDrawLine:
		if !validate.Stroke(v) {
			return nil, ErrRejected
		}
		m := v.(map[string]any)
		return DrawLine{RoomID: m["roomId"].(string), Stroke: strokeFrom(m)}, nil

	case TypeDrawBatch:
		m, ok := v.(map[string]any)
		if !ok || !validate.RoomID(m["roomId"]) {
			return nil, ErrRejected
		}
		items, ok := m["batch"].([]any)
		if !ok {
			return nil, ErrRejected
		}
		out := DrawBatch{RoomID: m["roomId"].(string), Strokes: make([]types.Stroke, 0, len(items))}
		for _, it := range items {
			if !validate.StrokeFields(it) {
				out.Dropped++
				continue
			}
			out.Strokes = append(out.Strokes, strokeFrom(it.(map[string]any)))
		}
		return out, nil

	case TypeMouseMove:
		m, ok := v.(map[string]any)
		if !ok || !validate.RoomID(m["roomId"]) || !validate.Finite(m["x"]) || !validate.Finite(m["y"]) {
			return nil, ErrRejected
		}
		return MouseMove{RoomID: m["roomId"].(string), X: m["x"].(float64), Y: m["y"].(float64)}, nil

	case TypeClear:
		m, ok := v.(map[string]any)
		if !ok || !validate.RoomID(m["roomId"]) {
			return nil, ErrRejected
		}
		return Clear{RoomID: m["roomId"].(string)}, nil
	}
	return nil, ErrUnknownType
}

// strokeFrom builds the canonical stroke from an already validated object,
// dropping any field the server does not know.
func strokeFrom(m map[string]any) types.Stroke {
	s := types.Stroke{
		CurrentPoint: pointFrom(m["currentPoint"].(map[string]any)),
		Color:        m["color"].(string),
	}
	if pp, ok := m["prevPoint"].(map[string]any); ok {
		p := pointFrom(pp)
		s.PrevPoint = &p
	}
	if w, ok := m["width"].(float64); ok {
		s.Width = &w
	}
	if sh, ok := m["shape"].(string); ok {
		s.Shape = types.Shape(sh)
	}
	return s
}

func pointFrom(m map[string]any) types.Point {
	return types.Point{X: m["x"].(float64), Y: m["y"].(float64)}
}

// Encode builds an outbound frame. A nil data yields an envelope without payload.
func Encode(typ string, data any) ([]byte, error) {
	env := Envelope{Type: typ}
	if data != nil {
		b, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", typ, err)
		}
		env.Data = b
	}
	return json.Marshal(env)
}
