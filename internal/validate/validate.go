// Package validate checks decoded JSON values (as produced by encoding/json
// into `any`) before anything else in the server trusts them.
package validate

import (
	"math"
	"regexp"

	"sketchsync/server/internal/types"
)

const (
	MaxRoomIDLen = 99
	MaxWidth     = 50
)

var (
	roomIDRe = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
	colorRe  = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)
)

// RoomID reports whether v is a usable room identifier.
func RoomID(v any) bool {
	s, ok := v.(string)
	if !ok || len(s) == 0 || len(s) > MaxRoomIDLen {
		return false
	}
	return roomIDRe.MatchString(s)
}

// Point accepts nil or an object with finite numeric x and y.
func Point(v any) bool {
	if v == nil {
		return true
	}
	m, ok := v.(map[string]any)
	if !ok {
		return false
	}
	return Finite(m["x"]) && Finite(m["y"])
}

func Color(v any) bool {
	s, ok := v.(string)
	return ok && colorRe.MatchString(s)
}

// Finite reports whether v is a JSON number that is neither NaN nor infinite.
func Finite(v any) bool {
	f, ok := v.(float64)
	return ok && !math.IsNaN(f) && !math.IsInf(f, 0)
}

// Width accepts a number in (0, MaxWidth].
func Width(v any) bool {
	f, ok := v.(float64)
	return ok && f > 0 && f <= MaxWidth
}

func Shape(v any) bool {
	s, ok := v.(string)
	if !ok {
		return false
	}
	for _, sh := range types.Shapes {
		if types.Shape(s) == sh {
			return true
		}
	}
	return false
}

// Stroke validates a draw-line payload: the stroke fields plus its roomId.
func Stroke(v any) bool {
	m, ok := v.(map[string]any)
	if !ok {
		return false
	}
	return RoomID(m["roomId"]) && StrokeFields(m)
}

// StrokeFields validates the stroke fields alone, as carried by draw-batch
// elements. An absent prevPoint is the same as null; currentPoint is required.
func StrokeFields(v any) bool {
	m, ok := v.(map[string]any)
	if !ok {
		return false
	}
	cur, present := m["currentPoint"]
	if !present || cur == nil || !Point(cur) {
		return false
	}
	if !Point(m["prevPoint"]) {
		return false
	}
	if !Color(m["color"]) {
		return false
	}
	if w, present := m["width"]; present && !Width(w) {
		return false
	}
	if sh, present := m["shape"]; present && !Shape(sh) {
		return false
	}
	return true
}
