package main

import (
	"testing"

	"sketchsync/server/internal/validate"
)

func TestSpiralIsConnected(t *testing.T) {
	s := spiral(50, 400, 300, "#ff0000", 3)
	if len(s) != 50 {
		t.Fatalf("expected 50 segments, got %d", len(s))
	}
	if s[0].PrevPoint != nil {
		t.Fatalf("first segment has no predecessor")
	}
	for i := 1; i < len(s); i++ {
		if s[i].PrevPoint == nil || *s[i].PrevPoint != s[i-1].CurrentPoint {
			t.Fatalf("segment %d is not joined to %d", i, i-1)
		}
	}
}

func TestSpiralStrokesPassValidation(t *testing.T) {
	for i, st := range spiral(20, 0, 0, "#00ff00", 5) {
		m := map[string]any{
			"currentPoint": map[string]any{"x": st.CurrentPoint.X, "y": st.CurrentPoint.Y},
			"color":        st.Color,
			"width":        *st.Width,
			"shape":        string(st.Shape),
		}
		if st.PrevPoint != nil {
			m["prevPoint"] = map[string]any{"x": st.PrevPoint.X, "y": st.PrevPoint.Y}
		}
		if !validate.StrokeFields(m) {
			t.Fatalf("segment %d rejected: %+v", i, m)
		}
	}
}
