package validate

import (
	"encoding/json"
	"math"
	"strings"
	"testing"
)

func decode(t *testing.T, s string) any {
	t.Helper()
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		t.Fatalf("decode %s: %v", s, err)
	}
	return v
}

func TestColor(t *testing.T) {
	if !Color("#1A2B3C") {
		t.Fatalf("expected #1A2B3C to be valid")
	}
	if !Color("#abcdef") {
		t.Fatalf("expected lowercase hex to be valid")
	}
	if Color("red") {
		t.Fatalf("expected named color to be rejected")
	}
	if Color("#1A2B3") {
		t.Fatalf("expected short hex to be rejected")
	}
	if Color("#1A2B3C4") {
		t.Fatalf("expected long hex to be rejected")
	}
	if Color(123) {
		t.Fatalf("expected number to be rejected")
	}
}

func TestRoomID(t *testing.T) {
	if !RoomID("abc_DEF-123") {
		t.Fatalf("expected valid room id")
	}
	if !RoomID(strings.Repeat("a", 99)) {
		t.Fatalf("expected 99 chars to be valid")
	}
	if RoomID(strings.Repeat("a", 100)) {
		t.Fatalf("expected 100 chars to be rejected")
	}
	if RoomID("") {
		t.Fatalf("expected empty room id to be rejected")
	}
	if RoomID("room 1") || RoomID("room/1") || RoomID("../x") {
		t.Fatalf("expected punctuation to be rejected")
	}
	if RoomID(42.0) || RoomID(nil) {
		t.Fatalf("expected non-strings to be rejected")
	}
}

func TestPoint(t *testing.T) {
	if !Point(nil) {
		t.Fatalf("nil point should be valid")
	}
	if !Point(decode(t, `{"x":1.5,"y":-2}`)) {
		t.Fatalf("expected numeric point to be valid")
	}
	if Point(decode(t, `{"x":"1","y":2}`)) {
		t.Fatalf("expected string coordinate to be rejected")
	}
	if Point(decode(t, `{"x":1}`)) {
		t.Fatalf("expected missing y to be rejected")
	}
	if Point(map[string]any{"x": math.Inf(1), "y": 0.0}) {
		t.Fatalf("expected infinite coordinate to be rejected")
	}
	if Point(map[string]any{"x": math.NaN(), "y": 0.0}) {
		t.Fatalf("expected NaN coordinate to be rejected")
	}
	if Point([]any{1.0, 2.0}) {
		t.Fatalf("expected array to be rejected")
	}
}

func TestStrokeMinimal(t *testing.T) {
	v := decode(t, `{"roomId":"abc","currentPoint":{"x":1,"y":2},"color":"#000000"}`)
	if !Stroke(v) {
		t.Fatalf("expected minimal stroke to be valid")
	}
}

func TestStrokeOptionalFields(t *testing.T) {
	base := `{"roomId":"abc","currentPoint":{"x":1,"y":2},"color":"#000000"`
	if Stroke(decode(t, base+`,"width":0}`)) {
		t.Fatalf("expected width 0 to be rejected")
	}
	if Stroke(decode(t, base+`,"width":50.5}`)) {
		t.Fatalf("expected width above 50 to be rejected")
	}
	if !Stroke(decode(t, base+`,"width":50}`)) {
		t.Fatalf("expected width 50 to be valid")
	}
	if Stroke(decode(t, base+`,"width":"3"}`)) {
		t.Fatalf("expected string width to be rejected")
	}
	if Stroke(decode(t, base+`,"shape":"triangle"}`)) {
		t.Fatalf("expected unknown shape to be rejected")
	}
	if !Stroke(decode(t, base+`,"shape":"circle","prevPoint":{"x":0,"y":0}}`)) {
		t.Fatalf("expected circle with prevPoint to be valid")
	}
	if !Stroke(decode(t, base+`,"prevPoint":null}`)) {
		t.Fatalf("expected null prevPoint to be valid")
	}
}

func TestStrokeRejects(t *testing.T) {
	cases := []string{
		`null`,
		`"draw"`,
		`{"currentPoint":{"x":1,"y":2},"color":"#000000"}`,
		`{"roomId":"abc","color":"#000000"}`,
		`{"roomId":"abc","currentPoint":null,"color":"#000000"}`,
		`{"roomId":"abc","currentPoint":{"x":1,"y":2},"color":"black"}`,
		`{"roomId":"abc","currentPoint":{"x":1,"y":2},"color":"#000000","prevPoint":{"x":1}}`,
		`{"roomId":"a b","currentPoint":{"x":1,"y":2},"color":"#000000"}`,
	}
	for _, c := range cases {
		if Stroke(decode(t, c)) {
			t.Fatalf("expected %s to be rejected", c)
		}
	}
}
