package types

// Point is a world-space coordinate, already transformed by the client.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type Shape string

const (
	ShapeFree   Shape = "free"
	ShapeLine   Shape = "line"
	ShapeRect   Shape = "rect"
	ShapeCircle Shape = "circle"
)

// Shapes lists every shape tag the server accepts.
var Shapes = []Shape{ShapeFree, ShapeLine, ShapeRect, ShapeCircle}

// Stroke is one accepted drawing step. A nil PrevPoint marks the first sample
// of a continuous stroke.
type Stroke struct {
	PrevPoint    *Point   `json:"prevPoint"`
	CurrentPoint Point    `json:"currentPoint"`
	Color        string   `json:"color"`
	Width        *float64 `json:"width,omitempty"`
	Shape        Shape    `json:"shape,omitempty"`
}
