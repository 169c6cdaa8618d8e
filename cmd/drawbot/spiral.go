package main

import (
	"math"

	"sketchsync/server/internal/types"
)

// spiral returns n connected segments winding out from (cx, cy).
func spiral(n int, cx, cy float64, color string, width float64) []types.Stroke {
	out := make([]types.Stroke, 0, n)
	var prev *types.Point
	for i := 0; i < n; i++ {
		a := float64(i) * 0.2
		r := 2 + float64(i)*1.5
		p := types.Point{X: math.Round((cx+r*math.Cos(a))*100) / 100, Y: math.Round((cy+r*math.Sin(a))*100) / 100}
		w := width
		out = append(out, types.Stroke{PrevPoint: prev, CurrentPoint: p, Color: color, Width: &w, Shape: types.ShapeFree})
		cur := p
		prev = &cur
	}
	return out
}
