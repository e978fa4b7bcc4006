// Package galaxy holds the hex grid and the galaxy layout generator.
//
// Coordinates are axial (q, r); the implicit cube coordinate is s = -q - r.
package galaxy

import "fmt"

type Hex struct {
	Q int `json:"q"`
	R int `json:"r"`
}

func (h Hex) S() int { return -h.Q - h.R }

func (h Hex) Add(o Hex) Hex { return Hex{Q: h.Q + o.Q, R: h.R + o.R} }

func (h Hex) Scale(k int) Hex { return Hex{Q: h.Q * k, R: h.R * k} }

func (h Hex) String() string { return fmt.Sprintf("(%d,%d)", h.Q, h.R) }

// Directions are the six axial neighbor offsets, counter-clockwise from east.
var Directions = [6]Hex{
	{Q: 1, R: 0},
	{Q: 1, R: -1},
	{Q: 0, R: -1},
	{Q: -1, R: 0},
	{Q: -1, R: 1},
	{Q: 0, R: 1},
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// Distance is the hex (cube) distance between a and b.
func Distance(a, b Hex) int {
	dq := a.Q - b.Q
	dr := a.R - b.R
	return (abs(dq) + abs(dr) + abs(dq+dr)) / 2
}

func (h Hex) Neighbors() [6]Hex {
	var out [6]Hex
	for i, d := range Directions {
		out[i] = h.Add(d)
	}
	return out
}

// Ring returns the hexes exactly radius steps from center, in a stable order.
func Ring(center Hex, radius int) []Hex {
	if radius <= 0 {
		return []Hex{center}
	}
	out := make([]Hex, 0, 6*radius)
	cur := center.Add(Directions[4].Scale(radius))
	for side := 0; side < 6; side++ {
		for step := 0; step < radius; step++ {
			out = append(out, cur)
			cur = cur.Add(Directions[side])
		}
	}
	return out
}

// Spiral returns center followed by rings 1..radius.
func Spiral(center Hex, radius int) []Hex {
	out := []Hex{center}
	for r := 1; r <= radius; r++ {
		out = append(out, Ring(center, r)...)
	}
	return out
}
