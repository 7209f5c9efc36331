// Package detector locates hand landmarks in camera frames.
package detector

// Landmark indices in the 21-point hand model used by MediaPipe.
const (
	Wrist = iota
	ThumbCMC
	ThumbMCP
	ThumbIP
	ThumbTip
	IndexMCP
	IndexPIP
	IndexDIP
	IndexTip
	MiddleMCP
	MiddlePIP
	MiddleDIP
	MiddleTip
	RingMCP
	RingPIP
	RingDIP
	RingTip
	PinkyMCP
	PinkyPIP
	PinkyDIP
	PinkyTip
	NumLandmarks
)

// Point3D is a landmark in normalized image coordinates: X and Y in [0,1]
// of the frame, Z relative depth.
type Point3D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// HandLandmarks is one detected hand.
type HandLandmarks struct {
	Points     [NumLandmarks]Point3D `json:"points"`
	Handedness string                `json:"handedness"` // "Left" or "Right"
	Score      float64               `json:"score"`
}

// WristX is the horizontal position used to order hands left to right.
func (h HandLandmarks) WristX() float64 {
	return h.Points[Wrist].X
}

// Translate returns a copy of the hand shifted by (dx, dy).
func (h HandLandmarks) Translate(dx, dy float64) HandLandmarks {
	out := h
	for i := range out.Points {
		out.Points[i].X += dx
		out.Points[i].Y += dy
	}
	return out
}

// Handshape marks which digits are extended, thumb first.
type Handshape [5]bool

// Common handshapes of fingerspelling alphabets.
var (
	ShapeFist  = Handshape{}                                 // A, S
	ShapeOpen  = Handshape{true, true, true, true, true}     // 5, B with thumb out
	ShapeThumb = Handshape{true, false, false, false, false} // thumbs up
	ShapePoint = Handshape{false, true, false, false, false} // D, 1
	ShapeV     = Handshape{false, true, true, false, false}  // V, 2
	ShapeY     = Handshape{true, false, false, false, true}  // Y
)

// knuckle offsets from the wrist in palm units, index to pinky.
var knuckles = [4]struct{ dx, dy float64 }{
	{0.3, -1.0},
	{0, -1.1},
	{-0.3, -1.0},
	{-0.6, -0.85},
}

const phalanx = 0.45

// Pose builds an upright right hand, palm to the camera, with the wrist at
// (x, y) and a palm of height size. Y grows downwards as in image space.
func Pose(shape Handshape, x, y, size float64) HandLandmarks {
	h := HandLandmarks{Handedness: "Right", Score: 0.95}
	at := func(px, py float64, dx, dy, z float64) Point3D {
		return Point3D{X: px + dx*size, Y: py + dy*size, Z: z}
	}

	h.Points[Wrist] = Point3D{X: x, Y: y}

	cmc := at(x, y, 0.3, -0.2, 0)
	mcp := at(x, y, 0.55, -0.45, 0.01)
	h.Points[ThumbCMC], h.Points[ThumbMCP] = cmc, mcp
	if shape[0] {
		h.Points[ThumbIP] = at(mcp.X, mcp.Y, 0.15, -0.5, 0.02)
		h.Points[ThumbTip] = at(mcp.X, mcp.Y, 0.25, -1.0, 0.02)
	} else {
		// Folded across the palm.
		h.Points[ThumbIP] = at(mcp.X, mcp.Y, -0.2, -0.2, -0.02)
		h.Points[ThumbTip] = at(mcp.X, mcp.Y, -0.45, -0.1, -0.03)
	}

	for f, k := range knuckles {
		base := IndexMCP + 4*f
		m := at(x, y, k.dx, k.dy, 0)
		h.Points[base] = m
		if shape[f+1] {
			for j := 1; j <= 3; j++ {
				h.Points[base+j] = at(m.X, m.Y, k.dx*0.1*float64(j), -phalanx*float64(j), 0)
			}
			continue
		}
		h.Points[base+1] = at(m.X, m.Y, 0, -0.3*phalanx, -0.05)
		h.Points[base+2] = at(m.X, m.Y, -0.2*phalanx, 0, -0.04)
		h.Points[base+3] = at(m.X, m.Y, -0.3*phalanx, 0.2*phalanx, -0.02)
	}
	return h
}

// Extended reports which digits of h point away from the palm, using the
// distance of each tip from the wrist against that of its first joint.
func (h HandLandmarks) Extended() Handshape {
	var s Handshape
	w := h.Points[Wrist]
	dist := func(p Point3D) float64 {
		dx, dy := p.X-w.X, p.Y-w.Y
		return dx*dx + dy*dy
	}
	s[0] = dist(h.Points[ThumbTip]) > dist(h.Points[ThumbIP]) && h.Points[ThumbTip].Y < h.Points[ThumbIP].Y
	for f := 0; f < 4; f++ {
		base := IndexMCP + 4*f
		s[f+1] = dist(h.Points[base+3]) > dist(h.Points[base+1])
	}
	return s
}
