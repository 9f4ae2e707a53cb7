package control

import "math"

// GestureKind classifies a pointer event after multi-touch tracking.
type GestureKind int

const (
	// GestureNone means the event is swallowed.
	GestureNone GestureKind = iota
	// GesturePointer forwards the event to the selection engine.
	GesturePointer
	// GesturePinchStart begins a pinch at Distance.
	GesturePinchStart
	// GesturePinchMove updates a pinch to Distance.
	GesturePinchMove
	// GesturePinchEnd ends a pinch.
	GesturePinchEnd
)

// Gesture is the outcome of one pointer event.
type Gesture struct {
	Kind     GestureKind
	Distance float64
}

type touch struct {
	x float64
	y float64
}

// GestureState tracks active pointers. The first pointer drives the
// selection; a second one turns the interaction into a pinch until every
// pointer is lifted.
type GestureState struct {
	active   map[int]touch
	order    []int
	primary  int
	pinching bool
	spent    bool
}

// NewGestureState returns a ready-to-use gesture tracker.
func NewGestureState() *GestureState {
	return &GestureState{active: map[int]touch{}, primary: -1}
}

// HandleDown processes a pointer down event.
func (g *GestureState) HandleDown(id int, x, y float64) Gesture {
	if _, ok := g.active[id]; !ok {
		g.order = append(g.order, id)
	}
	g.active[id] = touch{x: x, y: y}

	switch {
	case len(g.active) == 1 && !g.spent:
		g.primary = id
		return Gesture{Kind: GesturePointer}
	case len(g.active) == 2 && !g.pinching:
		g.pinching = true
		g.primary = -1
		g.spent = true
		return Gesture{Kind: GesturePinchStart, Distance: g.distance()}
	default:
		return Gesture{}
	}
}

// HandleMove processes a pointer move event.
func (g *GestureState) HandleMove(id int, x, y float64) Gesture {
	if _, ok := g.active[id]; !ok {
		if len(g.active) == 0 {
			return Gesture{Kind: GesturePointer}
		}
		return Gesture{}
	}
	g.active[id] = touch{x: x, y: y}
	if g.pinching {
		if g.isPinchPointer(id) {
			return Gesture{Kind: GesturePinchMove, Distance: g.distance()}
		}
		return Gesture{}
	}
	if id == g.primary {
		return Gesture{Kind: GesturePointer}
	}
	return Gesture{}
}

// HandleUp processes a pointer up event.
func (g *GestureState) HandleUp(id int) Gesture {
	if _, ok := g.active[id]; !ok {
		return Gesture{}
	}
	wasPinchPointer := g.isPinchPointer(id)
	delete(g.active, id)
	for i, v := range g.order {
		if v == id {
			g.order = append(g.order[:i], g.order[i+1:]...)
			break
		}
	}

	out := Gesture{}
	switch {
	case g.pinching && wasPinchPointer:
		g.pinching = false
		out = Gesture{Kind: GesturePinchEnd}
	case id == g.primary:
		g.primary = -1
		out = Gesture{Kind: GesturePointer}
	}
	if len(g.active) == 0 {
		g.spent = false
	}
	return out
}

// Pinching reports whether a pinch is in progress.
func (g *GestureState) Pinching() bool {
	return g.pinching
}

// isPinchPointer reports whether id is one of the two pinch pointers.
func (g *GestureState) isPinchPointer(id int) bool {
	if !g.pinching {
		return false
	}
	for i := 0; i < len(g.order) && i < 2; i++ {
		if g.order[i] == id {
			return true
		}
	}
	return false
}

// distance returns the gap between the two oldest pointers.
func (g *GestureState) distance() float64 {
	if len(g.order) < 2 {
		return 0
	}
	a, b := g.active[g.order[0]], g.active[g.order[1]]
	return math.Hypot(a.x-b.x, a.y-b.y)
}
