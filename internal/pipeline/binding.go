package pipeline

// Binding maps a detected direction of travel to the event delivered for it
// It is resolved once at startup and never reassigned.
type Binding map[Direction]EventKind

// NewBinding returns the direction binding. With reverse set, positive travel
// is reported as the negative event and vice versa, for cameras mounted facing
// the other way.
func NewBinding(reverse bool) Binding {
	if reverse {
		return Binding{
			DirectionPositive: EventMotionNegative,
			DirectionNegative: EventMotionPositive,
		}
	}
	return Binding{
		DirectionPositive: EventMotionPositive,
		DirectionNegative: EventMotionNegative,
	}
}

// Event returns the event kind bound to d
func (b Binding) Event(d Direction) EventKind {
	return b[d]
}
