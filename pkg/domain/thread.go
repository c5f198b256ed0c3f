package domain

import "reflect"

// Thread is the ordered, append-only history of one conversation.
//
// A Thread is treated as an immutable value: Append returns a new Thread and
// never writes into the receiver's backing array, so a caller holding an older
// value keeps seeing exactly the turns it had.
type Thread struct {
	ID    string `json:"id"`
	Turns []Turn `json:"turns"`
}

// NewThread creates an empty thread.
func NewThread(id string) Thread {
	return Thread{ID: id, Turns: []Turn{}}
}

// Append returns a new thread with turn added at the end.
func (t Thread) Append(turn Turn) Thread {
	turns := make([]Turn, len(t.Turns), len(t.Turns)+1)
	copy(turns, t.Turns)
	return Thread{ID: t.ID, Turns: append(turns, turn.Clone())}
}

// Latest returns the most recent turn.
func (t Thread) Latest() (Turn, error) {
	if len(t.Turns) == 0 {
		return Turn{}, ErrEmptyThread
	}
	return t.Turns[len(t.Turns)-1], nil
}

// All returns the turns in order. The slice is a copy.
func (t Thread) All() []Turn {
	out := make([]Turn, len(t.Turns))
	for i, turn := range t.Turns {
		out[i] = turn.Clone()
	}
	return out
}

// Len returns the number of turns.
func (t Thread) Len() int { return len(t.Turns) }

// IsEmpty reports whether the thread has no turns.
func (t Thread) IsEmpty() bool { return len(t.Turns) == 0 }

// Since returns a copy of the turns that come after the first n.
func (t Thread) Since(n int) []Turn {
	if n >= len(t.Turns) {
		return []Turn{}
	}
	if n < 0 {
		n = 0
	}
	out := make([]Turn, 0, len(t.Turns)-n)
	for _, turn := range t.Turns[n:] {
		out = append(out, turn.Clone())
	}
	return out
}

// Equal compares id and turn contents. A nil and an empty turn list are equal.
func (t Thread) Equal(other Thread) bool {
	if t.ID != other.ID || len(t.Turns) != len(other.Turns) {
		return false
	}
	for i := range t.Turns {
		if !reflect.DeepEqual(normalizeTurn(t.Turns[i]), normalizeTurn(other.Turns[i])) {
			return false
		}
	}
	return true
}

// normalizeTurn maps nil and empty payload slices to the same value so that
// JSON round-trips compare equal.
func normalizeTurn(turn Turn) Turn {
	if turn.Payload == nil {
		return turn
	}
	p := turn.Payload.Clone()
	for _, s := range []*[]string{&p.Variables, &p.Constraints, &p.Requirements} {
		if len(*s) == 0 {
			*s = nil
		}
	}
	turn.Payload = &p
	return turn
}
