package session

// slot holds the last known value of a session field. Values are only
// resolved against a default once, when the session is finalized.
type slot[T any] struct {
	v   T
	set bool
}

func (s *slot[T]) put(v T) {
	s.v = v
	s.set = true
}

func (s slot[T]) or(def T) T {
	if s.set {
		return s.v
	}
	return def
}
