// Package resolve walks the bundle dependency graph: forward over includes
// when planning an install, and in reverse when asking what would break on
// a removal.
package resolve

// Subscription is a tentative intent to consider one bundle during one
// operation.
type Subscription struct {
	Component string
	Version   int
}

// SubSet holds at most one subscription per component, in insertion order.
type SubSet struct {
	order []Subscription
	index map[string]int
}

// NewSubSet returns an empty subscription set.
func NewSubSet() *SubSet {
	return &SubSet{index: make(map[string]int)}
}

// Has reports whether a component is already subscribed.
func (s *SubSet) Has(component string) bool {
	_, ok := s.index[component]
	return ok
}

// Add subscribes a component. Re-adding is a no-op.
func (s *SubSet) Add(component string, version int) {
	if s.Has(component) {
		return
	}
	s.index[component] = len(s.order)
	s.order = append(s.order, Subscription{Component: component, Version: version})
}

// Len returns the number of subscriptions.
func (s *SubSet) Len() int { return len(s.order) }

// Components returns the subscribed names in insertion order.
func (s *SubSet) Components() []string {
	out := make([]string, len(s.order))
	for i, sub := range s.order {
		out[i] = sub.Component
	}
	return out
}

// All returns the subscriptions in insertion order.
func (s *SubSet) All() []Subscription {
	return append([]Subscription(nil), s.order...)
}
