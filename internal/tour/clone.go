// internal/tour/clone.go
package tour

// Clone returns a deep copy, so edits to the original cannot reach a session
// playing the copy.
func (t *Tour) Clone() *Tour {
	if t == nil {
		return nil
	}
	out := *t
	if t.Steps != nil {
		out.Steps = make([]Step, len(t.Steps))
		for i, s := range t.Steps {
			out.Steps[i] = s.Clone()
		}
	}
	return &out
}

// Clone returns a deep copy of the step.
func (s Step) Clone() Step {
	out := s
	if s.RequireTarget != nil {
		out.RequireTarget = Bool(*s.RequireTarget)
	}
	if s.Target != nil {
		t := &Target{}
		if s.Target.Primary != nil {
			p := *s.Target.Primary
			t.Primary = &p
		}
		if s.Target.Fallbacks != nil {
			t.Fallbacks = make([]*SelectorCandidate, len(s.Target.Fallbacks))
			for i, fb := range s.Target.Fallbacks {
				if fb != nil {
					c := *fb
					t.Fallbacks[i] = &c
				}
			}
		}
		out.Target = t
	}
	if s.Interaction != nil {
		in := *s.Interaction
		if in.Action != nil {
			a := *in.Action
			if a.Y != nil {
				y := *a.Y
				a.Y = &y
			}
			if a.ClearFirst != nil {
				a.ClearFirst = Bool(*a.ClearFirst)
			}
			in.Action = &a
		}
		out.Interaction = &in
	}
	return out
}
