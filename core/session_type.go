package core

// SessionKind tags the session-type universe: the protocol
// describing the sequence of sends/receives/choices permitted on a channel.
type SessionKind uint8

const (
	SessionSend SessionKind = iota
	SessionReceive
	SessionInternalChoice
	SessionExternalChoice
	SessionEnd
	SessionRecursive
	SessionVariable
)

// SessionType is the protocol type for a single participant's view of a
// channel. Send/Receive carry a payload Type and a continuation; the choice
// forms branch by label; Recursive/Variable support protocol loops.
type SessionType struct {
	Kind SessionKind

	Payload *Type        // Send, Receive
	Next    *SessionType  // Send, Receive, Recursive (body)

	Branches map[string]*SessionType // InternalChoice, ExternalChoice

	Var string // Recursive binder name, or Variable reference
}

func SendSession(payload *Type, next *SessionType) *SessionType {
	return &SessionType{Kind: SessionSend, Payload: payload, Next: next}
}

func ReceiveSession(payload *Type, next *SessionType) *SessionType {
	return &SessionType{Kind: SessionReceive, Payload: payload, Next: next}
}

func InternalChoiceSession(branches map[string]*SessionType) *SessionType {
	return &SessionType{Kind: SessionInternalChoice, Branches: branches}
}

func ExternalChoiceSession(branches map[string]*SessionType) *SessionType {
	return &SessionType{Kind: SessionExternalChoice, Branches: branches}
}

func EndSession() *SessionType { return &SessionType{Kind: SessionEnd} }

func RecursiveSession(v string, body *SessionType) *SessionType {
	return &SessionType{Kind: SessionRecursive, Var: v, Next: body}
}

func VariableSession(v string) *SessionType {
	return &SessionType{Kind: SessionVariable, Var: v}
}

// Dual returns the protocol type for the other endpoint of the channel:
// Send↔Receive, InternalChoice↔ExternalChoice, everything else is self-dual.
func (s *SessionType) Dual() *SessionType {
	if s == nil {
		return nil
	}
	switch s.Kind {
	case SessionSend:
		return ReceiveSession(s.Payload, s.Next.Dual())
	case SessionReceive:
		return SendSession(s.Payload, s.Next.Dual())
	case SessionInternalChoice:
		branches := make(map[string]*SessionType, len(s.Branches))
		for k, v := range s.Branches {
			branches[k] = v.Dual()
		}
		return ExternalChoiceSession(branches)
	case SessionExternalChoice:
		branches := make(map[string]*SessionType, len(s.Branches))
		for k, v := range s.Branches {
			branches[k] = v.Dual()
		}
		return InternalChoiceSession(branches)
	case SessionRecursive:
		return RecursiveSession(s.Var, s.Next.Dual())
	default:
		return s
	}
}

// Equal reports structural equality between two session types.
func (s *SessionType) Equal(other *SessionType) bool {
	if s == nil || other == nil {
		return s == other
	}
	if s.Kind != other.Kind {
		return false
	}
	switch s.Kind {
	case SessionSend, SessionReceive:
		return s.Payload.Equal(other.Payload) && s.Next.Equal(other.Next)
	case SessionInternalChoice, SessionExternalChoice:
		if len(s.Branches) != len(other.Branches) {
			return false
		}
		for k, v := range s.Branches {
			ov, ok := other.Branches[k]
			if !ok || !v.Equal(ov) {
				return false
			}
		}
		return true
	case SessionRecursive:
		return s.Var == other.Var && s.Next.Equal(other.Next)
	case SessionVariable:
		return s.Var == other.Var
	default:
		return true // End
	}
}

// Advance returns the continuation of the session protocol after performing
// the given operation ("send", "receive", or "select"/"branch" with the
// chosen label), or an error if
// the operation is inconsistent with the protocol head — the session
// protocol validation rule consulted by C5's Send/Receive/Select checking.
func (s *SessionType) Advance(op string, label string) (*SessionType, error) {
	if s == nil {
		return nil, NewError(ErrType, "session protocol violation: operation %q on nil session", op)
	}
	switch op {
	case "send":
		if s.Kind != SessionSend {
			return nil, NewError(ErrType, "session protocol violation: expected Send, protocol head is %v", s.Kind)
		}
		return s.Next, nil
	case "receive":
		if s.Kind != SessionReceive {
			return nil, NewError(ErrType, "session protocol violation: expected Receive, protocol head is %v", s.Kind)
		}
		return s.Next, nil
	case "select":
		if s.Kind != SessionInternalChoice {
			return nil, NewError(ErrType, "session protocol violation: expected InternalChoice, protocol head is %v", s.Kind)
		}
		next, ok := s.Branches[label]
		if !ok {
			return nil, NewError(ErrType, "session protocol violation: no branch %q in internal choice", label)
		}
		return next, nil
	case "branch":
		if s.Kind != SessionExternalChoice {
			return nil, NewError(ErrType, "session protocol violation: expected ExternalChoice, protocol head is %v", s.Kind)
		}
		next, ok := s.Branches[label]
		if !ok {
			return nil, NewError(ErrType, "session protocol violation: no branch %q in external choice", label)
		}
		return next, nil
	default:
		return nil, NewError(ErrInternal, "unknown session operation %q", op)
	}
}
