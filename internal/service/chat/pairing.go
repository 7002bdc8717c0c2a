package chat

// Connect pairs the operator session callerID with targetID. Both pairing
// fields are set under the registry lock, so no half-paired state is ever
// observable. On error nothing changes.
func (r *Registry) Connect(callerID, targetID string) (caller, target *Session, err error) {
	caller, ok := r.Get(callerID)
	if !ok {
		return nil, nil, ErrSessionNotFound
	}
	if !caller.IsOperator() {
		return nil, nil, ErrNotOperator
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if caller.pairedWith != "" {
		return nil, nil, ErrAlreadyPaired
	}
	if targetID == callerID {
		return nil, nil, ErrSelfPairing
	}
	target, ok = r.sessions[targetID]
	if !ok {
		return nil, nil, ErrSessionNotFound
	}
	if target.pairedWith != "" {
		return nil, nil, ErrTargetPaired
	}

	caller.pairedWith = target.id
	target.pairedWith = caller.id

	r.logger.Info("sessions paired", "session_id", caller.id, "peer_id", target.id)
	return caller, target, nil
}

// Disconnect clears the pairing of id on both sides and returns the former
// peer. It is a no-op returning nil when id is not paired.
func (r *Registry) Disconnect(id string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return r.unpairLocked(s), nil
}

// Remove destroys the session, unpairing any peer first. It returns the former
// peer so the caller can notify it; nil when there was none.
func (r *Registry) Remove(id string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		return nil
	}
	peer := r.unpairLocked(s)
	delete(r.sessions, id)

	r.logger.Debug("session removed", "session_id", id, "sessions", len(r.sessions))
	return peer
}

func (r *Registry) unpairLocked(s *Session) *Session {
	if s.pairedWith == "" {
		return nil
	}
	peer, ok := r.sessions[s.pairedWith]
	s.pairedWith = ""
	if !ok {
		return nil
	}
	if peer.pairedWith == s.id {
		peer.pairedWith = ""
	}

	r.logger.Info("sessions unpaired", "session_id", s.id, "peer_id", peer.id)
	return peer
}
