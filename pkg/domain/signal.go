package domain

// IsModeSwitch reports whether the turn signals the end of requirement
// gathering. Only the typed payload is consulted, never the text.
func IsModeSwitch(turn Turn) bool {
	return turn.Role == RoleAssistant && turn.Payload != nil
}

// ExtractPayload returns a copy of the payload of a mode-switch turn.
func ExtractPayload(turn Turn) (Payload, error) {
	if !IsModeSwitch(turn) {
		return Payload{}, ErrNotAModeSwitch
	}
	return turn.Payload.Clone(), nil
}

// FirstModeSwitch returns the index of the first mode-switch turn.
func FirstModeSwitch(turns []Turn) (int, bool) {
	for i, turn := range turns {
		if IsModeSwitch(turn) {
			return i, true
		}
	}
	return -1, false
}
