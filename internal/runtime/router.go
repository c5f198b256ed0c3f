package runtime

import (
	"github.com/aretw0/turnstile/pkg/domain"
)

// Route decides which mode handles the thread next.
//
// The rules are evaluated in order against the whole thread:
//  1. the latest turn is a mode switch: Generating;
//  2. the latest turn was not written by the human: AwaitingInput;
//  3. any earlier turn is a mode switch: Generating (the latch);
//  4. otherwise: Gathering.
//
// The mode-switch check deliberately precedes the role check.
func Route(thread domain.Thread) (domain.Mode, error) {
	latest, err := thread.Latest()
	if err != nil {
		return "", err
	}

	if domain.IsModeSwitch(latest) {
		return domain.ModeGenerating, nil
	}
	if latest.Role != domain.RoleHuman {
		return domain.ModeAwaitingInput, nil
	}
	if Latched(thread) {
		return domain.ModeGenerating, nil
	}
	return domain.ModeGathering, nil
}

// Latched reports whether the thread has ever switched to generation.
// It is always recomputed from the turns and never stored.
func Latched(thread domain.Thread) bool {
	_, ok := domain.FirstModeSwitch(thread.Turns)
	return ok
}
