package notify

import (
	"context"
	"sync"
)

type PermissionState string

const (
	PermissionNotDetermined PermissionState = "default"
	PermissionGranted       PermissionState = "granted"
	PermissionDenied        PermissionState = "denied"
)

// PromptFunc asks the user for notification permission
type PromptFunc func(ctx context.Context) (bool, error)

// Permission tracks native notification permission for one session.
// A denial is sticky: Request will not prompt again until Reset.
type Permission struct {
	mu      sync.Mutex
	state   PermissionState
	prompt  PromptFunc
	pending chan struct{} // closed when the prompt in flight settles
}

// NewPermission creates an undetermined permission. A nil prompt denies every request.
func NewPermission(prompt PromptFunc) *Permission {
	return &Permission{state: PermissionNotDetermined, prompt: prompt}
}

// NewGrantedPermission creates a permission that was granted out of band
func NewGrantedPermission() *Permission {
	return &Permission{state: PermissionGranted}
}

func (p *Permission) State() PermissionState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Permission) Granted() bool {
	return p.State() == PermissionGranted
}

// Request prompts once while undetermined and returns the settled state.
// Concurrent callers wait for the prompt in flight instead of prompting
// again. A failed prompt leaves the state undetermined. The lock is not held
// during the prompt, so State and Granted never wait on the user.
func (p *Permission) Request(ctx context.Context) (PermissionState, error) {
	for {
		p.mu.Lock()
		if p.state != PermissionNotDetermined {
			state := p.state
			p.mu.Unlock()
			return state, nil
		}
		if p.prompt == nil {
			p.state = PermissionDenied
			p.mu.Unlock()
			return PermissionDenied, nil
		}
		if wait := p.pending; wait != nil {
			p.mu.Unlock()
			select {
			case <-wait:
				continue
			case <-ctx.Done():
				return PermissionNotDetermined, ctx.Err()
			}
		}
		done := make(chan struct{})
		p.pending = done
		prompt := p.prompt
		p.mu.Unlock()

		ok, err := prompt(ctx)

		p.mu.Lock()
		p.pending = nil
		close(done)
		if err == nil && p.state == PermissionNotDetermined {
			if ok {
				p.state = PermissionGranted
			} else {
				p.state = PermissionDenied
			}
		}
		state := p.state
		p.mu.Unlock()
		return state, err
	}
}

// Reset returns to the undetermined state after an out-of-band change
func (p *Permission) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state = PermissionNotDetermined
}
