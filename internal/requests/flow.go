/*
Copyright (C) 2026 RBC Television

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package requests

import (
	"context"
	"errors"
	"sync"
)

// State is where the request form is.
type State int

const (
	Composing State = iota
	Submitting
	Accepted
)

func (s State) String() string {
	switch s {
	case Composing:
		return "composing"
	case Submitting:
		return "submitting"
	case Accepted:
		return "accepted"
	default:
		return "unknown"
	}
}

// ErrInFlight is returned while an earlier submission, optimistic ones
// included, has not been answered by the relay.
var ErrInFlight = errors.New("a request is already being submitted")

// Submitter sends a payload. *Client satisfies it.
type Submitter interface {
	Submit(ctx context.Context, p Payload) (string, error)
}

// Flow is the request form's state machine. Validation runs before any
// network call; a failed submission returns to Composing with the error kept.
type Flow struct {
	submitter Submitter
	limits    Limits

	mu        sync.Mutex
	state     State
	lastError error
	message   string

	// inflight is set from begin until the relay answers. attempt numbers
	// each submission so only the current one may settle the form.
	inflight bool
	attempt  uint64
}

// NewFlow starts in Composing.
func NewFlow(submitter Submitter, limits Limits) *Flow {
	return &Flow{submitter: submitter, limits: limits}
}

// State returns the current state.
func (f *Flow) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// LastError returns the error from the most recent failed attempt.
func (f *Flow) LastError() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastError
}

// Message returns the relay's confirmation once Accepted.
func (f *Flow) Message() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.message
}

// Reset returns an accepted form to Composing for the next request.
func (f *Flow) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state == Accepted {
		f.state = Composing
		f.lastError = nil
		f.message = ""
	}
}

func (f *Flow) begin(p Payload, next State) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.inflight {
		return 0, ErrInFlight
	}
	if err := Validate(p, f.limits); err != nil {
		f.state = Composing
		f.lastError = err
		return 0, err
	}
	f.attempt++
	f.inflight = true
	f.state = next
	f.lastError = nil
	return f.attempt, nil
}

// InFlight reports whether a submission is waiting on the relay.
func (f *Flow) InFlight() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.inflight
}

func (f *Flow) finish(attempt uint64, msg string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if attempt != f.attempt {
		return
	}
	f.inflight = false
	if err != nil {
		f.state = Composing
		f.lastError = err
		f.message = ""
		return
	}
	f.state = Accepted
	f.message = msg
}

// Submit waits for the relay before reporting success.
func (f *Flow) Submit(ctx context.Context, p Payload) error {
	attempt, err := f.begin(p, Submitting)
	if err != nil {
		return err
	}
	msg, err := f.submitter.Submit(ctx, p)
	f.finish(attempt, msg, err)
	return err
}

// PendingStatus tracks an optimistic submission.
type PendingStatus int

const (
	PendingWaiting PendingStatus = iota
	Confirmed
	RolledBack
)

// Pending is an optimistic submission awaiting the relay.
type Pending struct {
	done   chan struct{}
	status PendingStatus
	err    error
}

// Done is closed once the outcome is known.
func (p *Pending) Done() <-chan struct{} { return p.done }

// Wait blocks until the outcome is known or ctx ends.
func (p *Pending) Wait(ctx context.Context) (PendingStatus, error) {
	select {
	case <-p.done:
		return p.status, p.err
	case <-ctx.Done():
		return PendingWaiting, ctx.Err()
	}
}

// SubmitOptimistic shows Accepted immediately and confirms or rolls back in
// the background. Every failure, network errors included, rolls back.
func (f *Flow) SubmitOptimistic(ctx context.Context, p Payload) (*Pending, error) {
	attempt, err := f.begin(p, Accepted)
	if err != nil {
		return nil, err
	}

	pending := &Pending{done: make(chan struct{})}
	go func() {
		msg, err := f.submitter.Submit(ctx, p)
		f.finish(attempt, msg, err)
		if err != nil {
			pending.status, pending.err = RolledBack, err
		} else {
			pending.status = Confirmed
		}
		close(pending.done)
	}()
	return pending, nil
}
