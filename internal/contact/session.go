package contact

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// SubmitErrorMessage is shown when a valid submission could not be delivered.
const SubmitErrorMessage = "Es ist ein Fehler aufgetreten. Bitte versuchen Sie es später erneut oder rufen Sie uns an."

var (
	// ErrInvalid is returned by Submit when validation failed; see Session.Errors.
	ErrInvalid = errors.New("contact form has validation errors")
	// ErrAlreadySubmitted is returned once a session has succeeded.
	ErrAlreadySubmitted = errors.New("contact form already submitted")
	// ErrSubmitInProgress is returned when Submit is called while another is running.
	ErrSubmitInProgress = errors.New("contact form submission in progress")
)

// State is the lifecycle position of a Session.
type State int

const (
	StateEditing State = iota
	StateSubmitting
	StateSucceeded
)

func (s State) String() string {
	switch s {
	case StateEditing:
		return "editing"
	case StateSubmitting:
		return "submitting"
	case StateSucceeded:
		return "succeeded"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Sender delivers a validated submission.
type Sender interface {
	Send(ctx context.Context, f Form) error
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, f Form) error

func (fn SenderFunc) Send(ctx context.Context, f Form) error { return fn(ctx, f) }

// Session owns the mutable state of one contact form instance.
type Session struct {
	// Timeout bounds a single Send; zero means no limit.
	Timeout time.Duration

	mu          sync.Mutex
	form        Form
	errs        Errors
	state       State
	submitError string
}

// NewSession starts a session with the given initial values.
func NewSession(f Form) *Session {
	return &Session{form: f, errs: Errors{}}
}

// View is a snapshot of a Session for rendering.
type View struct {
	Form        Form
	Errors      Errors
	State       State
	SubmitError string
}

func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	errs := make(Errors, len(s.errs))
	for k, v := range s.errs {
		errs[k] = v
	}
	return View{Form: s.form, Errors: errs, State: s.state, SubmitError: s.submitError}
}

// Change replaces the form values. A field whose value changed loses its
// displayed error immediately; the full rule set runs again on Submit.
func (s *Session) Change(f Form) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateSucceeded {
		return
	}
	for _, field := range changedFields(s.form, f) {
		delete(s.errs, field)
	}
	s.form = f
}

func changedFields(old, cur Form) []Field {
	var out []Field
	if old.Name != cur.Name {
		out = append(out, FieldName)
	}
	if old.Email != cur.Email {
		out = append(out, FieldEmail)
	}
	if old.Phone != cur.Phone {
		out = append(out, FieldPhone)
	}
	if old.Message != cur.Message {
		out = append(out, FieldMessage)
	}
	if old.Privacy != cur.Privacy {
		out = append(out, FieldPrivacy)
	}
	return out
}

// Submit validates the current values and, if they pass, hands them to
// sender. Validation failures return ErrInvalid without calling sender.
// A sender error, timeout, or cancellation returns the session to editing
// with SubmitErrorMessage set and the values kept. Success is terminal.
func (s *Session) Submit(ctx context.Context, sender Sender) error {
	s.mu.Lock()
	switch s.state {
	case StateSucceeded:
		s.mu.Unlock()
		return ErrAlreadySubmitted
	case StateSubmitting:
		s.mu.Unlock()
		return ErrSubmitInProgress
	}
	s.submitError = ""
	s.errs = Validate(s.form)
	if !s.errs.Empty() {
		s.mu.Unlock()
		return ErrInvalid
	}
	s.state = StateSubmitting
	form := s.form
	timeout := s.Timeout
	s.mu.Unlock()

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	err := sender.Send(ctx, form)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.state = StateEditing
		s.submitError = SubmitErrorMessage
		return fmt.Errorf("sending contact form: %w", err)
	}
	s.state = StateSucceeded
	return nil
}
