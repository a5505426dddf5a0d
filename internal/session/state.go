package session

import (
	"sync"

	"github.com/google/uuid"
)

// State is the load state of one business. The variants are Idle, Loading,
// Loaded and Failed.
type State[T any] interface {
	isState()
}

type (
	Idle[T any] struct{}

	Loading[T any] struct {
		Ticket Ticket
	}

	Loaded[T any] struct {
		BusinessID int64
		Data       T
	}

	Failed[T any] struct {
		BusinessID int64
		Err        error
	}
)

func (Idle[T]) isState()    {}
func (Loading[T]) isState() {}
func (Loaded[T]) isState()  {}
func (Failed[T]) isState()  {}

// Ticket tags a fetch with the business it was issued for.
type Ticket struct {
	BusinessID int64
	RequestID  string
}

// Tracker applies fetch results only when they belong to the latest request.
type Tracker[T any] struct {
	mu      sync.Mutex
	state   State[T]
	pending Ticket
}

func NewTracker[T any]() *Tracker[T] {
	return &Tracker[T]{state: Idle[T]{}}
}

// Begin moves to Loading for businessID and supersedes any in-flight ticket.
func (t *Tracker[T]) Begin(businessID int64) Ticket {
	ticket := Ticket{BusinessID: businessID, RequestID: uuid.NewString()}
	t.mu.Lock()
	t.pending = ticket
	t.state = Loading[T]{Ticket: ticket}
	t.mu.Unlock()
	return ticket
}

// Complete records the outcome of ticket. It returns false and leaves the
// state untouched when a newer ticket has been issued.
func (t *Tracker[T]) Complete(ticket Ticket, data T, err error) bool {
	return t.CompleteIf(ticket, data, err, nil)
}

// CompleteIf is Complete with an extra guard evaluated under the tracker lock.
// A ticket rejected by current is dropped and the state returns to Idle.
func (t *Tracker[T]) CompleteIf(ticket Ticket, data T, err error, current func(businessID int64) bool) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if ticket != t.pending {
		return false
	}
	if current != nil && !current(ticket.BusinessID) {
		t.state = Idle[T]{}
		t.pending = Ticket{}
		return false
	}
	if err != nil {
		t.state = Failed[T]{BusinessID: ticket.BusinessID, Err: err}
	} else {
		t.state = Loaded[T]{BusinessID: ticket.BusinessID, Data: data}
	}
	t.pending = Ticket{}
	return true
}

// Reset returns to Idle and drops any in-flight ticket.
func (t *Tracker[T]) Reset() {
	t.mu.Lock()
	t.state = Idle[T]{}
	t.pending = Ticket{}
	t.mu.Unlock()
}

func (t *Tracker[T]) State() State[T] {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}
