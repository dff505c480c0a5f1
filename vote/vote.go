// Package vote keeps the local, optimistic upvote/downvote toggle of each
// post. Nothing here talks to the backend; state lives for one page view.
package vote

import (
	"sync"

	"github.com/mercedmeals/feedclient/api"
)

// State is the local vote of the current user on one post.
type State int

const (
	Neutral State = iota
	Upvoted
	Downvoted
)

func (s State) String() string {
	switch s {
	case Upvoted:
		return "upvoted"
	case Downvoted:
		return "downvoted"
	}
	return "neutral"
}

// Input is a click on one of the two vote buttons.
type Input int

const (
	Upvote Input = iota
	Downvote
)

type transition struct {
	next      State
	upvotes   int
	downvotes int
}

// transitions applies the local toggle exactly once on top of the counts the
// backend last reported.
var transitions = map[State]map[Input]transition{
	Neutral: {
		Upvote:   {next: Upvoted, upvotes: +1},
		Downvote: {next: Downvoted, downvotes: +1},
	},
	Upvoted: {
		Upvote:   {next: Neutral, upvotes: -1},
		Downvote: {next: Downvoted, upvotes: -1, downvotes: +1},
	},
	Downvoted: {
		Upvote:   {next: Upvoted, upvotes: +1, downvotes: -1},
		Downvote: {next: Neutral, downvotes: -1},
	},
}

// Engine holds one State per post id. The zero value is ready to use.
type Engine struct {
	mu     sync.Mutex
	states map[api.ID]State
}

// Apply runs in on p, updating its counters in place, and returns the new
// state of the post.
func (e *Engine) Apply(p *api.Post, in Input) State {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.states == nil {
		e.states = make(map[api.ID]State)
	}
	tr := transitions[e.states[p.ID]][in]
	p.Upvotes += tr.upvotes
	p.Downvotes += tr.downvotes
	if tr.next == Neutral {
		delete(e.states, p.ID)
	} else {
		e.states[p.ID] = tr.next
	}
	return tr.next
}

// Upvote is Apply(p, Upvote).
func (e *Engine) Upvote(p *api.Post) State {
	return e.Apply(p, Upvote)
}

// Downvote is Apply(p, Downvote).
func (e *Engine) Downvote(p *api.Post) State {
	return e.Apply(p, Downvote)
}

// State returns the state of the post with the given id.
func (e *Engine) State(id api.ID) State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.states[id]
}

// Reset forgets every toggle, as a reload does.
func (e *Engine) Reset() {
	e.mu.Lock()
	e.states = nil
	e.mu.Unlock()
}
