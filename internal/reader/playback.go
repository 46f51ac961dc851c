package reader

import "time"

// State is the playback state of a panel.
type State string

const (
	Idle    State = "idle"
	Playing State = "playing"
)

// Session pairs one document with one voice for a single utterance.
type Session struct {
	ID        string    `json:"id"`
	Text      string    `json:"-"`
	Voice     Voice     `json:"voice"`
	StartedAt time.Time `json:"started_at"`
}

// Controller is the Idle|Playing state machine. It never talks to the engine;
// the panel does that around its transitions.
type Controller struct {
	session *Session
}

func (c *Controller) State() State {
	if c.session == nil {
		return Idle
	}
	return Playing
}

// Active returns the in-flight session, if any.
func (c *Controller) Active() (Session, bool) {
	if c.session == nil {
		return Session{}, false
	}
	return *c.session, true
}

// Start opens a session for doc and voice. It refuses when the document is
// empty, no voice is selected, or a session is already active.
func (c *Controller) Start(id string, doc Document, voice Voice, hasVoice bool, now time.Time) (Session, bool) {
	if c.session != nil || !doc.Present() || !hasVoice {
		return Session{}, false
	}
	c.session = &Session{
		ID:        id,
		Text:      doc.Text,
		Voice:     voice,
		StartedAt: now,
	}
	return *c.session, true
}

// Stop clears the active session unconditionally.
func (c *Controller) Stop() {
	c.session = nil
}

// Complete ends the session with the given id. Other ids are stale and ignored.
func (c *Controller) Complete(id string) bool {
	if c.session == nil || c.session.ID != id {
		return false
	}
	c.session = nil
	return true
}

// Fail has the same transition as Complete; the caller records the error.
func (c *Controller) Fail(id string) bool {
	return c.Complete(id)
}
