package core

import "time"

// Transcript is the ordered conversation shared with the model on every
// request. It only grows: turns are appended by the loop controller and never
// rewritten. A Transcript is owned by a single run and is not safe for
// concurrent mutation.
type Transcript struct {
	ID       string
	Created  time.Time
	Updated  time.Time
	contents []Content
}

// NewTranscript creates an empty transcript with the given id.
func NewTranscript(id string) *Transcript {
	now := time.Now()
	return &Transcript{ID: id, Created: now, Updated: now}
}

// Append adds a turn to the end of the transcript.
func (t *Transcript) Append(c Content) {
	t.contents = append(t.contents, c)
	t.Updated = time.Now()
}

// Len returns the number of turns.
func (t *Transcript) Len() int { return len(t.contents) }

// Contents returns a copy of the turns so callers (model adapters)
// cannot mutate the history.
func (t *Transcript) Contents() []Content {
	out := make([]Content, len(t.contents))
	copy(out, t.contents)
	return out
}

// Last returns the most recent turn and false when the transcript is empty.
func (t *Transcript) Last() (Content, bool) {
	if len(t.contents) == 0 {
		return Content{}, false
	}
	return t.contents[len(t.contents)-1], true
}

// CountRole returns how many turns carry the given role.
func (t *Transcript) CountRole(role string) int {
	n := 0
	for _, c := range t.contents {
		if c.Role == role {
			n++
		}
	}
	return n
}
