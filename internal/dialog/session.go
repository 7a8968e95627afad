// Package dialog implements the per-call state machine that drives a report over the keypad.
package dialog

import (
	"time"

	"github.com/wolfman30/report-ivr/internal/questions"
)

// State is the step a call is waiting on.
type State string

const (
	StateMainMenu       State = "awaiting_main_menu"
	StateQuestion       State = "awaiting_question"
	StateGiftSelection  State = "awaiting_gift_selection"
	StateAdditionalGift State = "awaiting_additional_gift_decision"
	StateConfirmation   State = "awaiting_confirmation"
	StateCommitted      State = "committed"
	StateAbandoned      State = "abandoned"
	StateReviewed       State = "reviewed"
)

// Terminal reports whether no further input is accepted.
func (s State) Terminal() bool {
	switch s {
	case StateCommitted, StateAbandoned, StateReviewed:
		return true
	}
	return false
}

// Caller is the resolved identity of whoever dialed in.
type Caller struct {
	ID   string
	Name string
}

// Answer is one accepted question response.
type Answer struct {
	Key   string               `json:"key"`
	Type  questions.AnswerType `json:"type"`
	Value string               `json:"value"`
	Label string               `json:"label"`
	Input string               `json:"input"`
}

// Session is the live state of one call. It is owned by a single router entry and never shared.
type Session struct {
	CallID     string
	Caller     Caller
	Script     *questions.Script
	ReportType questions.ReportType
	Questions  []questions.Spec
	State      State
	Index      int
	Answers    []Answer
	Selection  []questions.Option
	// Retries counts invalid inputs on the current step; Invalid counts them for the whole call.
	Retries      int
	Invalid      int
	CreatedAt    time.Time
	LastActivity time.Time
}

// NewSession creates a session waiting on the main menu.
func NewSession(callID string, caller Caller, script *questions.Script, now time.Time) *Session {
	return &Session{
		CallID:       callID,
		Caller:       caller,
		Script:       script,
		State:        StateMainMenu,
		CreatedAt:    now,
		LastActivity: now,
	}
}

// AsOf is the date answers are validated against: the script date, or the call start.
func (s *Session) AsOf() time.Time {
	if s.Script != nil && !s.Script.AsOf.IsZero() {
		return s.Script.AsOf
	}
	return s.CreatedAt
}

// choiceLabel is the label of the first menu answer, such as the event type.
func (s *Session) choiceLabel() string {
	for _, a := range s.Answers {
		if a.Type == questions.TypeChoice {
			return a.Label
		}
	}
	return ""
}

// Current returns the question being asked, if any.
func (s *Session) Current() (questions.Spec, bool) {
	if s.State != StateQuestion || s.Index < 0 || s.Index >= len(s.Questions) {
		return questions.Spec{}, false
	}
	return s.Questions[s.Index], true
}

// SelectionIDs returns the backing ids of the selected options in selection order.
func (s *Session) SelectionIDs() []string {
	ids := make([]string, len(s.Selection))
	for i, o := range s.Selection {
		ids[i] = o.ID
	}
	return ids
}

func (s *Session) setAnswer(a Answer) {
	for i := range s.Answers {
		if s.Answers[i].Key == a.Key {
			s.Answers[i] = a
			return
		}
	}
	s.Answers = append(s.Answers, a)
}

func (s *Session) selected(id string) bool {
	for _, o := range s.Selection {
		if o.ID == id {
			return true
		}
	}
	return false
}
