package dialog

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/report-ivr/internal/catalog"
	"github.com/wolfman30/report-ivr/internal/questions"
)

var testNow = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

func newTestSession(t *testing.T) *Session {
	t.Helper()
	script, err := questions.LoadScript(context.Background(), questions.NewDefaultProvider(), testNow)
	require.NoError(t, err)
	return NewSession("call-1", Caller{ID: "t-1", Name: "Dana"}, script, testNow)
}

func keys(r Reply) []string {
	out := make([]string, len(r.Prompts))
	for i, p := range r.Prompts {
		out[i] = p.Key
	}
	return out
}

func feed(m *Machine, s *Session, inputs ...string) Reply {
	var r Reply
	for _, in := range inputs {
		r = m.Advance(s, Digits(in))
	}
	return r
}

func TestStartGreetsAndOffersMenu(t *testing.T) {
	m := NewMachine(Config{})
	s := newTestSession(t)
	r := m.Start(s)
	assert.Equal(t, []string{"welcome", "main_menu"}, keys(r))
	assert.Equal(t, "Dana", r.Prompts[0].Params["name"])
	assert.Equal(t, 1, r.MaxDigits)
	assert.Equal(t, StateMainMenu, s.State)
}

func TestAttendanceHappyPath(t *testing.T) {
	m := NewMachine(Config{})
	s := newTestSession(t)
	m.Start(s)

	r := m.Advance(s, Digits("1"))
	assert.Equal(t, StateQuestion, s.State)
	assert.Equal(t, []string{"question_students_present"}, keys(r))
	assert.Equal(t, "0", r.Prompts[0].Params["min"])
	assert.Equal(t, "50", r.Prompts[0].Params["max"])
	assert.Equal(t, 2, r.MaxDigits)

	r = m.Advance(s, Digits("7"))
	assert.Equal(t, []string{"question_lessons_taught"}, keys(r))

	r = m.Advance(s, Digits("3"))
	assert.Equal(t, StateConfirmation, s.State)
	require.Equal(t, []string{"confirm_answers"}, keys(r))
	assert.Equal(t, "Students present 7, Lessons taught 3", r.Prompts[0].Params["answers"])

	r = m.Advance(s, Digits("1"))
	assert.Equal(t, EffectCommit, r.Effect)
	assert.Equal(t, StateCommitted, s.State)
	require.Len(t, s.Answers, 2)
	assert.Equal(t, "7", s.Answers[0].Value)
	assert.Equal(t, "3", s.Answers[1].Value)
	assert.Empty(t, s.Selection)

	r = m.Committed(s)
	assert.Equal(t, []string{"report_saved"}, keys(r))
	assert.True(t, r.Hangup)
}

func TestAnswerEcho(t *testing.T) {
	m := NewMachine(Config{EchoAnswers: true})
	s := newTestSession(t)
	m.Start(s)
	m.Advance(s, Digits("1"))

	r := m.Advance(s, Digits("07"))
	require.Equal(t, []string{"answer_echo", "question_lessons_taught"}, keys(r))
	assert.Equal(t, "Students present", r.Prompts[0].Params["question"])
	assert.Equal(t, "07", r.Prompts[0].Params["answer"])
	assert.Equal(t, "7", s.Answers[0].Value)
}

func TestOutOfRangeRepromptsWithBounds(t *testing.T) {
	m := NewMachine(Config{})
	s := newTestSession(t)
	m.Start(s)
	m.Advance(s, Digits("1"))

	r := m.Advance(s, Digits("51"))
	assert.True(t, r.Invalid)
	assert.Equal(t, ReasonOutOfRange, r.Reason)
	require.Equal(t, []string{"out_of_range", "question_students_present"}, keys(r))
	assert.Equal(t, "0", r.Prompts[0].Params["min"])
	assert.Equal(t, "50", r.Prompts[0].Params["max"])
	assert.Equal(t, 0, s.Index)
	assert.Equal(t, 1, s.Retries)
	assert.Equal(t, 1, s.Invalid)
	assert.Empty(t, s.Answers)

	r = m.Advance(s, Digits("x"))
	assert.Equal(t, ReasonNotNumeric, r.Reason)
	assert.Equal(t, 2, s.Retries)

	m.Advance(s, Digits("5"))
	assert.Equal(t, 1, s.Index)
	assert.Equal(t, 0, s.Retries)
	assert.Equal(t, 2, s.Invalid)
}

func TestSkipMandatoryNeverAdvances(t *testing.T) {
	m := NewMachine(Config{})
	s := newTestSession(t)
	m.Start(s)
	m.Advance(s, Digits("1"))

	for i := 0; i < 3; i++ {
		r := m.Advance(s, Digits("*"))
		assert.Equal(t, []string{"skip_mandatory", "question_students_present"}, keys(r))
		assert.Equal(t, ReasonSkipMandatory, r.Reason)
		assert.Equal(t, 0, s.Index)
		assert.Equal(t, StateQuestion, s.State)
	}
	assert.Empty(t, s.Answers)
}

func eventRegistrationToGifts(t *testing.T, m *Machine, s *Session) Reply {
	t.Helper()
	m.Start(s)
	r := m.Advance(s, Digits("2"))
	require.Equal(t, []string{"question_event_type"}, keys(r))
	require.Len(t, r.Prompts[0].Lists["options"], 3)

	r = m.Advance(s, Digits("1"))
	require.Equal(t, []string{"question_report_date"}, keys(r))
	assert.Equal(t, 4, r.MaxDigits)

	r = m.Advance(s, Digits("0103"))
	require.Equal(t, []string{"question_guests"}, keys(r))
	assert.Equal(t, 0, r.MaxDigits)

	r = m.Advance(s, Digits("*"))
	require.Equal(t, StateGiftSelection, s.State)
	return r
}

func TestSkipOptionalAdvancesWithoutValue(t *testing.T) {
	m := NewMachine(Config{})
	s := newTestSession(t)
	r := eventRegistrationToGifts(t, m, s)

	assert.False(t, r.Invalid)
	assert.Equal(t, []string{"gift_select"}, keys(r))
	require.Len(t, s.Answers, 2)
	assert.Equal(t, "event_type", s.Answers[0].Key)
	assert.Equal(t, "event-trip", s.Answers[0].Value)
	assert.Equal(t, "event_date", s.Answers[1].Key)
	assert.Equal(t, "2026-03-01", s.Answers[1].Value)
}

func TestDateAnswersUseCallStartWithoutScriptDate(t *testing.T) {
	script, err := questions.LoadScript(context.Background(), questions.NewDefaultProvider(), testNow)
	require.NoError(t, err)
	script.AsOf = time.Time{}
	started := time.Date(2024, 5, 20, 8, 0, 0, 0, time.UTC)
	s := NewSession("call-1", Caller{ID: "t-1", Name: "Dana"}, script, started)

	m := NewMachine(Config{})
	m.Start(s)
	feed(m, s, "2", "1", "0103")

	require.Len(t, s.Answers, 2)
	assert.Equal(t, started, s.AsOf())
	assert.Equal(t, "2024-03-01", s.Answers[1].Value)
}

func TestGiftSelectionAccumulatesInOrder(t *testing.T) {
	m := NewMachine(Config{})
	s := newTestSession(t)
	eventRegistrationToGifts(t, m, s)

	r := m.Advance(s, Digits("2"))
	assert.Equal(t, StateAdditionalGift, s.State)
	assert.Equal(t, []string{"additional_gift"}, keys(r))

	r = m.Advance(s, Digits("1"))
	assert.Equal(t, []string{"gift_select_additional"}, keys(r))

	r = m.Advance(s, Digits("1"))
	assert.Equal(t, []string{"additional_gift"}, keys(r))

	r = m.Advance(s, Digits("2"))
	require.Equal(t, []string{"confirm_selection"}, keys(r))
	assert.Equal(t, "Class trip", r.Prompts[0].Params["event"])
	assert.Equal(t, "2", r.Prompts[0].Params["count"])
	assert.Equal(t, "Board game, Book voucher", r.Prompts[0].Params["gifts"])

	r = m.Advance(s, Digits("1"))
	assert.Equal(t, EffectCommit, r.Effect)
	assert.Equal(t, []string{"gift-game", "gift-book"}, s.SelectionIDs())
}

func TestSingleGiftThenNo(t *testing.T) {
	m := NewMachine(Config{})
	s := newTestSession(t)
	eventRegistrationToGifts(t, m, s)

	feed(m, s, "1", "2")
	assert.Equal(t, StateConfirmation, s.State)
	assert.Equal(t, []string{"gift-book"}, s.SelectionIDs())
}

func TestSelectingEveryGiftGoesToConfirmation(t *testing.T) {
	m := NewMachine(Config{})
	s := newTestSession(t)
	eventRegistrationToGifts(t, m, s)

	r := feed(m, s, "1", "1", "2", "1", "3")
	assert.Equal(t, StateConfirmation, s.State)
	assert.Equal(t, "3", r.Prompts[0].Params["count"])
}

func TestDuplicateGiftNotAddedTwice(t *testing.T) {
	m := NewMachine(Config{})
	s := newTestSession(t)
	eventRegistrationToGifts(t, m, s)

	feed(m, s, "1", "1", "1", "2")
	assert.Equal(t, []string{"gift-book"}, s.SelectionIDs())
}

func TestConfirmNoDiscardsOnlyCurrentPhase(t *testing.T) {
	m := NewMachine(Config{})
	s := newTestSession(t)
	eventRegistrationToGifts(t, m, s)

	feed(m, s, "1", "2")
	r := m.Advance(s, Digits("2"))
	assert.Equal(t, StateGiftSelection, s.State)
	assert.Equal(t, []string{"gift_select"}, keys(r))
	assert.Empty(t, s.Selection)
	assert.Len(t, s.Answers, 2)

	feed(m, s, "3", "2")
	assert.Equal(t, []string{"gift-museum"}, s.SelectionIDs())
}

func TestConfirmNoRestartsQuestionsWithoutSelectionPhase(t *testing.T) {
	m := NewMachine(Config{})
	s := newTestSession(t)
	m.Start(s)
	feed(m, s, "1", "7", "3")

	r := m.Advance(s, Digits("2"))
	assert.Equal(t, StateQuestion, s.State)
	assert.Equal(t, 0, s.Index)
	assert.Empty(t, s.Answers)
	assert.Equal(t, []string{"question_students_present"}, keys(r))

	feed(m, s, "9", "4", "1")
	require.Len(t, s.Answers, 2)
	assert.Equal(t, "9", s.Answers[0].Value)
	assert.Equal(t, "4", s.Answers[1].Value)
}

func TestInvalidMenuAndConfirmation(t *testing.T) {
	m := NewMachine(Config{})
	s := newTestSession(t)
	m.Start(s)

	r := m.Advance(s, Digits("9"))
	assert.True(t, r.Invalid)
	assert.Equal(t, []string{"invalid_choice", "main_menu"}, keys(r))

	feed(m, s, "1", "7", "3")
	r = m.Advance(s, Digits("5"))
	assert.True(t, r.Invalid)
	assert.Equal(t, []string{"invalid_choice", "confirm_answers"}, keys(r))
	assert.Equal(t, StateConfirmation, s.State)
}

func TestHangUpAbandonsFromAnyState(t *testing.T) {
	m := NewMachine(Config{})
	for _, steps := range [][]string{nil, {"1"}, {"1", "7", "3"}} {
		s := newTestSession(t)
		m.Start(s)
		feed(m, s, steps...)
		r := m.Advance(s, Input{Kind: InputHangUp})
		assert.True(t, r.Hangup)
		assert.Equal(t, StateAbandoned, s.State)
		assert.Equal(t, EffectNone, r.Effect)
	}

	s := newTestSession(t)
	m.Start(s)
	m.Advance(s, Input{Kind: InputTimeout})
	assert.Equal(t, StateAbandoned, s.State)

	r := m.Advance(s, Digits("1"))
	assert.True(t, r.Hangup)
	assert.Equal(t, StateAbandoned, s.State)
}

func TestCommitFailedReturnsToConfirmation(t *testing.T) {
	m := NewMachine(Config{})
	s := newTestSession(t)
	m.Start(s)
	feed(m, s, "1", "7", "3", "1")
	require.Equal(t, StateCommitted, s.State)

	r := m.CommitFailed(s)
	assert.Equal(t, StateConfirmation, s.State)
	assert.Equal(t, []string{"save_failed", "confirm_answers"}, keys(r))
	assert.False(t, r.Hangup)

	r = m.Advance(s, Digits("1"))
	assert.Equal(t, EffectCommit, r.Effect)
}

func TestReviewBranch(t *testing.T) {
	m := NewMachine(Config{})
	s := newTestSession(t)
	m.Start(s)

	r := m.Advance(s, Digits("3"))
	assert.Equal(t, EffectNarrate, r.Effect)
	assert.Equal(t, StateReviewed, s.State)

	r = m.Narrate(s, nil)
	assert.Equal(t, []string{"no_reports", "goodbye"}, keys(r))

	r = m.Narrate(s, []Summary{{Date: testNow, ReportType: questions.ReportAttendance, AnswerCount: 2}})
	require.Equal(t, []string{"previous_report", "goodbye"}, keys(r))
	assert.Equal(t, "attendance", r.Prompts[0].Params["report_type"])
	assert.Equal(t, "10 March 2026", r.Prompts[0].Params["date"])
	assert.Equal(t, "2", r.Prompts[0].Params["count"])
}

func TestDefaultCatalogSatisfiesContract(t *testing.T) {
	s := newTestSession(t)
	c := catalog.New(catalog.DefaultTexts())
	require.NoError(t, c.Validate(PromptContract(s.Script)))
}

func TestRepeatKeepsState(t *testing.T) {
	m := NewMachine(Config{})
	s := newTestSession(t)
	m.Start(s)
	m.Advance(s, Digits("1"))

	r := m.Repeat(s)
	assert.Equal(t, []string{"question_students_present"}, keys(r))
	assert.Equal(t, StateQuestion, s.State)
	assert.Equal(t, 0, s.Retries)
}
