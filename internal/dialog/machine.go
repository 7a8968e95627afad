package dialog

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/wolfman30/report-ivr/internal/questions"
	"github.com/wolfman30/report-ivr/internal/validate"
)

// InputKind distinguishes keypad input from call teardown.
type InputKind int

const (
	InputDigits InputKind = iota
	InputHangUp
	InputTimeout
)

// Input is one event fed to the machine.
type Input struct {
	Kind   InputKind
	Digits string
}

// Digits builds a keypad input.
func Digits(d string) Input { return Input{Kind: InputDigits, Digits: d} }

// Effect asks the router to perform I/O after a transition.
type Effect int

const (
	EffectNone Effect = iota
	EffectCommit
	EffectNarrate
)

// Invalid input reasons.
const (
	ReasonInvalidChoice = "invalid_choice"
	ReasonNotNumeric    = "not_numeric"
	ReasonOutOfRange    = "out_of_range"
	ReasonInvalidDate   = "invalid_date"
	ReasonSkipMandatory = "skip_mandatory"
)

// Prompt is a catalog key plus its parameters. Lists are parameters whose value is the
// space-joined rendering of nested prompts (for example one option_item per option).
type Prompt struct {
	Key    string
	Params map[string]string
	Lists  map[string][]Prompt
}

// P builds a prompt from alternating name/value pairs.
func P(key string, kv ...string) Prompt {
	p := Prompt{Key: key}
	if len(kv) > 0 {
		p.Params = make(map[string]string, len(kv)/2)
		for i := 0; i+1 < len(kv); i += 2 {
			p.Params[kv[i]] = kv[i+1]
		}
	}
	return p
}

// Reply is the outcome of a transition.
type Reply struct {
	Prompts   []Prompt
	Effect    Effect
	Hangup    bool
	Invalid   bool
	Reason    string
	MaxDigits int
}

// Config holds keypad codes and behavior switches.
type Config struct {
	SkipCode    string
	YesCode     string
	NoCode      string
	ReviewDigit string
	EchoAnswers bool
}

// Machine applies transitions. It performs no I/O and holds no per-call state.
type Machine struct {
	cfg       Config
	validator validate.Validator
}

// NewMachine fills keypad defaults.
func NewMachine(cfg Config) *Machine {
	if cfg.SkipCode == "" {
		cfg.SkipCode = "*"
	}
	if cfg.YesCode == "" {
		cfg.YesCode = "1"
	}
	if cfg.NoCode == "" {
		cfg.NoCode = "2"
	}
	if cfg.ReviewDigit == "" {
		cfg.ReviewDigit = questions.ReviewDigit
	}
	return &Machine{cfg: cfg, validator: validate.New(cfg.YesCode, cfg.NoCode)}
}

// Start greets the caller and offers the main menu.
func (m *Machine) Start(s *Session) Reply {
	s.State = StateMainMenu
	return m.reply(s, P("welcome", "name", s.Caller.Name), P("main_menu"))
}

// Advance feeds one input to the session.
func (m *Machine) Advance(s *Session, in Input) Reply {
	if s.State.Terminal() {
		return Reply{Hangup: true}
	}
	switch in.Kind {
	case InputHangUp, InputTimeout:
		s.State = StateAbandoned
		return Reply{Hangup: true}
	}

	digits := strings.TrimSpace(in.Digits)
	switch s.State {
	case StateMainMenu:
		return m.onMainMenu(s, digits)
	case StateQuestion:
		return m.onQuestion(s, digits)
	case StateGiftSelection:
		return m.onGiftSelection(s, digits)
	case StateAdditionalGift:
		return m.onAdditionalGift(s, digits)
	case StateConfirmation:
		return m.onConfirmation(s, digits)
	}
	return Reply{Hangup: true}
}

// Repeat replays the prompt for the current step without changing state.
func (m *Machine) Repeat(s *Session) Reply {
	if s.State.Terminal() {
		return Reply{Hangup: true}
	}
	return m.reply(s, m.currentPrompt(s))
}

// Committed finishes a call after the sink accepted the report.
func (m *Machine) Committed(s *Session) Reply {
	s.State = StateCommitted
	return Reply{Prompts: []Prompt{P("report_saved")}, Hangup: true}
}

// CommitFailed returns the session to confirmation so the caller can try again.
func (m *Machine) CommitFailed(s *Session) Reply {
	s.State = StateConfirmation
	s.Retries = 0
	prompts := append([]Prompt{P("save_failed")}, m.confirmPrompt(s))
	return m.reply(s, prompts...)
}

// Summary describes a previously committed report for narration.
type Summary struct {
	Date        time.Time
	ReportType  string
	AnswerCount int
}

// Narrate closes the review branch with the caller's previous reports.
func (m *Machine) Narrate(s *Session, reports []Summary) Reply {
	s.State = StateReviewed
	var prompts []Prompt
	if len(reports) == 0 {
		prompts = append(prompts, P("no_reports"))
	}
	for _, r := range reports {
		label := r.ReportType
		if s.Script != nil {
			if rt, ok := s.Script.ReportType(r.ReportType); ok {
				label = rt.Label
			}
		}
		prompts = append(prompts, P("previous_report",
			"date", r.Date.Format("2 January 2006"),
			"report_type", label,
			"count", strconv.Itoa(r.AnswerCount),
		))
	}
	prompts = append(prompts, P("goodbye"))
	return Reply{Prompts: prompts, Hangup: true}
}

func (m *Machine) onMainMenu(s *Session, digits string) Reply {
	if digits == m.cfg.ReviewDigit {
		s.State = StateReviewed
		return Reply{Effect: EffectNarrate, Hangup: true}
	}
	var rt questions.ReportType
	ok := false
	if s.Script != nil {
		rt, ok = s.Script.ReportTypeByDigit(digits)
	}
	if !ok {
		return m.invalid(s, ReasonInvalidChoice, P("invalid_choice"))
	}
	s.ReportType = rt
	s.Questions = s.Script.Questions[rt.Key]
	s.Answers = nil
	s.Selection = nil
	return m.beginQuestions(s)
}

func (m *Machine) onQuestion(s *Session, digits string) Reply {
	spec, ok := s.Current()
	if !ok {
		return m.afterQuestions(s)
	}
	if digits == m.cfg.SkipCode {
		if spec.Mandatory {
			return m.invalid(s, ReasonSkipMandatory, P("skip_mandatory"))
		}
		s.Index++
		s.Retries = 0
		return m.nextQuestion(s)
	}

	val, err := m.validator.Check(spec, digits, s.AsOf())
	if err != nil {
		var oor *validate.OutOfRangeError
		switch {
		case errors.As(err, &oor):
			return m.invalid(s, ReasonOutOfRange, P("out_of_range", "min", strconv.Itoa(oor.Min), "max", strconv.Itoa(oor.Max)))
		case errors.Is(err, validate.ErrNotNumeric):
			return m.invalid(s, ReasonNotNumeric, P("not_numeric"))
		case errors.Is(err, validate.ErrInvalidDate):
			return m.invalid(s, ReasonInvalidDate, P("invalid_date"))
		default:
			return m.invalid(s, ReasonInvalidChoice, P("invalid_choice"))
		}
	}

	s.setAnswer(Answer{Key: spec.Key, Type: spec.Type, Value: val.String(), Label: val.Label(), Input: digits})
	s.Index++
	s.Retries = 0
	reply := m.nextQuestion(s)
	if m.cfg.EchoAnswers {
		reply.Prompts = append([]Prompt{P("answer_echo", "question", spec.Content, "answer", digits)}, reply.Prompts...)
	}
	return reply
}

func (m *Machine) onGiftSelection(s *Session, digits string) Reply {
	o, err := validate.Choice(s.ReportType.Selection, digits)
	if err != nil {
		return m.invalid(s, ReasonInvalidChoice, P("invalid_choice"))
	}
	if !s.selected(o.ID) {
		s.Selection = append(s.Selection, o)
	}
	s.Retries = 0
	if len(s.Selection) >= len(s.ReportType.Selection) {
		s.State = StateConfirmation
		return m.reply(s, m.confirmPrompt(s))
	}
	s.State = StateAdditionalGift
	return m.reply(s, P("additional_gift"))
}

func (m *Machine) onAdditionalGift(s *Session, digits string) Reply {
	more, err := m.validator.YesNo(digits)
	if err != nil {
		return m.invalid(s, ReasonInvalidChoice, P("invalid_choice"))
	}
	s.Retries = 0
	if more {
		s.State = StateGiftSelection
		return m.reply(s, m.giftPrompt(s))
	}
	s.State = StateConfirmation
	return m.reply(s, m.confirmPrompt(s))
}

func (m *Machine) onConfirmation(s *Session, digits string) Reply {
	ok, err := m.validator.YesNo(digits)
	if err != nil {
		return m.invalid(s, ReasonInvalidChoice, P("invalid_choice"))
	}
	s.Retries = 0
	if ok {
		s.State = StateCommitted
		return Reply{Effect: EffectCommit, Hangup: true}
	}
	if s.ReportType.HasSelection() {
		s.Selection = nil
		s.State = StateGiftSelection
		return m.reply(s, m.giftPrompt(s))
	}
	s.Answers = nil
	return m.beginQuestions(s)
}

func (m *Machine) beginQuestions(s *Session) Reply {
	s.Index = 0
	s.Retries = 0
	return m.nextQuestion(s)
}

// nextQuestion asks the question at s.Index, or moves past the question phase.
func (m *Machine) nextQuestion(s *Session) Reply {
	if s.Index < len(s.Questions) {
		s.State = StateQuestion
		return m.reply(s, m.questionPrompt(s.Questions[s.Index]))
	}
	return m.afterQuestions(s)
}

func (m *Machine) afterQuestions(s *Session) Reply {
	if s.ReportType.HasSelection() {
		s.State = StateGiftSelection
		return m.reply(s, m.giftPrompt(s))
	}
	s.State = StateConfirmation
	return m.reply(s, m.confirmPrompt(s))
}

// invalid re-prompts the current step after the failure message.
func (m *Machine) invalid(s *Session, reason string, failure Prompt) Reply {
	s.Retries++
	s.Invalid++
	r := m.reply(s, failure, m.currentPrompt(s))
	r.Invalid = true
	r.Reason = reason
	return r
}

func (m *Machine) currentPrompt(s *Session) Prompt {
	switch s.State {
	case StateQuestion:
		if spec, ok := s.Current(); ok {
			return m.questionPrompt(spec)
		}
	case StateGiftSelection:
		return m.giftPrompt(s)
	case StateAdditionalGift:
		return P("additional_gift")
	case StateConfirmation:
		return m.confirmPrompt(s)
	}
	return P("main_menu")
}

func (m *Machine) questionPrompt(spec questions.Spec) Prompt {
	p := P(spec.PromptKey,
		"min", strconv.Itoa(spec.Min),
		"max", strconv.Itoa(spec.Max),
		"question", spec.Content,
	)
	p.Lists = map[string][]Prompt{"options": optionItems(spec.Options)}
	return p
}

func (m *Machine) giftPrompt(s *Session) Prompt {
	key := "gift_select"
	if len(s.Selection) > 0 {
		key = "gift_select_additional"
	}
	p := P(key)
	p.Lists = map[string][]Prompt{"options": optionItems(s.ReportType.Selection)}
	return p
}

func (m *Machine) confirmPrompt(s *Session) Prompt {
	if s.ReportType.HasSelection() {
		labels := make([]string, len(s.Selection))
		for i, o := range s.Selection {
			labels[i] = o.Label
		}
		return P("confirm_selection",
			"event", s.choiceLabel(),
			"count", strconv.Itoa(len(s.Selection)),
			"gifts", strings.Join(labels, ", "),
		)
	}
	parts := make([]string, 0, len(s.Answers))
	contents := make(map[string]string, len(s.Questions))
	for _, q := range s.Questions {
		contents[q.Key] = q.Content
	}
	for _, a := range s.Answers {
		parts = append(parts, contents[a.Key]+" "+a.Label)
	}
	return P("confirm_answers", "answers", strings.Join(parts, ", "))
}

func (m *Machine) reply(s *Session, prompts ...Prompt) Reply {
	return Reply{Prompts: prompts, MaxDigits: m.maxDigits(s)}
}

// maxDigits is the number of keys the carrier should collect for the current step; 0 means until '#'.
func (m *Machine) maxDigits(s *Session) int {
	switch s.State {
	case StateQuestion:
		spec, ok := s.Current()
		if !ok {
			return 0
		}
		switch spec.Type {
		case questions.TypeBounded:
			return max(len(strconv.Itoa(spec.Max)), len(m.cfg.SkipCode))
		case questions.TypeDate:
			return len(spec.Layout())
		case questions.TypeNumeric:
			return 0
		}
		return 1
	case StateMainMenu, StateGiftSelection, StateAdditionalGift, StateConfirmation:
		return 1
	}
	return 0
}

func optionItems(set questions.OptionSet) []Prompt {
	items := make([]Prompt, len(set))
	for i, o := range set {
		items[i] = P("option_item", "code", o.Code, "label", o.Label)
	}
	return items
}
