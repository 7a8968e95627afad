// Package questions holds the report definitions read by the dialog engine.
package questions

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// AnswerType selects the validation rule applied to a question's input.
type AnswerType string

const (
	TypeNumeric AnswerType = "numeric"
	TypeBounded AnswerType = "bounded"
	TypeChoice  AnswerType = "choice"
	TypeDate    AnswerType = "date"
	TypeYesNo   AnswerType = "yesno"
)

// Date layouts accepted for date questions.
const (
	LayoutDayMonth         = "DDMM"
	LayoutDayMonthYear     = "DDMMYY"
	LayoutDayMonthFullYear = "DDMMYYYY"
)

// Option is one digit-addressable choice.
type Option struct {
	Code  string `json:"code" validate:"required,len=1,numeric"`
	Label string `json:"label" validate:"required"`
	ID    string `json:"id" validate:"required"`
}

// OptionSet is an ordered list of options.
type OptionSet []Option

// Lookup maps a pressed digit back to its option.
func (s OptionSet) Lookup(code string) (Option, bool) {
	for _, o := range s {
		if o.Code == code {
			return o, true
		}
	}
	return Option{}, false
}

// Labels returns option labels in set order.
func (s OptionSet) Labels() []string {
	out := make([]string, len(s))
	for i, o := range s {
		out[i] = o.Label
	}
	return out
}

// Spec defines a single question. Specs are read-only once handed to a call.
type Spec struct {
	Key           string     `json:"key" validate:"required"`
	ReportType    string     `json:"report_type" validate:"required"`
	Content       string     `json:"content" validate:"required"`
	PromptKey     string     `json:"prompt_key" validate:"required"`
	Type          AnswerType `json:"type" validate:"required,oneof=numeric bounded choice date yesno"`
	Mandatory     bool       `json:"mandatory"`
	Min           int        `json:"min"`
	Max           int        `json:"max"`
	Options       OptionSet  `json:"options,omitempty" validate:"required_if=Type choice,dive"`
	DateLayout    string     `json:"date_layout,omitempty" validate:"omitempty,oneof=DDMM DDMMYY DDMMYYYY"`
	EffectiveFrom *time.Time `json:"effective_from,omitempty"`
	EffectiveTo   *time.Time `json:"effective_to,omitempty"`
	Ordinal       int        `json:"ordinal" validate:"gte=0"`
	Version       int        `json:"version" validate:"gte=1"`
}

// AppliesOn reports whether the effective window covers the given date. Both bounds are inclusive days.
func (s Spec) AppliesOn(asOf time.Time) bool {
	day := truncateDay(asOf)
	if s.EffectiveFrom != nil && day.Before(truncateDay(s.EffectiveFrom.In(asOf.Location()))) {
		return false
	}
	if s.EffectiveTo != nil && day.After(truncateDay(s.EffectiveTo.In(asOf.Location()))) {
		return false
	}
	return true
}

// Layout returns the configured date layout, defaulting to day and month.
func (s Spec) Layout() string {
	if s.DateLayout == "" {
		return LayoutDayMonth
	}
	return s.DateLayout
}

// ReportType is a main-menu entry. A non-empty Selection adds the gift selection phase.
type ReportType struct {
	Key       string    `json:"key" validate:"required"`
	Label     string    `json:"label" validate:"required"`
	MenuDigit string    `json:"menu_digit" validate:"required,len=1,numeric"`
	Selection OptionSet `json:"selection,omitempty" validate:"omitempty,dive"`
}

// HasSelection reports whether the report type collects gifts after its questions.
func (r ReportType) HasSelection() bool {
	return len(r.Selection) > 0
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterStructValidation(specStructLevel, Spec{})
	return v
}

func specStructLevel(sl validator.StructLevel) {
	s := sl.Current().Interface().(Spec)
	if s.Type == TypeBounded && s.Max < s.Min {
		sl.ReportError(s.Max, "Max", "max", "gtefield", "Min")
	}
	if s.EffectiveFrom != nil && s.EffectiveTo != nil && s.EffectiveTo.Before(*s.EffectiveFrom) {
		sl.ReportError(s.EffectiveTo, "EffectiveTo", "effective_to", "gtefield", "EffectiveFrom")
	}
	if s.Type == TypeChoice {
		seen := make(map[string]struct{}, len(s.Options))
		for _, o := range s.Options {
			if _, dup := seen[o.Code]; dup {
				sl.ReportError(s.Options, "Options", "options", "unique", o.Code)
				return
			}
			seen[o.Code] = struct{}{}
		}
	}
}

// ValidateSpec checks a question definition.
func ValidateSpec(s Spec) error {
	if err := validate.Struct(s); err != nil {
		return fmt.Errorf("questions: invalid spec %q: %w", s.Key, err)
	}
	return nil
}

// ReviewDigit is the main menu digit that plays previous reports.
const ReviewDigit = "3"

// ValidateReportTypes checks menu entries and rejects duplicate keys or digits.
// A report type may not use ReviewDigit.
func ValidateReportTypes(types []ReportType) error {
	keys := make(map[string]struct{}, len(types))
	digits := map[string]struct{}{ReviewDigit: {}}
	var errs []error
	for _, rt := range types {
		if err := validate.Struct(rt); err != nil {
			errs = append(errs, fmt.Errorf("questions: invalid report type %q: %w", rt.Key, err))
			continue
		}
		if _, dup := keys[rt.Key]; dup {
			errs = append(errs, fmt.Errorf("questions: duplicate report type %q", rt.Key))
		}
		if rt.MenuDigit == ReviewDigit {
			errs = append(errs, fmt.Errorf("questions: report type %q uses the review digit %s", rt.Key, rt.MenuDigit))
		} else if _, dup := digits[rt.MenuDigit]; dup {
			errs = append(errs, fmt.Errorf("questions: report type %q reuses menu digit %s", rt.Key, rt.MenuDigit))
		}
		keys[rt.Key] = struct{}{}
		digits[rt.MenuDigit] = struct{}{}
	}
	return errors.Join(errs...)
}

// Select filters specs to those applying on asOf, keeps the highest version per key,
// and orders the result by ordinal then key.
func Select(specs []Spec, reportType string, asOf time.Time) []Spec {
	latest := make(map[string]Spec)
	for _, s := range specs {
		if s.ReportType != reportType || !s.AppliesOn(asOf) {
			continue
		}
		if cur, ok := latest[s.Key]; ok && cur.Version >= s.Version {
			continue
		}
		latest[s.Key] = s
	}
	out := make([]Spec, 0, len(latest))
	for _, s := range latest {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Ordinal != out[j].Ordinal {
			return out[i].Ordinal < out[j].Ordinal
		}
		return strings.Compare(out[i].Key, out[j].Key) < 0
	})
	return out
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
