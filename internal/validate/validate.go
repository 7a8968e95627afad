// Package validate turns raw keypad input into typed answers.
package validate

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/wolfman30/report-ivr/internal/questions"
)

// Validation failures. None of them are fatal; the dialog re-prompts.
var (
	ErrNotNumeric    = errors.New("validate: not numeric")
	ErrInvalidChoice = errors.New("validate: invalid choice")
	ErrInvalidDate   = errors.New("validate: invalid date")
)

// OutOfRangeError carries the bounds for the re-prompt text.
type OutOfRangeError struct {
	Min, Max int
	Got      int
}

func (e *OutOfRangeError) Error() string {
	return fmt.Sprintf("validate: %d out of range [%d,%d]", e.Got, e.Min, e.Max)
}

// Value is a validated answer.
type Value struct {
	Type   questions.AnswerType
	Int    int
	Bool   bool
	Date   time.Time
	Option questions.Option
	Raw    string
}

// String returns the canonical stored form.
func (v Value) String() string {
	switch v.Type {
	case questions.TypeNumeric, questions.TypeBounded:
		return strconv.Itoa(v.Int)
	case questions.TypeChoice:
		return v.Option.ID
	case questions.TypeDate:
		return v.Date.Format("2006-01-02")
	case questions.TypeYesNo:
		return strconv.FormatBool(v.Bool)
	}
	return v.Raw
}

// Label returns the spoken form.
func (v Value) Label() string {
	switch v.Type {
	case questions.TypeChoice:
		return v.Option.Label
	case questions.TypeDate:
		return v.Date.Format("2 January 2006")
	case questions.TypeYesNo:
		if v.Bool {
			return "yes"
		}
		return "no"
	}
	return v.String()
}

// Validator checks input against a question. It holds only keypad configuration and never mutates state.
type Validator struct {
	YesCode string
	NoCode  string
}

// New returns a validator with the given yes/no codes.
func New(yes, no string) Validator {
	return Validator{YesCode: yes, NoCode: no}
}

// Check validates input for spec. asOf supplies the year for day-month dates.
func (v Validator) Check(spec questions.Spec, input string, asOf time.Time) (Value, error) {
	input = strings.TrimSpace(input)
	switch spec.Type {
	case questions.TypeNumeric:
		n, err := parseDigits(input)
		if err != nil {
			return Value{}, err
		}
		return Value{Type: spec.Type, Int: n, Raw: input}, nil
	case questions.TypeBounded:
		n, err := parseDigits(input)
		if err != nil {
			return Value{}, err
		}
		if n < spec.Min || n > spec.Max {
			return Value{}, &OutOfRangeError{Min: spec.Min, Max: spec.Max, Got: n}
		}
		return Value{Type: spec.Type, Int: n, Raw: input}, nil
	case questions.TypeChoice:
		o, err := Choice(spec.Options, input)
		if err != nil {
			return Value{}, err
		}
		return Value{Type: spec.Type, Option: o, Raw: input}, nil
	case questions.TypeYesNo:
		b, err := v.YesNo(input)
		if err != nil {
			return Value{}, err
		}
		return Value{Type: spec.Type, Bool: b, Raw: input}, nil
	case questions.TypeDate:
		d, err := parseDate(input, spec.Layout(), asOf)
		if err != nil {
			return Value{}, err
		}
		return Value{Type: spec.Type, Date: d, Raw: input}, nil
	}
	return Value{}, fmt.Errorf("validate: unsupported answer type %q", spec.Type)
}

// YesNo maps the two confirmation codes to a boolean.
func (v Validator) YesNo(input string) (bool, error) {
	switch strings.TrimSpace(input) {
	case v.YesCode:
		return true, nil
	case v.NoCode:
		return false, nil
	}
	return false, ErrInvalidChoice
}

// Choice maps a pressed digit to an option.
func Choice(set questions.OptionSet, input string) (questions.Option, error) {
	o, ok := set.Lookup(strings.TrimSpace(input))
	if !ok {
		return questions.Option{}, ErrInvalidChoice
	}
	return o, nil
}

func parseDigits(input string) (int, error) {
	if input == "" || len(input) > 9 {
		return 0, ErrNotNumeric
	}
	for _, r := range input {
		if r < '0' || r > '9' {
			return 0, ErrNotNumeric
		}
	}
	n, err := strconv.Atoi(input)
	if err != nil {
		return 0, ErrNotNumeric
	}
	return n, nil
}

func parseDate(input, layout string, asOf time.Time) (time.Time, error) {
	if len(input) != len(layout) {
		return time.Time{}, ErrInvalidDate
	}
	for _, r := range input {
		if r < '0' || r > '9' {
			return time.Time{}, ErrInvalidDate
		}
	}
	day, _ := strconv.Atoi(input[0:2])
	month, _ := strconv.Atoi(input[2:4])
	year := asOf.Year()
	switch layout {
	case questions.LayoutDayMonthYear:
		yy, _ := strconv.Atoi(input[4:6])
		year = asOf.Year()/100*100 + yy
	case questions.LayoutDayMonthFullYear:
		year, _ = strconv.Atoi(input[4:8])
	}
	if month < 1 || month > 12 || day < 1 {
		return time.Time{}, ErrInvalidDate
	}
	d := time.Date(year, time.Month(month), day, 0, 0, 0, 0, asOf.Location())
	if d.Day() != day || int(d.Month()) != month {
		return time.Time{}, ErrInvalidDate
	}
	return d, nil
}
