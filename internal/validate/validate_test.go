package validate

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/report-ivr/internal/questions"
)

var asOf = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

func TestCheck(t *testing.T) {
	v := New("1", "2")
	bounded := questions.Spec{Type: questions.TypeBounded, Min: 0, Max: 50}
	free := questions.Spec{Type: questions.TypeNumeric}
	choice := questions.Spec{Type: questions.TypeChoice, Options: questions.OptionSet{
		{Code: "1", Label: "Class trip", ID: "event-trip"},
		{Code: "3", Label: "Ceremony", ID: "event-ceremony"},
	}}
	yesno := questions.Spec{Type: questions.TypeYesNo}
	ddmm := questions.Spec{Type: questions.TypeDate}
	ddmmyy := questions.Spec{Type: questions.TypeDate, DateLayout: questions.LayoutDayMonthYear}
	full := questions.Spec{Type: questions.TypeDate, DateLayout: questions.LayoutDayMonthFullYear}

	tests := []struct {
		name    string
		spec    questions.Spec
		input   string
		want    string
		wantErr error
	}{
		{"bounded ok", bounded, "7", "7", nil},
		{"bounded lower edge", bounded, "0", "0", nil},
		{"bounded upper edge", bounded, "50", "50", nil},
		{"bounded leading zero", bounded, "07", "7", nil},
		{"bounded not numeric", bounded, "1*", "", ErrNotNumeric},
		{"bounded empty", bounded, "", "", ErrNotNumeric},
		{"free numeric", free, "1234", "1234", nil},
		{"free numeric too long", free, "12345678901", "", ErrNotNumeric},
		{"choice ok", choice, "3", "event-ceremony", nil},
		{"choice missing code", choice, "2", "", ErrInvalidChoice},
		{"yes", yesno, "1", "true", nil},
		{"no", yesno, "2", "false", nil},
		{"yesno other", yesno, "3", "", ErrInvalidChoice},
		{"day month non leap year", ddmm, "2902", "", ErrInvalidDate},
		{"day month ok", ddmm, "0103", "2026-03-01", nil},
		{"day month short", ddmm, "113", "", ErrInvalidDate},
		{"bad month", ddmm, "0113", "", ErrInvalidDate},
		{"zero day", ddmm, "0003", "", ErrInvalidDate},
		{"two digit year", ddmmyy, "290228", "2028-02-29", nil},
		{"full year", full, "31122025", "2025-12-31", nil},
		{"full year bad day", full, "31042026", "", ErrInvalidDate},
		{"date with star", full, "3112*025", "", ErrInvalidDate},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := v.Check(tt.spec, tt.input, asOf)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.String())
			assert.Equal(t, tt.input, got.Raw)
		})
	}
}

func TestCheckOutOfRangeCarriesBounds(t *testing.T) {
	v := New("1", "2")
	_, err := v.Check(questions.Spec{Type: questions.TypeBounded, Min: 3, Max: 10}, "11", asOf)
	var oor *OutOfRangeError
	require.True(t, errors.As(err, &oor))
	assert.Equal(t, 3, oor.Min)
	assert.Equal(t, 10, oor.Max)
	assert.Equal(t, 11, oor.Got)
}

func TestLabels(t *testing.T) {
	v := New("1", "2")
	val, err := v.Check(questions.Spec{Type: questions.TypeChoice, Options: questions.OptionSet{{Code: "1", Label: "Class trip", ID: "trip"}}}, "1", asOf)
	require.NoError(t, err)
	assert.Equal(t, "Class trip", val.Label())

	val, err = v.Check(questions.Spec{Type: questions.TypeDate}, "0103", asOf)
	require.NoError(t, err)
	assert.Equal(t, "1 March 2026", val.Label())

	val, err = v.Check(questions.Spec{Type: questions.TypeYesNo}, "2", asOf)
	require.NoError(t, err)
	assert.Equal(t, "no", val.Label())
}

func TestUnsupportedType(t *testing.T) {
	_, err := New("1", "2").Check(questions.Spec{Type: "voice"}, "1", asOf)
	assert.Error(t, err)
}
