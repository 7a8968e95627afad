package callers

import (
	"context"
	"errors"
	"testing"

	pgx "github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	assert.Equal(t, "972501234567", Normalize("+972 (50) 123-4567"))
	assert.Equal(t, "", Normalize("anonymous"))
}

func TestMemoryDirectory(t *testing.T) {
	d := NewMemoryDirectory(map[string]Subject{"+972-50-1234567": {ID: "t-1", Name: "Dana"}})

	s, err := d.Resolve(context.Background(), "972501234567")
	require.NoError(t, err)
	assert.Equal(t, "t-1", s.ID)

	_, err = d.Resolve(context.Background(), "972500000000")
	assert.ErrorIs(t, err, ErrUnknownCaller)

	_, err = d.Resolve(context.Background(), "")
	assert.ErrorIs(t, err, ErrUnknownCaller)

	d.Add("972500000000", Subject{ID: "t-2", Name: "Avi"})
	s, err = d.Resolve(context.Background(), "972500000000")
	require.NoError(t, err)
	assert.Equal(t, "Avi", s.Name)
}

func TestPostgresDirectory(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	d := NewPostgresDirectory(mock)

	mock.ExpectQuery("FROM subjects").WithArgs("972501234567").
		WillReturnRows(pgxmock.NewRows([]string{"id", "display_name"}).AddRow("t-1", "Dana"))
	s, err := d.Resolve(context.Background(), "+972501234567")
	require.NoError(t, err)
	assert.Equal(t, Subject{ID: "t-1", Name: "Dana"}, s)

	mock.ExpectQuery("FROM subjects").WithArgs("1").WillReturnError(pgx.ErrNoRows)
	_, err = d.Resolve(context.Background(), "1")
	assert.ErrorIs(t, err, ErrUnknownCaller)

	mock.ExpectQuery("FROM subjects").WithArgs("2").WillReturnError(errors.New("conn reset"))
	_, err = d.Resolve(context.Background(), "2")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnknownCaller)

	require.NoError(t, mock.ExpectationsWereMet())
}
