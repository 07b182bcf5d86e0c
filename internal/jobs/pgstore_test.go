package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/machine-booker/internal/civil"
	"github.com/example/machine-booker/internal/db"
	"github.com/example/machine-booker/internal/logging"
)

var jobRowColumns = []string{"id", "start_date", "day_of_week", "start_time", "end_time", "status", "last_attempt_at", "last_booked_date", "created_at", "updated_at"}

func newMockStore(t *testing.T) (*PGStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewPGStore(db.New(mock), logging.Discard()), mock
}

func TestPGStoreList(t *testing.T) {
	s, mock := newMockStore(t)
	j := sampleJob()
	attempted := created.Add(time.Hour)
	booked := time.Date(2026, time.October, 20, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT .* FROM auto_booking_jobs ORDER BY created_at").
		WillReturnRows(pgxmock.NewRows(jobRowColumns).
			AddRow(j.ID.String(), time.Date(2026, time.October, 20, 0, 0, 0, 0, time.UTC), "TUESDAY", "10:00", "11:30", "ACTIVE", &attempted, &booked, created, created))

	got := s.List(context.Background())
	require.Len(t, got, 1)
	assert.Equal(t, j.ID, got[0].ID)
	assert.Equal(t, civil.Date{Year: 2026, Month: time.October, Day: 20}, got[0].StartDate)
	assert.Equal(t, civil.Weekday(time.Tuesday), got[0].DayOfWeek)
	assert.Equal(t, civil.NewTimeOfDay(11, 30), got[0].EndTime)
	require.NotNil(t, got[0].LastAttemptAt)
	assert.True(t, got[0].BookedOn(civil.Date{Year: 2026, Month: time.October, Day: 20}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPGStoreListErrorIsSwallowed(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery("SELECT .* FROM auto_booking_jobs").WillReturnError(errors.New("connection refused"))

	assert.Empty(t, s.List(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPGStoreFind(t *testing.T) {
	s, mock := newMockStore(t)
	j := sampleJob()

	mock.ExpectQuery("SELECT .* FROM auto_booking_jobs WHERE id").
		WithArgs(j.ID.String()).
		WillReturnRows(pgxmock.NewRows(jobRowColumns).
			AddRow(j.ID.String(), time.Date(2026, time.October, 20, 0, 0, 0, 0, time.UTC), "TUESDAY", "10:00", "11:30", "PAUSED", (*time.Time)(nil), (*time.Time)(nil), created, created))

	got, ok := s.Find(context.Background(), j.ID)
	require.True(t, ok)
	assert.Equal(t, StatusPaused, got.Status)
	assert.Nil(t, got.LastAttemptAt)
	assert.Nil(t, got.LastBookedDate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPGStoreFindMissing(t *testing.T) {
	s, mock := newMockStore(t)
	j := sampleJob()
	mock.ExpectQuery("SELECT .* FROM auto_booking_jobs WHERE id").
		WithArgs(j.ID.String()).
		WillReturnError(pgx.ErrNoRows)

	_, ok := s.Find(context.Background(), j.ID)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPGStoreAdd(t *testing.T) {
	s, mock := newMockStore(t)
	j := sampleJob()

	mock.ExpectExec("INSERT INTO auto_booking_jobs").
		WithArgs(j.ID.String(), pgxmock.AnyArg(), "TUESDAY", "10:00", "11:30", "ACTIVE",
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	assert.Equal(t, j, s.Add(context.Background(), j))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPGStoreUpdateAndDelete(t *testing.T) {
	s, mock := newMockStore(t)
	j := sampleJob()

	mock.ExpectExec("UPDATE auto_booking_jobs").
		WithArgs(j.ID.String(), pgxmock.AnyArg(), "TUESDAY", "10:00", "11:30", "PAUSED",
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("UPDATE auto_booking_jobs").
		WithArgs(j.ID.String(), pgxmock.AnyArg(), "TUESDAY", "10:00", "11:30", "ACTIVE",
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectExec("DELETE FROM auto_booking_jobs").
		WithArgs(j.ID.String()).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectExec("DELETE FROM auto_booking_jobs").
		WithArgs(j.ID.String()).
		WillReturnError(errors.New("connection reset"))

	ctx := context.Background()
	got, ok := s.Update(ctx, j.WithStatus(StatusPaused, created))
	require.True(t, ok)
	assert.Equal(t, StatusPaused, got.Status)

	_, ok = s.Update(ctx, j)
	assert.False(t, ok)

	assert.True(t, s.Delete(ctx, j.ID))
	assert.False(t, s.Delete(ctx, j.ID))
	assert.NoError(t, mock.ExpectationsWereMet())
}
