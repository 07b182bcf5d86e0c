package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/example/machine-booker/internal/civil"
	"github.com/example/machine-booker/internal/db"
)

const jobColumns = `id,start_date,day_of_week,start_time,end_time,status,last_attempt_at,last_booked_date,created_at,updated_at`

// PGStore keeps jobs in postgres.
type PGStore struct {
	db     *db.DB
	logger *slog.Logger
}

func NewPGStore(d *db.DB, logger *slog.Logger) *PGStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &PGStore{db: d, logger: logger}
}

func (r *PGStore) List(ctx context.Context) []Job {
	rows, err := r.db.Query(ctx, `SELECT `+jobColumns+` FROM auto_booking_jobs ORDER BY created_at ASC`)
	if err != nil {
		r.logger.WarnContext(ctx, "list jobs failed", slog.Any("err", err))
		return []Job{}
	}
	defer rows.Close()

	out := []Job{}
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			r.logger.WarnContext(ctx, "scan job failed", slog.Any("err", err))
			return []Job{}
		}
		out = append(out, j)
	}
	if err := rows.Err(); err != nil {
		r.logger.WarnContext(ctx, "list jobs failed", slog.Any("err", err))
		return []Job{}
	}
	return out
}

func (r *PGStore) Find(ctx context.Context, id uuid.UUID) (Job, bool) {
	j, err := scanJob(r.db.QueryRow(ctx, `SELECT `+jobColumns+` FROM auto_booking_jobs WHERE id=$1`, id.String()))
	if err != nil {
		if err = db.WrapNotFound(err); !db.IsNotFound(err) {
			r.logger.WarnContext(ctx, "find job failed", slog.String("job_id", id.String()), slog.Any("err", err))
		}
		return Job{}, false
	}
	return j, true
}

func (r *PGStore) Add(ctx context.Context, j Job) Job {
	err := r.db.Exec(ctx, `
INSERT INTO auto_booking_jobs(`+jobColumns+`)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`, jobArgs(j)...)
	if err != nil {
		r.logger.WarnContext(ctx, "insert job failed", slog.String("job_id", j.ID.String()), slog.Any("err", err))
	}
	return j
}

func (r *PGStore) Update(ctx context.Context, j Job) (Job, bool) {
	n, err := r.db.ExecAffected(ctx, `
UPDATE auto_booking_jobs
SET start_date=$2, day_of_week=$3, start_time=$4, end_time=$5, status=$6,
    last_attempt_at=$7, last_booked_date=$8, created_at=$9, updated_at=$10
WHERE id=$1`, jobArgs(j)...)
	if err != nil {
		r.logger.WarnContext(ctx, "update job failed", slog.String("job_id", j.ID.String()), slog.Any("err", err))
		return Job{}, false
	}
	if n == 0 {
		return Job{}, false
	}
	return j, true
}

func (r *PGStore) Delete(ctx context.Context, id uuid.UUID) bool {
	n, err := r.db.ExecAffected(ctx, `DELETE FROM auto_booking_jobs WHERE id=$1`, id.String())
	if err != nil {
		r.logger.WarnContext(ctx, "delete job failed", slog.String("job_id", id.String()), slog.Any("err", err))
		return false
	}
	return n > 0
}

func jobArgs(j Job) []any {
	var lastBooked *time.Time
	if j.LastBookedDate != nil {
		t := j.LastBookedDate.At(0).AsUTC()
		lastBooked = &t
	}
	return []any{
		j.ID.String(),
		j.StartDate.At(0).AsUTC(),
		j.DayOfWeek.String(),
		j.StartTime.String(),
		j.EndTime.String(),
		string(j.Status),
		j.LastAttemptAt,
		lastBooked,
		j.CreatedAt,
		j.UpdatedAt,
	}
}

func scanJob(row db.Row) (Job, error) {
	var (
		j                       Job
		id, day, start, end, st string
		startDate               time.Time
		lastAttempt, lastBooked *time.Time
	)
	if err := row.Scan(&id, &startDate, &day, &start, &end, &st, &lastAttempt, &lastBooked, &j.CreatedAt, &j.UpdatedAt); err != nil {
		return Job{}, err
	}

	var err error
	if j.ID, err = uuid.Parse(id); err != nil {
		return Job{}, err
	}
	j.StartDate = civil.DateOf(startDate)
	if err = j.DayOfWeek.UnmarshalText([]byte(day)); err != nil {
		return Job{}, err
	}
	if j.StartTime, err = civil.ParseTimeOfDay(start); err != nil {
		return Job{}, err
	}
	if j.EndTime, err = civil.ParseTimeOfDay(end); err != nil {
		return Job{}, err
	}
	if j.Status, err = ParseStatus(st); err != nil {
		return Job{}, err
	}
	j.LastAttemptAt = lastAttempt
	if lastBooked != nil {
		d := civil.DateOf(*lastBooked)
		j.LastBookedDate = &d
	}
	return j, nil
}
