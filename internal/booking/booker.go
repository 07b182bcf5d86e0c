package booking

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/example/machine-booker/internal/metrics"
	"github.com/example/machine-booker/internal/upstream"
)

// TokenControl is the part of the credential manager the scheduled path uses
// to switch to fallback credentials.
type TokenControl interface {
	ForceFallbackNext()
	InvalidateToken(ctx context.Context)
}

// Booker runs validate, preview and submit for one booking.
type Booker struct {
	validator *Validator
	previewer *Previewer
	submitter *Submitter
	tokens    TokenControl
	newID     func() string
	logger    *slog.Logger
}

func NewBooker(v *Validator, p *Previewer, s *Submitter, tokens TokenControl, logger *slog.Logger) *Booker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Booker{
		validator: v,
		previewer: p,
		submitter: s,
		tokens:    tokens,
		newID:     func() string { return uuid.NewString() },
		logger:    logger,
	}
}

// Book serves interactive requests. Upstream HTTP rejections are turned into
// a failed Response carrying the upstream body.
func (b *Booker) Book(ctx context.Context, req Request) (*Response, error) {
	res, err := b.run(ctx, req)
	if err != nil {
		he, ok := upstream.AsHTTPError(err)
		if !ok {
			metrics.Bookings.WithLabelValues("interactive", metrics.OutcomeError).Inc()
			return nil, err
		}
		b.logger.WarnContext(ctx, "booking rejected by upstream", slog.Int("status", he.Status))
		res = failure(orDefault(string(he.Body), "Booking failed."))
	}
	record("interactive", res)
	return res, nil
}

// BookScheduled serves unattended jobs. When upstream answers 401 the whole
// sequence is retried once on fallback credentials; ctx must allow fallback
// for the switch to take effect.
func (b *Booker) BookScheduled(ctx context.Context, req Request) (*Response, error) {
	res, err := b.run(ctx, req)
	if err != nil && upstream.IsUnauthorized(err) {
		b.logger.InfoContext(ctx, "upstream rejected token, retrying with fallback credentials")
		b.tokens.ForceFallbackNext()
		b.tokens.InvalidateToken(ctx)
		res, err = b.run(ctx, req)
	}
	if err != nil {
		metrics.Bookings.WithLabelValues("scheduled", metrics.OutcomeError).Inc()
		return nil, err
	}
	record("scheduled", res)
	return res, nil
}

func (b *Booker) run(ctx context.Context, req Request) (*Response, error) {
	timing, rejection, err := b.validator.Validate(ctx, req)
	if err != nil {
		return nil, err
	}
	if rejection != nil {
		return rejection, nil
	}

	uniqueID := b.newID()
	rejection, err = b.previewer.Preview(ctx, timing, uniqueID)
	if err != nil {
		return nil, err
	}
	if rejection != nil {
		return rejection, nil
	}

	if err := b.submitter.Submit(ctx, timing, uniqueID); err != nil {
		return nil, err
	}
	b.logger.InfoContext(ctx, "booking confirmed",
		slog.String("date", timing.Date.String()),
		slog.String("start", timing.StartTime.String()),
		slog.Int("duration_minutes", timing.DurationMinutes),
		slog.String("unique_id", uniqueID),
	)
	return confirmed(), nil
}

func record(mode string, res *Response) {
	outcome := metrics.OutcomeRejected
	if res.Success {
		outcome = metrics.OutcomeSuccess
	}
	metrics.Bookings.WithLabelValues(mode, outcome).Inc()
}
