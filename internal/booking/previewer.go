package booking

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/example/machine-booker/internal/upstream"
)

type PreviewClient interface {
	PreviewInvoice(ctx context.Context, items []upstream.PreviewItem) (*upstream.InvoicePreview, error)
}

// Previewer asks upstream to price a booking without committing it.
type Previewer struct {
	client   PreviewClient
	resource Resource
}

func NewPreviewer(client PreviewClient, resource Resource) *Previewer {
	return &Previewer{client: client, resource: resource}
}

type previewKind int

const (
	previewAccepted previewKind = iota
	previewRejected
	previewMissing
)

type previewResult struct {
	kind    previewKind
	preview *upstream.InvoicePreview
}

// Preview returns nil when the booking may proceed, or the rejection.
// A 401 and transport failures are returned as errors.
func (p *Previewer) Preview(ctx context.Context, t Timing, uniqueID string) (*Response, error) {
	item := upstream.PreviewItem{
		Type: "booking",
		Booking: upstream.PreviewBooking{
			ResourceID: p.resource.ID,
			FromTime:   t.Start.UTC().Format(time.RFC3339),
			ToTime:     t.End.UTC().Format(time.RFC3339),
			CoworkerID: p.resource.CoworkerID,
			ChargeNow:  true,
			UniqueID:   uniqueID,
		},
	}
	res, err := p.call(ctx, item)
	if err != nil {
		return nil, err
	}
	return res.response(), nil
}

func (p *Previewer) call(ctx context.Context, item upstream.PreviewItem) (previewResult, error) {
	preview, err := p.client.PreviewInvoice(ctx, []upstream.PreviewItem{item})
	if err == nil {
		if preview == nil {
			return previewResult{kind: previewMissing}, nil
		}
		return previewResult{kind: previewAccepted, preview: preview}, nil
	}
	he, ok := upstream.AsHTTPError(err)
	if !ok || upstream.IsUnauthorized(err) {
		return previewResult{}, err
	}
	if strings.TrimSpace(string(he.Body)) == "" {
		return previewResult{kind: previewMissing}, nil
	}
	var parsed upstream.InvoicePreview
	if json.Unmarshal(he.Body, &parsed) != nil {
		return previewResult{kind: previewMissing}, nil
	}
	return previewResult{kind: previewRejected, preview: &parsed}, nil
}

func (r previewResult) response() *Response {
	if r.kind == previewMissing || r.preview == nil {
		return failure("Booking preview failed.", "Unable to validate the booking.")
	}
	if errs := previewErrors(r.preview); len(errs) > 0 {
		return failure(orDefault(r.preview.Message, "Booking is not available."), errs...)
	}
	if r.preview.WasSuccessful != nil && !*r.preview.WasSuccessful {
		return failure(orDefault(r.preview.Message, "Booking preview failed."))
	}
	return nil
}

func previewErrors(p *upstream.InvoicePreview) []string {
	var out []string
	for _, e := range p.Errors {
		switch {
		case strings.TrimSpace(e.Message) != "":
			out = append(out, e.Message)
		case strings.TrimSpace(e.PropertyName) != "":
			out = append(out, e.PropertyName)
		}
	}
	return out
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}
