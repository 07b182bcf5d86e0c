package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

const previewShape = "Id,Currency,UsedExtraServices,UsedBookingCredits,TotalAmount,TaxAmount,CoworkerProductName," +
	"LinesRaw.DiscountCode,LinesRaw.DiscountAmount,LinesRaw.BookingUniqueId,LinesRaw.UnitPrice,LinesRaw.SubTotal," +
	"LinesRaw.TotalAmount,LinesRaw.TaxAmount,LinesRaw.Description,LinesRaw.CoworkerProductName," +
	"Errors,Message,WasSuccessful,Status"

// CheckAvailability loads the availability grid of one resource.
// startTime is an ISO local date-time such as 2025-01-02T00:00:00.
func (c *Client) CheckAvailability(ctx context.Context, days int, guid, startTime string, interval int) (*AvailabilityResponse, error) {
	q := url.Values{}
	q.Set("days", strconv.Itoa(days))
	q.Set("guid", guid)
	q.Set("startTime", startTime)
	q.Set("interval", strconv.Itoa(interval))

	r, err := c.authorized(ctx, http.MethodPost, "/en/bookings/GetAvailabilityAtWithUser", q, []byte("{}"))
	if err != nil {
		return nil, err
	}
	var out AvailabilityResponse
	if err := decode(r.body, &out); err != nil {
		return nil, fmt.Errorf("decode availability: %w", err)
	}
	return &out, nil
}

// PreviewInvoice asks upstream to price the given items without booking them.
// Rejections are returned as *HTTPError; their bodies usually hold an InvoicePreview.
func (c *Client) PreviewInvoice(ctx context.Context, items []PreviewItem) (*InvoicePreview, error) {
	body, err := json.Marshal(items)
	if err != nil {
		return nil, err
	}
	q := url.Values{}
	q.Set("createZeroValueInvoice", "true")
	q.Set("_shape", previewShape)

	r, err := c.authorized(ctx, http.MethodPost, "/en/basket/PreviewInvoice", q, body)
	if err != nil {
		return nil, err
	}
	var out InvoicePreview
	if err := decode(r.body, &out); err != nil {
		return nil, fmt.Errorf("decode invoice preview: %w", err)
	}
	return &out, nil
}

// CreateInvoice submits a basket. Upstream books on success.
func (c *Client) CreateInvoice(ctx context.Context, basket Basket) error {
	body, err := json.Marshal(basket)
	if err != nil {
		return err
	}
	_, err = c.authorized(ctx, http.MethodPost, "/en/basket/CreateInvoice", nil, body)
	return err
}

// MyBookings lists bookings of the authenticated user.
func (c *Client) MyBookings(ctx context.Context, depth int) (*MyBookingsResponse, error) {
	q := url.Values{}
	q.Set("_depth", strconv.Itoa(depth))
	r, err := c.authorized(ctx, http.MethodGet, "/en/bookings/my", q, nil)
	if err != nil {
		return nil, err
	}
	var out MyBookingsResponse
	if err := decode(r.body, &out); err != nil {
		return nil, fmt.Errorf("decode bookings: %w", err)
	}
	return &out, nil
}

// CancelBooking cancels one booking of the authenticated user.
func (c *Client) CancelBooking(ctx context.Context, id int64) error {
	body, err := json.Marshal(cancelRequest{CancellationReason: "NoLongerNeeded"})
	if err != nil {
		return err
	}
	_, err = c.authorized(ctx, http.MethodPost, "/en/bookings/deletejson/"+strconv.FormatInt(id, 10), nil, body)
	return err
}

// decode tolerates empty bodies, leaving v at its zero value.
func decode(b []byte, v any) error {
	if len(b) == 0 {
		return nil
	}
	return json.Unmarshal(b, v)
}
