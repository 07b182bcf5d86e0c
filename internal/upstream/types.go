package upstream

import "github.com/example/machine-booker/internal/civil"

// AvailabilityResponse is the availability grid of one resource.
type AvailabilityResponse struct {
	Resource       *Resource       `json:"Resource"`
	AvailableSlots []AvailableSlot `json:"AvailableSlots"`
}

type Resource struct {
	ID            int64  `json:"Id"`
	Name          string `json:"Name"`
	IntervalLimit *int   `json:"IntervalLimit"`
}

// AvailableSlot is one cell of the grid. DateTime is a naive local value.
type AvailableSlot struct {
	DateTime    *civil.DateTime `json:"DateTime"`
	Time        string          `json:"Time"`
	Available   bool            `json:"Available"`
	Booked      bool            `json:"Booked"`
	Capacity    int             `json:"Capacity"`
	BookedCount int             `json:"BookedCount"`
}

// Free reports whether the slot can be booked.
func (s AvailableSlot) Free() bool { return s.Available && !s.Booked }

// PreviewItem is one entry of an invoice preview request.
type PreviewItem struct {
	Type    string         `json:"Type"`
	Booking PreviewBooking `json:"Booking"`
}

type PreviewBooking struct {
	ID         int64  `json:"Id"`
	ResourceID int64  `json:"ResourceId"`
	FromTime   string `json:"FromTime"`
	ToTime     string `json:"ToTime"`
	CoworkerID int64  `json:"CoworkerId"`
	ChargeNow  bool   `json:"ChargeNow"`
	UniqueID   string `json:"UniqueId"`
}

// InvoicePreview is the preview reply. WasSuccessful is nil when absent.
type InvoicePreview struct {
	Errors        []PreviewError `json:"Errors"`
	Message       string         `json:"Message"`
	WasSuccessful *bool          `json:"WasSuccessful"`
}

type PreviewError struct {
	Message      string `json:"Message"`
	PropertyName string `json:"PropertyName"`
}

// Basket is the invoice creation payload.
type Basket struct {
	Basket       []BasketItem `json:"basket"`
	DiscountCode *string      `json:"discountCode"`
}

type BasketItem struct {
	Type    string        `json:"Type"`
	Booking BasketBooking `json:"Booking"`
}

type BasketBooking struct {
	UniqueID   string `json:"UniqueId"`
	FromTime   string `json:"FromTime"`
	ToTime     string `json:"ToTime"`
	ResourceID int64  `json:"ResourceId"`
	CoworkerID int64  `json:"CoworkerId"`
}

// MyBookingsResponse lists the bookings of the authenticated user.
type MyBookingsResponse struct {
	MyBookings []MyBooking `json:"MyBookings"`
}

type MyBooking struct {
	ID            int64           `json:"Id"`
	BookingNumber *int64          `json:"BookingNumber"`
	FromTime      *civil.DateTime `json:"FromTime"`
	ToTime        *civil.DateTime `json:"ToTime"`
	CreatedOn     *civil.DateTime `json:"CreatedOn"`
	IsCancelled   *bool           `json:"IsCancelled"`
}

type cancelRequest struct {
	CancellationReason        string  `json:"cancellationReason"`
	CancellationReasonDetails *string `json:"cancellationReasonDetails"`
}

// TokenGrant is the outcome of a password grant.
type TokenGrant struct {
	AccessToken string
	// ExpiresIn is zero when upstream did not say.
	ExpiresIn int64
}

type tokenBody struct {
	AccessToken      string  `json:"access_token"`
	AccessTokenCamel string  `json:"accessToken"`
	Token            string  `json:"token"`
	ExpiresIn        float64 `json:"expires_in"`
	ExpiresInCamel   float64 `json:"expiresIn"`
}
