package booking

import (
	"context"
	"time"

	"github.com/example/machine-booker/internal/upstream"
)

type InvoiceClient interface {
	CreateInvoice(ctx context.Context, basket upstream.Basket) error
}

// Submitter commits a previewed booking.
type Submitter struct {
	client   InvoiceClient
	resource Resource
}

func NewSubmitter(client InvoiceClient, resource Resource) *Submitter {
	return &Submitter{client: client, resource: resource}
}

// Submit books t under uniqueID. Upstream reads basket times as wall clock,
// so the local date-times are sent labelled as UTC.
func (s *Submitter) Submit(ctx context.Context, t Timing, uniqueID string) error {
	basket := upstream.Basket{
		Basket: []upstream.BasketItem{{
			Type: "booking",
			Booking: upstream.BasketBooking{
				UniqueID:   uniqueID,
				FromTime:   t.StartDateTime.AsUTC().Format(time.RFC3339),
				ToTime:     t.EndDateTime.AsUTC().Format(time.RFC3339),
				ResourceID: s.resource.ID,
				CoworkerID: s.resource.CoworkerID,
			},
		}},
	}
	return s.client.CreateInvoice(ctx, basket)
}
