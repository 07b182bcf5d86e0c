package booking

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/machine-booker/internal/civil"
	"github.com/example/machine-booker/internal/upstream"
)

func TestAvailabilityForFiltersToWorkingWindow(t *testing.T) {
	tuesday := civil.Date{Year: 2026, Month: time.October, Day: 20}
	grid := gridFor(tuesday, "09:00")
	other := tuesday.AddDays(1).At(civil.NewTimeOfDay(10, 0))
	grid.AvailableSlots = append(grid.AvailableSlots, upstream.AvailableSlot{DateTime: &other, Available: true})
	h := newHarness(monday, grid)

	got, err := h.gateway.AvailabilityFor(context.Background(), tuesday)
	require.NoError(t, err)
	assert.Equal(t, "Embroidery Machine X", got.ResourceName)
	assert.Equal(t, tuesday, got.Date)
	require.Len(t, got.Slots, 16)
	assert.Equal(t, Slot{Time: "08:00", Available: true}, got.Slots[0])
	assert.Equal(t, Slot{Time: "09:00", Available: false, Booked: true}, got.Slots[2])
	assert.Equal(t, "15:30", got.Slots[15].Time)
}

func TestAvailabilityForIsIdempotent(t *testing.T) {
	tuesday := civil.Date{Year: 2026, Month: time.October, Day: 20}
	h := newHarness(monday, gridFor(tuesday, "11:00"))

	first, err := h.gateway.AvailabilityFor(context.Background(), tuesday)
	require.NoError(t, err)
	second, err := h.gateway.AvailabilityFor(context.Background(), tuesday)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 2, h.platform.gridCalls)
}

func TestAvailabilityForRejectsDates(t *testing.T) {
	h := newHarness(monday, nil)

	_, err := h.gateway.AvailabilityFor(context.Background(), civil.Date{Year: 2026, Month: time.October, Day: 18})
	var de *DateError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, "Date must be today or later.", de.Message)

	_, err = h.gateway.AvailabilityFor(context.Background(), civil.Date{Year: 2026, Month: time.November, Day: 4})
	require.ErrorAs(t, err, &de)
	assert.Equal(t, "Date is more than 360 hours in the future.", de.Message)
	assert.Zero(t, h.platform.gridCalls)
}

func TestAvailabilityForDefaultsResourceName(t *testing.T) {
	h := newHarness(monday, &upstream.AvailabilityResponse{})
	got, err := h.gateway.AvailabilityFor(context.Background(), civil.Date{Year: 2026, Month: time.October, Day: 19})
	require.NoError(t, err)
	assert.Equal(t, DefaultResourceName, got.ResourceName)
	assert.NotNil(t, got.Slots)
	assert.Empty(t, got.Slots)
}

func TestAvailabilityContextSortsAndKeepsFullDay(t *testing.T) {
	tuesday := civil.Date{Year: 2026, Month: time.October, Day: 20}
	grid := gridFor(tuesday)
	// reverse to prove sorting
	for i, j := 0, len(grid.AvailableSlots)-1; i < j; i, j = i+1, j-1 {
		grid.AvailableSlots[i], grid.AvailableSlots[j] = grid.AvailableSlots[j], grid.AvailableSlots[i]
	}
	h := newHarness(monday, grid)

	got, err := h.gateway.AvailabilityContext(context.Background(), tuesday)
	require.NoError(t, err)
	assert.Equal(t, 30, got.IntervalMinutes)
	require.Len(t, got.Slots, 22)
	assert.Equal(t, civil.NewTimeOfDay(7, 0), got.Slots[0].DateTime.Time)
	assert.Equal(t, civil.NewTimeOfDay(17, 30), got.Slots[21].DateTime.Time)
}

func TestInferInterval(t *testing.T) {
	d := civil.Date{Year: 2026, Month: time.October, Day: 20}
	slot := func(h, m int) upstream.AvailableSlot {
		dt := d.At(civil.NewTimeOfDay(h, m))
		return upstream.AvailableSlot{DateTime: &dt}
	}

	assert.Equal(t, 30, inferInterval(nil))
	assert.Equal(t, 30, inferInterval([]upstream.AvailableSlot{slot(9, 0)}))
	assert.Equal(t, 15, inferInterval([]upstream.AvailableSlot{slot(9, 0), slot(9, 15)}))
	assert.Equal(t, 30, inferInterval([]upstream.AvailableSlot{slot(9, 0), slot(9, 0)}))
}
