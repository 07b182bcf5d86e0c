package booking

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/machine-booker/internal/civil"
)

func TestDefaultSchedule(t *testing.T) {
	s := DefaultSchedule()
	assert.Equal(t, Window{Start: civil.NewTimeOfDay(8, 0), End: civil.NewTimeOfDay(16, 0)}, s.WindowFor(time.Wednesday))
	assert.Equal(t, Window{Start: civil.NewTimeOfDay(9, 0), End: civil.NewTimeOfDay(17, 0)}, s.WindowFor(time.Saturday))
	assert.True(t, s.WindowFor(time.Sunday).Closed())
	assert.Equal(t, "08:00-16:00 Mon-Fri and 09:00-17:00 Sat", s.Describe())
}

func TestWindowContains(t *testing.T) {
	w := DefaultSchedule().WindowFor(time.Monday)
	assert.True(t, w.Contains(civil.NewTimeOfDay(8, 0)))
	assert.True(t, w.Contains(civil.NewTimeOfDay(15, 59)))
	assert.False(t, w.Contains(civil.NewTimeOfDay(16, 0)))
	assert.False(t, w.Contains(civil.NewTimeOfDay(7, 59)))
}

func TestLoadSchedule(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hours.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
friday:   {start: "10:00", end: "14:00"}
saturday: {closed: true}
sunday:   {start: "12:00", end: "18:00"}
`), 0o600))

	s, err := LoadSchedule(path)
	require.NoError(t, err)
	assert.Equal(t, Window{Start: civil.NewTimeOfDay(10, 0), End: civil.NewTimeOfDay(14, 0)}, s.WindowFor(time.Friday))
	assert.True(t, s.WindowFor(time.Saturday).Closed())
	assert.Equal(t, "08:00-16:00 Mon-Thu, 10:00-14:00 Fri and 12:00-18:00 Sun", s.Describe())
}

func TestParseScheduleErrors(t *testing.T) {
	for name, in := range map[string]string{
		"unknown day":  `funday: {start: "08:00", end: "09:00"}`,
		"bad time":     `monday: {start: "8am", end: "09:00"}`,
		"end <= start": `monday: {start: "10:00", end: "09:00"}`,
		"not yaml":     `[`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ParseSchedule([]byte(in))
			assert.Error(t, err)
		})
	}
}
