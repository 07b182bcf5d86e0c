package booking

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/example/machine-booker/internal/civil"
)

// Window is the bookable part of a day: start inclusive, end exclusive.
// A window with End <= Start means the day is closed.
type Window struct {
	Start civil.TimeOfDay
	End   civil.TimeOfDay
}

func (w Window) Closed() bool { return w.End <= w.Start }

// Contains reports whether t lies in [Start, End).
func (w Window) Contains(t civil.TimeOfDay) bool {
	return t >= w.Start && t < w.End
}

// Covers reports whether [start, end] fits inside the window.
func (w Window) Covers(start, end civil.TimeOfDay) bool {
	return !w.Closed() && start >= w.Start && end <= w.End
}

// WorkSchedule holds one window per weekday.
type WorkSchedule struct {
	days [7]Window
}

var (
	weekdayWindow  = Window{Start: civil.NewTimeOfDay(8, 0), End: civil.NewTimeOfDay(16, 0)}
	saturdayWindow = Window{Start: civil.NewTimeOfDay(9, 0), End: civil.NewTimeOfDay(17, 0)}
)

// DefaultSchedule is Mon-Fri 08:00-16:00, Sat 09:00-17:00, Sunday closed.
func DefaultSchedule() WorkSchedule {
	var s WorkSchedule
	for d := time.Monday; d <= time.Friday; d++ {
		s.days[d] = weekdayWindow
	}
	s.days[time.Saturday] = saturdayWindow
	return s
}

func (s WorkSchedule) WindowFor(d time.Weekday) Window {
	return s.days[d]
}

// Describe renders the open days, e.g. "08:00-16:00 Mon-Fri and 09:00-17:00 Sat".
func (s WorkSchedule) Describe() string {
	order := []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday, time.Saturday, time.Sunday}
	var parts []string
	for i := 0; i < len(order); {
		w := s.days[order[i]]
		j := i
		for j+1 < len(order) && s.days[order[j+1]] == w {
			j++
		}
		if !w.Closed() {
			days := order[i].String()[:3]
			if j > i {
				days += "-" + order[j].String()[:3]
			}
			parts = append(parts, fmt.Sprintf("%s-%s %s", w.Start, w.End, days))
		}
		i = j + 1
	}
	switch len(parts) {
	case 0:
		return "closed every day"
	case 1:
		return parts[0]
	default:
		return strings.Join(parts[:len(parts)-1], ", ") + " and " + parts[len(parts)-1]
	}
}

type windowFile struct {
	Start  string `yaml:"start"`
	End    string `yaml:"end"`
	Closed bool   `yaml:"closed"`
}

// LoadSchedule reads a YAML file keyed by weekday name:
//
//	monday:   {start: "08:00", end: "16:00"}
//	saturday: {start: "09:00", end: "17:00"}
//	sunday:   {closed: true}
//
// Days left out keep their default window.
func LoadSchedule(path string) (WorkSchedule, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return WorkSchedule{}, fmt.Errorf("read work schedule: %w", err)
	}
	return ParseSchedule(b)
}

func ParseSchedule(b []byte) (WorkSchedule, error) {
	var raw map[string]windowFile
	if err := yaml.Unmarshal(b, &raw); err != nil {
		return WorkSchedule{}, fmt.Errorf("parse work schedule: %w", err)
	}
	s := DefaultSchedule()
	for name, wf := range raw {
		var day civil.Weekday
		if err := day.UnmarshalText([]byte(name)); err != nil {
			return WorkSchedule{}, fmt.Errorf("work schedule: %w", err)
		}
		if wf.Closed {
			s.days[day] = Window{}
			continue
		}
		start, err := civil.ParseTimeOfDay(wf.Start)
		if err != nil {
			return WorkSchedule{}, fmt.Errorf("work schedule %s start: %w", name, err)
		}
		end, err := civil.ParseTimeOfDay(wf.End)
		if err != nil {
			return WorkSchedule{}, fmt.Errorf("work schedule %s end: %w", name, err)
		}
		if end <= start {
			return WorkSchedule{}, fmt.Errorf("work schedule %s: end must be after start", name)
		}
		s.days[day] = Window{Start: start, End: end}
	}
	return s, nil
}
