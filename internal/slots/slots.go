// Package slots suggests call-booking times for qualified leads.
package slots

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Business-hours window for suggested calls, in the provider's location.
const (
	openHour  = 9
	closeHour = 17
)

// DefaultSlotCount is how many suggestions a booking offer carries.
const DefaultSlotCount = 3

// BusinessHoursProvider suggests on-the-hour slots inside business hours,
// starting a couple of hours out so the team has time to prepare.
type BusinessHoursProvider struct {
	now       func() time.Time
	location  *time.Location
	slotCount int
	leadTime  time.Duration
}

// Option configures a BusinessHoursProvider.
type Option func(*BusinessHoursProvider)

// WithClock injects the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(p *BusinessHoursProvider) { p.now = now }
}

// WithLocation sets the time zone slots are computed and phrased in.
func WithLocation(loc *time.Location) Option {
	return func(p *BusinessHoursProvider) { p.location = loc }
}

// WithSlotCount overrides how many slots are suggested.
func WithSlotCount(n int) Option {
	return func(p *BusinessHoursProvider) { p.slotCount = n }
}

// NewBusinessHoursProvider creates a provider suggesting slots in the local
// time zone.
func NewBusinessHoursProvider(opts ...Option) *BusinessHoursProvider {
	p := &BusinessHoursProvider{
		now:       time.Now,
		location:  time.Local,
		slotCount: DefaultSlotCount,
		leadTime:  2 * time.Hour,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// GetAvailableSlots returns the next few on-the-hour business-hours slots,
// phrased for a DM ("tomorrow 10am"). The first slot is at least the lead
// time away.
func (p *BusinessHoursProvider) GetAvailableSlots(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	now := p.now().In(p.location)
	t := now.Add(p.leadTime).Truncate(time.Hour).Add(time.Hour)

	slots := make([]string, 0, p.slotCount)
	for len(slots) < p.slotCount {
		t = nextBusinessHour(t)
		slots = append(slots, phrase(now, t))
		t = t.Add(time.Hour)
	}
	return slots, nil
}

// nextBusinessHour advances t to the next on-the-hour moment inside the
// business-hours window.
func nextBusinessHour(t time.Time) time.Time {
	if t.Hour() < openHour {
		return time.Date(t.Year(), t.Month(), t.Day(), openHour, 0, 0, 0, t.Location())
	}
	if t.Hour() >= closeHour {
		next := t.AddDate(0, 0, 1)
		return time.Date(next.Year(), next.Month(), next.Day(), openHour, 0, 0, 0, t.Location())
	}
	return t
}

// phrase renders a slot the way it would be typed in a DM.
func phrase(now, t time.Time) string {
	day := ""
	switch daysBetween(now, t) {
	case 0:
		day = "today"
	case 1:
		day = "tomorrow"
	default:
		day = strings.ToLower(t.Weekday().String())
	}

	hour := t.Hour()
	suffix := "am"
	if hour >= 12 {
		suffix = "pm"
	}
	display := hour % 12
	if display == 0 {
		display = 12
	}
	return fmt.Sprintf("%s %d%s", day, display, suffix)
}

func daysBetween(a, b time.Time) int {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	start := time.Date(ay, am, ad, 0, 0, 0, 0, a.Location())
	end := time.Date(by, bm, bd, 0, 0, 0, 0, b.Location())
	return int(end.Sub(start) / (24 * time.Hour))
}
