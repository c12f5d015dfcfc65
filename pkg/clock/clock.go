package clock

import (
	"sync"
	"time"
)

// DateLayout is the calendar-day format used across the ledger.
const DateLayout = "2006-01-02"

// Clock reports the current instant in the school's calendar location.
type Clock interface {
	Now() time.Time
	Location() *time.Location
}

// Today returns the current calendar day of c formatted with DateLayout.
func Today(c Clock) string {
	return c.Now().In(c.Location()).Format(DateLayout)
}

// ParseDate parses a YYYY-MM-DD value as midnight in the clock's location.
func ParseDate(c Clock, value string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, value, c.Location())
}

type systemClock struct {
	loc *time.Location
}

// New returns a wall clock bound to the named IANA location. An empty or
// unknown name falls back to UTC and reports the load error.
func New(timezone string) (Clock, error) {
	if timezone == "" {
		return systemClock{loc: time.UTC}, nil
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return systemClock{loc: time.UTC}, err
	}
	return systemClock{loc: loc}, nil
}

func (c systemClock) Now() time.Time            { return time.Now().In(c.loc) }
func (c systemClock) Location() *time.Location { return c.loc }

// Fixed is a settable clock for tests and replays.
type Fixed struct {
	mu  sync.Mutex
	now time.Time
	loc *time.Location
}

// NewFixed returns a clock frozen at now, reporting now's location.
func NewFixed(now time.Time) *Fixed {
	return &Fixed{now: now, loc: now.Location()}
}

func (f *Fixed) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *Fixed) Location() *time.Location {
	return f.loc
}

// Set moves the clock to t.
func (f *Fixed) Set(t time.Time) {
	f.mu.Lock()
	f.now = t
	f.mu.Unlock()
}

// Advance moves the clock forward by d.
func (f *Fixed) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}
