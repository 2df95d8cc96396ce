// Package slot models the weekly teaching grid: five days of six periods each.
// Everything here is pure arithmetic over (day, period, duration) triples; no
// package in the engine may place an entry outside this grid.
package slot

// Day is a weekday of the teaching week.
type Day string

const (
	Monday    Day = "Mon"
	Tuesday   Day = "Tue"
	Wednesday Day = "Wed"
	Thursday  Day = "Thu"
	Friday    Day = "Fri"
)

// Days lists the teaching week in order.
var Days = []Day{Monday, Tuesday, Wednesday, Thursday, Friday}

const (
	// MinPeriod and MaxPeriod bound the daily grid.
	MinPeriod = 1
	MaxPeriod = 6
	// PeriodsPerDay is the number of periods in a teaching day.
	PeriodsPerDay = MaxPeriod - MinPeriod + 1
)

// labels maps periods to their wall-clock display names. Display only; the
// engine reasons in period numbers.
var labels = map[int]string{
	1: "9-10",
	2: "10-11",
	3: "11-12",
	4: "12-1",
	5: "1-2",
	6: "2-3",
}

// ValidDay reports whether d is a teaching day.
func ValidDay(d Day) bool {
	switch d {
	case Monday, Tuesday, Wednesday, Thursday, Friday:
		return true
	}
	return false
}

// ValidPeriod reports whether p lies on the daily grid.
func ValidPeriod(p int) bool {
	return p >= MinPeriod && p <= MaxPeriod
}

// Fits reports whether a span starting at start with the given duration lies
// entirely within the daily grid.
func Fits(start, duration int) bool {
	if duration < 1 || !ValidPeriod(start) {
		return false
	}
	return start+duration-1 <= MaxPeriod
}

// Span enumerates the periods occupied by a placement, start inclusive.
// Returns nil when the span does not fit the grid.
func Span(start, duration int) []int {
	if !Fits(start, duration) {
		return nil
	}
	periods := make([]int, 0, duration)
	for p := start; p <= start+duration-1; p++ {
		periods = append(periods, p)
	}
	return periods
}

// End returns the last period of a span.
func End(start, duration int) int {
	if duration < 1 {
		return start
	}
	return start + duration - 1
}

// Overlaps reports whether two spans share at least one period.
func Overlaps(aStart, aDuration, bStart, bDuration int) bool {
	if aDuration < 1 || bDuration < 1 {
		return false
	}
	return aStart <= End(bStart, bDuration) && bStart <= End(aStart, aDuration)
}

// Adjacent returns the periods immediately before and after a span, clipped
// to the grid. A span touching a grid edge has a single neighbour; the full
// day has none.
func Adjacent(start, duration int) []int {
	if !Fits(start, duration) {
		return nil
	}
	var periods []int
	if start-1 >= MinPeriod {
		periods = append(periods, start-1)
	}
	if end := End(start, duration) + 1; end <= MaxPeriod {
		periods = append(periods, end)
	}
	return periods
}

// Label returns the wall-clock display label for a period, or "" when the
// period is off the grid.
func Label(p int) string {
	return labels[p]
}

// MaxStart returns the latest start period that still fits the given
// duration, or 0 when no start fits.
func MaxStart(duration int) int {
	if duration < 1 || duration > PeriodsPerDay {
		return 0
	}
	return MaxPeriod - duration + 1
}
