package core

import "time"

// Period identifies one calendar month.
type Period struct {
	Year  int
	Month time.Month
}

func PeriodOf(t time.Time) Period {
	return Period{Year: t.Year(), Month: t.Month()}
}

// Contains reports whether t falls inside p, using t's own location.
func (p Period) Contains(t time.Time) bool {
	return t.Year() == p.Year && t.Month() == p.Month
}

func (p Period) Valid() bool {
	return p.Year > 0 && p.Month >= time.January && p.Month <= time.December
}

// Next returns the following calendar month.
func (p Period) Next() Period {
	if p.Month == time.December {
		return Period{Year: p.Year + 1, Month: time.January}
	}
	return Period{Year: p.Year, Month: p.Month + 1}
}

// Add shifts p by n calendar months, backwards when n is negative.
func (p Period) Add(n int) Period {
	idx := p.Year*12 + int(p.Month) - 1 + n
	y, m := idx/12, idx%12
	if m < 0 {
		y, m = y-1, m+12
	}
	return Period{Year: y, Month: time.Month(m + 1)}
}

// DaysIn returns the number of days of the given month.
func DaysIn(year int, month time.Month, loc *time.Location) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, loc).Day()
}

// AddMonthsClamped moves t forward by n calendar months keeping the
// day-of-month, or the last day of the target month when it is shorter.
// 31 Jan + 1 lands on 28/29 Feb, not 3 Mar.
func AddMonthsClamped(t time.Time, n int) time.Time {
	return AddMonthsOnDay(t, n, t.Day())
}

// AddMonthsOnDay is AddMonthsClamped against an explicit anchor day instead
// of t's own day.
func AddMonthsOnDay(t time.Time, n, day int) time.Time {
	first := time.Date(t.Year(), t.Month()+time.Month(n), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	if last := DaysIn(first.Year(), first.Month(), t.Location()); day > last {
		day = last
	}
	if day < 1 {
		day = 1
	}
	return time.Date(first.Year(), first.Month(), day, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

// StartOfDay returns local midnight of t in t's location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
