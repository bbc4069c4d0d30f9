package entities

import "time"

// WorkRule is a recurring weekly availability window tied to a location.
// Clock times use the "15:04" layout. Rules are replaced wholesale on
// reconfiguration, which triggers agenda regeneration for the upcoming horizon.
type WorkRule struct {
	Weekday    time.Weekday `json:"weekday"`
	StartTime  string       `json:"start_time"`
	EndTime    string       `json:"end_time"`
	LocationID string       `json:"location_id"`
}

// WindowOn materializes the rule's window on the given date. Returns false
// when the date's weekday does not match the rule or a clock string is invalid.
func (r WorkRule) WindowOn(date time.Time) (time.Time, time.Time, bool) {
	date = date.UTC()
	if date.Weekday() != r.Weekday {
		return time.Time{}, time.Time{}, false
	}
	start, okStart := clockOn(date, r.StartTime)
	end, okEnd := clockOn(date, r.EndTime)
	if !okStart || !okEnd || !end.After(start) {
		return time.Time{}, time.Time{}, false
	}
	return start, end, true
}

// Covers reports whether [start, end) falls entirely inside the rule's window
// on start's date
func (r WorkRule) Covers(start, end time.Time) bool {
	ruleStart, ruleEnd, ok := r.WindowOn(start)
	if !ok {
		return false
	}
	return !start.Before(ruleStart) && !end.After(ruleEnd)
}

func clockOn(date time.Time, hm string) (time.Time, bool) {
	t, err := time.Parse("15:04", hm)
	if err != nil {
		return time.Time{}, false
	}
	return time.Date(
		date.Year(), date.Month(), date.Day(),
		t.Hour(), t.Minute(), 0, 0,
		time.UTC,
	), true
}
