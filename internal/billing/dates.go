package billing

import "time"

// Civil dates are kept as UTC midnight, the same shape a DATE column scans into.

func civil(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func monthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// weekStart returns the Monday of t's week.
func weekStart(t time.Time) time.Time {
	d := civil(t)
	offset := (int(d.Weekday()) + 6) % 7
	return d.AddDate(0, 0, -offset)
}

func (s *Service) clock() time.Time { return s.now().In(s.loc) }

func (s *Service) today() time.Time { return civil(s.clock()) }

func (s *Service) dueDate(month time.Time) time.Time {
	return time.Date(month.Year(), month.Month(), s.billing.DueDay, 0, 0, 0, 0, time.UTC)
}
