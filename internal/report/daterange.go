package report

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout — формат даты в запросах отчёта.
const DateLayout = "2006-01-02"

const secondsPerDay = 24 * 60 * 60

// DateRange — период отчёта, обе границы включительно.
type DateRange struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// Day возвращает период из одного дня.
func Day(t time.Time) DateRange {
	d := t.Format(DateLayout)
	return DateRange{From: d, To: d}
}

// Dates возвращает все даты периода с шагом в один день.
//
// Пустая граница, неразбираемая дата, To раньше From или период длиннее
// maxDays дней — ErrInvalidRange. Длина проверяется до построения списка.
// maxDays <= 0 — без ограничения.
func (r DateRange) Dates(maxDays int) ([]string, error) {
	from, err := parseDate(r.From)
	if err != nil {
		return nil, fmt.Errorf("%w: from: %v", ErrInvalidRange, err)
	}
	to, err := parseDate(r.To)
	if err != nil {
		return nil, fmt.Errorf("%w: to: %v", ErrInvalidRange, err)
	}
	if to.Before(from) {
		return nil, fmt.Errorf("%w: %s is before %s", ErrInvalidRange, r.To, r.From)
	}

	// time.Duration насыщается на ~292 годах, поэтому считаем в секундах
	days := (to.Unix()-from.Unix())/secondsPerDay + 1
	if maxDays > 0 && days > int64(maxDays) {
		return nil, fmt.Errorf("%w: %d days exceeds limit of %d", ErrInvalidRange, days, maxDays)
	}

	dates := make([]string, 0, days)
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		dates = append(dates, d.Format(DateLayout))
	}
	return dates, nil
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}
	return time.Parse(DateLayout, s)
}
