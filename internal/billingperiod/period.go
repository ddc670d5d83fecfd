// Package billingperiod derives canonical YYYY-MM billing period keys and
// invoice dates. Every computation normalizes to UTC first; local-time month
// boundaries would otherwise shift invoices into the wrong period.
package billingperiod

import (
	"errors"
	"fmt"
	"time"
)

// Layout is the canonical period key format.
const Layout = "2006-01"

var ErrInvalidPeriod = errors.New("invalid_billing_period")

// PeriodOf returns the period key of the calendar month containing t.
func PeriodOf(t time.Time) string {
	return t.UTC().Format(Layout)
}

// Previous returns the period key of the month before the one containing t.
// The reference time is first anchored to the 15th of its month so that
// AddDate's day-overflow rules can never skip or repeat a month.
func Previous(t time.Time) string {
	anchor := Anchor(t)
	return anchor.AddDate(0, -1, 0).Format(Layout)
}

// Anchor pins t to 00:00 UTC on the 15th of its month.
func Anchor(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), 15, 0, 0, 0, 0, time.UTC)
}

// InvoiceDates returns the invoice date (t truncated to a UTC day) and the
// due date at a fixed offset.
func InvoiceDates(t time.Time, dueOffsetDays int) (invoiceDate, dueDate time.Time) {
	u := t.UTC()
	invoiceDate = time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
	dueDate = invoiceDate.AddDate(0, 0, dueOffsetDays)
	return invoiceDate, dueDate
}

// Parse validates a period key.
func Parse(period string) (time.Time, error) {
	t, err := time.ParseInLocation(Layout, period, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidPeriod, period)
	}
	return t, nil
}

// Bounds returns the half-open UTC window [start, end) of a period.
func Bounds(period string) (start, end time.Time, err error) {
	start, err = Parse(period)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return start, start.AddDate(0, 1, 0), nil
}
