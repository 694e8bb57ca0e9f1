// Package fiscalyears resolves financial years and guards postings into
// closed years.
package fiscalyears

import (
	"fmt"
	"time"
)

// FinancialYear is a reporting year with an inclusive date range.
type FinancialYear struct {
	ID        int64      `json:"id"`
	Code      string     `json:"code"`
	Name      string     `json:"name"`
	StartDate time.Time  `json:"start_date"`
	EndDate   time.Time  `json:"end_date"`
	IsActive  bool       `json:"is_active"`
	IsClosed  bool       `json:"is_closed"`
	ClosedAt  *time.Time `json:"closed_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Contains reports whether date falls within the year.
func (fy FinancialYear) Contains(date time.Time) bool {
	return !date.Before(fy.StartDate) && !date.After(fy.EndDate)
}

// Clamp limits date to the year range.
func (fy FinancialYear) Clamp(date time.Time) time.Time {
	if date.Before(fy.StartDate) {
		return fy.StartDate
	}
	if date.After(fy.EndDate) {
		return fy.EndDate
	}
	return date
}

// DefaultName renders "FY 2024-2025" for a year spanning start and end.
func DefaultName(start, end time.Time) string {
	return fmt.Sprintf("FY %d-%d", start.Year(), end.Year())
}

// DefaultCode renders "FY2024-25" for a year spanning start and end.
func DefaultCode(start, end time.Time) string {
	return fmt.Sprintf("FY%d-%02d", start.Year(), end.Year()%100)
}

// Dates is the range of the year containing a date.
type Dates struct {
	StartDate     time.Time     `json:"start_date"`
	EndDate       time.Time     `json:"end_date"`
	FinancialYear FinancialYear `json:"financial_year"`
}

// Config carries the feature flags.
type Config struct {
	Enabled    bool
	AutoAssign bool
	StartMonth int
}
