package domain

import (
	"time"

	"github.com/google/uuid"
)

// ScheduleID uniquely identifies a scan schedule.
type ScheduleID uuid.UUID

// Frequency is how often a schedule dispatches a scan.
type Frequency string

const (
	FrequencyDaily   Frequency = "DAILY"
	FrequencyWeekly  Frequency = "WEEKLY"
	FrequencyMonthly Frequency = "MONTHLY"
)

// Valid reports whether the frequency is one of the known values.
func (f Frequency) Valid() bool {
	switch f {
	case FrequencyDaily, FrequencyWeekly, FrequencyMonthly:
		return true
	}

	return false
}

// Next returns the given time moved forward by exactly one frequency
// interval: daily +1 day, weekly +7 days, monthly +1 calendar month.
func (f Frequency) Next(t time.Time) time.Time {
	switch f {
	case FrequencyDaily:
		return t.AddDate(0, 0, 1)
	case FrequencyWeekly:
		return t.AddDate(0, 0, 7)
	default:
		return t.AddDate(0, 1, 0)
	}
}

// ScanSchedule is a recurring audit for one website. NextRunAt is always
// LastRunAt plus one frequency interval; a schedule that never ran has a zero
// NextRunAt and is treated as immediately due. Run bookkeeping is mutated
// only by the scheduling sweep.
type ScanSchedule struct {
	// ID is the unique identifier of the schedule.
	ID ScheduleID `json:"id"`
	// WebsiteID is the website this schedule audits.
	WebsiteID WebsiteID `json:"websiteId"`
	// OrganizationID is the owning organization.
	OrganizationID OrganizationID `json:"organizationId"`

	// Frequency is the dispatch cadence.
	Frequency Frequency `json:"frequency"`
	// Active indicates whether the sweep considers this schedule.
	Active bool `json:"active"`

	// LastRunAt is when the sweep last dispatched a scan. Zero = never ran.
	LastRunAt time.Time `json:"lastRunAt,omitempty"`
	// NextRunAt is when the schedule is next due. Zero = immediately due.
	NextRunAt time.Time `json:"nextRunAt,omitempty"`

	// CreatedAt is when the schedule was created.
	CreatedAt time.Time `json:"createdAt"`
	// UpdatedAt is when the schedule was last modified.
	UpdatedAt time.Time `json:"updatedAt"`
}
