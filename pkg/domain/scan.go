package domain

import (
	"time"

	"github.com/google/uuid"
)

// ScanID uniquely identifies a scan run.
type ScanID uuid.UUID

// ScanStatus represents the lifecycle state of a scan. The happy path is
// QUEUED → CRAWLING → SCANNING → ANALYZING → COMPLETED; FAILED is reachable
// from any non-terminal state. COMPLETED and FAILED are terminal.
type ScanStatus string

const (
	// ScanStatusQueued indicates the scan has been admitted and a job exists
	// in the queue, but the engine has not picked it up yet.
	ScanStatusQueued ScanStatus = "QUEUED"
	// ScanStatusCrawling indicates the engine is discovering pages.
	ScanStatusCrawling ScanStatus = "CRAWLING"
	// ScanStatusScanning indicates the engine is auditing discovered pages.
	ScanStatusScanning ScanStatus = "SCANNING"
	// ScanStatusAnalyzing indicates the engine is aggregating results.
	ScanStatusAnalyzing ScanStatus = "ANALYZING"
	// ScanStatusCompleted indicates the scan finished and results are final.
	ScanStatusCompleted ScanStatus = "COMPLETED"
	// ScanStatusFailed indicates the scan ended with an error; see ErrorMessage.
	ScanStatusFailed ScanStatus = "FAILED"
)

// Terminal reports whether the status is final. Terminal scans are never
// mutated; a restart creates a fresh row instead.
func (s ScanStatus) Terminal() bool {
	return s == ScanStatusCompleted || s == ScanStatusFailed
}

// Valid reports whether the status is one of the known lifecycle states.
func (s ScanStatus) Valid() bool {
	switch s {
	case ScanStatusQueued, ScanStatusCrawling, ScanStatusScanning,
		ScanStatusAnalyzing, ScanStatusCompleted, ScanStatusFailed:
		return true
	}

	return false
}

// scanStatusRank orders the happy-path states. Terminal states rank highest
// so no transition can leave them.
var scanStatusRank = map[ScanStatus]int{
	ScanStatusQueued:    0,
	ScanStatusCrawling:  1,
	ScanStatusScanning:  2,
	ScanStatusAnalyzing: 3,
	ScanStatusCompleted: 4,
	ScanStatusFailed:    4,
}

// CanTransition reports whether a scan may move from one status to another.
// Transitions only go forward along the happy path; FAILED is reachable from
// any non-terminal state. Same-status reports are allowed so counters can be
// refreshed mid-phase, but reports that would move a scan backwards (stale or
// reordered deliveries) are not valid transitions.
func CanTransition(from, to ScanStatus) bool {
	if from.Terminal() {
		return false
	}
	if to == ScanStatusFailed {
		return true
	}

	return scanStatusRank[to] >= scanStatusRank[from]
}

// ScanTrigger records what initiated a scan.
type ScanTrigger string

const (
	TriggerManual   ScanTrigger = "MANUAL"
	TriggerAPI      ScanTrigger = "API"
	TriggerSchedule ScanTrigger = "SCHEDULE"
)

// ScanKind selects the queue policy a scan runs under. Kinds share the same
// payload shape and differ only in retry/backoff/priority/retention policy.
type ScanKind string

const (
	// ScanKindFull is a complete audit of the website.
	ScanKindFull ScanKind = "FULL"
	// ScanKindQuick is a shallow, high-priority audit of the landing pages.
	ScanKindQuick ScanKind = "QUICK"
)

// ScanCounters holds the numeric progress/result figures reported by the
// engine. All fields are pointers because the engine populates them
// incrementally; nil means "not reported yet".
type ScanCounters struct {
	Score          *int `json:"score,omitempty"`
	TotalPages     *int `json:"totalPages,omitempty"`
	ScannedPages   *int `json:"scannedPages,omitempty"`
	TotalIssues    *int `json:"totalIssues,omitempty"`
	CriticalIssues *int `json:"criticalIssues,omitempty"`
	SeriousIssues  *int `json:"seriousIssues,omitempty"`
	ModerateIssues *int `json:"moderateIssues,omitempty"`
	MinorIssues    *int `json:"minorIssues,omitempty"`
	DurationMs     *int `json:"duration,omitempty"`
}

// Scan represents one audit run against a website.
type Scan struct {
	// ID is the unique identifier of the scan.
	ID ScanID `json:"id"`
	// WebsiteID is the audited website.
	WebsiteID WebsiteID `json:"websiteId"`
	// OrganizationID is the owning organization, denormalized for the
	// concurrency-limit count.
	OrganizationID OrganizationID `json:"organizationId"`

	// Status is the current lifecycle state.
	Status ScanStatus `json:"status"`
	// Trigger records what started this scan.
	Trigger ScanTrigger `json:"trigger"`
	// Kind selects the queue policy the scan runs under.
	Kind ScanKind `json:"kind"`

	// Counters are the engine-reported progress/result figures.
	Counters ScanCounters `json:"counters"`
	// ErrorMessage holds the failure reason for FAILED scans.
	ErrorMessage string `json:"errorMessage,omitempty"`

	// CreatedAt is when the scan row was created.
	CreatedAt time.Time `json:"createdAt"`
	// CompletedAt is when the scan reached a terminal state.
	CompletedAt time.Time `json:"completedAt,omitempty"`
}
