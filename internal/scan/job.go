package scan

import (
	"time"

	"a11yscan/pkg/domain"

	"github.com/google/uuid"
	"github.com/riverqueue/river"
)

// Queue names, one per scan kind so each kind runs under its own policy.
const (
	QueueFull  = "full_scans"
	QueueQuick = "quick_scans"
)

// River prunes finished jobs by age, not by count, so the retained-history
// targets (about 100 completed / 50 discarded full audits and twice that for
// quick ones) are expressed as client-wide windows: quick audits run at
// roughly twice the rate of full ones, so a shared window naturally holds
// about twice as many of them, and completed jobs keep double the discarded
// window to match the 2:1 completed:discarded target.
const (
	CompletedJobRetention = 48 * time.Hour
	DiscardedJobRetention = 24 * time.Hour
)

// Policy bundles the queue behavior of one scan kind: how often River
// retries, how long the first backoff is, and how the kind competes for
// workers.
type Policy struct {
	// MaxAttempts is the total number of attempts including the first run.
	MaxAttempts int
	// BackoffBase is the first retry delay; attempt k waits base * 2^(k-1).
	BackoffBase time.Duration
	// Priority orders jobs within a queue; lower runs first.
	Priority int
	// Queue is the River queue the kind is inserted into.
	Queue string
}

// NextRetryDelay returns the backoff before the given attempt number
// (1-based) is retried.
func (p Policy) NextRetryDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	return p.BackoffBase * time.Duration(1<<(attempt-1))
}

var policies = map[domain.ScanKind]Policy{
	domain.ScanKindFull: {
		MaxAttempts: 3,
		BackoffBase: 5 * time.Second,
		Priority:    2,
		Queue:       QueueFull,
	},
	domain.ScanKindQuick: {
		MaxAttempts: 2,
		BackoffBase: 3 * time.Second,
		Priority:    1,
		Queue:       QueueQuick,
	},
}

// PolicyFor returns the queue policy of a scan kind. Unknown kinds get the
// full-scan policy.
func PolicyFor(kind domain.ScanKind) Policy {
	if p, ok := policies[kind]; ok {
		return p
	}

	return policies[domain.ScanKindFull]
}

// JobPayload is the payload shared by all scan job kinds. Kinds differ only
// in queue policy, never in payload shape.
type JobPayload struct {
	// ScanID is the scan row this job drives.
	ScanID uuid.UUID `json:"scanId"`
	// WebsiteID is the audited website.
	WebsiteID uuid.UUID `json:"websiteId"`
	// URL is the website's root URL at enqueue time.
	URL string `json:"url"`
	// MaxPages caps how many pages the engine audits, per the plan in effect
	// when the scan was admitted.
	MaxPages int `json:"maxPages"`
}

// FullScanArgs enqueues a complete audit of a website.
type FullScanArgs struct {
	JobPayload
}

// Kind returns the River job kind used to register and dispatch full scans.
func (FullScanArgs) Kind() string { return "FullScanJob" }

// InsertOpts applies the full-scan queue policy.
func (FullScanArgs) InsertOpts() river.InsertOpts {
	p := PolicyFor(domain.ScanKindFull)

	return river.InsertOpts{
		MaxAttempts: p.MaxAttempts,
		Priority:    p.Priority,
		Queue:       p.Queue,
	}
}

// QuickScanArgs enqueues a shallow, high-priority audit of the landing pages.
type QuickScanArgs struct {
	JobPayload
}

// Kind returns the River job kind used to register and dispatch quick scans.
func (QuickScanArgs) Kind() string { return "QuickScanJob" }

// InsertOpts applies the quick-scan queue policy.
func (QuickScanArgs) InsertOpts() river.InsertOpts {
	p := PolicyFor(domain.ScanKindQuick)

	return river.InsertOpts{
		MaxAttempts: p.MaxAttempts,
		Priority:    p.Priority,
		Queue:       p.Queue,
	}
}

// ArgsFor builds the job arguments for a scan of the given kind.
func ArgsFor(kind domain.ScanKind, payload JobPayload) river.JobArgs {
	if kind == domain.ScanKindQuick {
		return QuickScanArgs{JobPayload: payload}
	}

	return FullScanArgs{JobPayload: payload}
}
