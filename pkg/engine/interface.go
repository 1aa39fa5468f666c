// Package engine defines the interface and data types used to run
// accessibility audits on a backing audit engine and poll their progress.
package engine

import (
	"context"

	"a11yscan/pkg/domain"
)

// SubmitReq describes an audit submission.
type SubmitReq struct {
	// URL is the root address to audit.
	URL string
	// MaxPages caps how many pages the engine crawls and audits.
	MaxPages int
	// Quick restricts the audit to the landing pages.
	Quick bool
}

// SubmitRes represents the response of a successful audit submission.
type SubmitRes struct {
	ID string // ID is the audit job identifier returned by the engine.
}

// Phase is the engine-side processing phase of an audit.
type Phase string

const (
	PhaseCrawling  Phase = "crawling"
	PhaseScanning  Phase = "scanning"
	PhaseAnalyzing Phase = "analyzing"
	PhaseCompleted Phase = "completed"
	PhaseFailed    Phase = "failed"
)

// Terminal reports whether the phase is final.
func (p Phase) Terminal() bool {
	return p == PhaseCompleted || p == PhaseFailed
}

// ScanStatus maps an engine phase onto the scan lifecycle state.
func (p Phase) ScanStatus() domain.ScanStatus {
	switch p {
	case PhaseCrawling:
		return domain.ScanStatusCrawling
	case PhaseScanning:
		return domain.ScanStatusScanning
	case PhaseAnalyzing:
		return domain.ScanStatusAnalyzing
	case PhaseCompleted:
		return domain.ScanStatusCompleted
	case PhaseFailed:
		return domain.ScanStatusFailed
	default:
		return domain.ScanStatusQueued
	}
}

// Progress is one engine progress report for a running or finished audit.
type Progress struct {
	// Phase is the engine-side processing phase.
	Phase Phase
	// Counters carries the figures the engine has produced so far.
	Counters domain.ScanCounters
	// Error holds the failure reason when Phase is failed.
	Error string
}

// Client is the abstraction for audit engines. Implementations submit audits
// and later poll their progress.
//
//go:generate mockgen -package mockengine -source=interface.go -destination=mock/mockengine.go *
type Client interface {
	// Submit starts an audit and returns the engine job ID.
	Submit(ctx context.Context, req SubmitReq) (SubmitRes, error)
	// Progress retrieves the current progress of a previously submitted audit.
	Progress(ctx context.Context, auditID string) (*Progress, error)
}
