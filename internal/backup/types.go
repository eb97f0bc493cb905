package backup

import (
	"github.com/temirov/repovault/internal/errkind"
)

const (
	statusSuccessStringConstant = "success"
	statusSkippedStringConstant = "skipped"
	statusFailedStringConstant  = "failed"
	statusPlannedStringConstant = "planned"
)

// BackupStatus is the terminal state of one repository within a cycle.
type BackupStatus string

// Terminal per-repository states. StatusPlanned only appears in dry-run
// cycles, where no clone or upload is performed.
const (
	StatusSuccess BackupStatus = BackupStatus(statusSuccessStringConstant)
	StatusSkipped BackupStatus = BackupStatus(statusSkippedStringConstant)
	StatusFailed  BackupStatus = BackupStatus(statusFailedStringConstant)
	StatusPlanned BackupStatus = BackupStatus(statusPlannedStringConstant)
)

// BackupRecord is the outcome of one repository's backup procedure. The
// (Repository, BackupDay) pair is the idempotency key.
type BackupRecord struct {
	Repository           string
	BackupDay            string
	StorageKey           string
	Checksum             string
	SizeBytes            int64
	Status               BackupStatus
	FailureKind          errkind.Kind
	FailureMessage       string
	IssuesKey            string
	IssuesExported       bool
	IssuesFailureMessage string
}

// CycleResult aggregates the records of one backup cycle. It always contains
// exactly one record per selected repository.
type CycleResult struct {
	Organization string
	Records      []BackupRecord
}

// SuccessCount reports repositories whose archive upload was verified.
func (result CycleResult) SuccessCount() int {
	return result.countByStatus(StatusSuccess)
}

// SkippedCount reports repositories whose backup already existed for the day.
func (result CycleResult) SkippedCount() int {
	return result.countByStatus(StatusSkipped)
}

// FailedCount reports repositories with a terminal failure.
func (result CycleResult) FailedCount() int {
	return result.countByStatus(StatusFailed)
}

// PlannedCount reports repositories a dry-run cycle would have backed up.
func (result CycleResult) PlannedCount() int {
	return result.countByStatus(StatusPlanned)
}

// FailedRecords returns the records requiring operator triage, in cycle order.
func (result CycleResult) FailedRecords() []BackupRecord {
	var failedRecords []BackupRecord
	for _, record := range result.Records {
		if record.Status == StatusFailed {
			failedRecords = append(failedRecords, record)
		}
	}
	return failedRecords
}

// HasFailures reports whether any repository ended in StatusFailed.
func (result CycleResult) HasFailures() bool {
	return result.FailedCount() > 0
}

func (result CycleResult) countByStatus(status BackupStatus) int {
	statusCount := 0
	for _, record := range result.Records {
		if record.Status == status {
			statusCount++
		}
	}
	return statusCount
}
