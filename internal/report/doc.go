// Package report computes read-only aggregates over the stored backups of an
// organization: per-repository counts and bytes, plus monthly issue-export
// totals for reviewers.
package report
