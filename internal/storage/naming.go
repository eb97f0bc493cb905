package storage

import (
	"fmt"
	"time"
)

const (
	backupDayLayoutConstant  = "20060102"
	archiveObjectKeyTemplate = "%s/%s-%s.tar.gz"
	issuesObjectKeyTemplate  = "%s/%s-issues-%s.json"
	repositoryPrefixTemplate = "%s/"
)

// BackupDay formats the calendar day used in object keys and as one half of
// the (repository, day) idempotency key.
func BackupDay(moment time.Time) string {
	return moment.UTC().Format(backupDayLayoutConstant)
}

// ArchiveObjectKey derives the archive key for a repository and calendar day,
// without the bucket prefix: {name}/{name}-{YYYYMMDD}.tar.gz.
func ArchiveObjectKey(repositoryName string, moment time.Time) string {
	return fmt.Sprintf(archiveObjectKeyTemplate, repositoryName, repositoryName, BackupDay(moment))
}

// IssuesObjectKey derives the sibling issue-export key:
// {name}/{name}-issues-{YYYYMMDD}.json.
func IssuesObjectKey(repositoryName string, moment time.Time) string {
	return fmt.Sprintf(issuesObjectKeyTemplate, repositoryName, repositoryName, BackupDay(moment))
}

func repositoryKeyPrefix(repositoryName string) string {
	return fmt.Sprintf(repositoryPrefixTemplate, repositoryName)
}
