package report

import (
	"context"
	"errors"
	"regexp"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/temirov/repovault/internal/hosting"
	"github.com/temirov/repovault/internal/storage"
)

const (
	listerNotConfiguredMessageConstant   = "report repository lister not configured"
	selectorNotConfiguredMessageConstant = "report repository selector not configured"
	storageNotConfiguredMessageConstant  = "report storage gateway not configured"

	issueExportKeyPatternConstant = `-issues-(\d{8})\.json$`
	exportDayLayoutConstant       = "20060102"
	exportMonthLayoutConstant     = "2006-01"

	reviewerReminderDayThresholdConstant = 25

	reportBuiltMessageConstant   = "backup report built"
	logFieldOrganizationConstant = "organization"
	logFieldRepositoriesConstant = "repositories"
)

var issueExportKeyExpression = regexp.MustCompile(issueExportKeyPatternConstant)

// Construction errors for the report builder.
var (
	ErrListerNotConfigured   = errors.New(listerNotConfiguredMessageConstant)
	ErrSelectorNotConfigured = errors.New(selectorNotConfiguredMessageConstant)
	ErrStorageNotConfigured  = errors.New(storageNotConfiguredMessageConstant)
)

// RepositoryLister enumerates an organization's repositories.
type RepositoryLister interface {
	ListRepositories(executionContext context.Context, organization string) ([]hosting.RepositoryDescriptor, error)
}

// RepositorySelector applies the configured match rules to a repository snapshot.
type RepositorySelector interface {
	Select(repositories []hosting.RepositoryDescriptor) []hosting.RepositoryDescriptor
}

// StorageLister lists the stored backup objects for one repository.
type StorageLister interface {
	ListBackups(executionContext context.Context, repositoryName string) ([]storage.BackupObject, error)
}

// Clock supplies the current time for the reviewer-reminder threshold.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// RepositorySummary aggregates the stored backups of one repository.
type RepositorySummary struct {
	Repository       string
	ArchiveCount     int
	IssueExportCount int
	TotalSizeBytes   int64
	LastBackup       time.Time
}

// MonthlyIssueExports counts issue-export documents produced in one calendar month.
type MonthlyIssueExports struct {
	Month string
	Count int
}

// BackupReport is the read-only aggregate view over the storage listings of
// every monitored repository. It is computed on demand and never persisted.
type BackupReport struct {
	Organization            string
	TotalRepositories       int
	RepositoriesWithBackups int
	TotalSizeBytes          int64
	Repositories            []RepositorySummary
	IssueExportsByMonth     []MonthlyIssueExports
	ReviewerReminder        bool
}

// Builder assembles backup reports from hosting and storage listings.
type Builder struct {
	lister   RepositoryLister
	selector RepositorySelector
	storage  StorageLister
	clock    Clock
	logger   *zap.Logger
}

// NewBuilder validates collaborators and constructs a report builder.
func NewBuilder(lister RepositoryLister, selector RepositorySelector, storageLister StorageLister, clock Clock, logger *zap.Logger) (*Builder, error) {
	if lister == nil {
		return nil, ErrListerNotConfigured
	}
	if selector == nil {
		return nil, ErrSelectorNotConfigured
	}
	if storageLister == nil {
		return nil, ErrStorageNotConfigured
	}
	if clock == nil {
		clock = systemClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Builder{lister: lister, selector: selector, storage: storageLister, clock: clock, logger: logger}, nil
}

// BuildReport lists backups for every repository matched by the rules and
// aggregates counts, stored bytes, and monthly issue-export totals. The
// reviewer reminder turns on from day 25 of the month onward.
func (builder *Builder) BuildReport(executionContext context.Context, organization string) (BackupReport, error) {
	allRepositories, listError := builder.lister.ListRepositories(executionContext, organization)
	if listError != nil {
		return BackupReport{}, listError
	}

	monitoredRepositories := builder.selector.Select(allRepositories)

	report := BackupReport{
		Organization:      organization,
		TotalRepositories: len(monitoredRepositories),
		ReviewerReminder:  builder.clock.Now().Day() >= reviewerReminderDayThresholdConstant,
	}

	monthlyExportCounts := map[string]int{}
	for _, repository := range monitoredRepositories {
		storedObjects, storageError := builder.storage.ListBackups(executionContext, repository.Name)
		if storageError != nil {
			return BackupReport{}, storageError
		}

		summary := RepositorySummary{Repository: repository.Name}
		for _, storedObject := range storedObjects {
			summary.TotalSizeBytes += storedObject.SizeBytes
			if storedObject.LastModified.After(summary.LastBackup) {
				summary.LastBackup = storedObject.LastModified
			}

			if exportMonth, isExport := issueExportMonth(storedObject); isExport {
				summary.IssueExportCount++
				monthlyExportCounts[exportMonth]++
				continue
			}
			summary.ArchiveCount++
		}

		if summary.ArchiveCount > 0 {
			report.RepositoriesWithBackups++
		}
		report.TotalSizeBytes += summary.TotalSizeBytes
		report.Repositories = append(report.Repositories, summary)
	}

	report.IssueExportsByMonth = sortedMonthlyExports(monthlyExportCounts)

	builder.logger.Info(
		reportBuiltMessageConstant,
		zap.String(logFieldOrganizationConstant, organization),
		zap.Int(logFieldRepositoriesConstant, report.TotalRepositories),
	)

	return report, nil
}

// issueExportMonth extracts the calendar month from an issue-export key,
// falling back to the object's modification time when the day segment does
// not parse.
func issueExportMonth(storedObject storage.BackupObject) (string, bool) {
	keyMatch := issueExportKeyExpression.FindStringSubmatch(storedObject.Key)
	if keyMatch == nil {
		return "", false
	}

	exportDay, parseError := time.Parse(exportDayLayoutConstant, keyMatch[1])
	if parseError != nil {
		return storedObject.LastModified.UTC().Format(exportMonthLayoutConstant), true
	}
	return exportDay.Format(exportMonthLayoutConstant), true
}

func sortedMonthlyExports(monthlyExportCounts map[string]int) []MonthlyIssueExports {
	if len(monthlyExportCounts) == 0 {
		return nil
	}

	months := make([]string, 0, len(monthlyExportCounts))
	for month := range monthlyExportCounts {
		months = append(months, month)
	}
	sort.Strings(months)

	monthlyExports := make([]MonthlyIssueExports, 0, len(months))
	for _, month := range months {
		monthlyExports = append(monthlyExports, MonthlyIssueExports{Month: month, Count: monthlyExportCounts[month]})
	}
	return monthlyExports
}
