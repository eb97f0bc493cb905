package backup

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/temirov/repovault/internal/archive"
	"github.com/temirov/repovault/internal/errkind"
	"github.com/temirov/repovault/internal/hosting"
	"github.com/temirov/repovault/internal/issues"
	"github.com/temirov/repovault/internal/matchrules"
	"github.com/temirov/repovault/internal/storage"
)

const (
	listerNotConfiguredMessageConstant   = "backup repository lister not configured"
	selectorNotConfiguredMessageConstant = "backup repository selector not configured"
	producerNotConfiguredMessageConstant = "backup archive producer not configured"
	storageNotConfiguredMessageConstant  = "backup storage gateway not configured"
	exporterRequiredMessageConstant      = "issue export enabled but no exporter configured"

	backupDateLayoutConstant = "2006-01-02"

	metadataRepositoryKeyConstant    = "repository"
	metadataBackupDateKeyConstant    = "backup_date"
	metadataDefaultBranchKeyConstant = "default_branch"
	metadataSizeBytesKeyConstant     = "size_bytes"
	metadataContentTypeKeyConstant   = "content_type"
	metadataTotalIssuesKeyConstant   = "total_issues"
	jsonContentTypeConstant          = "application/json"

	archiveOpenStageNameConstant = "open"

	cycleStartedMessageConstant        = "backup cycle started"
	repositorySkippedMessageConstant   = "backup already exists, skipping"
	repositoryPlannedMessageConstant   = "dry run, would back up"
	repositoryFailedMessageConstant    = "repository backup failed"
	repositorySucceededMessageConstant = "repository backup verified"
	issueExportFailedMessageConstant   = "issue export failed"
	excludedNamesMessageConstant       = "repositories excluded by rules"
	missingIncludesMessageConstant     = "configured repositories not found in organization"

	logFieldOrganizationConstant = "organization"
	logFieldRepositoryConstant   = "repository"
	logFieldStorageKeyConstant   = "storage_key"
	logFieldSelectedConstant     = "selected_repositories"
	logFieldExcludedRowConstant  = "names"
	logFieldErrorKindConstant    = "error_kind"
	logFieldForceConstant        = "force"
	logFieldDryRunConstant       = "dry_run"

	excludedNameColumnCountConstant = 3
)

// Construction errors for the backup service.
var (
	ErrListerNotConfigured   = errors.New(listerNotConfiguredMessageConstant)
	ErrSelectorNotConfigured = errors.New(selectorNotConfiguredMessageConstant)
	ErrProducerNotConfigured = errors.New(producerNotConfiguredMessageConstant)
	ErrStorageNotConfigured  = errors.New(storageNotConfiguredMessageConstant)
	ErrExporterRequired      = errors.New(exporterRequiredMessageConstant)
)

// RepositoryLister enumerates an organization's repositories.
type RepositoryLister interface {
	ListRepositories(executionContext context.Context, organization string) ([]hosting.RepositoryDescriptor, error)
}

// RepositorySelector applies the configured match rules to a repository snapshot.
type RepositorySelector interface {
	Select(repositories []hosting.RepositoryDescriptor) []hosting.RepositoryDescriptor
	ExcludedNames(repositories []hosting.RepositoryDescriptor) []string
	MissingIncludeNames(repositories []hosting.RepositoryDescriptor) []string
}

// ArchiveProducer packages one repository into a local mirror archive.
type ArchiveProducer interface {
	Produce(executionContext context.Context, repositoryName string, cloneURL string, accessToken string, archiveFileName string) (archive.Artifact, func(), error)
}

// StorageGateway is the write-and-probe surface the cycle needs.
type StorageGateway interface {
	Upload(executionContext context.Context, objectKey string, content io.ReadSeeker, contentLength int64, metadata map[string]string) (storage.UploadReceipt, error)
	BackupExists(executionContext context.Context, objectKey string) (bool, error)
}

// IssueExporter builds the issue-export document for one repository.
type IssueExporter interface {
	BuildDocument(executionContext context.Context, repository hosting.RepositoryDescriptor) (issues.ExportDocument, error)
}

// Clock supplies the current time, fixing the cycle's calendar day in tests.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// RunOptions are the per-invocation switches of one cycle.
type RunOptions struct {
	Organization string
	Force        bool
	DryRun       bool
}

// ServiceDependencies enumerates the collaborators of a backup service.
type ServiceDependencies struct {
	Lister       RepositoryLister
	Selector     RepositorySelector
	Producer     ArchiveProducer
	Storage      StorageGateway
	Exporter     IssueExporter
	Clock        Clock
	Logger       *zap.Logger
	AccessToken  string
	ExportIssues bool
}

// Service drives one backup cycle across all selected repositories,
// isolating per-repository failures and accumulating a CycleResult.
type Service struct {
	dependencies ServiceDependencies
}

// NewService validates collaborators and constructs a backup service.
func NewService(dependencies ServiceDependencies) (*Service, error) {
	if dependencies.Lister == nil {
		return nil, ErrListerNotConfigured
	}
	if dependencies.Selector == nil {
		return nil, ErrSelectorNotConfigured
	}
	if dependencies.Producer == nil {
		return nil, ErrProducerNotConfigured
	}
	if dependencies.Storage == nil {
		return nil, ErrStorageNotConfigured
	}
	if dependencies.ExportIssues && dependencies.Exporter == nil {
		return nil, ErrExporterRequired
	}
	if dependencies.Clock == nil {
		dependencies.Clock = systemClock{}
	}
	if dependencies.Logger == nil {
		dependencies.Logger = zap.NewNop()
	}
	return &Service{dependencies: dependencies}, nil
}

// RunCycle lists the organization's repositories, filters them through the
// match rules, and executes the per-repository backup procedure sequentially.
// Listing failures abort the cycle; everything after that is isolated per
// repository and the result always holds one record per selected repository.
func (service *Service) RunCycle(executionContext context.Context, options RunOptions) (CycleResult, error) {
	logger := service.dependencies.Logger

	allRepositories, listError := service.dependencies.Lister.ListRepositories(executionContext, options.Organization)
	if listError != nil {
		return CycleResult{}, listError
	}

	selectedRepositories := service.dependencies.Selector.Select(allRepositories)

	logger.Info(
		cycleStartedMessageConstant,
		zap.String(logFieldOrganizationConstant, options.Organization),
		zap.Int(logFieldSelectedConstant, len(selectedRepositories)),
		zap.Bool(logFieldForceConstant, options.Force),
		zap.Bool(logFieldDryRunConstant, options.DryRun),
	)

	service.logSelectionDiagnostics(allRepositories)

	cycleResult := CycleResult{Organization: options.Organization, Records: make([]BackupRecord, 0, len(selectedRepositories))}
	for _, repository := range selectedRepositories {
		record := service.backupRepository(executionContext, repository, options)
		cycleResult.Records = append(cycleResult.Records, record)
	}

	return cycleResult, nil
}

// backupRepository runs the full per-repository state machine. It never
// returns an error: every failure is classified into the record.
func (service *Service) backupRepository(executionContext context.Context, repository hosting.RepositoryDescriptor, options RunOptions) BackupRecord {
	logger := service.dependencies.Logger
	cycleMoment := service.dependencies.Clock.Now()

	record := BackupRecord{
		Repository: repository.Name,
		BackupDay:  storage.BackupDay(cycleMoment),
		StorageKey: storage.ArchiveObjectKey(repository.Name, cycleMoment),
	}

	archiveExists, existsError := service.dependencies.Storage.BackupExists(executionContext, record.StorageKey)
	if existsError != nil {
		return service.failRecord(record, existsError)
	}

	if archiveExists && !options.Force {
		logger.Info(
			repositorySkippedMessageConstant,
			zap.String(logFieldRepositoryConstant, repository.Name),
			zap.String(logFieldStorageKeyConstant, record.StorageKey),
		)
		record.Status = StatusSkipped
		service.exportIssues(executionContext, repository, cycleMoment, options, &record)
		return record
	}

	if options.DryRun {
		logger.Info(
			repositoryPlannedMessageConstant,
			zap.String(logFieldRepositoryConstant, repository.Name),
			zap.String(logFieldStorageKeyConstant, record.StorageKey),
		)
		record.Status = StatusPlanned
		return record
	}

	uploadError := service.archiveAndUpload(executionContext, repository, cycleMoment, &record)
	if uploadError != nil {
		return service.failRecord(record, uploadError)
	}

	record.Status = StatusSuccess
	logger.Info(
		repositorySucceededMessageConstant,
		zap.String(logFieldRepositoryConstant, repository.Name),
		zap.String(logFieldStorageKeyConstant, record.StorageKey),
		zap.Int64(metadataSizeBytesKeyConstant, record.SizeBytes),
	)

	service.exportIssues(executionContext, repository, cycleMoment, options, &record)
	return record
}

func (service *Service) archiveAndUpload(executionContext context.Context, repository hosting.RepositoryDescriptor, cycleMoment time.Time, record *BackupRecord) error {
	archiveFileName := fmt.Sprintf("%s-%s.tar.gz", repository.Name, record.BackupDay)
	artifact, cleanup, produceError := service.dependencies.Producer.Produce(
		executionContext,
		repository.Name,
		repository.CloneURL,
		service.dependencies.AccessToken,
		archiveFileName,
	)
	defer cleanup()
	if produceError != nil {
		return produceError
	}

	archiveFile, openError := os.Open(artifact.Path)
	if openError != nil {
		return errkind.ArchiveError{Repository: repository.Name, Stage: archiveOpenStageNameConstant, Cause: openError}
	}
	defer func() { _ = archiveFile.Close() }()

	uploadMetadata := map[string]string{
		metadataRepositoryKeyConstant:    repository.FullName,
		metadataBackupDateKeyConstant:    cycleMoment.UTC().Format(backupDateLayoutConstant),
		metadataDefaultBranchKeyConstant: repository.DefaultBranch,
		metadataSizeBytesKeyConstant:     strconv.FormatInt(artifact.SizeBytes, 10),
	}

	receipt, uploadError := service.dependencies.Storage.Upload(executionContext, record.StorageKey, archiveFile, artifact.SizeBytes, uploadMetadata)
	if uploadError != nil {
		return uploadError
	}

	record.Checksum = receipt.Checksum
	record.SizeBytes = receipt.SizeBytes
	return nil
}

// exportIssues uploads the issue-export document beside the archive. The
// sibling key has its own (repository, day) idempotency: an existing export
// is left alone unless force is set. Failures are recorded on the record but
// never change the archive status.
func (service *Service) exportIssues(executionContext context.Context, repository hosting.RepositoryDescriptor, cycleMoment time.Time, options RunOptions, record *BackupRecord) {
	if !service.dependencies.ExportIssues || options.DryRun {
		return
	}

	record.IssuesKey = storage.IssuesObjectKey(repository.Name, cycleMoment)

	exportExists, existsError := service.dependencies.Storage.BackupExists(executionContext, record.IssuesKey)
	if existsError != nil {
		service.recordIssueFailure(repository, record, existsError)
		return
	}
	if exportExists && !options.Force {
		return
	}

	document, buildError := service.dependencies.Exporter.BuildDocument(executionContext, repository)
	if buildError != nil {
		service.recordIssueFailure(repository, record, buildError)
		return
	}

	serialized, serializeError := issues.Serialize(document)
	if serializeError != nil {
		service.recordIssueFailure(repository, record, serializeError)
		return
	}

	exportMetadata := map[string]string{
		metadataRepositoryKeyConstant:  repository.FullName,
		metadataBackupDateKeyConstant:  cycleMoment.UTC().Format(backupDateLayoutConstant),
		metadataContentTypeKeyConstant: jsonContentTypeConstant,
		metadataTotalIssuesKeyConstant: strconv.Itoa(document.Metadata.TotalIssues),
	}

	if _, uploadError := service.dependencies.Storage.Upload(executionContext, record.IssuesKey, bytes.NewReader(serialized), int64(len(serialized)), exportMetadata); uploadError != nil {
		service.recordIssueFailure(repository, record, uploadError)
		return
	}

	record.IssuesExported = true
}

func (service *Service) recordIssueFailure(repository hosting.RepositoryDescriptor, record *BackupRecord, failure error) {
	record.IssuesFailureMessage = failure.Error()
	service.dependencies.Logger.Warn(
		issueExportFailedMessageConstant,
		zap.String(logFieldRepositoryConstant, repository.Name),
		zap.Error(failure),
	)
}

func (service *Service) failRecord(record BackupRecord, failure error) BackupRecord {
	record.Status = StatusFailed
	record.FailureKind = errkind.Classify(failure)
	record.FailureMessage = failure.Error()
	service.dependencies.Logger.Error(
		repositoryFailedMessageConstant,
		zap.String(logFieldRepositoryConstant, record.Repository),
		zap.String(logFieldErrorKindConstant, string(record.FailureKind)),
		zap.Error(failure),
	)
	return record
}

func (service *Service) logSelectionDiagnostics(allRepositories []hosting.RepositoryDescriptor) {
	logger := service.dependencies.Logger

	excludedNames := service.dependencies.Selector.ExcludedNames(allRepositories)
	if len(excludedNames) > 0 {
		for _, row := range matchrules.FormatNameColumns(excludedNames, excludedNameColumnCountConstant) {
			logger.Info(excludedNamesMessageConstant, zap.String(logFieldExcludedRowConstant, row))
		}
	}

	missingNames := service.dependencies.Selector.MissingIncludeNames(allRepositories)
	if len(missingNames) > 0 {
		logger.Warn(missingIncludesMessageConstant, zap.Strings(logFieldExcludedRowConstant, missingNames))
	}
}
