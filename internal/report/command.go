package report

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/temirov/repovault/internal/backup"
	"github.com/temirov/repovault/internal/githubauth"
	"github.com/temirov/repovault/internal/hosting"
	"github.com/temirov/repovault/internal/matchrules"
	"github.com/temirov/repovault/internal/storage"
)

const (
	commandUseConstant                 = "report"
	commandShortDescriptionConstant    = "Summarize stored backups for the configured organization"
	commandLongDescriptionConstant     = "report aggregates the stored backup objects of every monitored repository into counts, total bytes, and monthly issue-export totals."
	unexpectedArgumentsMessageConstant = "report does not accept positional arguments"
	flagOrganizationNameConstant       = "organization"
	flagOrganizationDescription        = "Organization whose backups are summarized (overrides configuration)"

	reportHeaderTemplateConstant      = "Backup report for %s\n"
	monitoredLineTemplateConstant     = "Repositories monitored: %d\n"
	backedUpLineTemplateConstant      = "Repositories with backups: %d\n"
	totalBytesLineTemplateConstant    = "Total stored bytes: %d\n"
	repositoryLineTemplateConstant    = "  %s: %d archives, %d issue exports, %d bytes, last backup %s\n"
	neverBackedUpLineTemplateConstant = "  %s: no backups\n"
	exportsHeaderConstant             = "Issue exports by month:\n"
	exportsLineTemplateConstant       = "  %s: %d\n"
	reminderLineConstant              = "Reminder: month-end backup review is due soon.\n"
	lastBackupDateLayoutConstant      = "2006-01-02"
)

var errUnexpectedArguments = errors.New(unexpectedArgumentsMessageConstant)

// LoggerProvider supplies a zap logger instance.
type LoggerProvider func() *zap.Logger

// ConfigurationProvider supplies the validated backup configuration. The
// report command reads the same section: organization, rules, and S3 target.
type ConfigurationProvider func() backup.Configuration

// ReportRunner builds one backup report.
type ReportRunner interface {
	BuildReport(executionContext context.Context, organization string) (BackupReport, error)
}

// RunnerResolver builds the report runner for one invocation. Overridable in tests.
type RunnerResolver func(executionContext context.Context, logger *zap.Logger, configuration backup.Configuration) (ReportRunner, error)

// CommandBuilder assembles the Cobra command for backup reporting.
type CommandBuilder struct {
	LoggerProvider        LoggerProvider
	ConfigurationProvider ConfigurationProvider
	RunnerResolver        RunnerResolver
}

// Build constructs the report command.
func (builder *CommandBuilder) Build() (*cobra.Command, error) {
	command := &cobra.Command{
		Use:   commandUseConstant,
		Short: commandShortDescriptionConstant,
		Long:  commandLongDescriptionConstant,
		RunE:  builder.run,
	}

	command.Flags().String(flagOrganizationNameConstant, "", flagOrganizationDescription)

	return command, nil
}

func (builder *CommandBuilder) run(command *cobra.Command, arguments []string) error {
	if len(arguments) > 0 {
		return errUnexpectedArguments
	}

	configuration := builder.resolveConfiguration()

	organizationValue, _ := command.Flags().GetString(flagOrganizationNameConstant)
	trimmedOrganization := strings.TrimSpace(organizationValue)
	if len(trimmedOrganization) > 0 {
		configuration.Organization = trimmedOrganization
	}

	if validationError := configuration.Validate(); validationError != nil {
		return validationError
	}

	logger := builder.resolveLogger()

	runner, runnerError := builder.resolveRunner(command.Context(), logger, configuration)
	if runnerError != nil {
		return runnerError
	}

	backupReport, reportError := runner.BuildReport(command.Context(), configuration.Organization)
	if reportError != nil {
		return reportError
	}

	renderReport(command.OutOrStdout(), backupReport)
	return nil
}

func renderReport(writer io.Writer, backupReport BackupReport) {
	fmt.Fprintf(writer, reportHeaderTemplateConstant, backupReport.Organization)
	fmt.Fprintf(writer, monitoredLineTemplateConstant, backupReport.TotalRepositories)
	fmt.Fprintf(writer, backedUpLineTemplateConstant, backupReport.RepositoriesWithBackups)
	fmt.Fprintf(writer, totalBytesLineTemplateConstant, backupReport.TotalSizeBytes)

	for _, summary := range backupReport.Repositories {
		if summary.ArchiveCount == 0 && summary.IssueExportCount == 0 {
			fmt.Fprintf(writer, neverBackedUpLineTemplateConstant, summary.Repository)
			continue
		}
		fmt.Fprintf(
			writer,
			repositoryLineTemplateConstant,
			summary.Repository,
			summary.ArchiveCount,
			summary.IssueExportCount,
			summary.TotalSizeBytes,
			summary.LastBackup.UTC().Format(lastBackupDateLayoutConstant),
		)
	}

	if len(backupReport.IssueExportsByMonth) > 0 {
		fmt.Fprint(writer, exportsHeaderConstant)
		for _, monthlyExports := range backupReport.IssueExportsByMonth {
			fmt.Fprintf(writer, exportsLineTemplateConstant, monthlyExports.Month, monthlyExports.Count)
		}
	}

	if backupReport.ReviewerReminder {
		fmt.Fprint(writer, reminderLineConstant)
	}
}

func (builder *CommandBuilder) resolveConfiguration() backup.Configuration {
	if builder.ConfigurationProvider == nil {
		return backup.Configuration{}
	}
	return builder.ConfigurationProvider()
}

func (builder *CommandBuilder) resolveLogger() *zap.Logger {
	if builder.LoggerProvider == nil {
		return zap.NewNop()
	}
	logger := builder.LoggerProvider()
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}

func (builder *CommandBuilder) resolveRunner(executionContext context.Context, logger *zap.Logger, configuration backup.Configuration) (ReportRunner, error) {
	if builder.RunnerResolver != nil {
		return builder.RunnerResolver(executionContext, logger, configuration)
	}
	return newProductionRunner(executionContext, logger, configuration)
}

func newProductionRunner(executionContext context.Context, logger *zap.Logger, configuration backup.Configuration) (ReportRunner, error) {
	accessToken, tokenError := githubauth.RequireToken(nil)
	if tokenError != nil {
		return nil, tokenError
	}

	hostingGateway := hosting.NewGitHubGateway(executionContext, accessToken)

	matcher, matcherError := matchrules.NewMatcher(configuration.Rules)
	if matcherError != nil {
		return nil, matcherError
	}

	objectClient, clientError := storage.NewObjectClient(executionContext, configuration.S3.Region)
	if clientError != nil {
		return nil, clientError
	}

	storageGateway, storageError := storage.NewGateway(objectClient, configuration.S3, logger)
	if storageError != nil {
		return nil, storageError
	}

	reportBuilder, builderError := NewBuilder(hostingGateway, matcher, storageGateway, nil, logger)
	if builderError != nil {
		return nil, builderError
	}

	return reportBuilder, nil
}
