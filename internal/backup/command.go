package backup

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/temirov/repovault/internal/archive"
	"github.com/temirov/repovault/internal/execshell"
	"github.com/temirov/repovault/internal/githubauth"
	"github.com/temirov/repovault/internal/hosting"
	"github.com/temirov/repovault/internal/issues"
	"github.com/temirov/repovault/internal/matchrules"
	"github.com/temirov/repovault/internal/storage"
)

const (
	commandUseConstant                 = "backup"
	commandShortDescriptionConstant    = "Back up organization repositories to object storage"
	commandLongDescriptionConstant     = "backup mirrors every selected repository of the configured organization into S3 as a compressed archive, with optional issue exports stored beside each archive."
	unexpectedArgumentsMessageConstant = "backup does not accept positional arguments"
	flagOrganizationNameConstant       = "organization"
	flagOrganizationDescription        = "Organization whose repositories are backed up (overrides configuration)"
	flagForceNameConstant              = "force"
	flagForceDescriptionConstant       = "Create a new backup even when one already exists for today"
	flagDryRunNameConstant             = "dry-run"
	flagDryRunDescriptionConstant      = "Report what would be backed up without cloning or uploading"

	summaryHeaderTemplateConstant           = "Backup summary for %s: %d succeeded, %d skipped, %d failed\n"
	summaryPlannedTemplateConstant          = "Dry run for %s: %d would be backed up, %d already current, %d failed\n"
	summaryFailureLineTemplateConstant      = "  %s: %s: %s\n"
	summaryIssueFailureLineTemplateConstant = "  %s: issue export: %s\n"
	cycleFailuresTemplateConstant           = "%d of %d repository backups failed"
)

var errUnexpectedArguments = errors.New(unexpectedArgumentsMessageConstant)

// LoggerProvider supplies a zap logger instance.
type LoggerProvider func() *zap.Logger

// ConfigurationProvider supplies the validated backup configuration.
type ConfigurationProvider func() Configuration

// CycleRunner executes one backup cycle.
type CycleRunner interface {
	RunCycle(executionContext context.Context, options RunOptions) (CycleResult, error)
}

// RunnerResolver builds the cycle runner for one invocation. Overridable in tests.
type RunnerResolver func(executionContext context.Context, logger *zap.Logger, configuration Configuration) (CycleRunner, error)

// CycleFailuresError signals that some repositories failed, mapping the cycle
// outcome to a non-zero process exit.
type CycleFailuresError struct {
	FailedCount int
	TotalCount  int
}

// Error describes the partial failure.
func (failuresError CycleFailuresError) Error() string {
	return fmt.Sprintf(cycleFailuresTemplateConstant, failuresError.FailedCount, failuresError.TotalCount)
}

// CommandBuilder assembles the Cobra command for the backup cycle.
type CommandBuilder struct {
	LoggerProvider        LoggerProvider
	ConfigurationProvider ConfigurationProvider
	RunnerResolver        RunnerResolver
}

// Build constructs the backup command.
func (builder *CommandBuilder) Build() (*cobra.Command, error) {
	command := &cobra.Command{
		Use:   commandUseConstant,
		Short: commandShortDescriptionConstant,
		Long:  commandLongDescriptionConstant,
		RunE:  builder.run,
	}

	command.Flags().String(flagOrganizationNameConstant, "", flagOrganizationDescription)
	command.Flags().Bool(flagForceNameConstant, false, flagForceDescriptionConstant)
	command.Flags().Bool(flagDryRunNameConstant, false, flagDryRunDescriptionConstant)

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

	forceValue, _ := command.Flags().GetBool(flagForceNameConstant)
	dryRunValue, _ := command.Flags().GetBool(flagDryRunNameConstant)

	logger := builder.resolveLogger()

	runner, runnerError := builder.resolveRunner(command.Context(), logger, configuration)
	if runnerError != nil {
		return runnerError
	}

	options := RunOptions{Organization: configuration.Organization, Force: forceValue, DryRun: dryRunValue}
	cycleResult, cycleError := runner.RunCycle(command.Context(), options)
	if cycleError != nil {
		return cycleError
	}

	renderSummary(command.OutOrStdout(), cycleResult, dryRunValue)

	if cycleResult.HasFailures() {
		return CycleFailuresError{FailedCount: cycleResult.FailedCount(), TotalCount: len(cycleResult.Records)}
	}

	return nil
}

func renderSummary(writer io.Writer, cycleResult CycleResult, dryRun bool) {
	if dryRun {
		fmt.Fprintf(
			writer,
			summaryPlannedTemplateConstant,
			cycleResult.Organization,
			cycleResult.PlannedCount(),
			cycleResult.SkippedCount(),
			cycleResult.FailedCount(),
		)
	} else {
		fmt.Fprintf(
			writer,
			summaryHeaderTemplateConstant,
			cycleResult.Organization,
			cycleResult.SuccessCount(),
			cycleResult.SkippedCount(),
			cycleResult.FailedCount(),
		)
	}

	for _, failedRecord := range cycleResult.FailedRecords() {
		fmt.Fprintf(writer, summaryFailureLineTemplateConstant, failedRecord.Repository, failedRecord.FailureKind, failedRecord.FailureMessage)
	}

	for _, record := range cycleResult.Records {
		if len(record.IssuesFailureMessage) > 0 {
			fmt.Fprintf(writer, summaryIssueFailureLineTemplateConstant, record.Repository, record.IssuesFailureMessage)
		}
	}
}

func (builder *CommandBuilder) resolveConfiguration() Configuration {
	if builder.ConfigurationProvider == nil {
		return Configuration{}
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

func (builder *CommandBuilder) resolveRunner(executionContext context.Context, logger *zap.Logger, configuration Configuration) (CycleRunner, error) {
	if builder.RunnerResolver != nil {
		return builder.RunnerResolver(executionContext, logger, configuration)
	}
	return newProductionRunner(executionContext, logger, configuration)
}

// newProductionRunner wires the real collaborators: GitHub gateway, S3
// gateway, git/tar executor, and the issue exporter.
func newProductionRunner(executionContext context.Context, logger *zap.Logger, configuration Configuration) (CycleRunner, error) {
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

	shellExecutor, executorError := execshell.NewShellExecutor(logger, execshell.NewOSCommandRunner())
	if executorError != nil {
		return nil, executorError
	}

	mirrorProducer, producerError := archive.NewMirrorProducer(shellExecutor, logger)
	if producerError != nil {
		return nil, producerError
	}

	var issueExporter IssueExporter
	if configuration.Metadata.Issues {
		exporter, exporterError := issues.NewExporter(hostingGateway, nil, logger)
		if exporterError != nil {
			return nil, exporterError
		}
		issueExporter = exporter
	}

	service, serviceError := NewService(ServiceDependencies{
		Lister:       hostingGateway,
		Selector:     matcher,
		Producer:     mirrorProducer,
		Storage:      storageGateway,
		Exporter:     issueExporter,
		Logger:       logger,
		AccessToken:  accessToken,
		ExportIssues: configuration.Metadata.Issues,
	})
	if serviceError != nil {
		return nil, serviceError
	}

	return service, nil
}
