package backup_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/temirov/repovault/internal/backup"
	"github.com/temirov/repovault/internal/errkind"
)

type stubRunner struct {
	result         backup.CycleResult
	receivedOption backup.RunOptions
}

func (runner *stubRunner) RunCycle(_ context.Context, options backup.RunOptions) (backup.CycleResult, error) {
	runner.receivedOption = options
	runner.result.Organization = options.Organization
	return runner.result, nil
}

func validCommandConfiguration() backup.Configuration {
	configuration := backup.Configuration{Organization: "acme"}
	configuration.S3.Bucket = "backup-bucket"
	return configuration
}

func buildCommand(testInstance *testing.T, runner backup.CycleRunner, configuration backup.Configuration) (*cobraCommandHarness, error) {
	testInstance.Helper()

	builder := &backup.CommandBuilder{
		LoggerProvider:        func() *zap.Logger { return zap.NewNop() },
		ConfigurationProvider: func() backup.Configuration { return configuration },
		RunnerResolver: func(_ context.Context, _ *zap.Logger, _ backup.Configuration) (backup.CycleRunner, error) {
			return runner, nil
		},
	}

	command, buildError := builder.Build()
	require.NoError(testInstance, buildError)

	outputBuffer := &bytes.Buffer{}
	command.SetOut(outputBuffer)
	command.SetErr(outputBuffer)

	return &cobraCommandHarness{command: command, output: outputBuffer}, nil
}

type cobraCommandHarness struct {
	command *cobra.Command
	output  *bytes.Buffer
}

func (harness *cobraCommandHarness) execute(arguments ...string) error {
	harness.command.SetArgs(arguments)
	return harness.command.ExecuteContext(context.Background())
}

func TestBackupCommandRendersSummary(testInstance *testing.T) {
	runner := &stubRunner{
		result: backup.CycleResult{
			Records: []backup.BackupRecord{
				{Repository: "alpha", Status: backup.StatusSuccess},
				{Repository: "beta", Status: backup.StatusSkipped},
			},
		},
	}

	harness, harnessError := buildCommand(testInstance, runner, validCommandConfiguration())
	require.NoError(testInstance, harnessError)

	require.NoError(testInstance, harness.execute())
	require.Contains(testInstance, harness.output.String(), "Backup summary for acme: 1 succeeded, 1 skipped, 0 failed")
	require.Equal(testInstance, "acme", runner.receivedOption.Organization)
	require.False(testInstance, runner.receivedOption.Force)
	require.False(testInstance, runner.receivedOption.DryRun)
}

func TestBackupCommandReportsFailuresWithError(testInstance *testing.T) {
	runner := &stubRunner{
		result: backup.CycleResult{
			Records: []backup.BackupRecord{
				{Repository: "alpha", Status: backup.StatusSuccess},
				{Repository: "broken", Status: backup.StatusFailed, FailureKind: errkind.KindArchive, FailureMessage: "clone failed"},
			},
		},
	}

	harness, harnessError := buildCommand(testInstance, runner, validCommandConfiguration())
	require.NoError(testInstance, harnessError)

	executeError := harness.execute()
	require.Error(testInstance, executeError)

	var failuresError backup.CycleFailuresError
	require.ErrorAs(testInstance, executeError, &failuresError)
	require.Equal(testInstance, 1, failuresError.FailedCount)
	require.Equal(testInstance, 2, failuresError.TotalCount)

	require.Contains(testInstance, harness.output.String(), "broken: archive: clone failed")
}

func TestBackupCommandFlags(testInstance *testing.T) {
	runner := &stubRunner{result: backup.CycleResult{}}

	harness, harnessError := buildCommand(testInstance, runner, validCommandConfiguration())
	require.NoError(testInstance, harnessError)

	require.NoError(testInstance, harness.execute("--organization", "other-org", "--force", "--dry-run"))
	require.Equal(testInstance, "other-org", runner.receivedOption.Organization)
	require.True(testInstance, runner.receivedOption.Force)
	require.True(testInstance, runner.receivedOption.DryRun)
	require.Contains(testInstance, harness.output.String(), "Dry run for other-org")
}

func TestBackupCommandRejectsPositionalArguments(testInstance *testing.T) {
	harness, harnessError := buildCommand(testInstance, &stubRunner{}, validCommandConfiguration())
	require.NoError(testInstance, harnessError)

	require.Error(testInstance, harness.execute("unexpected"))
}

func TestBackupCommandValidatesConfiguration(testInstance *testing.T) {
	missingOrganization := backup.Configuration{}
	missingOrganization.S3.Bucket = "backup-bucket"

	harness, harnessError := buildCommand(testInstance, &stubRunner{}, missingOrganization)
	require.NoError(testInstance, harnessError)

	executeError := harness.execute()
	require.Error(testInstance, executeError)
	require.Equal(testInstance, errkind.KindConfiguration, errkind.Classify(executeError))
}
