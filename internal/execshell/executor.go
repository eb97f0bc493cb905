package execshell

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

const (
	gitExecutableNameConstant              = "git"
	tarExecutableNameConstant              = "tar"
	loggerNotConfiguredMessageConstant     = "shell executor logger not configured"
	runnerNotConfiguredMessageConstant     = "shell command runner not configured"
	commandStartedMessageConstant          = "running external command"
	commandCompletedMessageConstant        = "external command completed"
	commandStartFailedMessageConstant      = "external command failed to start"
	commandFailedTemplateConstant          = "%s exited with code %d%s"
	commandExecutionFailedTemplateConstant = "%s could not be executed: %s"
	standardErrorSuffixTemplateConstant    = ": %s"
	logFieldCommandNameConstant            = "command_name"
	logFieldArgumentsConstant              = "arguments"
	logFieldWorkingDirectoryConstant       = "working_directory"
	logFieldExitCodeConstant               = "exit_code"
	commandArgumentsJoinSeparatorConstant  = " "
	redactedArgumentPlaceholderConstant    = "<redacted>"
	emptyStandardErrorReplacementConstant  = ""
)

// CommandName identifies a supported executable.
type CommandName string

// Executables invoked by the backup engine.
const (
	CommandGit CommandName = CommandName(gitExecutableNameConstant)
	CommandTar CommandName = CommandName(tarExecutableNameConstant)
)

// CommandDetails describes one invocation of an external executable.
type CommandDetails struct {
	Arguments            []string
	WorkingDirectory     string
	EnvironmentVariables map[string]string
	StandardInput        []byte
	// RedactedArguments lists argument positions whose values must not be
	// logged, such as token-bearing clone URLs.
	RedactedArguments map[int]struct{}
}

// ShellCommand combines a CommandName with invocation details.
type ShellCommand struct {
	Name    CommandName
	Details CommandDetails
}

// ExecutionResult captures the observable outputs of a completed command.
type ExecutionResult struct {
	StandardOutput string
	StandardError  string
	ExitCode       int
}

// CommandRunner executes shell commands and reports their results.
type CommandRunner interface {
	Run(executionContext context.Context, command ShellCommand) (ExecutionResult, error)
}

// Construction errors for the shell executor.
var (
	ErrLoggerNotConfigured        = errors.New(loggerNotConfiguredMessageConstant)
	ErrCommandRunnerNotConfigured = errors.New(runnerNotConfiguredMessageConstant)
)

// CommandFailedError reports a command that ran to completion with a non-zero exit code.
type CommandFailedError struct {
	Command ShellCommand
	Result  ExecutionResult
}

// Error describes the command failure including trailing standard error output.
func (commandError CommandFailedError) Error() string {
	standardErrorSuffix := emptyStandardErrorReplacementConstant
	trimmedStandardError := strings.TrimSpace(commandError.Result.StandardError)
	if len(trimmedStandardError) > 0 {
		standardErrorSuffix = fmt.Sprintf(standardErrorSuffixTemplateConstant, trimmedStandardError)
	}
	return fmt.Sprintf(commandFailedTemplateConstant, commandError.Command.Name, commandError.Result.ExitCode, standardErrorSuffix)
}

// CommandExecutionError reports a command that could not be started at all.
type CommandExecutionError struct {
	Command ShellCommand
	Cause   error
}

// Error describes the execution failure.
func (executionError CommandExecutionError) Error() string {
	return fmt.Sprintf(commandExecutionFailedTemplateConstant, executionError.Command.Name, executionError.Cause)
}

// Unwrap exposes the underlying cause.
func (executionError CommandExecutionError) Unwrap() error {
	return executionError.Cause
}

// ShellExecutor runs external commands through a CommandRunner with structured lifecycle logging.
type ShellExecutor struct {
	logger *zap.Logger
	runner CommandRunner
}

// NewShellExecutor validates dependencies and constructs a ShellExecutor.
func NewShellExecutor(logger *zap.Logger, runner CommandRunner) (*ShellExecutor, error) {
	if logger == nil {
		return nil, ErrLoggerNotConfigured
	}
	if runner == nil {
		return nil, ErrCommandRunnerNotConfigured
	}
	return &ShellExecutor{logger: logger, runner: runner}, nil
}

// ExecuteGit runs the git executable with the supplied details.
func (executor *ShellExecutor) ExecuteGit(executionContext context.Context, details CommandDetails) (ExecutionResult, error) {
	return executor.execute(executionContext, ShellCommand{Name: CommandGit, Details: details})
}

// ExecuteTar runs the tar executable with the supplied details.
func (executor *ShellExecutor) ExecuteTar(executionContext context.Context, details CommandDetails) (ExecutionResult, error) {
	return executor.execute(executionContext, ShellCommand{Name: CommandTar, Details: details})
}

func (executor *ShellExecutor) execute(executionContext context.Context, command ShellCommand) (ExecutionResult, error) {
	loggableArguments := loggableCommandArguments(command.Details)

	executor.logger.Debug(
		commandStartedMessageConstant,
		zap.String(logFieldCommandNameConstant, string(command.Name)),
		zap.String(logFieldArgumentsConstant, strings.Join(loggableArguments, commandArgumentsJoinSeparatorConstant)),
		zap.String(logFieldWorkingDirectoryConstant, command.Details.WorkingDirectory),
	)

	executionResult, runError := executor.runner.Run(executionContext, command)
	if runError != nil {
		executor.logger.Error(
			commandStartFailedMessageConstant,
			zap.String(logFieldCommandNameConstant, string(command.Name)),
			zap.Error(runError),
		)
		return ExecutionResult{}, CommandExecutionError{Command: command, Cause: runError}
	}

	executor.logger.Debug(
		commandCompletedMessageConstant,
		zap.String(logFieldCommandNameConstant, string(command.Name)),
		zap.Int(logFieldExitCodeConstant, executionResult.ExitCode),
	)

	if executionResult.ExitCode != 0 {
		return ExecutionResult{}, CommandFailedError{Command: command, Result: executionResult}
	}

	return executionResult, nil
}

func loggableCommandArguments(details CommandDetails) []string {
	loggableArguments := make([]string, len(details.Arguments))
	for argumentIndex, argumentValue := range details.Arguments {
		if _, redacted := details.RedactedArguments[argumentIndex]; redacted {
			loggableArguments[argumentIndex] = redactedArgumentPlaceholderConstant
			continue
		}
		loggableArguments[argumentIndex] = argumentValue
	}
	return loggableArguments
}
