package archive

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/temirov/repovault/internal/errkind"
	"github.com/temirov/repovault/internal/execshell"
)

const (
	executorNotConfiguredMessageConstant = "archive command executor not configured"
	temporaryDirectoryPatternConstant    = "repovault-*"
	mirrorDirectorySuffixConstant        = ".git"
	cloneSubcommandConstant              = "clone"
	mirrorFlagConstant                   = "--mirror"
	tarCreateFlagConstant                = "-czf"
	tarDirectoryFlagConstant             = "-C"
	insecureSchemePrefixConstant         = "https://"
	tokenCredentialTemplateConstant      = "https://x-access-token:%s@"
	workspaceStageNameConstant           = "workspace"
	cloneStageNameConstant               = "clone"
	packageStageNameConstant             = "package"
	inspectStageNameConstant             = "inspect"
	mirrorCreatedMessageConstant         = "mirror archive created"
	logFieldRepositoryConstant           = "repository"
	logFieldArchivePathConstant          = "archive_path"
	logFieldSizeBytesConstant            = "size_bytes"
	cloneURLArgumentIndexConstant        = 2
)

// ErrExecutorNotConfigured indicates the producer was constructed without a command executor.
var ErrExecutorNotConfigured = errors.New(executorNotConfiguredMessageConstant)

// CommandExecutor runs the external git and tar commands the producer depends on.
type CommandExecutor interface {
	ExecuteGit(executionContext context.Context, details execshell.CommandDetails) (execshell.ExecutionResult, error)
	ExecuteTar(executionContext context.Context, details execshell.CommandDetails) (execshell.ExecutionResult, error)
}

// Artifact describes a packaged mirror archive on local disk.
type Artifact struct {
	Path      string
	SizeBytes int64
}

// MirrorProducer clones repositories as bare mirrors and packages them into
// gzip-compressed tarballs inside a per-repository temporary workspace.
type MirrorProducer struct {
	executor CommandExecutor
	logger   *zap.Logger
}

// NewMirrorProducer validates dependencies and constructs a MirrorProducer.
func NewMirrorProducer(executor CommandExecutor, logger *zap.Logger) (*MirrorProducer, error) {
	if executor == nil {
		return nil, ErrExecutorNotConfigured
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MirrorProducer{executor: executor, logger: logger}, nil
}

// Produce clones the repository with --mirror, packages the mirror into
// archiveFileName, and returns the artifact together with a cleanup function
// that removes the temporary workspace. The cleanup function is non-nil on
// every return path that created the workspace, including failures.
func (producer *MirrorProducer) Produce(executionContext context.Context, repositoryName string, cloneURL string, accessToken string, archiveFileName string) (Artifact, func(), error) {
	workspacePath, workspaceError := os.MkdirTemp("", temporaryDirectoryPatternConstant)
	if workspaceError != nil {
		return Artifact{}, func() {}, errkind.ArchiveError{Repository: repositoryName, Stage: workspaceStageNameConstant, Cause: workspaceError}
	}
	cleanup := func() { _ = os.RemoveAll(workspacePath) }

	mirrorDirectoryName := repositoryName + mirrorDirectorySuffixConstant
	mirrorPath := filepath.Join(workspacePath, mirrorDirectoryName)

	cloneDetails := execshell.CommandDetails{
		Arguments:         []string{cloneSubcommandConstant, mirrorFlagConstant, authenticatedCloneURL(cloneURL, accessToken), mirrorPath},
		RedactedArguments: map[int]struct{}{cloneURLArgumentIndexConstant: {}},
	}
	if _, cloneError := producer.executor.ExecuteGit(executionContext, cloneDetails); cloneError != nil {
		return Artifact{}, cleanup, errkind.ArchiveError{Repository: repositoryName, Stage: cloneStageNameConstant, Cause: cloneError}
	}

	archivePath := filepath.Join(workspacePath, archiveFileName)
	packageDetails := execshell.CommandDetails{
		Arguments: []string{tarCreateFlagConstant, archivePath, tarDirectoryFlagConstant, workspacePath, mirrorDirectoryName},
	}
	if _, packageError := producer.executor.ExecuteTar(executionContext, packageDetails); packageError != nil {
		return Artifact{}, cleanup, errkind.ArchiveError{Repository: repositoryName, Stage: packageStageNameConstant, Cause: packageError}
	}

	archiveInformation, statError := os.Stat(archivePath)
	if statError != nil {
		return Artifact{}, cleanup, errkind.ArchiveError{Repository: repositoryName, Stage: inspectStageNameConstant, Cause: statError}
	}

	producer.logger.Debug(
		mirrorCreatedMessageConstant,
		zap.String(logFieldRepositoryConstant, repositoryName),
		zap.String(logFieldArchivePathConstant, archivePath),
		zap.Int64(logFieldSizeBytesConstant, archiveInformation.Size()),
	)

	return Artifact{Path: archivePath, SizeBytes: archiveInformation.Size()}, cleanup, nil
}

// authenticatedCloneURL injects installation credentials into an HTTPS clone
// URL. The resulting URL must never reach logs; the clone argument is redacted.
func authenticatedCloneURL(cloneURL string, accessToken string) string {
	if len(accessToken) == 0 {
		return cloneURL
	}
	credentialPrefix := fmt.Sprintf(tokenCredentialTemplateConstant, accessToken)
	return strings.Replace(cloneURL, insecureSchemePrefixConstant, credentialPrefix, 1)
}
