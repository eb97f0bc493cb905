package hosting

import (
	"context"
	"time"
)

// RepositoryDescriptor is an immutable snapshot of one repository taken at the
// start of a backup cycle.
type RepositoryDescriptor struct {
	Name          string
	FullName      string
	Archived      bool
	DefaultBranch string
	CloneURL      string
}

// IssueSummary captures one issue as returned by the hosting platform, pull
// requests already filtered out.
type IssueSummary struct {
	Number    int
	Title     string
	URL       string
	State     string
	Author    string
	Labels    []string
	Milestone string
	Assignees []string
	Body      string
}

// IssueComment captures one comment on an issue.
type IssueComment struct {
	Author    string
	Body      string
	CreatedAt time.Time
}

// Gateway is the narrow hosting capability consumed by the backup engine.
type Gateway interface {
	ListRepositories(executionContext context.Context, organization string) ([]RepositoryDescriptor, error)
	ListIssues(executionContext context.Context, owner string, repository string) ([]IssueSummary, error)
	ListComments(executionContext context.Context, owner string, repository string, issueNumber int) ([]IssueComment, error)
}
