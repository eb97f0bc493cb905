package hosting

import (
	"context"
	"fmt"

	"github.com/google/go-github/v55/github"
	"golang.org/x/oauth2"

	"github.com/temirov/repovault/internal/errkind"
)

const (
	listRepositoriesOperationNameConstant = "ListRepositories"
	listIssuesOperationNameConstant       = "ListIssues"
	listCommentsOperationNameConstant     = "ListComments"
	repositoryListTypeAllConstant         = "all"
	issueStateAllConstant                 = "all"
	listingPageSizeConstant               = 100
	issueTargetTemplateConstant           = "%s/%s#%d"
	repositoryTargetTemplateConstant      = "%s/%s"
)

// GitHubGateway implements Gateway against the GitHub REST API.
type GitHubGateway struct {
	client *github.Client
}

// NewGitHubGateway constructs a gateway authenticated with the supplied token.
func NewGitHubGateway(executionContext context.Context, token string) *GitHubGateway {
	tokenSource := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	httpClient := oauth2.NewClient(executionContext, tokenSource)
	return &GitHubGateway{client: github.NewClient(httpClient)}
}

// NewGitHubGatewayFromClient wraps an existing client, primarily for tests.
func NewGitHubGatewayFromClient(client *github.Client) *GitHubGateway {
	return &GitHubGateway{client: client}
}

// ListRepositories returns every repository of the organization, all pages exhausted.
func (gateway *GitHubGateway) ListRepositories(executionContext context.Context, organization string) ([]RepositoryDescriptor, error) {
	listOptions := &github.RepositoryListByOrgOptions{
		Type:        repositoryListTypeAllConstant,
		ListOptions: github.ListOptions{PerPage: listingPageSizeConstant},
	}

	var descriptors []RepositoryDescriptor
	for {
		repositories, response, listError := gateway.client.Repositories.ListByOrg(executionContext, organization, listOptions)
		if listError != nil {
			return nil, errkind.HostingError{Operation: listRepositoriesOperationNameConstant, Target: organization, Cause: listError}
		}

		for _, repository := range repositories {
			descriptors = append(descriptors, RepositoryDescriptor{
				Name:          repository.GetName(),
				FullName:      repository.GetFullName(),
				Archived:      repository.GetArchived(),
				DefaultBranch: repository.GetDefaultBranch(),
				CloneURL:      repository.GetCloneURL(),
			})
		}

		if response.NextPage == 0 {
			break
		}
		listOptions.Page = response.NextPage
	}

	return descriptors, nil
}

// ListIssues returns every issue of the repository, all pages exhausted and
// pull requests filtered out.
func (gateway *GitHubGateway) ListIssues(executionContext context.Context, owner string, repository string) ([]IssueSummary, error) {
	listOptions := &github.IssueListByRepoOptions{
		State:       issueStateAllConstant,
		ListOptions: github.ListOptions{PerPage: listingPageSizeConstant},
	}

	repositoryTarget := fmt.Sprintf(repositoryTargetTemplateConstant, owner, repository)

	var summaries []IssueSummary
	for {
		issues, response, listError := gateway.client.Issues.ListByRepo(executionContext, owner, repository, listOptions)
		if listError != nil {
			return nil, errkind.HostingError{Operation: listIssuesOperationNameConstant, Target: repositoryTarget, Cause: listError}
		}

		for _, issue := range issues {
			if issue.IsPullRequest() {
				continue
			}
			summaries = append(summaries, issueSummaryFromAPI(issue))
		}

		if response.NextPage == 0 {
			break
		}
		listOptions.Page = response.NextPage
	}

	return summaries, nil
}

// ListComments returns every comment of the issue, all pages exhausted.
func (gateway *GitHubGateway) ListComments(executionContext context.Context, owner string, repository string, issueNumber int) ([]IssueComment, error) {
	listOptions := &github.IssueListCommentsOptions{
		ListOptions: github.ListOptions{PerPage: listingPageSizeConstant},
	}

	issueTarget := fmt.Sprintf(issueTargetTemplateConstant, owner, repository, issueNumber)

	var comments []IssueComment
	for {
		pagedComments, response, listError := gateway.client.Issues.ListComments(executionContext, owner, repository, issueNumber, listOptions)
		if listError != nil {
			return nil, errkind.HostingError{Operation: listCommentsOperationNameConstant, Target: issueTarget, Cause: listError}
		}

		for _, comment := range pagedComments {
			comments = append(comments, IssueComment{
				Author:    comment.GetUser().GetLogin(),
				Body:      comment.GetBody(),
				CreatedAt: comment.GetCreatedAt().Time,
			})
		}

		if response.NextPage == 0 {
			break
		}
		listOptions.Page = response.NextPage
	}

	return comments, nil
}

func issueSummaryFromAPI(issue *github.Issue) IssueSummary {
	labels := make([]string, 0, len(issue.Labels))
	for _, label := range issue.Labels {
		labels = append(labels, label.GetName())
	}

	assignees := make([]string, 0, len(issue.Assignees))
	for _, assignee := range issue.Assignees {
		assignees = append(assignees, assignee.GetLogin())
	}

	return IssueSummary{
		Number:    issue.GetNumber(),
		Title:     issue.GetTitle(),
		URL:       issue.GetHTMLURL(),
		State:     issue.GetState(),
		Author:    issue.GetUser().GetLogin(),
		Labels:    labels,
		Milestone: issue.GetMilestone().GetTitle(),
		Assignees: assignees,
		Body:      issue.GetBody(),
	}
}
