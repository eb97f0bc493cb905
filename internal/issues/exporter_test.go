package issues_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/temirov/repovault/internal/errkind"
	"github.com/temirov/repovault/internal/hosting"
	"github.com/temirov/repovault/internal/issues"
)

type fixedClock struct {
	moment time.Time
}

func (clock fixedClock) Now() time.Time { return clock.moment }

type fakeIssueReader struct {
	issues        []hosting.IssueSummary
	comments      map[int][]hosting.IssueComment
	issuesError   error
	commentsError error
	listedOwner   string
	listedName    string
}

func (reader *fakeIssueReader) ListIssues(_ context.Context, owner string, repository string) ([]hosting.IssueSummary, error) {
	reader.listedOwner = owner
	reader.listedName = repository
	if reader.issuesError != nil {
		return nil, reader.issuesError
	}
	return reader.issues, nil
}

func (reader *fakeIssueReader) ListComments(_ context.Context, _ string, _ string, issueNumber int) ([]hosting.IssueComment, error) {
	if reader.commentsError != nil {
		return nil, reader.commentsError
	}
	return reader.comments[issueNumber], nil
}

func TestBuildDocumentCountsStates(testInstance *testing.T) {
	reader := &fakeIssueReader{
		issues: []hosting.IssueSummary{
			{Number: 4, Title: "fourth", State: "closed", Author: "casey"},
			{Number: 1, Title: "first", State: "open", Author: "alex"},
			{Number: 2, Title: "second", State: "open", Author: "alex"},
			{Number: 5, Title: "fifth", State: "closed", Author: "casey"},
			{Number: 3, Title: "third", State: "open", Author: "jordan"},
		},
	}

	exporter, exporterError := issues.NewExporter(reader, fixedClock{moment: time.Date(2025, time.December, 2, 10, 0, 0, 0, time.UTC)}, zap.NewNop())
	require.NoError(testInstance, exporterError)

	document, buildError := exporter.BuildDocument(context.Background(), hosting.RepositoryDescriptor{Name: "demo", FullName: "acme/demo"})
	require.NoError(testInstance, buildError)

	require.Equal(testInstance, "acme", reader.listedOwner)
	require.Equal(testInstance, "demo", reader.listedName)

	require.Equal(testInstance, "acme/demo", document.Metadata.Repository)
	require.Equal(testInstance, "2025-12-02T10:00:00Z", document.Metadata.ExportedAt)
	require.Equal(testInstance, 5, document.Metadata.TotalIssues)
	require.Equal(testInstance, 3, document.Metadata.OpenIssues)
	require.Equal(testInstance, 2, document.Metadata.ClosedIssues)
	require.Len(testInstance, document.Issues, 5)

	for issueIndex, issueRecord := range document.Issues {
		require.Equal(testInstance, issueIndex+1, issueRecord.Number)
	}
}

func TestBuildDocumentIncludesComments(testInstance *testing.T) {
	commentMoment := time.Date(2025, time.November, 20, 8, 15, 0, 0, time.UTC)
	reader := &fakeIssueReader{
		issues: []hosting.IssueSummary{
			{
				Number:    7,
				Title:     "flaky pipeline",
				URL:       "https://github.com/acme/demo/issues/7",
				State:     "open",
				Author:    "alex",
				Labels:    []string{"bug", "ci"},
				Milestone: "v2.0",
				Assignees: []string{"jordan"},
				Body:      "pipeline fails intermittently",
			},
		},
		comments: map[int][]hosting.IssueComment{
			7: {
				{Author: "jordan", Body: "reproduced on main", CreatedAt: commentMoment},
			},
		},
	}

	exporter, exporterError := issues.NewExporter(reader, fixedClock{moment: commentMoment}, zap.NewNop())
	require.NoError(testInstance, exporterError)

	document, buildError := exporter.BuildDocument(context.Background(), hosting.RepositoryDescriptor{Name: "demo", FullName: "acme/demo"})
	require.NoError(testInstance, buildError)

	require.Len(testInstance, document.Issues, 1)
	issueRecord := document.Issues[0]
	require.Equal(testInstance, []string{"bug", "ci"}, issueRecord.Labels)
	require.Equal(testInstance, "v2.0", issueRecord.Milestone)
	require.Len(testInstance, issueRecord.Comments, 1)
	require.Equal(testInstance, "jordan", issueRecord.Comments[0].Author)
	require.Equal(testInstance, "2025-11-20T08:15:00Z", issueRecord.Comments[0].CreatedAt)
}

func TestSerializeShape(testInstance *testing.T) {
	reader := &fakeIssueReader{
		issues: []hosting.IssueSummary{
			{Number: 1, Title: "first", State: "open", Author: "alex"},
		},
	}

	exporter, exporterError := issues.NewExporter(reader, fixedClock{moment: time.Date(2025, time.December, 2, 10, 0, 0, 0, time.UTC)}, zap.NewNop())
	require.NoError(testInstance, exporterError)

	document, buildError := exporter.BuildDocument(context.Background(), hosting.RepositoryDescriptor{Name: "demo", FullName: "acme/demo"})
	require.NoError(testInstance, buildError)

	serialized, serializeError := issues.Serialize(document)
	require.NoError(testInstance, serializeError)

	var decoded map[string]any
	require.NoError(testInstance, json.Unmarshal(serialized, &decoded))
	require.Contains(testInstance, decoded, "metadata")
	require.Contains(testInstance, decoded, "issues")

	metadata := decoded["metadata"].(map[string]any)
	require.Equal(testInstance, "acme/demo", metadata["repository"])
	require.Equal(testInstance, float64(1), metadata["total_issues"])

	firstIssue := decoded["issues"].([]any)[0].(map[string]any)
	require.NotContains(testInstance, firstIssue, "milestone")
	require.Equal(testInstance, []any{}, firstIssue["labels"])
	require.Equal(testInstance, []any{}, firstIssue["comments"])
}

func TestBuildDocumentPropagatesHostingErrors(testInstance *testing.T) {
	hostingFailure := errkind.HostingError{Operation: "list issues", Target: "acme/demo", Cause: errors.New("rate limited")}

	testCases := []struct {
		name   string
		reader *fakeIssueReader
	}{
		{name: "issue_listing_failure", reader: &fakeIssueReader{issuesError: hostingFailure}},
		{
			name: "comment_listing_failure",
			reader: &fakeIssueReader{
				issues:        []hosting.IssueSummary{{Number: 1, State: "open"}},
				commentsError: hostingFailure,
			},
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			exporter, exporterError := issues.NewExporter(testCase.reader, nil, zap.NewNop())
			require.NoError(testInstance, exporterError)

			_, buildError := exporter.BuildDocument(context.Background(), hosting.RepositoryDescriptor{Name: "demo", FullName: "acme/demo"})
			require.Error(testInstance, buildError)
			require.Equal(testInstance, errkind.KindHosting, errkind.Classify(buildError))
		})
	}
}

func TestBuildDocumentRejectsMalformedFullName(testInstance *testing.T) {
	exporter, exporterError := issues.NewExporter(&fakeIssueReader{}, nil, zap.NewNop())
	require.NoError(testInstance, exporterError)

	_, buildError := exporter.BuildDocument(context.Background(), hosting.RepositoryDescriptor{Name: "demo", FullName: "demo"})
	require.Error(testInstance, buildError)
}
