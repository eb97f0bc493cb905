package issues

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/temirov/repovault/internal/hosting"
)

const (
	gatewayNotConfiguredMessageConstant = "issue exporter hosting gateway not configured"
	openIssueStateConstant              = "open"
	closedIssueStateConstant            = "closed"
	fullNameSeparatorConstant           = "/"
	fullNamePartCountConstant           = 2
	malformedFullNameTemplateConstant   = "repository full name %q is not owner/name"
	serializationErrorTemplateConstant  = "unable to serialize issue export for %s: %w"
	documentBuiltMessageConstant        = "issue export document built"
	logFieldRepositoryConstant          = "repository"
	logFieldTotalIssuesConstant         = "total_issues"
	jsonIndentConstant                  = "  "
	jsonPrefixConstant                  = ""
)

// ErrGatewayNotConfigured indicates the exporter was constructed without a hosting gateway.
var ErrGatewayNotConfigured = errors.New(gatewayNotConfiguredMessageConstant)

// Clock supplies the current time so export timestamps are testable.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// IssueReader is the hosting capability the exporter consumes.
type IssueReader interface {
	ListIssues(executionContext context.Context, owner string, repository string) ([]hosting.IssueSummary, error)
	ListComments(executionContext context.Context, owner string, repository string, issueNumber int) ([]hosting.IssueComment, error)
}

// DocumentMetadata summarizes an export document.
type DocumentMetadata struct {
	Repository   string `json:"repository"`
	ExportedAt   string `json:"exported_at"`
	TotalIssues  int    `json:"total_issues"`
	OpenIssues   int    `json:"open_issues"`
	ClosedIssues int    `json:"closed_issues"`
}

// CommentRecord is one serialized issue comment.
type CommentRecord struct {
	Author    string `json:"author"`
	Body      string `json:"body"`
	CreatedAt string `json:"created_at"`
}

// IssueRecord is one serialized issue with its comments.
type IssueRecord struct {
	Number    int             `json:"number"`
	Title     string          `json:"title"`
	URL       string          `json:"url"`
	State     string          `json:"state"`
	Author    string          `json:"author"`
	Labels    []string        `json:"labels"`
	Milestone string          `json:"milestone,omitempty"`
	Assignees []string        `json:"assignees"`
	Body      string          `json:"body"`
	Comments  []CommentRecord `json:"comments"`
}

// ExportDocument is the complete issue-export payload stored beside an archive.
type ExportDocument struct {
	Metadata DocumentMetadata `json:"metadata"`
	Issues   []IssueRecord    `json:"issues"`
}

// Exporter assembles issue-export documents from hosting data.
type Exporter struct {
	reader IssueReader
	clock  Clock
	logger *zap.Logger
}

// NewExporter validates dependencies and constructs an Exporter.
func NewExporter(reader IssueReader, clock Clock, logger *zap.Logger) (*Exporter, error) {
	if reader == nil {
		return nil, ErrGatewayNotConfigured
	}
	if clock == nil {
		clock = systemClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Exporter{reader: reader, clock: clock, logger: logger}, nil
}

// BuildDocument fetches every issue and its comments for the repository and
// assembles the export document, issues ordered by ascending number.
func (exporter *Exporter) BuildDocument(executionContext context.Context, repository hosting.RepositoryDescriptor) (ExportDocument, error) {
	ownerName, repositoryName, splitError := splitFullName(repository.FullName)
	if splitError != nil {
		return ExportDocument{}, splitError
	}

	issueSummaries, listError := exporter.reader.ListIssues(executionContext, ownerName, repositoryName)
	if listError != nil {
		return ExportDocument{}, listError
	}

	issueRecords := make([]IssueRecord, 0, len(issueSummaries))
	openIssueCount := 0
	closedIssueCount := 0
	for _, issueSummary := range issueSummaries {
		comments, commentsError := exporter.reader.ListComments(executionContext, ownerName, repositoryName, issueSummary.Number)
		if commentsError != nil {
			return ExportDocument{}, commentsError
		}

		switch issueSummary.State {
		case openIssueStateConstant:
			openIssueCount++
		case closedIssueStateConstant:
			closedIssueCount++
		}

		issueRecords = append(issueRecords, issueRecordFromSummary(issueSummary, comments))
	}

	sort.Slice(issueRecords, func(firstIndex, secondIndex int) bool {
		return issueRecords[firstIndex].Number < issueRecords[secondIndex].Number
	})

	document := ExportDocument{
		Metadata: DocumentMetadata{
			Repository:   repository.FullName,
			ExportedAt:   exporter.clock.Now().UTC().Format(time.RFC3339),
			TotalIssues:  len(issueRecords),
			OpenIssues:   openIssueCount,
			ClosedIssues: closedIssueCount,
		},
		Issues: issueRecords,
	}

	exporter.logger.Debug(
		documentBuiltMessageConstant,
		zap.String(logFieldRepositoryConstant, repository.FullName),
		zap.Int(logFieldTotalIssuesConstant, document.Metadata.TotalIssues),
	)

	return document, nil
}

// Serialize renders the document as indented JSON.
func Serialize(document ExportDocument) ([]byte, error) {
	serialized, marshalError := json.MarshalIndent(document, jsonPrefixConstant, jsonIndentConstant)
	if marshalError != nil {
		return nil, fmt.Errorf(serializationErrorTemplateConstant, document.Metadata.Repository, marshalError)
	}
	return serialized, nil
}

func issueRecordFromSummary(issueSummary hosting.IssueSummary, comments []hosting.IssueComment) IssueRecord {
	commentRecords := make([]CommentRecord, 0, len(comments))
	for _, comment := range comments {
		commentRecords = append(commentRecords, CommentRecord{
			Author:    comment.Author,
			Body:      comment.Body,
			CreatedAt: comment.CreatedAt.UTC().Format(time.RFC3339),
		})
	}

	labels := issueSummary.Labels
	if labels == nil {
		labels = []string{}
	}
	assignees := issueSummary.Assignees
	if assignees == nil {
		assignees = []string{}
	}

	return IssueRecord{
		Number:    issueSummary.Number,
		Title:     issueSummary.Title,
		URL:       issueSummary.URL,
		State:     issueSummary.State,
		Author:    issueSummary.Author,
		Labels:    labels,
		Milestone: issueSummary.Milestone,
		Assignees: assignees,
		Body:      issueSummary.Body,
		Comments:  commentRecords,
	}
}

func splitFullName(fullName string) (string, string, error) {
	nameParts := strings.SplitN(fullName, fullNameSeparatorConstant, fullNamePartCountConstant)
	if len(nameParts) != fullNamePartCountConstant || len(nameParts[0]) == 0 || len(nameParts[1]) == 0 {
		return "", "", fmt.Errorf(malformedFullNameTemplateConstant, fullName)
	}
	return nameParts[0], nameParts[1], nil
}
