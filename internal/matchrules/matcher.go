package matchrules

import (
	"regexp"
	"sort"
	"strings"

	"github.com/temirov/repovault/internal/errkind"
	"github.com/temirov/repovault/internal/hosting"
)

const (
	includePatternsFieldNameConstant = "patterns"
	excludePatternsFieldNameConstant = "exclude_patterns"
	invalidPatternMessageConstant    = "invalid regular expression"
	columnPaddingWidthConstant       = 2
	defaultColumnCountConstant       = 3
	columnRowIndentConstant          = "  "
)

// RuleSet carries the raw selection rules loaded from configuration.
type RuleSet struct {
	IncludePatterns []string `mapstructure:"patterns"`
	IncludeNames    []string `mapstructure:"repositories"`
	ExcludeArchived bool     `mapstructure:"exclude_archived"`
	ExcludePatterns []string `mapstructure:"exclude_patterns"`
	ExcludeNames    []string `mapstructure:"exclude_repositories"`
}

// Matcher decides repository inclusion from a compiled rule set. Exclusion
// rules always take precedence over inclusion rules, including exact-name
// includes.
type Matcher struct {
	includePatterns []*regexp.Regexp
	includeNames    map[string]struct{}
	excludeArchived bool
	excludePatterns []*regexp.Regexp
	excludeNames    map[string]struct{}
}

// NewMatcher compiles the rule set. Pattern compilation failures are
// configuration errors, fatal at load time.
func NewMatcher(rules RuleSet) (*Matcher, error) {
	includePatterns, includeCompileError := compilePatterns(rules.IncludePatterns, includePatternsFieldNameConstant)
	if includeCompileError != nil {
		return nil, includeCompileError
	}

	excludePatterns, excludeCompileError := compilePatterns(rules.ExcludePatterns, excludePatternsFieldNameConstant)
	if excludeCompileError != nil {
		return nil, excludeCompileError
	}

	return &Matcher{
		includePatterns: includePatterns,
		includeNames:    nameSet(rules.IncludeNames),
		excludeArchived: rules.ExcludeArchived,
		excludePatterns: excludePatterns,
		excludeNames:    nameSet(rules.ExcludeNames),
	}, nil
}

// Select filters repositories in order: archived filter, include rules
// (default-allow when no include rules are configured), then exclude rules.
func (matcher *Matcher) Select(repositories []hosting.RepositoryDescriptor) []hosting.RepositoryDescriptor {
	selected := make([]hosting.RepositoryDescriptor, 0, len(repositories))
	for _, descriptor := range repositories {
		if matcher.excludeArchived && descriptor.Archived {
			continue
		}
		if !matcher.included(descriptor.Name) {
			continue
		}
		if matcher.excluded(descriptor.Name) {
			continue
		}
		selected = append(selected, descriptor)
	}
	return selected
}

// ExcludedNames reports the sorted names of repositories that matched an
// include rule but were removed by an exclude rule, for diagnostic logging.
func (matcher *Matcher) ExcludedNames(repositories []hosting.RepositoryDescriptor) []string {
	var excludedNames []string
	for _, descriptor := range repositories {
		if matcher.excludeArchived && descriptor.Archived {
			continue
		}
		if !matcher.included(descriptor.Name) {
			continue
		}
		if matcher.excluded(descriptor.Name) {
			excludedNames = append(excludedNames, descriptor.Name)
		}
	}
	sort.Strings(excludedNames)
	return excludedNames
}

// MissingIncludeNames reports configured exact include names absent from the
// listing, which usually means a private or misspelled repository.
func (matcher *Matcher) MissingIncludeNames(repositories []hosting.RepositoryDescriptor) []string {
	listedNames := make(map[string]struct{}, len(repositories))
	for _, descriptor := range repositories {
		listedNames[descriptor.Name] = struct{}{}
	}

	var missingNames []string
	for includeName := range matcher.includeNames {
		if _, listed := listedNames[includeName]; !listed {
			missingNames = append(missingNames, includeName)
		}
	}
	sort.Strings(missingNames)
	return missingNames
}

// FormatNameColumns lays out names in fixed-width columns for compact logging.
func FormatNameColumns(names []string, columnCount int) []string {
	if len(names) == 0 {
		return nil
	}
	if columnCount <= 0 {
		columnCount = defaultColumnCountConstant
	}

	columnWidth := 0
	for _, name := range names {
		if len(name) > columnWidth {
			columnWidth = len(name)
		}
	}
	columnWidth += columnPaddingWidthConstant

	var rows []string
	for rowStart := 0; rowStart < len(names); rowStart += columnCount {
		rowEnd := rowStart + columnCount
		if rowEnd > len(names) {
			rowEnd = len(names)
		}

		var rowBuilder strings.Builder
		rowBuilder.WriteString(columnRowIndentConstant)
		for _, name := range names[rowStart:rowEnd] {
			rowBuilder.WriteString(name)
			rowBuilder.WriteString(strings.Repeat(" ", columnWidth-len(name)))
		}
		rows = append(rows, strings.TrimRight(rowBuilder.String(), " "))
	}
	return rows
}

// included applies default-allow: with no include rules configured every
// repository passes.
func (matcher *Matcher) included(repositoryName string) bool {
	if len(matcher.includeNames) == 0 && len(matcher.includePatterns) == 0 {
		return true
	}
	if _, exactMatch := matcher.includeNames[repositoryName]; exactMatch {
		return true
	}
	return anyPatternMatches(matcher.includePatterns, repositoryName)
}

func (matcher *Matcher) excluded(repositoryName string) bool {
	if _, exactMatch := matcher.excludeNames[repositoryName]; exactMatch {
		return true
	}
	return anyPatternMatches(matcher.excludePatterns, repositoryName)
}

// anyPatternMatches performs an unanchored search so patterns such as
// lecture-.* match anywhere in the name.
func anyPatternMatches(patterns []*regexp.Regexp, repositoryName string) bool {
	for _, pattern := range patterns {
		if pattern.MatchString(repositoryName) {
			return true
		}
	}
	return false
}

func compilePatterns(rawPatterns []string, fieldName string) ([]*regexp.Regexp, error) {
	compiledPatterns := make([]*regexp.Regexp, 0, len(rawPatterns))
	for _, rawPattern := range rawPatterns {
		compiledPattern, compileError := regexp.Compile(rawPattern)
		if compileError != nil {
			return nil, errkind.ConfigurationError{FieldName: fieldName, Message: invalidPatternMessageConstant, Cause: compileError}
		}
		compiledPatterns = append(compiledPatterns, compiledPattern)
	}
	return compiledPatterns, nil
}

func nameSet(names []string) map[string]struct{} {
	set := make(map[string]struct{}, len(names))
	for _, name := range names {
		trimmedName := strings.TrimSpace(name)
		if len(trimmedName) == 0 {
			continue
		}
		set[trimmedName] = struct{}{}
	}
	return set
}
