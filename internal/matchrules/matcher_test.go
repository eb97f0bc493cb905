package matchrules_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/temirov/repovault/internal/errkind"
	"github.com/temirov/repovault/internal/hosting"
	"github.com/temirov/repovault/internal/matchrules"
)

func repositoryNames(descriptors []hosting.RepositoryDescriptor) []string {
	names := make([]string, 0, len(descriptors))
	for _, descriptor := range descriptors {
		names = append(names, descriptor.Name)
	}
	return names
}

func descriptorsFromNames(names ...string) []hosting.RepositoryDescriptor {
	descriptors := make([]hosting.RepositoryDescriptor, 0, len(names))
	for _, name := range names {
		descriptors = append(descriptors, hosting.RepositoryDescriptor{Name: name, FullName: "acme/" + name})
	}
	return descriptors
}

func TestSelect(testInstance *testing.T) {
	testCases := []struct {
		name          string
		rules         matchrules.RuleSet
		repositories  []hosting.RepositoryDescriptor
		expectedNames []string
	}{
		{
			name:          "lecture_pattern_with_exact_exclude",
			rules:         matchrules.RuleSet{IncludePatterns: []string{"lecture-.*"}, ExcludeNames: []string{"lecture-old"}},
			repositories:  descriptorsFromNames("lecture-python", "lecture-old", "quantecon-py"),
			expectedNames: []string{"lecture-python"},
		},
		{
			name:          "default_allow_with_empty_include_rules",
			rules:         matchrules.RuleSet{},
			repositories:  descriptorsFromNames("alpha", "beta"),
			expectedNames: []string{"alpha", "beta"},
		},
		{
			name:          "default_allow_still_honors_excludes",
			rules:         matchrules.RuleSet{ExcludePatterns: []string{"^archive-"}},
			repositories:  descriptorsFromNames("alpha", "archive-beta"),
			expectedNames: []string{"alpha"},
		},
		{
			name:          "exact_name_include",
			rules:         matchrules.RuleSet{IncludeNames: []string{"beta"}},
			repositories:  descriptorsFromNames("alpha", "beta"),
			expectedNames: []string{"beta"},
		},
		{
			name:          "unanchored_pattern_search",
			rules:         matchrules.RuleSet{IncludePatterns: []string{"econ"}},
			repositories:  descriptorsFromNames("quantecon-py", "lecture-python"),
			expectedNames: []string{"quantecon-py"},
		},
		{
			name:          "order_preserved",
			rules:         matchrules.RuleSet{IncludePatterns: []string{".*"}},
			repositories:  descriptorsFromNames("zeta", "alpha", "mid"),
			expectedNames: []string{"zeta", "alpha", "mid"},
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			matcher, matcherError := matchrules.NewMatcher(testCase.rules)
			require.NoError(testInstance, matcherError)

			selected := matcher.Select(testCase.repositories)
			require.Equal(testInstance, testCase.expectedNames, repositoryNames(selected))
		})
	}
}

func TestSelectExcludesArchivedRepositories(testInstance *testing.T) {
	repositories := []hosting.RepositoryDescriptor{
		{Name: "active", FullName: "acme/active"},
		{Name: "dormant", FullName: "acme/dormant", Archived: true},
	}

	matcher, matcherError := matchrules.NewMatcher(matchrules.RuleSet{ExcludeArchived: true})
	require.NoError(testInstance, matcherError)

	selected := matcher.Select(repositories)
	require.Equal(testInstance, []string{"active"}, repositoryNames(selected))

	permissiveMatcher, permissiveError := matchrules.NewMatcher(matchrules.RuleSet{})
	require.NoError(testInstance, permissiveError)
	require.Len(testInstance, permissiveMatcher.Select(repositories), 2)
}

// An exclude match removes a repository even when the operator listed it by
// exact name. The precedence is deliberate, not an ordering accident.
func TestSelectExcludesExactIncludeName(testInstance *testing.T) {
	rules := matchrules.RuleSet{
		IncludeNames:    []string{"lecture-old"},
		ExcludePatterns: []string{"lecture-.*"},
	}

	matcher, matcherError := matchrules.NewMatcher(rules)
	require.NoError(testInstance, matcherError)

	selected := matcher.Select(descriptorsFromNames("lecture-old"))
	require.Empty(testInstance, selected)
}

func TestNewMatcherRejectsInvalidPatterns(testInstance *testing.T) {
	testCases := []struct {
		name  string
		rules matchrules.RuleSet
	}{
		{name: "invalid_include_pattern", rules: matchrules.RuleSet{IncludePatterns: []string{"("}}},
		{name: "invalid_exclude_pattern", rules: matchrules.RuleSet{ExcludePatterns: []string{"["}}},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			matcher, matcherError := matchrules.NewMatcher(testCase.rules)
			require.Error(testInstance, matcherError)
			require.Nil(testInstance, matcher)
			require.Equal(testInstance, errkind.KindConfiguration, errkind.Classify(matcherError))
		})
	}
}

func TestExcludedNames(testInstance *testing.T) {
	rules := matchrules.RuleSet{
		IncludePatterns: []string{"lecture-.*"},
		ExcludeNames:    []string{"lecture-old", "lecture-draft"},
	}

	matcher, matcherError := matchrules.NewMatcher(rules)
	require.NoError(testInstance, matcherError)

	excluded := matcher.ExcludedNames(descriptorsFromNames("lecture-python", "lecture-old", "lecture-draft", "quantecon-py"))
	require.Equal(testInstance, []string{"lecture-draft", "lecture-old"}, excluded)
}

func TestMissingIncludeNames(testInstance *testing.T) {
	rules := matchrules.RuleSet{IncludeNames: []string{"present", "absent"}}

	matcher, matcherError := matchrules.NewMatcher(rules)
	require.NoError(testInstance, matcherError)

	missing := matcher.MissingIncludeNames(descriptorsFromNames("present"))
	require.Equal(testInstance, []string{"absent"}, missing)
}

func TestFormatNameColumns(testInstance *testing.T) {
	rows := matchrules.FormatNameColumns([]string{"aa", "bbb", "c", "dd"}, 3)
	require.Len(testInstance, rows, 2)
	require.Contains(testInstance, rows[0], "aa")
	require.Contains(testInstance, rows[0], "bbb")
	require.Contains(testInstance, rows[0], "c")
	require.Contains(testInstance, rows[1], "dd")

	require.Nil(testInstance, matchrules.FormatNameColumns(nil, 3))
}
