// Package issues builds the JSON issue-export documents stored beside each
// repository archive: every issue with its comments, plus open/closed counts.
package issues
