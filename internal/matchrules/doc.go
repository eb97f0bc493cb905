// Package matchrules implements the rule-based repository selection used to
// decide which organization repositories are backed up. Selection is pure:
// compiled include/exclude rules over repository name snapshots, no I/O.
package matchrules
