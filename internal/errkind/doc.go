// Package errkind defines the typed failure categories shared across the
// backup engine: configuration, hosting, archive, and upload verification
// errors, plus the classification helper that turns an arbitrary error into
// the category recorded against a repository's backup record.
package errkind
