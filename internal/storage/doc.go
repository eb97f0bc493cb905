// Package storage wraps the S3 backup target: verified uploads (local
// SHA-256 and size compared against the stored object), key-derivation for
// the (repository, calendar day) naming convention, head-probe existence
// checks, and prefix-scoped listings for reporting.
package storage
