// Package hosting wraps the GitHub REST API behind the narrow Gateway
// interface the backup engine depends on: organization repository listings
// and issue/comment enumeration with exhaustive pagination.
package hosting
