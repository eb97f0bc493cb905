package errkind

import (
	"errors"
	"fmt"
)

const (
	configurationErrorTemplateConstant           = "configuration: %s: %s"
	configurationErrorWithCauseTemplateConstant  = "configuration: %s: %s: %s"
	hostingErrorTemplateConstant                 = "hosting: %s for %s failed: %s"
	archiveErrorTemplateConstant                 = "archive: %s stage for %s failed: %s"
	verificationSizeMismatchTemplateConstant     = "upload verification: size mismatch for %s: local %d bytes, stored %d bytes"
	verificationChecksumMismatchTemplateConstant = "upload verification: checksum mismatch for %s: local %s, stored %s"
	kindConfigurationStringConstant              = "configuration"
	kindHostingStringConstant                    = "hosting"
	kindArchiveStringConstant                    = "archive"
	kindUploadVerificationStringConstant         = "upload_verification"
	kindUnknownStringConstant                    = "unknown"
)

// Kind labels the classified failure category recorded against a repository backup.
type Kind string

// Failure categories tracked in backup records and operator summaries.
const (
	KindConfiguration      Kind = Kind(kindConfigurationStringConstant)
	KindHosting            Kind = Kind(kindHostingStringConstant)
	KindArchive            Kind = Kind(kindArchiveStringConstant)
	KindUploadVerification Kind = Kind(kindUploadVerificationStringConstant)
	KindUnknown            Kind = Kind(kindUnknownStringConstant)
)

// ConfigurationError reports invalid or missing configuration detected before any network call.
type ConfigurationError struct {
	FieldName string
	Message   string
	Cause     error
}

// Error describes the configuration failure.
func (configurationError ConfigurationError) Error() string {
	if configurationError.Cause == nil {
		return fmt.Sprintf(configurationErrorTemplateConstant, configurationError.FieldName, configurationError.Message)
	}
	return fmt.Sprintf(configurationErrorWithCauseTemplateConstant, configurationError.FieldName, configurationError.Message, configurationError.Cause)
}

// Unwrap exposes the underlying cause.
func (configurationError ConfigurationError) Unwrap() error {
	return configurationError.Cause
}

// HostingError reports a source-control hosting API failure.
type HostingError struct {
	Operation string
	Target    string
	Cause     error
}

// Error describes the hosting failure.
func (hostingError HostingError) Error() string {
	return fmt.Sprintf(hostingErrorTemplateConstant, hostingError.Operation, hostingError.Target, hostingError.Cause)
}

// Unwrap exposes the underlying cause.
func (hostingError HostingError) Unwrap() error {
	return hostingError.Cause
}

// ArchiveError reports a mirror clone or packaging failure for one repository.
type ArchiveError struct {
	Repository string
	Stage      string
	Cause      error
}

// Error describes the archive failure.
func (archiveError ArchiveError) Error() string {
	return fmt.Sprintf(archiveErrorTemplateConstant, archiveError.Stage, archiveError.Repository, archiveError.Cause)
}

// Unwrap exposes the underlying cause.
func (archiveError ArchiveError) Unwrap() error {
	return archiveError.Cause
}

// UploadVerificationError reports a post-upload integrity mismatch. The stored
// object is left in place; callers must treat the backup as failed.
type UploadVerificationError struct {
	ObjectKey      string
	LocalSizeBytes int64
	StoredSize     int64
	LocalChecksum  string
	StoredChecksum string
}

// Error describes the verification mismatch.
func (verificationError UploadVerificationError) Error() string {
	if verificationError.LocalSizeBytes != verificationError.StoredSize {
		return fmt.Sprintf(verificationSizeMismatchTemplateConstant, verificationError.ObjectKey, verificationError.LocalSizeBytes, verificationError.StoredSize)
	}
	return fmt.Sprintf(verificationChecksumMismatchTemplateConstant, verificationError.ObjectKey, verificationError.LocalChecksum, verificationError.StoredChecksum)
}

// Classify maps an arbitrary error to the failure category recorded for operators.
func Classify(candidate error) Kind {
	var configurationError ConfigurationError
	if errors.As(candidate, &configurationError) {
		return KindConfiguration
	}

	var hostingError HostingError
	if errors.As(candidate, &hostingError) {
		return KindHosting
	}

	var archiveError ArchiveError
	if errors.As(candidate, &archiveError) {
		return KindArchive
	}

	var verificationError UploadVerificationError
	if errors.As(candidate, &verificationError) {
		return KindUploadVerification
	}

	return KindUnknown
}
