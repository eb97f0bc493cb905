package backup

import (
	"strings"

	"github.com/temirov/repovault/internal/errkind"
	"github.com/temirov/repovault/internal/matchrules"
	"github.com/temirov/repovault/internal/storage"
)

const (
	organizationFieldNameConstant       = "backup.organization"
	bucketFieldNameConstant             = "backup.s3.bucket"
	missingOrganizationMessageConstant  = "organization name is required"
	missingBucketMessageConstant        = "bucket name is required"
	configurationSectionPrefixConstant  = "backup"
	storageSectionPrefixConstant        = "backup.s3"
	defaultExcludeArchivedValueConstant = true
	defaultIssueExportValueConstant     = true
)

// MetadataSettings toggles the optional metadata exports of a cycle.
type MetadataSettings struct {
	Issues bool `mapstructure:"issues"`
}

// Configuration is the validated backup section of the application configuration.
type Configuration struct {
	Organization string             `mapstructure:"organization"`
	Rules        matchrules.RuleSet `mapstructure:",squash"`
	S3           storage.Settings   `mapstructure:"s3"`
	Metadata     MetadataSettings   `mapstructure:"metadata"`
}

// Validate rejects configurations that cannot produce a meaningful cycle.
// Regex rule validation happens separately when the matcher compiles.
func (configuration Configuration) Validate() error {
	if len(strings.TrimSpace(configuration.Organization)) == 0 {
		return errkind.ConfigurationError{FieldName: organizationFieldNameConstant, Message: missingOrganizationMessageConstant}
	}
	if len(strings.TrimSpace(configuration.S3.Bucket)) == 0 {
		return errkind.ConfigurationError{FieldName: bucketFieldNameConstant, Message: missingBucketMessageConstant}
	}
	return nil
}

// DefaultConfigurationValues supplies configuration defaults for the backup section.
func DefaultConfigurationValues() map[string]any {
	defaultValues := map[string]any{
		configurationSectionPrefixConstant + ".exclude_archived": defaultExcludeArchivedValueConstant,
		configurationSectionPrefixConstant + ".metadata.issues":  defaultIssueExportValueConstant,
	}
	for key, value := range storage.DefaultSettingsValues(storageSectionPrefixConstant) {
		defaultValues[key] = value
	}
	return defaultValues
}
