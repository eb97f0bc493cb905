package backup_test

import (
	"testing"

	"github.com/go-viper/mapstructure/v2"
	"github.com/stretchr/testify/require"

	"github.com/temirov/repovault/internal/backup"
	"github.com/temirov/repovault/internal/errkind"
)

func TestConfigurationValidate(testInstance *testing.T) {
	testCases := []struct {
		name          string
		configuration backup.Configuration
		expectError   bool
	}{
		{
			name:          "complete",
			configuration: validCommandConfiguration(),
		},
		{
			name:          "missing_organization",
			configuration: backup.Configuration{S3: validCommandConfiguration().S3},
			expectError:   true,
		},
		{
			name:          "missing_bucket",
			configuration: backup.Configuration{Organization: "acme"},
			expectError:   true,
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			validationError := testCase.configuration.Validate()
			if !testCase.expectError {
				require.NoError(testInstance, validationError)
				return
			}
			require.Error(testInstance, validationError)
			require.Equal(testInstance, errkind.KindConfiguration, errkind.Classify(validationError))
		})
	}
}

// The rule fields decode flattened into the backup section, not nested under
// a separate rules key.
func TestConfigurationDecodesFlattenedRules(testInstance *testing.T) {
	rawConfiguration := map[string]any{
		"organization":         "acme",
		"patterns":             []string{"lecture-.*"},
		"repositories":         []string{"quantecon-py"},
		"exclude_archived":     true,
		"exclude_patterns":     []string{"^archive-"},
		"exclude_repositories": []string{"lecture-old"},
		"s3": map[string]any{
			"bucket": "acme-backups",
			"region": "us-east-1",
			"prefix": "backups/",
		},
		"metadata": map[string]any{"issues": true},
	}

	var configuration backup.Configuration
	decoder, decoderError := mapstructure.NewDecoder(&mapstructure.DecoderConfig{Result: &configuration})
	require.NoError(testInstance, decoderError)
	require.NoError(testInstance, decoder.Decode(rawConfiguration))

	require.Equal(testInstance, "acme", configuration.Organization)
	require.Equal(testInstance, []string{"lecture-.*"}, configuration.Rules.IncludePatterns)
	require.Equal(testInstance, []string{"quantecon-py"}, configuration.Rules.IncludeNames)
	require.True(testInstance, configuration.Rules.ExcludeArchived)
	require.Equal(testInstance, []string{"^archive-"}, configuration.Rules.ExcludePatterns)
	require.Equal(testInstance, []string{"lecture-old"}, configuration.Rules.ExcludeNames)
	require.Equal(testInstance, "acme-backups", configuration.S3.Bucket)
	require.True(testInstance, configuration.Metadata.Issues)
}

func TestDefaultConfigurationValues(testInstance *testing.T) {
	defaultValues := backup.DefaultConfigurationValues()
	require.Equal(testInstance, true, defaultValues["backup.exclude_archived"])
	require.Equal(testInstance, true, defaultValues["backup.metadata.issues"])
	require.Equal(testInstance, "backups/", defaultValues["backup.s3.prefix"])
}
