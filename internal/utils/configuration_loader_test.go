package utils_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/temirov/repovault/internal/utils"
)

const (
	testConfigurationNameConstant     = "config"
	testConfigurationTypeConstant     = "yaml"
	testEnvironmentPrefixConstant     = "REPOVAULTTEST"
	testEnvironmentVariableConstant   = "REPOVAULTTEST_BACKUP_ORGANIZATION"
	testConfigurationFileNameConstant = "config.yaml"
	testEmbeddedDocumentConstant      = "backup:\n  organization: embedded-org\n  s3:\n    region: us-east-1\n"
	testFileDocumentConstant          = "backup:\n  organization: file-org\n"
)

type testConfiguration struct {
	Backup struct {
		Organization string `mapstructure:"organization"`
		S3           struct {
			Region string `mapstructure:"region"`
		} `mapstructure:"s3"`
	} `mapstructure:"backup"`
}

func TestLoadConfigurationPrecedence(testInstance *testing.T) {
	testCases := []struct {
		name                 string
		writeConfigFile      bool
		environmentValue     string
		expectedOrganization string
	}{
		{
			name:                 "embedded_defaults_apply",
			writeConfigFile:      false,
			expectedOrganization: "embedded-org",
		},
		{
			name:                 "file_overrides_embedded",
			writeConfigFile:      true,
			expectedOrganization: "file-org",
		},
		{
			name:                 "environment_overrides_file",
			writeConfigFile:      true,
			environmentValue:     "environment-org",
			expectedOrganization: "environment-org",
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			temporaryDirectory := testInstance.TempDir()

			configurationFilePath := ""
			if testCase.writeConfigFile {
				configurationFilePath = filepath.Join(temporaryDirectory, testConfigurationFileNameConstant)
				require.NoError(testInstance, os.WriteFile(configurationFilePath, []byte(testFileDocumentConstant), 0o600))
			}

			if len(testCase.environmentValue) > 0 {
				testInstance.Setenv(testEnvironmentVariableConstant, testCase.environmentValue)
			}

			loader := utils.NewConfigurationLoader(
				testConfigurationNameConstant,
				testConfigurationTypeConstant,
				testEnvironmentPrefixConstant,
				[]string{temporaryDirectory},
			)
			loader.SetEmbeddedConfiguration([]byte(testEmbeddedDocumentConstant))

			var loadedValues testConfiguration
			metadata, loadError := loader.LoadConfiguration(configurationFilePath, nil, &loadedValues)
			require.NoError(testInstance, loadError)

			require.Equal(testInstance, testCase.expectedOrganization, loadedValues.Backup.Organization)
			require.Equal(testInstance, "us-east-1", loadedValues.Backup.S3.Region)

			if testCase.writeConfigFile {
				require.Equal(testInstance, configurationFilePath, metadata.ConfigFileUsed)
			}
		})
	}
}

func TestLoadConfigurationAppliesDefaultValues(testInstance *testing.T) {
	loader := utils.NewConfigurationLoader(
		testConfigurationNameConstant,
		testConfigurationTypeConstant,
		testEnvironmentPrefixConstant,
		[]string{testInstance.TempDir()},
	)

	var loadedValues testConfiguration
	_, loadError := loader.LoadConfiguration("", map[string]any{"backup.s3.region": "eu-west-1"}, &loadedValues)
	require.NoError(testInstance, loadError)
	require.Equal(testInstance, "eu-west-1", loadedValues.Backup.S3.Region)
}
