package utils_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/temirov/repovault/internal/utils"
)

func TestCreateLogger(testInstance *testing.T) {
	testCases := []struct {
		name        string
		logLevel    utils.LogLevel
		logFormat   utils.LogFormat
		expectError bool
	}{
		{name: "structured_info", logLevel: utils.LogLevelInfo, logFormat: utils.LogFormatStructured},
		{name: "console_debug", logLevel: utils.LogLevelDebug, logFormat: utils.LogFormatConsole},
		{name: "unsupported_level", logLevel: utils.LogLevel("loud"), logFormat: utils.LogFormatStructured, expectError: true},
		{name: "unsupported_format", logLevel: utils.LogLevelInfo, logFormat: utils.LogFormat("plain"), expectError: true},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			factory := utils.NewLoggerFactory()
			logger, creationError := factory.CreateLogger(testCase.logLevel, testCase.logFormat)
			if testCase.expectError {
				require.Error(testInstance, creationError)
				require.Nil(testInstance, logger)
				return
			}
			require.NoError(testInstance, creationError)
			require.NotNil(testInstance, logger)
		})
	}
}
