// Package utils exposes the configuration and logging plumbing shared by the
// CLI commands: a Viper-backed ConfigurationLoader with embedded-default and
// environment-override support, and a zap LoggerFactory.
package utils
