// Package cli assembles the repovault command-line application: the root
// Cobra command, configuration loading with embedded defaults, structured
// logging, and the backup and report subcommands.
package cli
