// Package execshell executes the external git and tar binaries behind a
// CommandRunner interface, adding structured lifecycle logging and typed
// failure errors so callers can distinguish non-zero exits from commands
// that never started.
package execshell
