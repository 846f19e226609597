// Package command implements the mailqueue command line: list, flush,
// recover, send, delete and run.
package command
