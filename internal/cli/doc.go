// Package cli implements the optsctl command tree: reading, tracing,
// evaluating and editing a layered configuration from the shell.
package cli
