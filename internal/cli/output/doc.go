// Package output provides output formatting for the kvstash CLI.
//
// This package handles all CLI output formatting:
//
//   - formatter.go: Formatter interface and factory
//   - table.go: Table rendering with wide mode support
//   - json.go: JSON output formatting
//   - progress.go: Progress bar for batch operations
//
// Formatters support table and json output; wide mode adds the
// columns tagged ",wide" (ls --long). JSON output is indented and
// machine-readable for scripting.
package output
