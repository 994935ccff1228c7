// Package fswatch watches directories for new and changed files.
//
// It wraps fsnotify for the CLI's continuous import mode: a watcher
// on the import directory fires a callback for every file written or
// created there, and the command decides what to do with the path.
// Events for removed or renamed-away files are ignored.
package fswatch
