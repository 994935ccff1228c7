// Package logger provides structured logging for kvstash.
//
// It builds log/slog loggers from CLI configuration: level and format
// (text or json) are strings straight out of the config file or
// flags, output defaults to stderr. Storage engines receive the
// resulting *slog.Logger through their Config and never construct
// their own.
package logger
