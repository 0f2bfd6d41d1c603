// Package logx provides a small structured logging layer over zerolog.
//
// The daemon logs to the console and optionally to a file. Log level and
// sinks can be swapped at runtime via Service.Apply, so a config reload
// takes effect without restarting message workers.
//
// Loggers are values: With() returns a derived logger carrying fixed
// fields, and the zero value is a safe no-op.
package logx
