// Package logging configures slog output for scout: a console handler that
// keeps one record per line, a JSON handler for machine consumption, and
// helpers for component-scoped loggers.
package logging
