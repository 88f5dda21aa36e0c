// Package logging provides a tiny abstraction over structured loggers so
// downstream code can depend on a minimal interface (Logger) while allowing
// users to plug any implementation. Built-in adapters cover log/slog and
// zerolog; NoOpLogger discards everything and is the default in tests.
package logging
