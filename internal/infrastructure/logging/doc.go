// Package logging builds the log/slog logger used across the database core.
//
// Output is JSON by default and text when logging.format is "text". Every
// entry carries service=dbcore and the build version; components add their
// own name with With:
//
//	log := logging.New(cfg.Logging, version)
//	mgr.SetLogger(log.With("component", "pool"))
//	eng.SetLogger(log.With("component", "engine"))
//
// Statement durations such as the engine's slow-statement "elapsed" are
// rendered as Go duration strings. Attributes keyed pass, password, secret
// or token are replaced with "[redacted]"; data sources are logged with
// their password already stripped by the pool package.
package logging
