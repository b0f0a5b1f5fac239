// Package internal contains the core implementation packages for partlinker.
//
// This package follows Go's internal package convention, making these
// packages unavailable for import by external modules while providing
// all the core functionality for the partlinker CLI tool.
//
// # Package Organization
//
// The internal packages are organized by functional domain:
//
//   - sexp: round-trip-preserving s-expression documents
//   - design: design file resolution, schematic and board loading
//   - values: component value normalization and comparison
//   - inventory: catalog sources and the precedence-ordered merge
//   - match: candidate scoring and winner selection
//   - annotate: back-annotation planning and atomic writes
//   - report: structured load, conflict, and mismatch reports
//   - config: configuration management backed by Viper
//   - watcher: file system monitoring with debouncing
//   - errors: structured pipeline errors and aggregation
//   - logging: structured logging over slog
//
// # Design Principles
//
// The pipeline stages communicate through immutable values: loaders
// return models and reports, the matcher is a pure function over them,
// and annotation re-reads files instead of mutating loaded state.
// Recoverable conditions surface as warnings next to partial results;
// only structural failures abort a stage.
package internal
