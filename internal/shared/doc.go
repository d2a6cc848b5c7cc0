// Package shared holds helpers used by more than one package's tests.
//
// The testutil subpackage captures slog output in memory and builds expense
// datasets (raw rows, CSV text and workbooks) so that the dataprocessing,
// services and transport tests exercise the same fixtures.
package shared
