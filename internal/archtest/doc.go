// Package archtest holds tests that enforce source-level conventions across
// internal/: concurrency goes through worker pools or the Temporal SDK, and
// River job arguments are claim checks that carry only an event id.
package archtest
