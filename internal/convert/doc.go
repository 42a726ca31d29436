// Package convert runs a single conversion request from admission to
// delivery.
//
// An Orchestrator takes ownership of the uploaded file and moves the job
// through fixed steps:
//
//  1. admission: per-request size ceiling, then a quota ledger charge
//  2. target presence check
//  3. classification and target validation
//  4. dispatch to exactly one codec (image, video or document)
//  5. output verification: the file must exist and be non-empty
//  6. history append for authenticated callers
//  7. delivery through a Sink
//
// Every file the job touches is tracked and removed by a deferred release
// that runs once on every exit path, including delivery failures.
//
// Errors are *Error values carrying a Kind, a caller-safe Message and the
// internal cause.
package convert
