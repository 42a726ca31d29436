// Package sweep reclaims leaked work files and expired quota records.
//
// Every conversion removes its own files when it finishes. The sweep is the
// backstop for files left behind by a crash or a killed process: on a cron
// schedule it deletes anything in the work directories whose modification
// time is older than the retention period.
package sweep
