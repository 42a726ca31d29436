/*
Package workers sizes the conversion concurrency limit.

runtime.NumCPU reports the host's CPUs, not the container's. GOMAXPROCS
follows the cgroup CPU quota, so the helpers here scale from it:

	// 2-CPU pod on a 64-core node: 3, not 96
	n := workers.ForMixed(0)

Conversions is what the server uses: an explicit CONVERSION_WORKERS value
wins, otherwise ForMixed capped at MaxConversions.
*/
package workers
