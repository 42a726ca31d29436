// Package memory keeps the converter inside its container memory limit.
//
// Go does not read the cgroup memory limit the way it reads the CPU quota,
// so [ConfigureFromEnv] derives GOMEMLIMIT from MEMORY_LIMIT (usually set
// through the Kubernetes Downward API) and MEMORY_RATIO:
//
//	env:
//	- name: MEMORY_LIMIT
//	  valueFrom:
//	    resourceFieldRef:
//	      resource: limits.memory
//	- name: MEMORY_RATIO
//	  value: "0.70"
//
// GOMEMLIMIT only covers the Go heap. ffmpeg, pdftoppm and libvips allocate
// outside it, which is why the default ratio leaves 30% of the container
// limit free.
//
// [Monitor] is the conversion gate: it samples heap usage and, once usage
// crosses PauseAt, makes WaitIfPaused block new codec runs until usage drops
// below ResumeAt.
//
//	monitor := memory.NewMonitor(memory.DefaultConfig())
//	monitor.Start()
//	defer monitor.Stop()
//
//	if !monitor.WaitIfPaused() {
//	    return // shutting down
//	}
package memory
