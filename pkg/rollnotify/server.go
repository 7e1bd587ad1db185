// server.go captures process metadata for the server section of an item.

package rollnotify

import (
	"os"
	"runtime"
	"time"
)

// captureServer describes the current process.
func captureServer(s *Settings) Server {
	return Server{
		Host:   s.Host,
		Argv:   append([]string{}, os.Args...),
		PID:    os.Getpid(),
		Branch: s.Branch,
		Root:   s.Root,
	}
}

// RuntimeState is a snapshot of process health at report time.
type RuntimeState struct {
	MemoryBytes    uint64 `json:"memory_bytes"`
	GoroutineCount int    `json:"goroutine_count"`
	UptimeMs       int64  `json:"uptime_ms"`
}

// CaptureRuntimeState reads memory and goroutine counts. startTime is used
// to compute uptime.
func CaptureRuntimeState(startTime time.Time) *RuntimeState {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	uptime := time.Since(startTime).Milliseconds()
	if uptime < 0 {
		uptime = 0
	}
	return &RuntimeState{
		MemoryBytes:    mem.Alloc,
		GoroutineCount: runtime.NumGoroutine(),
		UptimeMs:       uptime,
	}
}

func defaultHost() string {
	host, _ := os.Hostname()
	return host
}
