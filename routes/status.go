package routes

import (
	"fmt"
	"runtime"
	"time"

	"chadserv/httpserver"
)

// Build-time variables (injected by ldflags).
var (
	version = "1.0.0"
)

var startTime = time.Now()

// StatusHandler reports server status and processing load.
func StatusHandler(d Deps) httpserver.Handler {
	return func(req *httpserver.Request, res *httpserver.Response) error {
		return res.SetJSON(map[string]interface{}{
			"status":           "running",
			"version":          version,
			"processor_load":   d.Processor.LoadFactor(),
			"thread_pool_size": d.Config.GetInt("video_processing.thread_pool_size", 4),
		})
	}
}

// HealthHandler is a basic liveness endpoint for load balancers.
func HealthHandler(d Deps) httpserver.Handler {
	return func(req *httpserver.Request, res *httpserver.Response) error {
		processed, failed := d.Processor.Counts()
		return res.SetJSON(map[string]interface{}{
			"status":           "healthy",
			"version":          version,
			"go_version":       runtime.Version(),
			"uptime":           formatUptime(time.Since(startTime)),
			"processed_chunks": processed,
			"failed_chunks":    failed,
		})
	}
}

func formatUptime(d time.Duration) string {
	days := int(d.Hours() / 24)
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60
	return fmt.Sprintf("%dd %dh %dm %ds", days, hours, minutes, seconds)
}
