package routes

import (
	"chadserv/config"
	"chadserv/failures"
	"chadserv/httpserver"
	"chadserv/processor"
	"chadserv/storage"
)

// Deps carries the collaborators the handlers need. Everything is an
// explicit dependency so tests can substitute doubles.
type Deps struct {
	Config    *config.Config
	Processor *processor.Processor
	Store     *storage.Manager
	Failures  *failures.Store
}

// Register wires every endpoint onto the server. Must run before
// Start; the route table is read-only afterwards.
func Register(s *httpserver.Server, d Deps) {
	s.AddRoute("GET", "/api/status", StatusHandler(d))
	s.AddRoute("GET", "/api/health", HealthHandler(d))
	s.AddRoute("GET", "/api/chunks", ChunkListHandler(d))
	s.AddRoute("GET", "/api/chunks/info", ChunkInfoHandler(d))
	s.AddRoute("GET", "/api/chunks/download", ChunkDownloadHandler(d))
	s.AddRoute("POST", "/api/upload", UploadHandler(d))
	s.AddRoute("DELETE", "/api/chunks", ChunkDeleteHandler(d))
	s.AddRoute("GET", "/api/failures", FailureQueryHandler(d))
	s.AddRoute("GET", "/api/failures/list", FailureListHandler(d))
}
