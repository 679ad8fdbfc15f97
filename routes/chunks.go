package routes

import (
	"chadserv/httpserver"
	"chadserv/logger"
)

// ChunkListHandler returns every chunk record.
func ChunkListHandler(d Deps) httpserver.Handler {
	return func(req *httpserver.Request, res *httpserver.Response) error {
		return res.SetJSON(d.Processor.List())
	}
}

// ChunkInfoHandler returns the record for one chunk id.
func ChunkInfoHandler(d Deps) httpserver.Handler {
	return func(req *httpserver.Request, res *httpserver.Response) error {
		id, ok := req.Query["id"]
		if !ok {
			res.SetStatus(400, "Bad Request")
			return res.SetJSON(map[string]string{"error": "Missing chunk id"})
		}

		chunk, found := d.Processor.Get(id)
		if !found {
			res.SetStatus(404, "Not Found")
			return res.SetJSON(map[string]string{"error": "Chunk not found"})
		}
		return res.SetJSON(chunk)
	}
}

// ChunkDeleteHandler removes a chunk record and its stored artifact.
func ChunkDeleteHandler(d Deps) httpserver.Handler {
	return func(req *httpserver.Request, res *httpserver.Response) error {
		id, ok := req.Query["id"]
		if !ok {
			res.SetStatus(400, "Bad Request")
			return res.SetJSON(map[string]string{"error": "Missing chunk id"})
		}

		if !d.Processor.Delete(id) {
			res.SetStatus(404, "Not Found")
			return res.SetJSON(map[string]string{"error": "Chunk not found or could not be deleted"})
		}
		logger.Infof("deleted chunk %s", id)
		return res.SetJSON(map[string]bool{"success": true})
	}
}

// ChunkDownloadHandler serves the processed artifact bytes.
func ChunkDownloadHandler(d Deps) httpserver.Handler {
	return func(req *httpserver.Request, res *httpserver.Response) error {
		id, ok := req.Query["id"]
		if !ok {
			res.SetStatus(400, "Bad Request")
			return res.SetJSON(map[string]string{"error": "Missing chunk id"})
		}

		meta := d.Store.Get(id)
		if meta == nil {
			res.SetStatus(404, "Not Found")
			return res.SetJSON(map[string]string{"error": "Chunk not found"})
		}

		data, err := d.Store.Read(id)
		if err != nil {
			return err
		}

		contentType := meta.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		res.Headers["Content-Type"] = contentType
		res.Body = data
		return nil
	}
}
