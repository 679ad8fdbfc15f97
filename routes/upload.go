package routes

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"chadserv/httpserver"
	"chadserv/logger"
)

// UploadHandler accepts raw media bytes, buffers them to the temp
// directory and waits synchronously for the transcode to finish. This
// intentionally occupies the connection for the full transcode; pool
// concurrency stays bounded regardless.
func UploadHandler(d Deps) httpserver.Handler {
	return func(req *httpserver.Request, res *httpserver.Response) error {
		if !strings.HasPrefix(req.Headers["Content-Type"], "video/") {
			res.SetStatus(400, "Bad Request")
			return res.SetJSON(map[string]string{"error": "Content-Type must be a video format"})
		}

		tempFile := filepath.Join(d.Processor.TempPath(),
			fmt.Sprintf("upload_%d.mp4", time.Now().UnixNano()))
		if err := os.WriteFile(tempFile, req.Body, 0o644); err != nil {
			return fmt.Errorf("failed to create temporary file: %w", err)
		}

		task, err := d.Processor.ProcessChunk(tempFile, req.Query["options"])
		if err != nil {
			return err
		}

		chunk, err := task.Wait()
		if err != nil {
			return err
		}

		logger.Infof("upload processed: chunk %s (%s)", chunk.ID, chunk.Status)
		return res.SetJSON(map[string]interface{}{
			"id":     chunk.ID,
			"status": chunk.Status,
		})
	}
}
