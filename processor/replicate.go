package processor

import (
	"context"
	"os"
	"path"

	"chadserv/logger"
	"chadserv/mirror"
)

// replicate pushes a completed artifact to the configured mirror
// backend. Best-effort: a mirror failure is logged and the job stays
// completed.
func (p *Processor) replicate(id, artifactPath string) {
	if p.mirrorInfo == nil {
		return
	}
	backend := p.mirrorInfo["type"]

	f, err := os.Open(artifactPath)
	if err != nil {
		logger.Errorf("cannot open artifact %s for mirroring: %v", artifactPath, err)
		return
	}
	defer f.Close()

	accessInfo := make(map[string]string, len(p.mirrorInfo)+3)
	for k, v := range p.mirrorInfo {
		accessInfo[k] = v
	}
	filename := path.Base(artifactPath)
	accessInfo["key"] = filename
	accessInfo["object"] = filename
	if base := accessInfo["remotePath"]; base != "" {
		accessInfo["remotePath"] = path.Join(base, filename)
	}

	if err := mirror.Write(context.Background(), accessInfo, f, backend); err != nil {
		logger.Errorf("failed to mirror chunk %s: %v", id, err)
		return
	}
	logger.Debugf("mirrored chunk %s via %s", id, backend)
}
