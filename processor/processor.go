package processor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"chadserv/failures"
	"chadserv/logger"
	"chadserv/models"
	"chadserv/pool"
	"chadserv/storage"
	"chadserv/transcoder"
	"chadserv/utils"
)

// Processor owns the authoritative registry of chunk records and the
// worker pool that produces them. One mutex guards insert, lookup,
// list, delete and eviction; the pool's queue has its own lock and the
// two are never held together.
type Processor struct {
	pool  *pool.Pool
	tc    *transcoder.Transcoder
	store *storage.Manager
	// faultLog receives terminal failures, best-effort. May be nil.
	faultLog *failures.Store

	mu     sync.Mutex
	chunks map[string]*models.ChunkInfo
	// order tracks insertion order for oldest-first eviction.
	order     []string
	maxChunks int

	storagePath string
	tempPath    string

	// mirrorInfo, when non-nil, names a replication backend for
	// completed artifacts (access info map with a "type" key).
	mirrorInfo map[string]string

	processed atomic.Int64
	failed    atomic.Int64
}

// New creates a processor with the given pool size. A non-positive
// size falls back to the CPU count inside the pool.
func New(poolSize int, tc *transcoder.Transcoder, store *storage.Manager, faultLog *failures.Store) *Processor {
	p := &Processor{
		pool:     pool.New(poolSize),
		tc:       tc,
		store:    store,
		faultLog: faultLog,
		chunks:   make(map[string]*models.ChunkInfo),
	}
	logger.Infof("video processor created with %d workers", p.pool.WorkerCount())
	return p
}

// Initialize verifies the working directories and probes for the
// external transform tool. A failure here is a startup failure.
func (p *Processor) Initialize(storagePath, tempPath string) error {
	for _, dir := range []string{storagePath, tempPath} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	p.storagePath = storagePath
	p.tempPath = tempPath

	if err := p.tc.Detect(context.Background()); err != nil {
		return err
	}

	logger.Info("video processor initialized")
	return nil
}

// SetMaxChunks sets the registry capacity bound (0 = unlimited) and
// enforces it immediately.
func (p *Processor) SetMaxChunks(max int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.maxChunks = max
	p.evictLocked()
}

// SetMirror configures post-completion replication. info must contain
// a "type" key naming the backend; nil disables mirroring.
func (p *Processor) SetMirror(info map[string]string) {
	p.mirrorInfo = info
}

// TempPath returns the directory for buffered uploads.
func (p *Processor) TempPath() string { return p.tempPath }

// Resize changes the worker pool's target size.
func (p *Processor) Resize(workers int) { p.pool.Resize(workers) }

// Shutdown drains the pool: every submitted job runs to a terminal
// state before this returns.
func (p *Processor) Shutdown() {
	p.pool.Shutdown()
	logger.Info("video processor shut down")
}

// LoadFactor reports processing load in [0,1]: active plus queued tasks
// against twice the worker count.
func (p *Processor) LoadFactor() float64 {
	capacity := p.pool.WorkerCount() * 2
	if capacity == 0 {
		return 1.0
	}
	load := float64(p.pool.ActiveWorkers()+p.pool.QueueSize()) / float64(capacity)
	return min(load, 1.0)
}

// Counts reports how many chunks completed and failed since startup.
func (p *Processor) Counts() (processed, failed int64) {
	return p.processed.Load(), p.failed.Load()
}

// Get returns a copy of the record for id.
func (p *Processor) Get(id string) (models.ChunkInfo, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if c, ok := p.chunks[id]; ok {
		return *c, true
	}
	return models.ChunkInfo{}, false
}

// List returns a copied snapshot of every record. The snapshot is
// stable: later registry mutations never show through it.
func (p *Processor) List() []models.ChunkInfo {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]models.ChunkInfo, 0, len(p.order))
	for _, id := range p.order {
		if c, ok := p.chunks[id]; ok {
			out = append(out, *c)
		}
	}
	return out
}

// Delete removes the record and, for completed chunks, the stored
// artifact. Reports whether the id existed.
func (p *Processor) Delete(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	c, ok := p.chunks[id]
	if !ok {
		return false
	}
	p.removeArtifactLocked(c)
	p.removeLocked(id)
	return true
}

// removeLocked drops the record from the map and the order list.
func (p *Processor) removeLocked(id string) {
	delete(p.chunks, id)
	for i, oid := range p.order {
		if oid == id {
			p.order = append(p.order[:i], p.order[i+1:]...)
			break
		}
	}
}

func (p *Processor) removeArtifactLocked(c *models.ChunkInfo) {
	if c.Status != models.ChunkCompleted {
		return
	}
	if p.store != nil && p.store.Delete(c.ID) {
		return
	}
	if c.FilePath != "" {
		if err := os.Remove(c.FilePath); err != nil && !os.IsNotExist(err) {
			logger.Errorf("error deleting chunk file %s: %v", c.FilePath, err)
		}
	}
}

// insert appends a record and enforces the capacity bound: oldest
// inserted, still present records are evicted first.
func (p *Processor) insert(c *models.ChunkInfo) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.chunks[c.ID] = c
	p.order = append(p.order, c.ID)
	p.evictLocked()
}

func (p *Processor) evictLocked() {
	if p.maxChunks <= 0 {
		return
	}
	for len(p.order) > p.maxChunks {
		id := p.order[0]
		if c, ok := p.chunks[id]; ok {
			p.removeArtifactLocked(c)
		}
		p.removeLocked(id)
		logger.Infof("auto-deleted old chunk: %s", id)
	}
}

// update applies fn to the live record if it is still registered. A
// record evicted mid-flight simply stops receiving updates.
func (p *Processor) update(id string, fn func(*models.ChunkInfo)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if c, ok := p.chunks[id]; ok {
		fn(c)
	}
}

// ProcessChunk submits a transcode job for inputPath and returns its
// observation handle. The only possible error is pool.ErrPoolClosed.
// The returned record value is the job's final state; transcode
// failures are reported through the record's status, not the error.
func (p *Processor) ProcessChunk(inputPath, optionsJSON string) (*pool.Task[models.ChunkInfo], error) {
	return pool.Submit(p.pool, func() (models.ChunkInfo, error) {
		return p.runJob(inputPath, optionsJSON), nil
	})
}

// runJob executes one transcode on a pool worker. The worker is the
// record's single writer until it reaches a terminal status.
func (p *Processor) runJob(inputPath, optionsJSON string) models.ChunkInfo {
	info := models.ChunkInfo{
		ID:       utils.NewID(),
		FilePath: inputPath,
		Status:   models.ChunkPending,
	}
	logger.Infof("processing chunk %s from %s", info.ID, inputPath)

	// The local copy mirrors every registry update so the future's
	// value stays correct even if the record is evicted mid-flight.
	apply := func(fn func(*models.ChunkInfo)) {
		fn(&info)
		p.update(info.ID, fn)
	}

	p.insert(&models.ChunkInfo{ID: info.ID, FilePath: inputPath, Status: models.ChunkPending})

	fail := func(cause error) models.ChunkInfo {
		logger.Errorf("error processing chunk %s: %v", info.ID, cause)
		apply(func(c *models.ChunkInfo) {
			c.Status = models.ChunkFailed
			c.ErrorMessage = cause.Error()
		})
		p.failed.Add(1)
		if p.faultLog != nil {
			if err := p.faultLog.Record(info.ID, inputPath, optionsJSON, cause); err != nil {
				logger.Errorf("failed to record failure for chunk %s: %v", info.ID, err)
			}
		}
		return info
	}

	stat, err := os.Stat(inputPath)
	if err != nil {
		return fail(fmt.Errorf("input file does not exist: %w", err))
	}

	apply(func(c *models.ChunkInfo) {
		c.Status = models.ChunkProcessing
		c.Size = stat.Size()
	})

	meta := p.tc.ExtractMetadata(context.Background(), inputPath)
	apply(func(c *models.ChunkInfo) {
		c.Width = meta.Width
		c.Height = meta.Height
		c.Duration = meta.Duration
		c.Codec = meta.Codec
	})

	opts, err := transcoder.ParseOptions(optionsJSON)
	if err != nil {
		logger.Warnf("failed to parse options %q: %v", optionsJSON, err)
		opts = transcoder.Options{}
	}

	outputPath := filepath.Join(p.storagePath, info.ID+"_processed.mp4")
	if err := p.tc.Transform(context.Background(), inputPath, outputPath, opts); err != nil {
		return fail(err)
	}

	outStat, err := os.Stat(outputPath)
	if err != nil {
		return fail(fmt.Errorf("processing failed, output file not created: %w", err))
	}

	if p.store != nil {
		if _, err := p.store.Adopt(outputPath, info.ID, "video/mp4"); err != nil {
			logger.Errorf("failed to register artifact for chunk %s: %v", info.ID, err)
		}
	}

	apply(func(c *models.ChunkInfo) {
		c.FilePath = outputPath
		c.Size = outStat.Size()
		c.Status = models.ChunkCompleted
	})
	p.processed.Add(1)

	p.replicate(info.ID, outputPath)

	// The buffered upload served its purpose.
	if err := os.Remove(inputPath); err != nil && !os.IsNotExist(err) {
		logger.Warnf("failed to remove temp input %s: %v", inputPath, err)
	}

	logger.Infof("finished processing chunk %s", info.ID)
	return info
}
