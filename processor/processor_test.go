package processor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"chadserv/failures"
	"chadserv/models"
	"chadserv/pool"
	"chadserv/storage"
	"chadserv/transcoder"
)

const probeFixture = `{"streams":[{"width":640,"height":480,"codec_name":"h264","duration":"1.000000"}]}`

// fakeRunner simulates ffmpeg and ffprobe: probe calls return a canned
// stream description, transcode calls write the output file unless
// transformErr is set.
type fakeRunner struct {
	mu           sync.Mutex
	calls        [][]string
	transformErr error
}

func (r *fakeRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	r.mu.Lock()
	r.calls = append(r.calls, append([]string{name}, args...))
	r.mu.Unlock()

	if name == "ffprobe" {
		return []byte(probeFixture), nil
	}
	if len(args) > 0 && args[0] == "-version" {
		return []byte("ffmpeg version 6.0\n"), nil
	}
	if r.transformErr != nil {
		return []byte("conversion failed!"), r.transformErr
	}
	output := args[len(args)-1]
	if err := os.WriteFile(output, []byte("encoded"), 0644); err != nil {
		return nil, err
	}
	return []byte("frame=  100"), nil
}

func (r *fakeRunner) ffmpegCalls() [][]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out [][]string
	for _, c := range r.calls {
		if c[0] == "ffmpeg" && (len(c) < 2 || c[1] != "-version") {
			out = append(out, c)
		}
	}
	return out
}

type testEnv struct {
	proc     *Processor
	store    *storage.Manager
	faultLog *failures.Store
	runner   *fakeRunner
}

func newTestEnv(t *testing.T, workers int) *testEnv {
	t.Helper()
	base := t.TempDir()

	store, err := storage.Open(filepath.Join(base, "processed"))
	if err != nil {
		t.Fatalf("storage.Open failed: %v", err)
	}
	faultLog, err := failures.Open(filepath.Join(base, "failures.db"))
	if err != nil {
		t.Fatalf("failures.Open failed: %v", err)
	}

	runner := &fakeRunner{}
	proc := New(workers, transcoder.NewWithRunner(runner), store, faultLog)
	if err := proc.Initialize(filepath.Join(base, "processed"), filepath.Join(base, "temp")); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	t.Cleanup(func() {
		proc.Shutdown()
		store.Close()
		faultLog.Close()
	})
	return &testEnv{proc: proc, store: store, faultLog: faultLog, runner: runner}
}

// writeInput buffers a fake upload in the processor's temp directory.
func (e *testEnv) writeInput(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(e.proc.TempPath(), name)
	if err := os.WriteFile(path, []byte("raw video bytes"), 0644); err != nil {
		t.Fatalf("failed to write input: %v", err)
	}
	return path
}

func (e *testEnv) run(t *testing.T, input, options string) models.ChunkInfo {
	t.Helper()
	task, err := e.proc.ProcessChunk(input, options)
	if err != nil {
		t.Fatalf("ProcessChunk failed: %v", err)
	}
	info, err := task.Wait()
	if err != nil {
		t.Fatalf("task failed: %v", err)
	}
	return info
}

func TestProcessChunkSuccess(t *testing.T) {
	env := newTestEnv(t, 2)
	input := env.writeInput(t, "clip.mp4")

	info := env.run(t, input, "")

	if info.Status != models.ChunkCompleted {
		t.Fatalf("expected completed, got %v (%s)", info.Status, info.ErrorMessage)
	}
	if info.Width != 640 || info.Height != 480 || info.Codec != "h264" || info.Duration != 1.0 {
		t.Errorf("metadata not recorded: %+v", info)
	}
	if !strings.HasSuffix(info.FilePath, info.ID+"_processed.mp4") {
		t.Errorf("unexpected artifact path %q", info.FilePath)
	}
	if info.Size != int64(len("encoded")) {
		t.Errorf("size = %d, want output file size", info.Size)
	}

	got, ok := env.proc.Get(info.ID)
	if !ok || got.Status != models.ChunkCompleted {
		t.Errorf("registry record missing or stale: %+v ok=%v", got, ok)
	}
	if env.store.Get(info.ID) == nil {
		t.Error("artifact not registered in storage")
	}
	if _, err := os.Stat(input); !os.IsNotExist(err) {
		t.Error("buffered upload not cleaned up after success")
	}

	processed, failed := env.proc.Counts()
	if processed != 1 || failed != 0 {
		t.Errorf("counts = (%d, %d), want (1, 0)", processed, failed)
	}
}

func TestProcessChunkMissingInput(t *testing.T) {
	env := newTestEnv(t, 1)

	info := env.run(t, filepath.Join(env.proc.TempPath(), "missing.mp4"), "")

	if info.Status != models.ChunkFailed {
		t.Fatalf("expected failed, got %v", info.Status)
	}
	if !strings.Contains(info.ErrorMessage, "input file does not exist") {
		t.Errorf("unexpected error message: %q", info.ErrorMessage)
	}

	// The failed record stays queryable.
	got, ok := env.proc.Get(info.ID)
	if !ok || got.Status != models.ChunkFailed || got.ErrorMessage == "" {
		t.Errorf("failed record not retrievable: %+v ok=%v", got, ok)
	}

	rec, err := env.faultLog.Get(info.ID)
	if err != nil || rec == nil {
		t.Errorf("failure not recorded in fault log: %v %v", rec, err)
	}
}

func TestProcessChunkTransformFailure(t *testing.T) {
	env := newTestEnv(t, 1)
	env.runner.transformErr = errors.New("exit status 1")
	input := env.writeInput(t, "clip.mp4")

	info := env.run(t, input, "")

	if info.Status != models.ChunkFailed {
		t.Fatalf("expected failed, got %v", info.Status)
	}
	if info.ErrorMessage == "" {
		t.Error("expected an error message on the record")
	}
	// Metadata probed before the transform is preserved on the record.
	if info.Width != 640 || info.Codec != "h264" {
		t.Errorf("probed metadata lost on failure: %+v", info)
	}

	_, failed := env.proc.Counts()
	if failed != 1 {
		t.Errorf("failed count = %d, want 1", failed)
	}
}

func TestOptionsReachTheTransform(t *testing.T) {
	env := newTestEnv(t, 1)
	input := env.writeInput(t, "clip.mp4")

	info := env.run(t, input, `{"resize":{"width":320,"height":240},"bitrate":"1M"}`)
	if info.Status != models.ChunkCompleted {
		t.Fatalf("expected completed, got %v (%s)", info.Status, info.ErrorMessage)
	}

	calls := env.runner.ffmpegCalls()
	if len(calls) != 1 {
		t.Fatalf("expected one transcode call, got %d", len(calls))
	}
	args := strings.Join(calls[0], " ")
	if !strings.Contains(args, "-vf scale=320:240") || !strings.Contains(args, "-b:v 1M") {
		t.Errorf("options not applied to transcode args: %v", calls[0])
	}
}

func TestMalformedOptionsFallBackToDefaults(t *testing.T) {
	env := newTestEnv(t, 1)
	input := env.writeInput(t, "clip.mp4")

	info := env.run(t, input, "{not json")
	if info.Status != models.ChunkCompleted {
		t.Fatalf("malformed options must not fail the job, got %v (%s)", info.Status, info.ErrorMessage)
	}

	calls := env.runner.ffmpegCalls()
	if len(calls) != 1 {
		t.Fatalf("expected one transcode call, got %d", len(calls))
	}
	if args := strings.Join(calls[0], " "); strings.Contains(args, "-vf") {
		t.Errorf("expected default args, got %v", calls[0])
	}
}

func TestCapacityEvictsOldestFirst(t *testing.T) {
	env := newTestEnv(t, 1)
	env.proc.SetMaxChunks(2)

	var ids []string
	for i := 0; i < 3; i++ {
		input := env.writeInput(t, fmt.Sprintf("clip%d.mp4", i))
		info := env.run(t, input, "")
		if info.Status != models.ChunkCompleted {
			t.Fatalf("job %d not completed: %v", i, info.ErrorMessage)
		}
		ids = append(ids, info.ID)
	}

	list := env.proc.List()
	if len(list) != 2 {
		t.Fatalf("expected 2 records after eviction, got %d", len(list))
	}
	if _, ok := env.proc.Get(ids[0]); ok {
		t.Error("oldest record survived eviction")
	}
	if list[0].ID != ids[1] || list[1].ID != ids[2] {
		t.Errorf("wrong survivors/order: %v vs %v", []string{list[0].ID, list[1].ID}, ids[1:])
	}

	// Eviction also drops the stored artifact of a completed chunk.
	if env.store.Get(ids[0]) != nil {
		t.Error("evicted chunk's artifact still in storage")
	}
}

func TestShrinkingCapacityEvictsImmediately(t *testing.T) {
	env := newTestEnv(t, 1)

	var ids []string
	for i := 0; i < 3; i++ {
		input := env.writeInput(t, fmt.Sprintf("clip%d.mp4", i))
		ids = append(ids, env.run(t, input, "").ID)
	}

	env.proc.SetMaxChunks(1)

	list := env.proc.List()
	if len(list) != 1 || list[0].ID != ids[2] {
		t.Errorf("expected only the newest record, got %+v", list)
	}
}

func TestDeleteChunk(t *testing.T) {
	env := newTestEnv(t, 1)
	input := env.writeInput(t, "clip.mp4")
	info := env.run(t, input, "")

	if !env.proc.Delete(info.ID) {
		t.Fatal("Delete returned false for an existing chunk")
	}
	if _, ok := env.proc.Get(info.ID); ok {
		t.Error("record still present after delete")
	}
	if env.store.Get(info.ID) != nil {
		t.Error("artifact still in storage after delete")
	}
	if env.proc.Delete(info.ID) {
		t.Error("Delete returned true for an already-deleted chunk")
	}
}

func TestListIsAStableSnapshot(t *testing.T) {
	env := newTestEnv(t, 1)
	input := env.writeInput(t, "clip.mp4")
	info := env.run(t, input, "")

	snapshot := env.proc.List()
	if len(snapshot) != 1 {
		t.Fatalf("expected 1 record, got %d", len(snapshot))
	}

	env.proc.Delete(info.ID)
	if len(snapshot) != 1 || snapshot[0].ID != info.ID {
		t.Error("snapshot mutated by later registry changes")
	}
}

func TestLoadFactorBounds(t *testing.T) {
	env := newTestEnv(t, 2)

	if lf := env.proc.LoadFactor(); lf != 0 {
		t.Errorf("idle load factor = %v, want 0", lf)
	}

	// Saturate: 2 workers, far more jobs than 2x capacity.
	var tasks []*pool.Task[models.ChunkInfo]
	for i := 0; i < 10; i++ {
		input := env.writeInput(t, fmt.Sprintf("clip%d.mp4", i))
		task, err := env.proc.ProcessChunk(input, "")
		if err != nil {
			t.Fatalf("ProcessChunk failed: %v", err)
		}
		tasks = append(tasks, task)
	}
	if lf := env.proc.LoadFactor(); lf < 0 || lf > 1 {
		t.Errorf("load factor %v outside [0,1]", lf)
	}
	for _, task := range tasks {
		task.Wait()
	}
}

func TestShutdownRejectsNewJobs(t *testing.T) {
	env := newTestEnv(t, 1)
	env.proc.Shutdown()

	_, err := env.proc.ProcessChunk("whatever.mp4", "")
	if !errors.Is(err, pool.ErrPoolClosed) {
		t.Errorf("expected ErrPoolClosed, got %v", err)
	}
}
