package transcoder

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"chadserv/logger"
)

// Metadata is the probed stream information for a media file.
type Metadata struct {
	Width    int
	Height   int
	Duration float64
	Codec    string
}

// TranscodeError reports a failed transform invocation, carrying the
// external tool's captured output as diagnostic context.
type TranscodeError struct {
	Output string
	Err    error
}

func (e *TranscodeError) Error() string {
	msg := "transcode failed: output file not created"
	if e.Err != nil {
		msg = fmt.Sprintf("transcode failed: %v", e.Err)
	}
	if out := strings.TrimSpace(e.Output); out != "" {
		return msg + ": " + out
	}
	return msg
}

func (e *TranscodeError) Unwrap() error { return e.Err }

// Transcoder wraps the external transform and probe tools. It is a pure
// adapter: no retries, no state beyond the runner.
type Transcoder struct {
	runner Runner
}

func New() *Transcoder {
	return &Transcoder{runner: execRunner{}}
}

// NewWithRunner builds a Transcoder around an injected command runner.
func NewWithRunner(r Runner) *Transcoder {
	return &Transcoder{runner: r}
}

// Detect checks that the transform tool is invocable. Called once at
// startup; a failure here is fatal for the process.
func (t *Transcoder) Detect(ctx context.Context) error {
	out, err := t.runner.Run(ctx, "ffmpeg", "-version")
	if err != nil {
		return fmt.Errorf("ffmpeg check failed: %w", err)
	}
	if line, _, ok := strings.Cut(string(out), "\n"); ok && line != "" {
		logger.Infof("FFmpeg detected: %s", line)
	} else {
		logger.Warn("FFmpeg check returned empty result")
	}
	return nil
}

// ffprobe emits duration as a quoted string inside the stream object.
type probeStream struct {
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	Codec    string `json:"codec_name"`
	Duration string `json:"duration"`
}

type probeOutput struct {
	Streams []probeStream `json:"streams"`
}

// ExtractMetadata probes the file for stream dimensions, codec and
// duration. Extraction is best-effort: any probe failure (process
// error, malformed output, missing fields) leaves the affected fields
// at their zero values.
func (t *Transcoder) ExtractMetadata(ctx context.Context, path string) Metadata {
	var meta Metadata

	out, err := t.runner.Run(ctx, "ffprobe",
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=width,height,codec_name,duration",
		"-of", "json",
		path,
	)
	if err != nil {
		logger.Errorf("error extracting metadata from %s: %v", path, err)
		return meta
	}

	var probed probeOutput
	if err := json.Unmarshal(out, &probed); err != nil {
		logger.Errorf("error parsing probe output for %s: %v", path, err)
		return meta
	}
	if len(probed.Streams) == 0 {
		return meta
	}

	stream := probed.Streams[0]
	meta.Width = stream.Width
	meta.Height = stream.Height
	meta.Codec = stream.Codec
	if stream.Duration != "" {
		if d, err := strconv.ParseFloat(stream.Duration, 64); err == nil {
			meta.Duration = d
		}
	}
	return meta
}

// Transform runs the external transcode command from input to output
// with the given options. It succeeds only if the output artifact
// exists afterward; a single failed invocation is terminal for the job
// attempt.
func (t *Transcoder) Transform(ctx context.Context, input, output string, opts Options) error {
	args := []string{"-y", "-i", input}

	if opts.Resize != nil {
		args = append(args, "-vf", fmt.Sprintf("scale=%d:%d", opts.Resize.Width, opts.Resize.Height))
	}
	if opts.Bitrate != "" {
		args = append(args, "-b:v", opts.Bitrate)
	}
	if opts.Codec != "" {
		args = append(args, "-c:v", opts.Codec)
	}
	args = append(args, output)

	out, err := t.runner.Run(ctx, "ffmpeg", args...)
	logger.Debugf("ffmpeg output: %s", strings.TrimSpace(string(out)))

	if _, statErr := os.Stat(output); statErr != nil {
		return &TranscodeError{Output: string(out), Err: err}
	}
	return nil
}
