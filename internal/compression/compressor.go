package compression

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/panjf2000/ants/v2"

	"training-backend/internal/shared/metrics"
	"training-backend/internal/shared/telemetry"
)

const defaultTimeout = 5 * time.Minute

// runFunc performs one transcode of the file at inputPath and returns the
// re-encoded bytes. Swappable in tests.
type runFunc func(ctx context.Context, inputPath string) ([]byte, error)

// Compressor re-encodes video into a normalized, streaming-friendly mp4 on
// a bounded worker pool. Compression is strictly best-effort: any failure,
// timeout, or pool overload degrades to the original bytes so ingestion
// never aborts because of it.
type Compressor struct {
	pool    *ants.Pool
	timeout time.Duration
	run     runFunc
}

// New constructs a Compressor with poolSize concurrent transcodes. Callers
// beyond poolSize queue up to twice the pool size and are rejected past
// that, which bounds resident buffers under load.
func New(poolSize int, timeout time.Duration, ffmpegPath string) (*Compressor, error) {
	if poolSize < 1 {
		poolSize = 1
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	pool, err := ants.NewPool(poolSize, ants.WithMaxBlockingTasks(poolSize*2))
	if err != nil {
		return nil, fmt.Errorf("create compression pool: %w", err)
	}

	return &Compressor{
		pool:    pool,
		timeout: timeout,
		run:     ffmpegRunner(ffmpegPath),
	}, nil
}

// Release shuts down the worker pool.
func (c *Compressor) Release() {
	if c.pool != nil {
		c.pool.Release()
	}
}

// Compress re-encodes the video and returns the new bytes, or the input
// unchanged when transcoding is not possible.
func (c *Compressor) Compress(ctx context.Context, logicalName string, data []byte) []byte {
	start := time.Now()

	type result struct {
		out []byte
		err error
	}
	resCh := make(chan result, 1)

	submitErr := c.pool.Submit(func() {
		out, err := c.transcode(ctx, logicalName, data)
		resCh <- result{out: out, err: err}
	})
	if submitErr != nil {
		telemetry.Error("compression.rejected", map[string]any{
			"file":  logicalName,
			"error": submitErr.Error(),
		})
		metrics.IncCompressFallback()
		return data
	}

	res := <-resCh
	metrics.ObserveCompressDurationMs(float64(time.Since(start).Microseconds()) / 1000.0)
	if res.err != nil {
		telemetry.Error("compression.failed", map[string]any{
			"file":  logicalName,
			"error": res.err.Error(),
		})
		metrics.IncCompressFallback()
		return data
	}

	telemetry.Info("compression.completed", map[string]any{
		"file":       logicalName,
		"size_in":    len(data),
		"size_out":   len(res.out),
		"elapsed_ms": time.Since(start).Milliseconds(),
	})
	return res.out
}

func (c *Compressor) transcode(ctx context.Context, logicalName string, data []byte) ([]byte, error) {
	runCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	dir, err := os.MkdirTemp("", "transcode-*")
	if err != nil {
		return nil, fmt.Errorf("temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	ext := filepath.Ext(logicalName)
	if ext == "" {
		ext = ".mp4"
	}
	inputPath := filepath.Join(dir, "input"+ext)
	if err := os.WriteFile(inputPath, data, 0o600); err != nil {
		return nil, fmt.Errorf("write input: %w", err)
	}

	out, err := c.run(runCtx, inputPath)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("transcode produced no output")
	}
	return out, nil
}

// ffmpegRunner returns a runFunc that shells out to ffmpeg with a fixed
// codec/quality ladder: h264 crf 26 preset fast, aac 128k, fragmented mp4
// so the output streams without a seekable container.
func ffmpegRunner(ffmpegPath string) runFunc {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	return func(ctx context.Context, inputPath string) ([]byte, error) {
		var stdout, stderr bytes.Buffer
		cmd := exec.CommandContext(ctx, ffmpegPath,
			"-y",
			"-fflags", "+genpts",
			"-i", inputPath,
			"-c:v", "libx264",
			"-crf", "26",
			"-preset", "fast",
			"-c:a", "aac",
			"-b:a", "128k",
			"-movflags", "frag_keyframe+empty_moov",
			"-f", "mp4",
			"pipe:1",
		)
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr

		if err := cmd.Run(); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, fmt.Errorf("ffmpeg timed out: %w", ctxErr)
			}
			return nil, fmt.Errorf("ffmpeg: %w: %s", err, truncate(stderr.String(), 512))
		}
		return stdout.Bytes(), nil
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
