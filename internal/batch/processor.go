// Package batch renders an orbit around a volume: a run of interactive frames
// under a time budget followed by one full-quality frame, encoded to WebP or
// PNG by a worker pool while the next frame renders.
package batch

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/HugoSmits86/nativewebp"

	"volray/internal/camera"
	"volray/internal/raycast"
)

// Config holds everything an orbit run needs. Input supplies the grid,
// property, viewport and z-buffer; its camera is replaced per frame.
type Config struct {
	Renderer *raycast.Renderer
	Input    raycast.Input
	Camera   func(frame int) camera.Camera
	Frames   int

	// Desired is the budget of orbit frames. Zero renders every frame at
	// full quality.
	Desired time.Duration

	OutputDir string
	Workers   int

	// PNG writes PNG files instead of WebP.
	PNG bool

	// Logger receives progress; nil uses the renderer's logger.
	Logger *slog.Logger
}

// Result holds the outcome of one frame.
type Result struct {
	Frame int
	Final bool
	Image string

	ImageSampleDistance float64
	SampleDistance      float64
	Elapsed             time.Duration
	Stats               raycast.Stats

	Success bool
	Error   string
}

type encodeJob struct {
	idx int
	img *image.NRGBA
}

// Run renders cfg.Frames orbit frames and a final full-quality frame of the
// last view. Frames render one after another on the shared renderer;
// encoding overlaps with rendering. Cancelling ctx aborts the frame in
// flight and returns the results so far with ctx.Err().
func Run(ctx context.Context, cfg Config) ([]Result, error) {
	if cfg.Frames <= 0 {
		return nil, fmt.Errorf("batch: frame count must be positive, is %d", cfg.Frames)
	}
	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("batch: %w", err)
	}
	log := cfg.Logger
	if log == nil {
		log = raycast.Logger()
	}
	workers := max(cfg.Workers, 1)

	total := cfg.Frames + 1
	results := make([]Result, total)
	var encoded atomic.Int64
	start := time.Now()

	stop := context.AfterFunc(ctx, cfg.Renderer.Abort)
	defer stop()

	// Progress reporter
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(2 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if n := encoded.Load(); n > 0 {
					log.Info("orbit progress", "done", n, "total", total,
						"fps", float64(n)/time.Since(start).Seconds())
				}
			}
		}
	}()

	// Encoder pool
	jobs := make(chan encodeJob, workers*2)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				path := filepath.Join(cfg.OutputDir, results[j.idx].Image)
				if err := writeImage(path, j.img, cfg.PNG); err != nil {
					results[j.idx].Success = false
					results[j.idx].Error = err.Error()
				}
				encoded.Add(1)
			}
		}()
	}

	var runErr error
	n := total
	for i := 0; i < total; i++ {
		if err := ctx.Err(); err != nil {
			runErr = err
			n = i
			break
		}
		final := i == cfg.Frames
		view := min(i, cfg.Frames-1)
		res := &results[i]
		res.Frame = view
		res.Final = final
		res.Image = frameName(view, final, cfg.PNG)

		in := cfg.Input
		in.Camera = cfg.Camera(view)
		in.DesiredTime = cfg.Desired
		if final {
			in.DesiredTime = 0
		}

		out, err := cfg.Renderer.Render(in)
		if err != nil {
			res.Error = err.Error()
			if errors.Is(err, raycast.ErrAborted) && ctx.Err() != nil {
				runErr = ctx.Err()
				n = i + 1
				break
			}
			log.Warn("frame failed", "frame", view, "final", final, "err", err)
			continue
		}

		res.Success = true
		res.ImageSampleDistance = out.ImageSampleDistance
		res.SampleDistance = out.SampleDistance
		res.Elapsed = out.Stats.Elapsed
		res.Stats = out.Stats
		log.Debug("frame rendered", "frame", view, "final", final,
			"imageSampleDistance", out.ImageSampleDistance, "elapsed", out.Stats.Elapsed)
		jobs <- encodeJob{idx: i, img: out.Image}
	}
	close(jobs)

	wg.Wait()
	close(done)

	log.Info("orbit done", "frames", n, "elapsed", time.Since(start))
	return results[:n], runErr
}

func frameName(frame int, final, usePNG bool) string {
	ext := ".webp"
	if usePNG {
		ext = ".png"
	}
	if final {
		return "final" + ext
	}
	return fmt.Sprintf("frame_%03d%s", frame, ext)
}

func writeImage(path string, img image.Image, usePNG bool) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if usePNG {
		err = png.Encode(f, img)
	} else {
		err = nativewebp.Encode(f, img, nil)
	}
	if err != nil {
		f.Close()
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	return f.Close()
}
