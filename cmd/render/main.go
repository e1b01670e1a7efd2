package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"volray/internal/batch"
	"volray/internal/camera"
	"volray/internal/config"
	"volray/internal/raycast"
)

func main() {
	// CLI flags
	sceneFile := flag.String("scene", "", "Path to scene .ini file (default: built-in sphere)")
	volumeDir := flag.String("volume", "", "Directory of slice images to render instead of the scene volume")
	outputDir := flag.String("output", "", "Output directory (default: renders)")
	frames := flag.Int("frames", 0, "Number of orbit frames")
	size := flag.Int("size", 0, "Square image size in pixels")
	workers := flag.Int("workers", 0, "Number of encoder goroutines (default: NumCPU)")
	threads := flag.Int("threads", 0, "Ray casting threads per frame (default: NumCPU)")
	usePNG := flag.Bool("png", false, "Write PNG frames instead of WebP")
	verbose := flag.Bool("v", false, "Log cache rebuilds and per-frame stats")

	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	raycast.SetLogger(logger)

	// Load scene
	scene := config.Default()
	if *sceneFile != "" {
		var err error
		scene, err = config.Read(*sceneFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading scene: %v\n", err)
			os.Exit(1)
		}
	}

	// CLI flags override scene file
	scene.Resolve(config.Flags{
		VolumeDir: *volumeDir,
		OutputDir: *outputDir,
		Workers:   *workers,
		Threads:   *threads,
		Frames:    *frames,
		Size:      *size,
	})
	if err := scene.CheckInit(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	grid, err := scene.Grid()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading volume: %v\n", err)
		os.Exit(1)
	}

	r := raycast.New()
	scene.Apply(r)

	fmt.Printf("Volume: %v x %d components (%s)\n", grid.Dims, grid.Components, grid.Type)
	fmt.Printf("Frames: %d + final, Image: %dx%d, Workers: %d\n",
		scene.Render.Frames, scene.Render.Width, scene.Render.Height, scene.Render.Workers)
	fmt.Printf("Output: %s\n", scene.Render.Output)
	fmt.Println("------------------------------------------------------------")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	start := time.Now()

	results, err := batch.Run(ctx, batch.Config{
		Renderer: r,
		Input: raycast.Input{
			Grid:     grid,
			Property: scene.Property(grid),
			Viewport: scene.Viewport(),
		},
		Camera:    func(i int) camera.Camera { return scene.OrbitCamera(grid, i) },
		Frames:    scene.Render.Frames,
		Desired:   scene.Render.Desired(),
		OutputDir: scene.Render.Output,
		Workers:   scene.Render.Workers,
		PNG:       scene.Render.PNG || *usePNG,
		Logger:    logger,
	})
	if err != nil && len(results) == 0 {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	elapsed := time.Since(start)
	fmt.Println("------------------------------------------------------------")
	fmt.Printf("Done in %.1fs\n", elapsed.Seconds())

	// Count results
	success, failed := 0, 0
	var errors []batch.Result
	for _, res := range results {
		if res.Success {
			success++
		} else {
			failed++
			errors = append(errors, res)
		}
	}

	fmt.Printf("Rendered: %d/%d\n", success, len(results))

	if len(errors) > 0 {
		fmt.Printf("\nFailed (%d):\n", failed)
		for _, e := range errors[:min(len(errors), 20)] {
			fmt.Printf("  %s: %s\n", e.Image, e.Error)
		}
	}

	// Write manifest
	manifestPath := filepath.Join(scene.Render.Output, "manifest.json")
	if err := batch.WriteManifest(manifestPath, results); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: manifest write failed: %v\n", err)
	} else {
		fmt.Printf("Manifest: %s\n", manifestPath)
	}

	if failed > 0 || err != nil {
		os.Exit(1)
	}
}
