package main

import (
	"flag"
	"fmt"
	"os"

	"volray/internal/config"
	"volray/internal/gradient"
	"volray/internal/spaceleap"
	"volray/internal/transfer"
)

func main() {
	sceneFile := flag.String("scene", "", "Path to scene .ini file (default: built-in sphere)")
	volumeDir := flag.String("volume", "", "Directory of slice images to inspect instead of the scene volume")
	flag.Parse()

	scene := config.Default()
	if *sceneFile != "" {
		var err error
		scene, err = config.Read(*sceneFile)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
	}
	scene.Resolve(config.Flags{VolumeDir: *volumeDir})
	if err := scene.CheckInit(); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	g, err := scene.Grid()
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Dims: %v, Components: %d, Type: %s\n", g.Dims, g.Components, g.Type)
	fmt.Printf("Spacing: %v, Origin: %v\n", g.Spacing, g.Origin)
	lo, hi := g.Bounds()
	fmt.Printf("Bounds: %v .. %v\n", lo, hi)
	for c := 0; c < g.Components; c++ {
		rng := g.Range(c)
		fmt.Printf("  Component[%d]: range [%g, %g], magnitude scale %.3f\n", c, rng[0], rng[1], gradient.MagnitudeScale(rng))
	}

	p := scene.Property(g)
	blend := transfer.Composite
	if scene.Render.Blend == "mip" {
		blend = transfer.MaximumIntensity
	}
	var b transfer.Builder
	tables, _, err := b.Build(g, p, scene.Render.SampleDistance, blend)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	for c := 0; c < g.Components; c++ {
		rng := g.Range(c)
		if x, ok := p.Components[c].ScalarOpacity.FirstNonZero(rng[0], rng[1]); ok {
			fmt.Printf("  Opacity[%d]: visible from %g\n", c, x)
		} else {
			fmt.Printf("  Opacity[%d]: transparent over the data range\n", c)
		}
	}
	for c, ct := range tables.Components {
		fmt.Printf("  Tables[%d]: size %d, first opaque index %d, first gradient byte %d\n",
			c, ct.Mapping.Size, ct.FirstOpaque, ct.FirstGradient)
	}

	ix := spaceleap.Build(g, tables)
	ix.RefreshFlags(tables, false)
	empty, total := ix.Counts()
	fmt.Printf("Blocks: %v = %d, empty by scalar opacity: %d (%.1f%%)\n",
		ix.Dims, total, empty, 100*float64(empty)/float64(max(total, 1)))

	if !p.GradientOpacity(g.Components) {
		return
	}
	f, err := gradient.Estimate(g, gradient.NewSphericalEncoder(), gradient.Budget{})
	if err != nil {
		fmt.Printf("Gradient: %v\n", err)
		return
	}
	ix.FillGradient(f)
	ix.RefreshFlags(tables, true)
	empty, _ = ix.Counts()
	fmt.Printf("Gradient field: %d bytes, empty with gradient opacity: %d (%.1f%%)\n",
		f.Bytes(), empty, 100*float64(empty)/float64(max(total, 1)))
}
