package raycast

import (
	"volray/internal/fixedpt"
	"volray/internal/spaceleap"
	"volray/internal/transfer"
)

const one = transfer.FixedOne

// opaqueRemainder is the transmittance below which a ray stops: further
// samples cannot change an 8-bit pixel.
const opaqueRemainder = one / 255

// mul multiplies two 15-bit fixed-point values.
func mul(a, b uint32) uint32 {
	return (a*b + one/2) / one
}

// ray is the traversal state of one ray in voxel space.
type ray struct {
	pos, inc     fixedpt.Vec
	left         int
	depthLimited bool
}

func (r *ray) advance(n int) {
	if n == 1 {
		r.pos = r.pos.Add(r.inc)
	} else {
		r.pos = r.pos.AddScaled(r.inc, n)
	}
	r.left -= n
}

// helper casts one ray and returns its premultiplied color. One helper is
// picked per frame from the blend mode and whether shading and gradient
// opacity are in use.
type helper interface {
	cast(w *worker, r *ray) [4]uint32
}

type (
	composite        struct{}
	compositeShade   struct{}
	compositeGO      struct{}
	compositeGOShade struct{}
	mip              struct{}
)

func selectHelper(blend transfer.BlendMode, shade, gradOp bool) helper {
	if blend == transfer.MaximumIntensity {
		return mip{}
	}
	switch {
	case shade && gradOp:
		return compositeGOShade{}
	case shade:
		return compositeShade{}
	case gradOp:
		return compositeGO{}
	}
	return composite{}
}

func (composite) cast(w *worker, r *ray) [4]uint32        { return w.march(r, false, false) }
func (compositeShade) cast(w *worker, r *ray) [4]uint32   { return w.march(r, true, false) }
func (compositeGO) cast(w *worker, r *ray) [4]uint32      { return w.march(r, false, true) }
func (compositeGOShade) cast(w *worker, r *ray) [4]uint32 { return w.march(r, true, true) }

// leapSteps returns how many steps keep the ray inside the block of the
// current sample, at least one.
func leapSteps(r *ray, cs *cellSample) int {
	k := r.left
	for a := 0; a < 3; a++ {
		inc, p := r.inc[a], r.pos[a]
		lo := fixedpt.FromInt(cs.cell[a] >> spaceleap.BlockShift << spaceleap.BlockShift)
		hi := lo + fixedpt.FromInt(1<<spaceleap.BlockShift)
		n := 1
		switch {
		case inc > 0 && p < hi:
			n = int((hi - p + inc - 1) / inc)
		case inc < 0 && p >= lo:
			n = int((p-lo)/-inc) + 1
		case inc == 0:
			continue
		}
		k = min(k, max(n, 1))
	}
	return k
}

func (w *worker) block() int {
	cs := &w.cs
	return w.fs.leap.Block(cs.cell[0]>>spaceleap.BlockShift, cs.cell[1]>>spaceleap.BlockShift, cs.cell[2]>>spaceleap.BlockShift)
}

func (w *worker) terminated(r *ray) {
	if r.depthLimited {
		w.stats.DepthLimited++
	} else {
		w.stats.Exited++
	}
}

// march is the front-to-back compositing loop.
func (w *worker) march(r *ray, shade, gradOp bool) [4]uint32 {
	fs := w.fs
	var acc [4]uint32
	for r.left > 0 {
		fs.sampler.locate(r.pos, &w.cs)
		if fs.leap != nil && fs.leap.Empty(w.cs.cell[0]>>spaceleap.BlockShift, w.cs.cell[1]>>spaceleap.BlockShift, w.cs.cell[2]>>spaceleap.BlockShift) {
			n := leapSteps(r, &w.cs)
			w.stats.Skipped += n
			r.advance(n)
			continue
		}
		if fs.clip.perSample && !fs.clip.keep(r.pos.Float()) {
			r.advance(1)
			continue
		}

		w.stats.Samples++
		var idx [4]uint16
		for c := 0; c < fs.nc; c++ {
			idx[c] = fs.sampler.scalar(&w.cs, c)
		}
		s := w.classify(&idx, shade, gradOp)
		if s[3] != 0 {
			rem := one - acc[3]
			for i := range acc {
				acc[i] += mul(s[i], rem)
			}
			if one-acc[3] < opaqueRemainder {
				w.stats.Opaque++
				return acc
			}
		}
		r.advance(1)
	}
	w.terminated(r)
	return acc
}

func (mip) cast(w *worker, r *ray) [4]uint32 {
	fs := w.fs
	oc := fs.nc - 1
	independent := fs.tables.Independent
	var best [4]uint16
	found := false
	for r.left > 0 {
		fs.sampler.locate(r.pos, &w.cs)
		if found && fs.leap != nil && w.belowBest(&best) {
			n := leapSteps(r, &w.cs)
			w.stats.Skipped += n
			r.advance(n)
			continue
		}
		if fs.clip.perSample && !fs.clip.keep(r.pos.Float()) {
			r.advance(1)
			continue
		}

		w.stats.Samples++
		var idx [4]uint16
		for c := 0; c < fs.nc; c++ {
			idx[c] = fs.sampler.scalar(&w.cs, c)
		}
		switch {
		case independent:
			for c := 0; c < fs.nc; c++ {
				best[c] = max(best[c], idx[c])
			}
		case !found || idx[oc] > best[oc]:
			best = idx
		}
		found = true
		r.advance(1)
	}
	w.terminated(r)
	if !found {
		return [4]uint32{}
	}
	return w.classify(&best, false, false)
}

// belowBest reports whether no sample in the current block can raise the
// running maximum.
func (w *worker) belowBest(best *[4]uint16) bool {
	fs := w.fs
	b := w.block()
	if !fs.tables.Independent {
		oc := fs.nc - 1
		return fs.leap.MaxIndex(b, oc) <= best[oc]
	}
	for c := 0; c < fs.nc; c++ {
		if fs.leap.MaxIndex(b, c) > best[c] {
			return false
		}
	}
	return true
}

// classify maps table indices to a premultiplied color. Independent
// components are weighted and summed; dependent components take color from
// the first component (or directly from the first three) and opacity,
// gradient opacity and shading from the last.
func (w *worker) classify(idx *[4]uint16, shade, gradOp bool) [4]uint32 {
	fs := w.fs
	t := fs.tables

	if t.Independent {
		var out [4]uint32
		for c := 0; c < fs.nc; c++ {
			ct := &t.Components[c]
			a := uint32(ct.ScalarOpacity[idx[c]])
			if gradOp && ct.GradientOpacityOn && a != 0 {
				a = mul(a, uint32(ct.GradientOpacity[fs.sampler.magnitude(&w.cs, c, fs.shortCut)]))
			}
			a = mul(a, uint32(t.Weights[c]))
			if a == 0 {
				continue
			}
			col := ct.Color[idx[c]]
			rgb := [3]uint32{uint32(col[0]), uint32(col[1]), uint32(col[2])}
			if shade {
				w.shadeRGB(&rgb, c)
			}
			for i := range rgb {
				out[i] += mul(rgb[i], a)
			}
			out[3] += a
		}
		for i := range out {
			out[i] = min(out[i], one)
		}
		return out
	}

	oc := fs.nc - 1
	ct := &t.Components[oc]
	a := uint32(ct.ScalarOpacity[idx[oc]])
	if gradOp && ct.GradientOpacityOn && a != 0 {
		a = mul(a, uint32(ct.GradientOpacity[fs.sampler.magnitude(&w.cs, oc, fs.shortCut)]))
	}
	if a == 0 {
		return [4]uint32{}
	}
	var rgb [3]uint32
	if t.DirectRGB {
		for i := range rgb {
			rgb[i] = uint32(t.Components[i].Color[idx[i]][0])
		}
	} else {
		col := t.Components[0].Color[idx[0]]
		rgb = [3]uint32{uint32(col[0]), uint32(col[1]), uint32(col[2])}
	}
	if shade {
		w.shadeRGB(&rgb, oc)
	}
	return [4]uint32{mul(rgb[0], a), mul(rgb[1], a), mul(rgb[2], a), a}
}

func (w *worker) shadeRGB(rgb *[3]uint32, c int) {
	tab := w.fs.shade[c]
	if tab == nil {
		return
	}
	d, s := w.fs.sampler.lighting(&w.cs, c, tab, w.fs.shortCut)
	for i := range rgb {
		rgb[i] = min(mul(rgb[i], d)+s, one)
	}
}
