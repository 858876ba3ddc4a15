package pointcloud

import "math"

// VoxelDownsample keeps one representative point per axis-aligned cell of
// side leaf, the representative being the centroid of the points that fall
// in that cell. This is the per-scan ("filter_size_surf_min") downsampling
// step the orchestrator runs before handing points to the IEKF. Map-side
// ("filter_size_map_min") downsampling is not done here but by the k-d
// tree's own nearest-to-center downsample-insert rule in 4.A, which keeps a
// stored point rather than an averaged one.
func VoxelDownsample(points []Point, leaf float32) []Point {
	if leaf <= 0 || len(points) == 0 {
		out := make([]Point, len(points))
		copy(out, points)
		return out
	}

	type accum struct {
		sumX, sumY, sumZ float64
		sumI             float64
		sumT             float64
		n                int
	}

	cells := make(map[voxelKey]*accum, len(points)/4+1)
	order := make([]voxelKey, 0, len(points)/4+1)
	for _, p := range points {
		if !p.Finite() {
			continue
		}
		key := voxelKey{
			ix: int64(math.Floor(float64(p.X) / float64(leaf))),
			iy: int64(math.Floor(float64(p.Y) / float64(leaf))),
			iz: int64(math.Floor(float64(p.Z) / float64(leaf))),
		}
		a, ok := cells[key]
		if !ok {
			a = &accum{}
			cells[key] = a
			order = append(order, key)
		}
		a.sumX += float64(p.X)
		a.sumY += float64(p.Y)
		a.sumZ += float64(p.Z)
		a.sumI += float64(p.Intensity)
		a.sumT += float64(p.TimeMs)
		a.n++
	}

	out := make([]Point, 0, len(order))
	for _, key := range order {
		a := cells[key]
		n := float64(a.n)
		out = append(out, Point{
			X:         float32(a.sumX / n),
			Y:         float32(a.sumY / n),
			Z:         float32(a.sumZ / n),
			Intensity: float32(a.sumI / n),
			TimeMs:    float32(a.sumT / n),
		})
	}
	return out
}

type voxelKey struct {
	ix, iy, iz int64
}

// VoxelIndex returns the voxel cell index and its center for point p under
// side L, matching the k-d tree's downsample-insertion rule in 4.A:
// idx = floor(p/L); center = (idx + 0.5) * L.
func VoxelIndex(p Point, l float64) (idx [3]int64, center [3]float64) {
	idx = [3]int64{
		int64(math.Floor(float64(p.X) / l)),
		int64(math.Floor(float64(p.Y) / l)),
		int64(math.Floor(float64(p.Z) / l)),
	}
	center = [3]float64{
		(float64(idx[0]) + 0.5) * l,
		(float64(idx[1]) + 0.5) * l,
		(float64(idx[2]) + 0.5) * l,
	}
	return idx, center
}
