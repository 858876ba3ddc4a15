package engine

import (
	"bufio"
	"encoding/binary"
	"os"
)

// FlushMap writes the cumulative world-frame cloud to path as a simple
// binary payload: a little-endian uint32 point count followed by that many
// little-endian float32 (x, y, z) triples. This matches the §6 "optional
// binary point-cloud file" contract without pulling in a full PCL-format
// dependency absent from the retrieval pack.
func (e *Engine) FlushMap(path string) error {
	e.mu.RLock()
	points := make([][3]float32, len(e.worldCloud))
	for i, p := range e.worldCloud {
		points[i] = [3]float32{p.X, p.Y, p.Z}
	}
	e.mu.RUnlock()

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	if err := binary.Write(w, binary.LittleEndian, uint32(len(points))); err != nil {
		return err
	}
	for _, p := range points {
		if err := binary.Write(w, binary.LittleEndian, p); err != nil {
			return err
		}
	}
	return w.Flush()
}
