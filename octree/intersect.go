package octree

// cubeCorners enumerates the corners of the unit cube and cubeEdges the
// corner pairs of its 12 edges.
var (
	cubeCorners = [8][3]float32{
		{0, 0, 0}, {0, 0, 1}, {0, 1, 0}, {0, 1, 1},
		{1, 0, 0}, {1, 0, 1}, {1, 1, 0}, {1, 1, 1},
	}
	cubeEdges = [12][2]int{
		{0, 1}, {2, 3}, {4, 5}, {6, 7},
		{0, 2}, {1, 3}, {4, 6}, {5, 7},
		{0, 4}, {1, 5}, {2, 6}, {3, 7},
	}
)

// intersectPlaneCube returns the intersection points of the plane through pt
// with the given normal and the edges of the unit cube with min corner base,
// flattened xyz. A zero normal yields no intersections.
func intersectPlaneCube(pt, base, normal [3]float32) []float32 {
	var dist [8]float32
	for i, corner := range cubeCorners {
		for c := 0; c < 3; c++ {
			dist[i] += (base[c] + corner[c] - pt[c]) * normal[c]
		}
	}

	var vtx []float32
	for _, e := range cubeEdges {
		d0, d1 := dist[e[0]], dist[e[1]]
		if d0*d1 > 0 || d0 == d1 {
			continue
		}
		s := d0 / (d0 - d1)
		for c := 0; c < 3; c++ {
			v0 := base[c] + cubeCorners[e[0]][c]
			v1 := base[c] + cubeCorners[e[1]][c]
			vtx = append(vtx, v0+s*(v1-v0))
		}
	}
	return vtx
}
