package geo

import "math"

// Mean Earth radius; the noise bands are calibrated against it.
const earthRadiusM = 6371000.0

// Haversine returns the great-circle distance in metres between a and b.
func Haversine(a, b Point) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLon := (b.Lon - a.Lon) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusM * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// DistanceToSegment projects p onto segment a-b in lon/lat space, clamps the
// projection parameter to [0,1] and returns the Haversine distance to the
// closest point.
func DistanceToSegment(p, a, b Point) float64 {
	dx := b.Lon - a.Lon
	dy := b.Lat - a.Lat
	lenSq := dx*dx + dy*dy
	if lenSq == 0 {
		return Haversine(p, a)
	}

	t := ((p.Lon-a.Lon)*dx + (p.Lat-a.Lat)*dy) / lenSq
	t = math.Max(0, math.Min(1, t))

	closest := Point{Lat: a.Lat + t*dy, Lon: a.Lon + t*dx}
	return Haversine(p, closest)
}

// DistanceToPolyline returns the minimum distance from p to any segment of
// coords. A single coordinate degrades to a point distance; an empty
// polyline is infinitely far away.
func DistanceToPolyline(p Point, coords []Point) float64 {
	switch len(coords) {
	case 0:
		return math.Inf(1)
	case 1:
		return Haversine(p, coords[0])
	}

	best := math.Inf(1)
	for i := 0; i < len(coords)-1; i++ {
		if d := DistanceToSegment(p, coords[i], coords[i+1]); d < best {
			best = d
		}
	}
	return best
}
