// Package zonemap resolves USDA hardiness zones, either from zone polygons
// loaded out of a shapefile (point lookup) or from phzmapi.org (ZIP lookup,
// cached locally).
package zonemap

import (
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"
	"go.uber.org/zap"
)

// zoneShape is one shapefile record: a zone label plus its rings as flat
// XY coordinates. Multi-part records carry both disjoint shells and holes,
// so membership is decided by ring crossing parity rather than per-ring.
type zoneShape struct {
	zone  string
	box   shp.Box
	rings [][]float64
}

// Map is an in-memory point-in-polygon index over zone polygons.
type Map struct {
	shapes []zoneShape
}

// LoadShapefile reads zone polygons from a shapefile. The zone label comes
// from the "zone" attribute field (any case).
func LoadShapefile(path string) (*Map, error) {
	reader, err := shp.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "zonemap: open shapefile %s", path)
	}
	defer func() { _ = reader.Close() }()

	zoneIdx := fieldIndex(reader, "zone")
	if zoneIdx < 0 {
		return nil, eris.New("zonemap: shapefile has no zone attribute field")
	}

	m := &Map{}
	var skipped int
	for reader.Next() {
		_, shape := reader.Shape()
		poly, ok := shape.(*shp.Polygon)
		if !ok {
			skipped++
			continue
		}
		zone := normalizeZone(reader.Attribute(zoneIdx))
		if zone == "" {
			skipped++
			continue
		}
		m.addPolygon(zone, poly)
	}

	zap.L().Info("zone shapefile loaded",
		zap.String("component", "zonemap"),
		zap.String("path", path),
		zap.Int("polygons", len(m.shapes)),
		zap.Int("skipped", skipped),
	)
	return m, nil
}

// Len reports how many zone polygons are loaded.
func (m *Map) Len() int {
	return len(m.shapes)
}

// addPolygon splits a shapefile polygon into rings and indexes it. The
// bounding box is recomputed from the points rather than trusted from the
// file header.
func (m *Map) addPolygon(zone string, poly *shp.Polygon) {
	if poly == nil || poly.NumParts == 0 || len(poly.Points) == 0 {
		return
	}

	box := shp.Box{MinX: poly.Points[0].X, MinY: poly.Points[0].Y, MaxX: poly.Points[0].X, MaxY: poly.Points[0].Y}
	for _, pt := range poly.Points {
		if pt.X < box.MinX {
			box.MinX = pt.X
		}
		if pt.X > box.MaxX {
			box.MaxX = pt.X
		}
		if pt.Y < box.MinY {
			box.MinY = pt.Y
		}
		if pt.Y > box.MaxY {
			box.MaxY = pt.Y
		}
	}

	rings := make([][]float64, 0, poly.NumParts)
	for i := int32(0); i < poly.NumParts; i++ {
		start := poly.Parts[i]
		var end int32
		if i+1 < poly.NumParts {
			end = poly.Parts[i+1]
		} else {
			end = int32(len(poly.Points))
		}

		ring := make([]float64, 0, (end-start)*2)
		for j := start; j < end; j++ {
			ring = append(ring, poly.Points[j].X, poly.Points[j].Y)
		}
		// A closed ring needs at least 3 distinct points.
		if len(ring) >= 8 {
			rings = append(rings, ring)
		}
	}
	if len(rings) == 0 {
		return
	}

	m.shapes = append(m.shapes, zoneShape{zone: zone, box: box, rings: rings})
}

// Lookup returns the zone containing the point, if any. Shapefile X/Y is
// lon/lat. A point inside an odd number of a record's rings is inside the
// record (shells count it in, holes count it back out).
func (m *Map) Lookup(lat, lon float64) (string, bool) {
	p := geom.Coord{lon, lat}
	for _, s := range m.shapes {
		if lon < s.box.MinX || lon > s.box.MaxX || lat < s.box.MinY || lat > s.box.MaxY {
			continue
		}
		crossed := 0
		for _, ring := range s.rings {
			if xy.IsPointInRing(geom.XY, p, ring) {
				crossed++
			}
		}
		if crossed%2 == 1 {
			return s.zone, true
		}
	}
	return "", false
}

// fieldIndex returns the index of a named field in the shapefile, or -1 if not found.
func fieldIndex(reader *shp.Reader, name string) int {
	for i, f := range reader.Fields() {
		if strings.EqualFold(strings.TrimRight(f.String(), "\x00"), name) {
			return i
		}
	}
	return -1
}

// normalizeZone lowers shapefile zone labels to the catalog's zone
// vocabulary ("6b", not "Zone 6B").
func normalizeZone(raw string) string {
	z := strings.ToLower(strings.TrimSpace(strings.TrimRight(raw, "\x00")))
	return strings.TrimPrefix(z, "zone ")
}
