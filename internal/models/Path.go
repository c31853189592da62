package models

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/wkb"
)

// ErrPathTooShort is returned when a route path has fewer than two points.
var ErrPathTooShort = errors.New("route path needs at least two points")

// EncodePath stores an ordered path as a WKB LineString (SRID 4326 axis order lng,lat).
func EncodePath(path []LatLng) ([]byte, error) {
	if len(path) == 0 {
		return nil, nil
	}
	if len(path) < 2 {
		return nil, ErrPathTooShort
	}
	coords := make([]geom.Coord, len(path))
	for i, p := range path {
		coords[i] = geom.Coord{p.Lng, p.Lat}
	}
	ls, err := geom.NewLineString(geom.XY).SetCoords(coords)
	if err != nil {
		return nil, fmt.Errorf("build linestring: %w", err)
	}
	return wkb.Marshal(ls, binary.LittleEndian)
}

// DecodePath is the inverse of EncodePath.
func DecodePath(b []byte) ([]LatLng, error) {
	if len(b) == 0 {
		return nil, nil
	}
	g, err := wkb.Unmarshal(b)
	if err != nil {
		return nil, fmt.Errorf("decode route geometry: %w", err)
	}
	ls, ok := g.(*geom.LineString)
	if !ok {
		return nil, fmt.Errorf("route geometry is %T, want LineString", g)
	}
	out := make([]LatLng, 0, ls.NumCoords())
	for _, c := range ls.Coords() {
		out = append(out, LatLng{Lat: c.Y(), Lng: c.X()})
	}
	return out, nil
}
