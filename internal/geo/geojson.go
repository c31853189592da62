package geo

import (
	"encoding/binary"

	"github.com/twpayne/go-geom"
	gjson "github.com/twpayne/go-geom/encoding/geojson"
	"github.com/twpayne/go-geom/encoding/wkb"

	"bus_tracker/internal/models"
)

// PathToGeoJSON converts a stored WKB route geometry into a GeoJSON string.
func PathToGeoJSON(wkbBytes []byte) (string, error) {
	if len(wkbBytes) == 0 {
		return "", nil
	}
	g, err := wkb.Unmarshal(wkbBytes)
	if err != nil {
		return "", err
	}
	b, err := gjson.Marshal(g)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// PathFromGeoJSON parses a GeoJSON LineString into an ordered path.
func PathFromGeoJSON(raw string) ([]models.LatLng, error) {
	if raw == "" {
		return nil, nil
	}
	var g geom.T
	if err := gjson.Unmarshal([]byte(raw), &g); err != nil {
		return nil, err
	}
	b, err := wkb.Marshal(g, binary.LittleEndian)
	if err != nil {
		return nil, err
	}
	return models.DecodePath(b)
}
