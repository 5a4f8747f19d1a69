// Package geomap writes the incident heat map as a standalone HTML file,
// the artifact downstream consumers open directly in a browser.
package geomap

import (
	"fmt"
	"html/template"
	"os"
	"path/filepath"
)

// Point is one incident location.
type Point struct {
	Lat float64
	Lon float64
}

// Options positions the initial viewport.
type Options struct {
	CenterLat float64
	CenterLon float64
	Zoom      int
}

const pageTemplate = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Mapa de incidencias</title>
<link rel="stylesheet" href="https://unpkg.com/leaflet@1.9.4/dist/leaflet.css"/>
<script src="https://unpkg.com/leaflet@1.9.4/dist/leaflet.js"></script>
<script src="https://unpkg.com/leaflet.heat@0.2.0/dist/leaflet-heat.js"></script>
<style>html, body, #map { height: 100%; margin: 0; }</style>
</head>
<body>
<div id="map"></div>
<script>
var map = L.map('map').setView([{{.CenterLat}}, {{.CenterLon}}], {{.Zoom}});
L.tileLayer('https://{s}.basemaps.cartocdn.com/light_all/{z}/{x}/{y}{r}.png', {
  attribution: '&copy; OpenStreetMap contributors &copy; CARTO'
}).addTo(map);
var points = {{.Points}};
L.heatLayer(points, {minOpacity: 0.3, radius: 10, blur: 15}).addTo(map);
</script>
</body>
</html>
`

var page = template.Must(template.New("geomap").Parse(pageTemplate))

// Write renders the heat map for the given points.
func Write(path string, points []Point, opts Options) error {
	if len(points) == 0 {
		return fmt.Errorf("geomap %s: no located incidents", filepath.Base(path))
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	coords := make([][2]float64, len(points))
	for i, pt := range points {
		coords[i] = [2]float64{pt.Lat, pt.Lon}
	}
	data := struct {
		CenterLat float64
		CenterLon float64
		Zoom      int
		Points    [][2]float64
	}{opts.CenterLat, opts.CenterLon, opts.Zoom, coords}

	return page.Execute(f, data)
}
