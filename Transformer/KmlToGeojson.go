package Transformer

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

const kmlNamespace = "http://www.opengis.net/kml/2.2"

// 默认名称，导入的 Placemark 没有 name 时使用
const (
	DefaultKmlName = "Importada KML"
	DefaultShpName = "Importada SHP"
)

var ErrUnsupportedGeometry = errors.New("unsupported geometry type")

// Imported 导入得到的一条要素，派生字段由调用方计算
type Imported struct {
	Name    string
	Feature *geojson.Feature
}

type Placemark struct {
	Name          string         `xml:"name,omitempty"`
	Description   string         `xml:"description,omitempty"`
	Style         *Style         `xml:"Style,omitempty"`
	Point         *Point         `xml:"Point,omitempty"`
	LineString    *LineString    `xml:"LineString,omitempty"`
	Polygon       *Polygon       `xml:"Polygon,omitempty"`
	MultiGeometry *MultiGeometry `xml:"MultiGeometry,omitempty"`
}

type Style struct {
	LineStyle *LineStyle `xml:"LineStyle,omitempty"`
	PolyStyle *PolyStyle `xml:"PolyStyle,omitempty"`
}

type LineStyle struct {
	Color string `xml:"color"`
	Width int    `xml:"width"`
}

type PolyStyle struct {
	Color string `xml:"color"`
}

type Point struct {
	Coordinates string `xml:"coordinates"`
}

type LineString struct {
	Coordinates string `xml:"coordinates"`
}

type Polygon struct {
	OuterBoundaryIs boundary   `xml:"outerBoundaryIs"`
	InnerBoundaryIs []boundary `xml:"innerBoundaryIs"`
}

type boundary struct {
	LinearRing LinearRing `xml:"LinearRing"`
}

type LinearRing struct {
	Coordinates string `xml:"coordinates"`
}

type MultiGeometry struct {
	Polygons   []Polygon    `xml:"Polygon"`
	LineString []LineString `xml:"LineString"`
	Point      []Point      `xml:"Point"`
}

// StringToCoords 解析 KML coordinates 文本，"lon,lat[,alt]" 以空白分隔，无法解析的项跳过
func StringToCoords(coords string) []orb.Point {
	var out []orb.Point
	for _, item := range strings.Fields(coords) {
		xyz := strings.Split(item, ",")
		if len(xyz) < 2 {
			continue
		}
		x, err := strconv.ParseFloat(xyz[0], 64)
		if err != nil {
			continue
		}
		y, err := strconv.ParseFloat(xyz[1], 64)
		if err != nil {
			continue
		}
		out = append(out, orb.Point{x, y})
	}
	return out
}

// KmlToFeatures 遍历文档中任意层级的 Placemark。
// 每个 Placemark 取一个几何：面优先（外环多于 2 个点），其次线（多于 1 个点），最后点。
func KmlToFeatures(r io.Reader) ([]Imported, error) {
	dec := xml.NewDecoder(r)
	var out []Imported
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse kml: %w", err)
		}
		start, ok := tok.(xml.StartElement)
		if !ok || start.Name.Local != "Placemark" {
			continue
		}
		var pm Placemark
		if err := dec.DecodeElement(&pm, &start); err != nil {
			return nil, fmt.Errorf("parse placemark: %w", err)
		}
		g := pm.geometry()
		if g == nil {
			continue
		}
		name := strings.TrimSpace(pm.Name)
		if name == "" {
			name = DefaultKmlName
		}
		out = append(out, Imported{Name: name, Feature: geojson.NewFeature(g)})
	}
	return out, nil
}

func (pm *Placemark) geometry() orb.Geometry {
	polygons := pm.polygons()
	for _, p := range polygons {
		if g := p.toOrb(); g != nil {
			return g
		}
	}
	lines := pm.lines()
	for _, l := range lines {
		if coords := StringToCoords(l.Coordinates); len(coords) > 1 {
			return orb.LineString(coords)
		}
	}
	for _, p := range pm.points() {
		if coords := StringToCoords(p.Coordinates); len(coords) > 0 {
			return coords[0]
		}
	}
	return nil
}

func (pm *Placemark) polygons() []Polygon {
	var out []Polygon
	if pm.Polygon != nil {
		out = append(out, *pm.Polygon)
	}
	if pm.MultiGeometry != nil {
		out = append(out, pm.MultiGeometry.Polygons...)
	}
	return out
}

func (pm *Placemark) lines() []LineString {
	var out []LineString
	if pm.LineString != nil {
		out = append(out, *pm.LineString)
	}
	if pm.MultiGeometry != nil {
		out = append(out, pm.MultiGeometry.LineString...)
	}
	return out
}

func (pm *Placemark) points() []Point {
	var out []Point
	if pm.Point != nil {
		out = append(out, *pm.Point)
	}
	if pm.MultiGeometry != nil {
		out = append(out, pm.MultiGeometry.Point...)
	}
	return out
}

func (p Polygon) toOrb() orb.Geometry {
	outer := StringToCoords(p.OuterBoundaryIs.LinearRing.Coordinates)
	if len(outer) <= 2 {
		return nil
	}
	poly := orb.Polygon{closeRing(outer)}
	for _, inner := range p.InnerBoundaryIs {
		if coords := StringToCoords(inner.LinearRing.Coordinates); len(coords) > 2 {
			poly = append(poly, closeRing(coords))
		}
	}
	return poly
}

func closeRing(pts []orb.Point) orb.Ring {
	r := orb.Ring(pts)
	if !r.Closed() {
		r = append(r, r[0])
	}
	return r
}

type kmlDocument struct {
	XMLName   xml.Name
	Placemark Placemark `xml:"Placemark"`
}

var exportStyle = Style{
	LineStyle: &LineStyle{Color: "ff0000ff", Width: 3},
	PolyStyle: &PolyStyle{Color: "7f00ff00"},
}

// GeojsonToKml 单条记录导出为 KML，只支持点、线、面
func GeojsonToKml(name string, g orb.Geometry) ([]byte, error) {
	style := exportStyle
	pm := Placemark{Name: name, Style: &style}
	switch geom := g.(type) {
	case orb.Point:
		pm.Point = &Point{Coordinates: formatCoords([]orb.Point{geom})}
	case orb.LineString:
		pm.LineString = &LineString{Coordinates: formatCoords(geom)}
	case orb.Polygon:
		if len(geom) == 0 {
			return nil, ErrUnsupportedGeometry
		}
		pm.Polygon = &Polygon{OuterBoundaryIs: boundary{LinearRing: LinearRing{Coordinates: formatCoords(geom[0])}}}
	default:
		return nil, ErrUnsupportedGeometry
	}
	doc := kmlDocument{XMLName: xml.Name{Space: kmlNamespace, Local: "kml"}, Placemark: pm}
	body, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, err
	}
	out := append([]byte(xml.Header), body...)
	return append(out, '\n'), nil
}

func formatCoords(pts []orb.Point) string {
	parts := make([]string, len(pts))
	for i, p := range pts {
		parts[i] = strconv.FormatFloat(p[0], 'f', -1, 64) + "," + strconv.FormatFloat(p[1], 'f', -1, 64) + ",0"
	}
	return strings.Join(parts, " ")
}
