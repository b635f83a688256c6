package methods

import (
	"errors"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

var ErrNoGeometry = errors.New("geojson without geometry")

// ParseFeature 解析客户端提交的 geojson，Feature 或裸几何均可
func ParseFeature(raw []byte) (*geojson.Feature, error) {
	f, ferr := geojson.UnmarshalFeature(raw)
	if ferr == nil {
		if f.Geometry == nil {
			return nil, ErrNoGeometry
		}
		return f, nil
	}
	g, err := geojson.UnmarshalGeometry(raw)
	if err != nil {
		return nil, ferr
	}
	if g.Geometry() == nil {
		return nil, ErrNoGeometry
	}
	return geojson.NewFeature(g.Geometry()), nil
}

// PointList 导出用的坐标序列：点为单点，线为全部顶点，面为外环（含闭合点）
func PointList(g orb.Geometry) ([]orb.Point, bool) {
	switch geom := g.(type) {
	case orb.Point:
		return []orb.Point{geom}, true
	case orb.LineString:
		return []orb.Point(geom), true
	case orb.Polygon:
		if len(geom) == 0 {
			return nil, false
		}
		return []orb.Point(geom[0]), true
	}
	return nil, false
}
