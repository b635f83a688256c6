package methods

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
)

// TipoUnknown 几何无法识别时写入 tipo 的值
const TipoUnknown = "Unknown"

// Measures 由几何推导出的派生字段
type Measures struct {
	Tipo          string
	AreaHa        float64
	ComprimentoKm float64
}

// ProcessGeometry 计算面积（公顷）与长度（公里），面的长度为周长，结果保留 4 位小数
func ProcessGeometry(g orb.Geometry) Measures {
	if g == nil {
		return Measures{Tipo: TipoUnknown}
	}
	m := Measures{Tipo: g.GeoJSONType()}
	switch geom := g.(type) {
	case orb.Polygon:
		if len(geom) == 0 || len(geom[0]) < 4 {
			return Measures{Tipo: TipoUnknown}
		}
		m.AreaHa = Round4(math.Abs(geo.Area(geom)) / 10000)
		m.ComprimentoKm = Round4(geo.Length(geom) / 1000)
	case orb.LineString:
		if len(geom) < 2 {
			return Measures{Tipo: TipoUnknown}
		}
		m.ComprimentoKm = Round4(geo.Length(geom) / 1000)
	case orb.Point:
	case orb.MultiPoint, orb.MultiLineString, orb.MultiPolygon:
		// 只识别类型，不计算
	default:
		return Measures{Tipo: TipoUnknown}
	}
	return m
}

func Round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
