package Transformer

import (
	"github.com/GrainArc/GlebaMap/methods"
	"github.com/paulmach/orb"
	"github.com/yofu/dxf"
	"github.com/yofu/dxf/color"
	"github.com/yofu/dxf/entity"
)

// GeojsonToDxf 单条记录导出为 DXF，坐标投影到首个顶点所在的 UTM 带（米）
func GeojsonToDxf(g orb.Geometry, outputFilename string) error {
	pts, ok := methods.PointList(g)
	if !ok || len(pts) == 0 {
		return ErrUnsupportedGeometry
	}
	zone := methods.UTMZone(pts[0][0])
	south := pts[0][1] < 0
	// 整条记录使用同一带号，跨带时图形不会断开
	project := func(p orb.Point) []float64 {
		e, n := methods.UTMInZone(p[0], p[1], zone, south)
		return []float64{e, n}
	}

	d := dxf.NewDrawing()
	d.Header().LtScale = 1.0
	switch geom := g.(type) {
	case orb.Polygon:
		d.AddLayer("Polygon", color.Red, dxf.DefaultLineType, true)
		d.ChangeLayer("Polygon")
		lwp := entity.NewLwPolyline(len(geom[0]))
		for j, pt := range geom[0] {
			lwp.Vertices[j] = project(pt)
		}
		d.AddEntity(lwp)
	case orb.LineString:
		d.AddLayer("LineString", color.Yellow, dxf.DefaultLineType, true)
		d.ChangeLayer("LineString")
		lwp := entity.NewLwPolyline(len(geom))
		for j, pt := range geom {
			lwp.Vertices[j] = project(pt)
		}
		d.AddEntity(lwp)
	case orb.Point:
		d.AddLayer("Point", color.Green, dxf.DefaultLineType, true)
		d.ChangeLayer("Point")
		xy := project(geom)
		d.Point(xy[0], xy[1], 0)
	}
	return d.SaveAs(outputFilename)
}
