package Transformer

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gitee.com/LJ_COOL/go-shp"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// wgs84Prj 导出 shapefile 附带的坐标系
const wgs84Prj = `GEOGCS["GCS_WGS_1984",DATUM["D_WGS_1984",SPHEROID["WGS_1984",6378137,298.257223563]],PRIMEM["Greenwich",0],UNIT["Degree",0.017453292519943295]]`

func SplitPoints(points []shp.Point, parts []int32) [][]shp.Point {
	var rings [][]shp.Point
	for i, start := range parts {
		end := int32(len(points))
		if i < len(parts)-1 {
			end = parts[i+1]
		}
		if start < 0 || start > end || end > int32(len(points)) {
			continue
		}
		rings = append(rings, points[start:end])
	}
	return rings
}

// IsClockwise shapefile 中顺时针为外环
func IsClockwise(points []orb.Point) bool {
	sum := 0.0
	for i := 0; i < len(points)-1; i++ {
		p1 := points[i]
		p2 := points[i+1]
		sum += (p2[0] - p1[0]) * (p2[1] + p1[1])
	}
	return sum > 0
}

// groupRings 每个外环与其后的内环组成一个面
func groupRings(rings []orb.Ring) orb.MultiPolygon {
	var mp orb.MultiPolygon
	for _, r := range rings {
		if IsClockwise(r) || len(mp) == 0 {
			mp = append(mp, orb.Polygon{r})
			continue
		}
		mp[len(mp)-1] = append(mp[len(mp)-1], r)
	}
	return mp
}

func toOrbPoints(points []shp.Point) []orb.Point {
	out := make([]orb.Point, len(points))
	for i, p := range points {
		out[i] = orb.Point{p.X, p.Y}
	}
	return out
}

func polygonGeometry(points []shp.Point, parts []int32) orb.Geometry {
	var rings []orb.Ring
	for _, part := range SplitPoints(points, parts) {
		if len(part) < 4 {
			continue
		}
		rings = append(rings, orb.Ring(toOrbPoints(part)))
	}
	mp := groupRings(rings)
	switch len(mp) {
	case 0:
		return nil
	case 1:
		return mp[0]
	}
	return mp
}

func lineGeometry(points []shp.Point, parts []int32) orb.Geometry {
	var ml orb.MultiLineString
	for _, part := range SplitPoints(points, parts) {
		if len(part) < 2 {
			continue
		}
		ml = append(ml, orb.LineString(toOrbPoints(part)))
	}
	switch len(ml) {
	case 0:
		return nil
	case 1:
		return ml[0]
	}
	return ml
}

// readCPGEncoding 读取同名 .cpg，没有时返回空串
func readCPGEncoding(shpfilePath string) string {
	base := strings.TrimSuffix(shpfilePath, filepath.Ext(shpfilePath))
	for _, ext := range []string{".cpg", ".CPG"} {
		if b, err := os.ReadFile(base + ext); err == nil {
			return strings.TrimSpace(string(b))
		}
	}
	return ""
}

// ShpToFeatures 读取 shapefile，名称取第一个非空的字符型属性
func ShpToFeatures(shpfileFilePath string) ([]Imported, error) {
	shape, err := shp.Open(shpfileFilePath)
	if err != nil {
		return nil, fmt.Errorf("open shapefile: %w", err)
	}
	defer shape.Close()

	fields := shape.Fields()
	encoding := readCPGEncoding(shpfileFilePath)

	type row struct {
		g     orb.Geometry
		texts []string
	}
	var (
		rows    []row
		samples []string
	)
	for shape.Next() {
		n, p := shape.Shape()
		var g orb.Geometry
		switch s := p.(type) {
		case *shp.Point:
			g = orb.Point{s.X, s.Y}
		case *shp.PointZ:
			g = orb.Point{s.X, s.Y}
		case *shp.PointM:
			g = orb.Point{s.X, s.Y}
		case *shp.PolyLine:
			g = lineGeometry(s.Points, s.Parts)
		case *shp.PolyLineZ:
			g = lineGeometry(s.Points, s.Parts)
		case *shp.PolyLineM:
			g = lineGeometry(s.Points, s.Parts)
		case *shp.Polygon:
			g = polygonGeometry(s.Points, s.Parts)
		case *shp.PolygonZ:
			g = polygonGeometry(s.Points, s.Parts)
		case *shp.PolygonM:
			g = polygonGeometry(s.Points, s.Parts)
		}
		if g == nil {
			continue
		}
		r := row{g: g}
		for k, f := range fields {
			if f.Fieldtype == 'C' {
				r.texts = append(r.texts, shape.ReadAttribute(n, k))
			}
		}
		samples = append(samples, r.texts...)
		rows = append(rows, r)
	}
	if encoding == "" {
		encoding = detectEncoding(samples)
	}

	out := make([]Imported, 0, len(rows))
	for _, r := range rows {
		name := DefaultShpName
		for _, t := range r.texts {
			if v := strings.TrimSpace(DecodeText(encoding, t)); v != "" {
				name = v
				break
			}
		}
		out = append(out, Imported{Name: name, Feature: geojson.NewFeature(r.g)})
	}
	return out, nil
}

// ShpRecord 导出一条记录所需的属性
type ShpRecord struct {
	Name          string
	AreaHa        float64
	ComprimentoKm float64
	Geometry      orb.Geometry
}

func numberField(name string, size, precision uint8) shp.Field {
	f := shp.Field{Fieldtype: 'N', Size: size, Precision: precision}
	copy(f.Name[:], name)
	return f
}

// GeojsonToShp 在 dir 下写出 export.shp/.shx/.dbf/.prj/.cpg，返回 zip 条目名到文件路径的映射
func GeojsonToShp(dir string, rec ShpRecord, entryBase string) (map[string]string, error) {
	var shpType shp.ShapeType
	switch rec.Geometry.(type) {
	case orb.Point:
		shpType = shp.POINT
	case orb.LineString:
		shpType = shp.POLYLINE
	case orb.Polygon:
		shpType = shp.POLYGON
	default:
		return nil, ErrUnsupportedGeometry
	}

	base := filepath.Join(dir, "export")
	w, err := shp.Create(base+".shp", shpType)
	if err != nil {
		return nil, fmt.Errorf("create shapefile: %w", err)
	}
	fields := []shp.Field{
		shp.StringField([]byte("NOME"), 100),
		numberField("AREA_HA", 19, 4),
		numberField("COMP_KM", 19, 4),
	}
	if err := w.SetFields(fields); err != nil {
		w.Close()
		return nil, err
	}

	switch geom := rec.Geometry.(type) {
	case orb.Point:
		w.Write(&shp.Point{X: geom[0], Y: geom[1]})
	case orb.LineString:
		w.Write(shp.NewPolyLine([][]shp.Point{toShpPoints(geom)}))
	case orb.Polygon:
		var rings [][]shp.Point
		for i, ring := range geom {
			r := ring.Clone()
			// 外环顺时针，内环逆时针
			if (i == 0) != IsClockwise(r) {
				r.Reverse()
			}
			rings = append(rings, toShpPoints(r))
		}
		w.Write(shp.NewPolyLine(rings))
	}
	attrs := [][]byte{
		[]byte(rec.Name),
		[]byte(fmt.Sprintf("%.4f", rec.AreaHa)),
		[]byte(fmt.Sprintf("%.4f", rec.ComprimentoKm)),
	}
	for k, v := range attrs {
		if err := w.WriteAttribute(0, k, v); err != nil {
			w.Close()
			return nil, err
		}
	}
	w.Close()

	if err := os.WriteFile(base+".prj", []byte(wgs84Prj), 0o644); err != nil {
		return nil, err
	}
	if err := os.WriteFile(base+".cpg", []byte("UTF-8"), 0o644); err != nil {
		return nil, err
	}

	files := make(map[string]string)
	for _, ext := range []string{".shp", ".shx", ".dbf", ".prj", ".cpg"} {
		if _, err := os.Stat(base + ext); err == nil {
			files[entryBase+ext] = base + ext
		}
	}
	return files, nil
}

func toShpPoints[T ~[]orb.Point](pts T) []shp.Point {
	out := make([]shp.Point, len(pts))
	for i, p := range pts {
		out[i] = shp.Point{X: p[0], Y: p[1]}
	}
	return out
}
