package services

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/GrainArc/GlebaMap/Transformer"
	"github.com/GrainArc/GlebaMap/methods"
	"github.com/GrainArc/GlebaMap/metrics"
	"github.com/GrainArc/GlebaMap/models"
	"github.com/paulmach/orb"
)

// ExportFile 下载内容
type ExportFile struct {
	Filename    string
	ContentType string
	Data        []byte
}

var ExportFormats = []string{"csv", "kml", "shp", "dxf"}

// UnsupportedFormatError 未知的导出格式
type UnsupportedFormatError struct{ Format string }

func (e *UnsupportedFormatError) Error() string { return fmt.Sprintf("unsupported export format %q", e.Format) }

// Export 按格式导出单条记录；几何类型不支持时返回 Transformer.ErrUnsupportedGeometry
func (s *GlebaService) Export(ctx context.Context, id int64, format string) (*ExportFile, error) {
	if !slices.Contains(ExportFormats, format) {
		return nil, &UnsupportedFormatError{Format: format}
	}
	g, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	f, err := methods.ParseFeature(g.GeoJSON)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", Transformer.ErrUnsupportedGeometry, err)
	}
	name := safeFileName(g.Nome)

	var out *ExportFile
	switch format {
	case "csv":
		data, err := Transformer.GeojsonToCsv(f.Geometry)
		if err != nil {
			return nil, err
		}
		out = &ExportFile{Filename: name + "_dados.csv", ContentType: "text/csv", Data: data}
	case "kml":
		data, err := Transformer.GeojsonToKml(g.Nome, f.Geometry)
		if err != nil {
			return nil, err
		}
		out = &ExportFile{Filename: name + ".kml", ContentType: "application/vnd.google-earth.kml+xml", Data: data}
	case "shp":
		data, err := s.exportShp(g, f.Geometry, name)
		if err != nil {
			return nil, err
		}
		out = &ExportFile{Filename: name + "_shp.zip", ContentType: "application/zip", Data: data}
	case "dxf":
		data, err := s.exportDxf(f.Geometry)
		if err != nil {
			return nil, err
		}
		out = &ExportFile{Filename: name + ".dxf", ContentType: "application/dxf", Data: data}
	default:
		return nil, &UnsupportedFormatError{Format: format}
	}
	metrics.ExportsTotal.WithLabelValues(format).Inc()
	return out, nil
}

func (s *GlebaService) exportShp(g *models.Gleba, geom orb.Geometry, name string) ([]byte, error) {
	dir, err := methods.WorkDir(s.baseDir())
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(dir)
	rec := Transformer.ShpRecord{Name: g.Nome, AreaHa: g.AreaHa, ComprimentoKm: g.ComprimentoKm, Geometry: geom}
	files, err := Transformer.GeojsonToShp(dir, rec, name)
	if err != nil {
		return nil, err
	}
	return methods.ZipFileOut(files)
}

func (s *GlebaService) exportDxf(geom orb.Geometry) ([]byte, error) {
	dir, err := methods.WorkDir(s.baseDir())
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(dir)
	path := filepath.Join(dir, "export.dxf")
	if err := Transformer.GeojsonToDxf(geom, path); err != nil {
		return nil, err
	}
	return os.ReadFile(path)
}

// safeFileName 去掉文件名中不允许的字符
func safeFileName(name string) string {
	name = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		if r < 32 {
			return -1
		}
		return r
	}, strings.TrimSpace(name))
	if name == "" {
		return "gleba"
	}
	return name
}
