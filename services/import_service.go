package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/GrainArc/GlebaMap/Transformer"
	"github.com/GrainArc/GlebaMap/methods"
	"github.com/GrainArc/GlebaMap/metrics"
	"github.com/GrainArc/GlebaMap/models"
	"gorm.io/gorm"
)

var ErrNoFeatures = errors.New("no valid geometry found")

// ImportFile 通用导入：zip/rar 按 shapefile 处理，其余按 KML 处理。
// 返回写入的记录数；没有任何有效几何时返回 ErrNoFeatures。
func (s *GlebaService) ImportFile(ctx context.Context, filename string, r io.Reader) (int, error) {
	var (
		items  []Transformer.Imported
		format string
		err    error
	)
	if methods.IsArchive(filename) {
		format = "shp"
		items, err = s.readShapefileArchive(filename, r)
	} else {
		format = "kml"
		items, err = Transformer.KmlToFeatures(r)
	}
	if err != nil {
		return 0, err
	}
	if len(items) == 0 {
		return 0, ErrNoFeatures
	}
	n, err := s.Import(ctx, items)
	if err != nil {
		return 0, err
	}
	metrics.ImportedFeaturesTotal.WithLabelValues(format).Add(float64(n))
	return n, nil
}

func (s *GlebaService) readShapefileArchive(filename string, r io.Reader) ([]Transformer.Imported, error) {
	dir, err := methods.WorkDir(s.baseDir())
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(dir)

	src := filepath.Join(dir, "upload"+strings.ToLower(filepath.Ext(filename)))
	f, err := os.Create(src)
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return nil, err
	}
	f.Close()

	out := filepath.Join(dir, "unpacked")
	if err := methods.Unarchive(src, out); err != nil {
		return nil, fmt.Errorf("unarchive %s: %w", filename, err)
	}
	shpPath := methods.FindShpFile(out, ".shp")
	if shpPath == nil {
		return nil, nil
	}
	return Transformer.ShpToFeatures(*shpPath)
}

// Import 在一个事务中写入全部要素，颜色统一为 ImportColor
func (s *GlebaService) Import(ctx context.Context, items []Transformer.Imported) (int, error) {
	count := 0
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, it := range items {
			raw, err := it.Feature.MarshalJSON()
			if err != nil {
				return err
			}
			gj, m, err := normalize(raw)
			if err != nil {
				s.log.Warn("import_feature_skipped", "name", it.Name, "err", err)
				continue
			}
			g := models.Gleba{Nome: it.Name, Cor: ImportColor, GeoJSON: gj, Tipo: m.Tipo, AreaHa: m.AreaHa, ComprimentoKm: m.ComprimentoKm}
			if err := tx.Create(&g).Error; err != nil {
				return err
			}
			if err := writeRecord(tx, &models.GeoRecord{GeoID: g.ID, Type: models.RecordImport, Date: now(), NewGeojson: gj}); err != nil {
				return err
			}
			count++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	if count > 0 {
		s.changed(ctx, "import")
	}
	s.log.Info("gleba_import", "count", count)
	return count, nil
}

func (s *GlebaService) baseDir() string {
	if s.workDir != "" {
		return s.workDir
	}
	return os.TempDir()
}
