package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/GrainArc/GlebaMap/methods"
	"github.com/GrainArc/GlebaMap/metrics"
	"github.com/GrainArc/GlebaMap/models"
	"github.com/paulmach/orb/geojson"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	DefaultName  = "Sem Nome"
	DefaultColor = "#ffc107"
	ImportColor  = "#3388ff"
)

var (
	ErrNotFound     = errors.New("gleba not found")
	ErrInvalidInput = errors.New("invalid gleba data")
)

// GlebaInput POST/PUT 请求体，nil 字段表示未提交
type GlebaInput struct {
	Nome    *string         `json:"nome"`
	Cor     *string         `json:"cor"`
	GeoJSON json.RawMessage `json:"geojson"`
}

func (in GlebaInput) hasGeometry() bool {
	raw := bytes.TrimSpace(in.GeoJSON)
	return len(raw) > 0 && !bytes.Equal(raw, []byte("null"))
}

type GlebaService struct {
	db      *gorm.DB
	cache   Cache
	workDir string
	log     *slog.Logger

	hookMu sync.RWMutex
	hooks  []func(op string)
}

type Option func(*GlebaService)

func WithCache(c Cache) Option { return func(s *GlebaService) { s.cache = c } }

// WithWorkDir 导入导出使用的临时目录根
func WithWorkDir(dir string) Option { return func(s *GlebaService) { s.workDir = dir } }

func WithLogger(l *slog.Logger) Option { return func(s *GlebaService) { s.log = l } }

func NewGlebaService(db *gorm.DB, opts ...Option) *GlebaService {
	s := &GlebaService{db: db, cache: nopCache{}, log: slog.Default()}
	for _, o := range opts {
		o(s)
	}
	if s.cache == nil {
		s.cache = nopCache{}
	}
	return s
}

func now() string { return time.Now().Format("2006-01-02 15:04:05") }

// Collection 全部记录组成的 FeatureCollection，properties 由数据库字段覆盖。
// 代号在查询前读取，查询期间发生的写入会让这次结果落在旧代号下。
func (s *GlebaService) Collection(ctx context.Context) ([]byte, error) {
	gen, cacheable := s.cache.Generation(ctx)
	if cacheable {
		if b, ok := s.cache.Get(ctx, gen); ok {
			return b, nil
		}
	}
	var glebas []models.Gleba
	if err := s.db.WithContext(ctx).Order("id").Find(&glebas).Error; err != nil {
		return nil, err
	}
	fc := geojson.NewFeatureCollection()
	for _, g := range glebas {
		f, err := methods.ParseFeature(g.GeoJSON)
		if err != nil {
			s.log.Warn("gleba_geojson_invalid", "id", g.ID, "err", err)
			continue
		}
		cor := g.Cor
		if cor == "" {
			cor = DefaultColor
		}
		f.ID = nil
		f.Properties = geojson.Properties{
			"id":             g.ID,
			"nome":           g.Nome,
			"cor":            cor,
			"tipo":           g.Tipo,
			"area_ha":        g.AreaHa,
			"comprimento_km": g.ComprimentoKm,
		}
		fc.Append(f)
	}
	b, err := json.Marshal(fc)
	if err != nil {
		return nil, err
	}
	if cacheable {
		s.cache.Set(ctx, gen, b)
	}
	return b, nil
}

func (s *GlebaService) Get(ctx context.Context, id int64) (*models.Gleba, error) {
	var g models.Gleba
	err := s.db.WithContext(ctx).First(&g, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &g, nil
}

// normalize 解析几何并计算派生字段，存储统一为不带属性的 Feature
func normalize(raw []byte) (datatypes.JSON, methods.Measures, error) {
	f, err := methods.ParseFeature(raw)
	if err != nil {
		return nil, methods.Measures{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	f.Properties = geojson.Properties{}
	f.ID = nil
	b, err := json.Marshal(f)
	if err != nil {
		return nil, methods.Measures{}, err
	}
	return datatypes.JSON(b), methods.ProcessGeometry(f.Geometry), nil
}

func (s *GlebaService) Create(ctx context.Context, in GlebaInput, session string) (*models.Gleba, error) {
	if !in.hasGeometry() {
		return nil, ErrInvalidInput
	}
	gj, m, err := normalize(in.GeoJSON)
	if err != nil {
		return nil, err
	}
	g := models.Gleba{Nome: DefaultName, Cor: DefaultColor, GeoJSON: gj, Tipo: m.Tipo, AreaHa: m.AreaHa, ComprimentoKm: m.ComprimentoKm}
	if in.Nome != nil {
		g.Nome = *in.Nome
	}
	if in.Cor != nil {
		g.Cor = *in.Cor
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&g).Error; err != nil {
			return err
		}
		return writeRecord(tx, &models.GeoRecord{GeoID: g.ID, Type: models.RecordAdd, Date: now(), SessionID: session, NewGeojson: gj})
	})
	if err != nil {
		return nil, err
	}
	s.changed(ctx, "create")
	s.log.Info("gleba_created", "id", g.ID, "tipo", g.Tipo)
	return &g, nil
}

// Update 只修改提交了的字段；几何变化时重新计算派生字段，几何类型不可改变
func (s *GlebaService) Update(ctx context.Context, id int64, in GlebaInput, session string) (*models.Gleba, error) {
	g, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	old := g.GeoJSON
	if in.Nome != nil {
		g.Nome = *in.Nome
	}
	if in.Cor != nil {
		g.Cor = *in.Cor
	}
	record := models.GeoRecord{GeoID: id, Type: models.RecordUpdate, Date: now(), SessionID: session}
	if in.hasGeometry() {
		gj, m, err := normalize(in.GeoJSON)
		if err != nil {
			return nil, err
		}
		if m.Tipo != g.Tipo {
			return nil, fmt.Errorf("%w: tipo %s cannot become %s", ErrInvalidInput, g.Tipo, m.Tipo)
		}
		g.GeoJSON, g.Tipo, g.AreaHa, g.ComprimentoKm = gj, m.Tipo, m.AreaHa, m.ComprimentoKm
		record.OldGeojson, record.NewGeojson = old, gj
	} else {
		record.BZ = "metadata"
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(g).Error; err != nil {
			return err
		}
		return writeRecord(tx, &record)
	})
	if err != nil {
		return nil, err
	}
	s.changed(ctx, "update")
	return g, nil
}

func (s *GlebaService) Delete(ctx context.Context, id int64, session string) error {
	g, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&models.Gleba{}, id).Error; err != nil {
			return err
		}
		return writeRecord(tx, &models.GeoRecord{GeoID: id, Type: models.RecordDelete, Date: now(), SessionID: session, OldGeojson: g.GeoJSON})
	})
	if err != nil {
		return err
	}
	s.changed(ctx, "delete")
	s.log.Info("gleba_deleted", "id", id)
	return nil
}

// writeRecord 写入变更记录；带编辑会话时同时累计到 EditSession
func writeRecord(tx *gorm.DB, rec *models.GeoRecord) error {
	if err := tx.Create(rec).Error; err != nil {
		return err
	}
	if rec.SessionID == "" {
		return nil
	}
	es := models.EditSession{ID: rec.SessionID, StartedAt: rec.Date}
	if err := tx.Where(models.EditSession{ID: rec.SessionID}).FirstOrCreate(&es).Error; err != nil {
		return err
	}
	return tx.Model(&es).Updates(map[string]interface{}{
		"changes": gorm.Expr("changes + 1"),
		"last_at": rec.Date,
	}).Error
}

// Session 一次编辑会话及其产生的全部变更记录
func (s *GlebaService) Session(ctx context.Context, id string) (*models.EditSession, []models.GeoRecord, error) {
	var es models.EditSession
	err := s.db.WithContext(ctx).First(&es, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, fmt.Errorf("%w: session %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, nil, err
	}
	var rows []models.GeoRecord
	if err := s.db.WithContext(ctx).Where("session_id = ?", id).Order("id").Find(&rows).Error; err != nil {
		return nil, nil, err
	}
	return &es, rows, nil
}

// History 记录的变更历史，按时间顺序；记录删除后仍可查询
func (s *GlebaService) History(ctx context.Context, id int64) ([]models.GeoRecord, error) {
	var out []models.GeoRecord
	err := s.db.WithContext(ctx).Where("geo_id = ?", id).Order("id").Find(&out).Error
	return out, err
}

// Cleanup 删除创建时间早于 days 天前的记录，days <= 0 时不做任何事
func (s *GlebaService) Cleanup(ctx context.Context, days int) (int64, error) {
	if days <= 0 {
		return 0, nil
	}
	limit := time.Now().Add(-time.Duration(days) * 24 * time.Hour)
	res := s.db.WithContext(ctx).Where("created_at < ?", limit).Delete(&models.Gleba{})
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected > 0 {
		s.changed(ctx, "cleanup")
		s.log.Info("gleba_cleanup", "deleted", res.RowsAffected, "days", days)
	}
	return res.RowsAffected, nil
}

// OnChange 注册写入成功后的回调，op 为 create/update/delete/import/cleanup
func (s *GlebaService) OnChange(fn func(op string)) {
	s.hookMu.Lock()
	s.hooks = append(s.hooks, fn)
	s.hookMu.Unlock()
}

func (s *GlebaService) changed(ctx context.Context, op string) {
	s.cache.Invalidate(ctx)
	metrics.GlebaChangesTotal.WithLabelValues(op).Inc()
	s.hookMu.RLock()
	defer s.hookMu.RUnlock()
	for _, fn := range s.hooks {
		fn(op)
	}
}
