package editor

import (
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/paulmach/orb/geojson"
)

var (
	ErrPendingOccupied = errors.New("a pending record already exists")
	ErrNoPending       = errors.New("no pending record")
)

// Mirror 后端记录在内存中的镜像：记录 id -> 图层。
// 每次 reload 整体重建，没有增量同步路径。
type Mirror struct {
	layers  map[int64]*Layer
	order   []int64
	pending *Layer
	log     *slog.Logger
}

func NewMirror(log *slog.Logger) *Mirror {
	if log == nil {
		log = slog.Default()
	}
	return &Mirror{layers: make(map[int64]*Layer), log: log}
}

// Rebuild 丢弃所有已绑定图层，按后端返回的要素集合重建。
// 待创建图层不属于后端记录，保留在单槽位中。
func (m *Mirror) Rebuild(fc *geojson.FeatureCollection) {
	m.layers = make(map[int64]*Layer)
	m.order = m.order[:0]
	if fc == nil {
		return
	}
	for _, f := range fc.Features {
		l, err := layerFromFeature(f)
		if err != nil {
			m.log.Warn("mirror_skip_feature", "err", err)
			continue
		}
		if _, dup := m.layers[l.ID]; dup {
			m.log.Warn("mirror_duplicate_id", "id", l.ID)
			continue
		}
		m.layers[l.ID] = l
		m.order = append(m.order, l.ID)
	}
}

func layerFromFeature(f *geojson.Feature) (*Layer, error) {
	if f == nil || f.Geometry == nil {
		return nil, errors.New("feature without geometry")
	}
	kind, ok := KindOf(f.Geometry)
	if !ok {
		return nil, errors.New("unsupported geometry " + f.Geometry.GeoJSONType())
	}
	id := int64(f.Properties.MustFloat64("id", 0))
	if id == 0 {
		return nil, errors.New("feature without id")
	}
	l := &Layer{
		Key:      uuid.New(),
		ID:       id,
		Name:     f.Properties.MustString("nome", ""),
		Color:    f.Properties.MustString("cor", DefaultColor),
		Kind:     kind,
		Geometry: f.Geometry,
		AreaHa:   f.Properties.MustFloat64("area_ha", 0),
		LengthKm: f.Properties.MustFloat64("comprimento_km", 0),
	}
	l.snapshot()
	return l, nil
}

// AddPending 放入新绘制的图层，同一时刻最多一个
func (m *Mirror) AddPending(l *Layer) error {
	if m.pending != nil {
		return ErrPendingOccupied
	}
	m.pending = l
	return nil
}

// BindPending 后端确认创建后，把待创建图层绑定到返回的 id
func (m *Mirror) BindPending(id int64) (*Layer, error) {
	if m.pending == nil {
		return nil, ErrNoPending
	}
	l := m.pending
	m.pending = nil
	l.ID = id
	if _, ok := m.layers[id]; !ok {
		m.order = append(m.order, id)
	}
	m.layers[id] = l
	return l, nil
}

func (m *Mirror) DropPending() *Layer {
	l := m.pending
	m.pending = nil
	return l
}

func (m *Mirror) Pending() *Layer { return m.pending }

func (m *Mirror) Get(id int64) (*Layer, bool) {
	l, ok := m.layers[id]
	return l, ok
}

func (m *Mirror) Remove(id int64) bool {
	if _, ok := m.layers[id]; !ok {
		return false
	}
	delete(m.layers, id)
	for i, v := range m.order {
		if v == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return true
}

// Layers 按后端顺序返回已绑定图层
func (m *Mirror) Layers() []*Layer {
	out := make([]*Layer, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.layers[id])
	}
	return out
}

func (m *Mirror) Len() int { return len(m.order) }
