package editor

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// Kind 要素几何类型，创建后不可变
type Kind string

const (
	KindPoint      Kind = "Point"
	KindLineString Kind = "LineString"
	KindPolygon    Kind = "Polygon"
)

// KindOf 根据几何对象判断类型，不支持的类型返回 false
func KindOf(g orb.Geometry) (Kind, bool) {
	switch g.(type) {
	case orb.Point:
		return KindPoint, true
	case orb.LineString:
		return KindLineString, true
	case orb.Polygon:
		return KindPolygon, true
	}
	return "", false
}

var ErrVertexIndex = errors.New("vertex index out of range")

// Layer 地图上可编辑的图形，通过 ID/Name/Color 三个字段回指后端记录。
// ID 为 0 表示尚未保存（待创建）。
type Layer struct {
	Key   uuid.UUID
	ID    int64
	Name  string
	Color string
	Kind  Kind

	Geometry orb.Geometry

	// 服务端计算的派生量，客户端只读
	AreaHa   float64
	LengthKm float64

	committed orb.Geometry
}

// NewDrawnLayer 由绘制工具的 create 事件生成一个未绑定的图层
func NewDrawnLayer(g orb.Geometry) (*Layer, error) {
	kind, ok := KindOf(g)
	if !ok {
		return nil, fmt.Errorf("unsupported geometry %T", g)
	}
	return &Layer{
		Key:       uuid.New(),
		Kind:      kind,
		Geometry:  g,
		committed: orb.Clone(g),
	}, nil
}

func (l *Layer) Bound() bool { return l.ID != 0 }

// Feature 导出为 GeoJSON Feature，提交给后端
func (l *Layer) Feature() *geojson.Feature {
	f := geojson.NewFeature(orb.Clone(l.Geometry))
	return f
}

// Vertices 返回主坐标序列（面只取外环，不含闭合点）
func (l *Layer) Vertices() []orb.Point {
	pts, _ := VertexSequence(l.Geometry)
	return pts
}

func (l *Layer) snapshot() { l.committed = orb.Clone(l.Geometry) }

func (l *Layer) revert() {
	if l.committed != nil {
		l.Geometry = orb.Clone(l.committed)
	}
}

// MoveVertex 拖动第 i 个顶点（从 0 开始）
func (l *Layer) MoveVertex(i int, p orb.Point) error {
	if l.Kind == KindPoint {
		if i != 0 {
			return ErrVertexIndex
		}
		l.Geometry = p
		return nil
	}
	return l.mutate(func(seq []orb.Point) ([]orb.Point, error) {
		if i < 0 || i >= len(seq) {
			return nil, ErrVertexIndex
		}
		seq[i] = p
		return seq, nil
	})
}

// InsertVertex 在位置 i 之前插入顶点，i == len 时追加到末尾
func (l *Layer) InsertVertex(i int, p orb.Point) error {
	return l.mutate(func(seq []orb.Point) ([]orb.Point, error) {
		if i < 0 || i > len(seq) {
			return nil, ErrVertexIndex
		}
		seq = append(seq, orb.Point{})
		copy(seq[i+1:], seq[i:])
		seq[i] = p
		return seq, nil
	})
}

// RemoveVertex 删除第 i 个顶点；线至少保留 2 个点，面至少 3 个
func (l *Layer) RemoveVertex(i int) error {
	return l.mutate(func(seq []orb.Point) ([]orb.Point, error) {
		if i < 0 || i >= len(seq) {
			return nil, ErrVertexIndex
		}
		least := 2
		if l.Kind == KindPolygon {
			least = 3
		}
		if len(seq) <= least {
			return nil, fmt.Errorf("%s needs at least %d vertices", l.Kind, least)
		}
		return append(seq[:i], seq[i+1:]...), nil
	})
}

func (l *Layer) mutate(fn func([]orb.Point) ([]orb.Point, error)) error {
	switch g := l.Geometry.(type) {
	case orb.LineString:
		seq, err := fn(append([]orb.Point(nil), g...))
		if err != nil {
			return err
		}
		l.Geometry = orb.LineString(seq)
		return nil
	case orb.Polygon:
		if len(g) == 0 {
			return ErrVertexIndex
		}
		open := openRing(g[0])
		seq, err := fn(append([]orb.Point(nil), open...))
		if err != nil {
			return err
		}
		outer := orb.Ring(seq)
		if len(seq) > 0 {
			outer = append(outer, seq[0])
		}
		rings := append([]orb.Ring{outer}, g[1:]...)
		l.Geometry = orb.Polygon(rings)
		return nil
	}
	return fmt.Errorf("cannot edit vertices of %s", l.Kind)
}

// openRing 去掉 GeoJSON 闭合环末尾重复的首点
func openRing(r orb.Ring) []orb.Point {
	if len(r) > 1 && r[0] == r[len(r)-1] {
		return r[:len(r)-1]
	}
	return r
}
