package editor

import (
	"github.com/google/uuid"
	"github.com/paulmach/orb"
)

// LabelZOrder 顶点序号标注所在图层的叠放层级，高于其他所有地图图层
const LabelZOrder = 650

// VertexLabel 编辑期间显示在顶点上的序号，从 1 开始，不持久化
type VertexLabel struct {
	Layer       uuid.UUID
	Index       int
	Position    orb.Point
	Interactive bool
	ZOrder      int
}

// LabelSink 由地图端实现，负责实际绘制标注
type LabelSink interface {
	PlaceLabel(VertexLabel)
	ClearLabels()
}

// Annotator 维护当前编辑会话中所有图层的顶点序号。
// 每次触发都整体清除再重绘，不做增量修补。
type Annotator struct {
	sink LabelSink
}

func NewAnnotator(sink LabelSink) *Annotator {
	if sink == nil {
		sink = discardSink{}
	}
	return &Annotator{sink: sink}
}

// Recompute 按编辑中的图层重新生成标注，返回标注数量
func (a *Annotator) Recompute(layers []*Layer) int {
	a.Clear()
	n := 0
	for _, l := range layers {
		if l == nil || l.Kind == KindPoint {
			continue
		}
		pts, ok := VertexSequence(l.Geometry)
		if !ok {
			continue
		}
		for i, p := range pts {
			lbl := VertexLabel{
				Layer:    l.Key,
				Index:    i + 1,
				Position: p,
				ZOrder:   LabelZOrder,
			}
			a.sink.PlaceLabel(lbl)
			n++
		}
	}
	return n
}

func (a *Annotator) Clear() {
	a.sink.ClearLabels()
}

// VertexSequence 取几何的主坐标序列：线取全部点，面只取外环且去掉闭合点。
// 点和无法识别的几何返回 false。
func VertexSequence(g orb.Geometry) ([]orb.Point, bool) {
	switch v := g.(type) {
	case orb.LineString:
		if len(v) == 0 {
			return nil, false
		}
		return []orb.Point(v), true
	case orb.Polygon:
		if len(v) == 0 || len(v[0]) == 0 {
			return nil, false
		}
		return openRing(v[0]), true
	}
	return nil, false
}

type discardSink struct{}

func (discardSink) PlaceLabel(VertexLabel) {}
func (discardSink) ClearLabels()           {}
