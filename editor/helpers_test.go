package editor

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

type fakeRecord struct {
	name, color string
	geom        orb.Geometry
}

// fakeBackend 内存中的后端，记录调用顺序
type fakeBackend struct {
	mu      sync.Mutex
	nextID  int64
	records map[int64]*fakeRecord
	order   []int64
	events  []string
	patches map[int64]Patch
	session map[int64]string

	banner     *Banner
	createErr  error
	deleteErr  error
	listErr    error
	updateHook func(id int64) error
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		records: make(map[int64]*fakeRecord),
		patches: make(map[int64]Patch),
		session: make(map[int64]string),
	}
}

func (f *fakeBackend) record(ev string) {
	f.mu.Lock()
	f.events = append(f.events, ev)
	f.mu.Unlock()
}

func (f *fakeBackend) Events() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.events...)
}

func (f *fakeBackend) count(ev string) int {
	n := 0
	for _, e := range f.Events() {
		if e == ev {
			n++
		}
	}
	return n
}

func (f *fakeBackend) seed(name, color string, g orb.Geometry) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	f.records[f.nextID] = &fakeRecord{name: name, color: color, geom: orb.Clone(g)}
	f.order = append(f.order, f.nextID)
	return f.nextID
}

func (f *fakeBackend) List(ctx context.Context) (*geojson.FeatureCollection, error) {
	f.record("list")
	if f.listErr != nil {
		return nil, f.listErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	fc := geojson.NewFeatureCollection()
	for _, id := range f.order {
		r := f.records[id]
		feat := geojson.NewFeature(orb.Clone(r.geom))
		kind, _ := KindOf(r.geom)
		feat.Properties = geojson.Properties{
			"id":             float64(id),
			"nome":           r.name,
			"cor":            r.color,
			"tipo":           string(kind),
			"area_ha":        0.0,
			"comprimento_km": 0.0,
		}
		switch kind {
		case KindPolygon:
			feat.Properties["area_ha"] = 1.2345
		case KindLineString:
			feat.Properties["comprimento_km"] = 0.5
		}
		fc.Append(feat)
	}
	return fc, nil
}

func (f *fakeBackend) Create(ctx context.Context, req CreateRequest) (int64, error) {
	f.record("create")
	if f.createErr != nil {
		return 0, f.createErr
	}
	return f.seed(req.Name, req.Color, req.Feature.Geometry), nil
}

func (f *fakeBackend) Update(ctx context.Context, id int64, p Patch) error {
	f.record(fmt.Sprintf("update-start:%d", id))
	defer f.record(fmt.Sprintf("update-done:%d", id))
	if f.updateHook != nil {
		if err := f.updateHook(id); err != nil {
			return err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.records[id]
	if !ok {
		return errors.New("404 not found")
	}
	if p.Name != nil {
		r.name = *p.Name
	}
	if p.Color != nil {
		r.color = *p.Color
	}
	if p.Feature != nil {
		r.geom = orb.Clone(p.Feature.Geometry)
	}
	f.patches[id] = p
	f.session[id] = EditSessionFrom(ctx)
	return nil
}

func (f *fakeBackend) Delete(ctx context.Context, id int64) error {
	f.record(fmt.Sprintf("delete:%d", id))
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.records[id]; !ok {
		return errors.New("404 not found")
	}
	delete(f.records, id)
	for i, v := range f.order {
		if v == id {
			f.order = append(f.order[:i], f.order[i+1:]...)
			break
		}
	}
	return nil
}

func (f *fakeBackend) Message(ctx context.Context) (*Banner, error) {
	f.record("message")
	if f.banner == nil {
		return &Banner{}, nil
	}
	return f.banner, nil
}

type fakePrompter struct {
	mu        sync.Mutex
	confirm   bool
	asked     int
	requested []Metadata
	reported  []error
}

func (p *fakePrompter) RequestMetadata(m Metadata) {
	p.mu.Lock()
	p.requested = append(p.requested, m)
	p.mu.Unlock()
}

func (p *fakePrompter) Confirm(ctx context.Context, message string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.asked++
	return p.confirm
}

func (p *fakePrompter) Report(err error) {
	p.mu.Lock()
	p.reported = append(p.reported, err)
	p.mu.Unlock()
}

func (p *fakePrompter) Reported() []error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]error(nil), p.reported...)
}

// recordingSink 记录当前地图上的标注
type recordingSink struct {
	mu     sync.Mutex
	labels []VertexLabel
	clears int
}

func (s *recordingSink) PlaceLabel(l VertexLabel) {
	s.mu.Lock()
	s.labels = append(s.labels, l)
	s.mu.Unlock()
}

func (s *recordingSink) ClearLabels() {
	s.mu.Lock()
	s.labels = nil
	s.clears++
	s.mu.Unlock()
}

func (s *recordingSink) Labels() []VertexLabel {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]VertexLabel(nil), s.labels...)
}

func indexes(labels []VertexLabel) []int {
	out := make([]int, 0, len(labels))
	for _, l := range labels {
		out = append(out, l.Index)
	}
	return out
}

type recordingBinder struct {
	renders [][]ListItem
	banners []Banner
}

func (b *recordingBinder) Render(items []ListItem) { b.renders = append(b.renders, items) }
func (b *recordingBinder) ShowBanner(bn Banner)    { b.banners = append(b.banners, bn) }

func square() orb.Polygon {
	return orb.Polygon{{{-47.9, -15.8}, {-47.8, -15.8}, {-47.8, -15.7}, {-47.9, -15.7}, {-47.9, -15.8}}}
}
