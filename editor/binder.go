package editor

import (
	"fmt"
	"html/template"
	"io"
	"strings"
)

// Binder 列表与弹窗的展示层，只读取 Mirror 状态。
// 在控制器持有锁时调用，实现不能再调用控制器。
type Binder interface {
	Render(items []ListItem)
	ShowBanner(b Banner)
}

// ListItem 记录列表中一行的视图模型
type ListItem struct {
	ID      int64
	Name    string
	Color   string
	Kind    Kind
	Measure string
	Icon    string
	Exports []ExportLink
}

type ExportLink struct {
	Format string
	Href   string
}

var exportFormats = []string{"csv", "kml", "shp", "dxf"}

// ListItems 从镜像生成列表，顺序与后端一致
func ListItems(m *Mirror) []ListItem {
	layers := m.Layers()
	items := make([]ListItem, 0, len(layers))
	for _, l := range layers {
		item := ListItem{
			ID:      l.ID,
			Name:    l.Name,
			Color:   l.Color,
			Kind:    l.Kind,
			Measure: DescribeMeasure(l),
			Icon:    kindIcon(l.Kind),
		}
		for _, f := range exportFormats {
			item.Exports = append(item.Exports, ExportLink{Format: f, Href: fmt.Sprintf("/export/%s/%d", f, l.ID)})
		}
		items = append(items, item)
	}
	return items
}

// DescribeMeasure 面显示公顷，线显示公里，小数点用逗号
func DescribeMeasure(l *Layer) string {
	switch l.Kind {
	case KindPolygon:
		return strings.Replace(fmt.Sprintf("%.4f", l.AreaHa), ".", ",", 1) + " ha"
	case KindLineString:
		return strings.Replace(fmt.Sprintf("%.3f", l.LengthKm), ".", ",", 1) + " km"
	}
	return "Ponto de Interesse"
}

func kindIcon(k Kind) string {
	switch k {
	case KindPolygon:
		return "fa-draw-polygon"
	case KindLineString:
		return "fa-route"
	}
	return "fa-location-dot"
}

var listTmpl = template.Must(template.New("list").Parse(`{{if .Banner}}<div class="alert alert-info"><strong>{{.Banner.Title}}</strong> {{.Banner.Content}}</div>
{{end}}{{if not .Items}}<div class="text-center mt-4 text-muted">Nenhum item cadastrado.<br>Desenhe no mapa.</div>
{{end}}{{range .Items}}<div class="gleba-item" data-id="{{.ID}}" style="border-left: 5px solid {{.Color}}">
<strong class="d-block text-truncate" title="{{.Name}}">{{.Name}}</strong>
<div class="text-muted small mb-1"><i class="fa-solid {{.Icon}}"></i> {{.Measure}}</div>
{{range .Exports}}<a href="{{.Href}}" data-format="{{.Format}}">{{.Format}}</a>
{{end}}<div class="popup"><strong style="color:{{.Color}}">{{.Name}}</strong><br><span class="badge bg-secondary">{{.Measure}}</span></div>
</div>
{{end}}`))

// HTMLBinder 把列表渲染为 HTML 写入 w；按钮通过 data-id 传递记录 id
type HTMLBinder struct {
	W      io.Writer
	banner *Banner
}

func (b *HTMLBinder) ShowBanner(bn Banner) {
	if bn.Active {
		b.banner = &bn
	}
}

func (b *HTMLBinder) Render(items []ListItem) {
	_ = listTmpl.Execute(b.W, struct {
		Banner *Banner
		Items  []ListItem
	}{b.banner, items})
}
