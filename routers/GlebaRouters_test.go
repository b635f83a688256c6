package routers

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/GrainArc/GlebaMap/client"
	"github.com/GrainArc/GlebaMap/config"
	"github.com/GrainArc/GlebaMap/editor"
	"github.com/GrainArc/GlebaMap/logger"
	"github.com/GrainArc/GlebaMap/models"
	"github.com/GrainArc/GlebaMap/services"
	"github.com/GrainArc/GlebaMap/views"
	"github.com/gin-gonic/gin"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newServer(t *testing.T) (*httptest.Server, *services.GlebaService) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	dsn := "file:routers_" + strings.ReplaceAll(t.Name(), "/", "_") + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	require.NoError(t, err)
	require.NoError(t, models.Migrate(db))
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	log := logger.New(io.Discard, "debug", "")
	svc := services.NewGlebaService(db, services.WithWorkDir(t.TempDir()), services.WithLogger(log))
	ctrl := views.NewGlebaController(svc, config.Message{Active: true, Title: "Aviso", Content: "Bem-vindo"}, log)
	srv := httptest.NewServer(NewEngine(ctrl, log))
	t.Cleanup(srv.Close)
	return srv, svc
}

func TestMetricsEndpointCountsRoutes(t *testing.T) {
	srv, _ := newServer(t)

	resp, err := http.Get(srv.URL + "/api/glebas")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `glebamap_requests_total{method="GET",route="/api/glebas",status="200"}`)
}

func TestUnknownRoute(t *testing.T) {
	srv, _ := newServer(t)
	resp, err := http.Get(srv.URL + "/api/nada")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

type autoPrompter struct{ errs []error }

func (p *autoPrompter) RequestMetadata(editor.Metadata)      {}
func (p *autoPrompter) Confirm(context.Context, string) bool { return true }
func (p *autoPrompter) Report(err error)                     { p.errs = append(p.errs, err) }

// 编辑器经 HTTP 客户端驱动真实的服务端
func TestEditorAgainstServer(t *testing.T) {
	srv, svc := newServer(t)
	ctx := context.Background()
	p := &autoPrompter{}
	ctl := editor.NewController(client.New(srv.URL), p, editor.WithSettleDelay(0))
	require.NoError(t, ctl.Start(ctx))
	assert.Equal(t, 0, ctl.Mirror().Len())

	poly := orb.Polygon{{{-47.9, -15.8}, {-47.8, -15.8}, {-47.8, -15.7}, {-47.9, -15.7}, {-47.9, -15.8}}}
	drawn, err := editor.NewDrawnLayer(poly)
	require.NoError(t, err)
	require.NoError(t, ctl.Created(drawn))
	require.NoError(t, ctl.CommitCreate(ctx, editor.Metadata{Name: "Talhão", Color: "#ff7700"}))
	require.Equal(t, 1, ctl.Mirror().Len())

	l := ctl.Mirror().Layers()[0]
	assert.Equal(t, "Talhão", l.Name)
	assert.Equal(t, editor.KindPolygon, l.Kind)
	area := l.AreaHa
	assert.Greater(t, area, 0.0)

	require.NoError(t, ctl.EditStart(l))
	require.NoError(t, l.MoveVertex(2, orb.Point{-47.7, -15.6}))
	require.NoError(t, ctl.EditStop(ctx, l))

	edited, ok := ctl.Mirror().Get(l.ID)
	require.True(t, ok)
	assert.Greater(t, edited.AreaHa, area)

	hist, err := svc.History(ctx, l.ID)
	require.NoError(t, err)
	require.Len(t, hist, 2)
	assert.Equal(t, models.RecordUpdate, hist[1].Type)
	assert.NotEmpty(t, hist[1].SessionID)

	require.NoError(t, ctl.Delete(ctx, l.ID))
	assert.Equal(t, 0, ctl.Mirror().Len())
	assert.Empty(t, p.errs)
}

func TestWatchReceivesChanges(t *testing.T) {
	srv, _ := newServer(t)
	c := client.New(srv.URL)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events := make(chan editor.ChangeEvent, 8)
	errCh := make(chan error, 1)
	go func() { errCh <- c.Watch(ctx, func(ev editor.ChangeEvent) { events <- ev }) }()

	select {
	case ev := <-events:
		require.Equal(t, "ready", ev.Type)
	case <-time.After(5 * time.Second):
		t.Fatal("no ready event")
	}

	_, err := c.Create(context.Background(), editor.CreateRequest{
		Name:    "Poço",
		Color:   "#0000ff",
		Feature: geojson.NewFeature(orb.Point{-47.85, -15.75}),
	})
	require.NoError(t, err)

	select {
	case ev := <-events:
		assert.Equal(t, editor.ChangeEvent{Type: "changed", Op: "create"}, ev)
	case <-time.After(5 * time.Second):
		t.Fatal("no change event")
	}

	cancel()
	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop")
	}
}
