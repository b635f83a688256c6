package views

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/GrainArc/GlebaMap/config"
	"github.com/GrainArc/GlebaMap/editor"
	"github.com/GrainArc/GlebaMap/models"
	"github.com/GrainArc/GlebaMap/services"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const squareBody = `{"nome":"Talhão 1","cor":"#00ff00","geojson":{"type":"Feature","properties":{},"geometry":{"type":"Polygon","coordinates":[[[-47.9,-15.8],[-47.8,-15.8],[-47.8,-15.7],[-47.9,-15.7],[-47.9,-15.8]]]}}}`

func newTestEngine(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	dsn := "file:views_" + strings.ReplaceAll(t.Name(), "/", "_") + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, models.Migrate(db))
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	svc := services.NewGlebaService(db, services.WithWorkDir(t.TempDir()))
	ctrl := NewGlebaController(svc, config.Message{Active: true, Title: "Aviso", Content: "Manutenção"}, nil)

	r := gin.New()
	r.GET("/", ctrl.Index)
	r.GET("/api/glebas", ctrl.List)
	r.POST("/api/glebas", ctrl.Create)
	r.PUT("/api/glebas/:id", ctrl.Update)
	r.DELETE("/api/glebas/:id", ctrl.Delete)
	r.GET("/api/glebas/:id/history", ctrl.History)
	r.GET("/api/sessions/:sid", ctrl.Session)
	r.GET("/api/message", ctrl.Message)
	r.GET("/export/:format/:id", ctrl.Export)
	r.POST("/import/universal", ctrl.Import)
	return r
}

func do(r http.Handler, method, path, body string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestCreateListUpdateDelete(t *testing.T) {
	r := newTestEngine(t)

	w := do(r, http.MethodPost, "/api/glebas", squareBody, nil)
	require.Equal(t, http.StatusCreated, w.Code)
	created := decode(t, w)
	assert.Equal(t, "Salvo", created["message"])
	assert.Equal(t, 1.0, created["id"])

	w = do(r, http.MethodGet, "/api/glebas", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var fc struct {
		Type     string `json:"type"`
		Features []struct {
			Properties map[string]interface{} `json:"properties"`
		} `json:"features"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &fc))
	assert.Equal(t, "FeatureCollection", fc.Type)
	require.Len(t, fc.Features, 1)
	assert.Equal(t, "Talhão 1", fc.Features[0].Properties["nome"])
	assert.Equal(t, "Polygon", fc.Features[0].Properties["tipo"])
	assert.Greater(t, fc.Features[0].Properties["area_ha"], 0.0)

	w = do(r, http.MethodPut, "/api/glebas/1", `{"nome":"Renomeada"}`, map[string]string{editor.EditSessionHeader: "sess-9"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Atualizada", decode(t, w)["message"])

	w = do(r, http.MethodDelete, "/api/glebas/1", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Deletada", decode(t, w)["message"])

	w = do(r, http.MethodGet, "/api/glebas/1/history", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var rows []models.GeoRecord
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rows))
	require.Len(t, rows, 3)
	assert.Equal(t, models.RecordAdd, rows[0].Type)
	assert.Equal(t, models.RecordUpdate, rows[1].Type)
	assert.Equal(t, "sess-9", rows[1].SessionID)
	assert.Equal(t, models.RecordDelete, rows[2].Type)

	w = do(r, http.MethodGet, "/api/sessions/sess-9", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var sess struct {
		Session models.EditSession `json:"session"`
		Records []models.GeoRecord `json:"records"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sess))
	assert.Equal(t, 1, sess.Session.Changes)
	require.Len(t, sess.Records, 1)
	assert.Equal(t, int64(1), sess.Records[0].GeoID)

	assert.Equal(t, http.StatusNotFound, do(r, http.MethodGet, "/api/sessions/nope", "", nil).Code)
}

func TestListETag(t *testing.T) {
	r := newTestEngine(t)
	w := do(r, http.MethodGet, "/api/glebas", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	etag := w.Header().Get("ETag")
	require.NotEmpty(t, etag)

	w = do(r, http.MethodGet, "/api/glebas", "", map[string]string{"If-None-Match": etag})
	assert.Equal(t, http.StatusNotModified, w.Code)

	require.Equal(t, http.StatusCreated, do(r, http.MethodPost, "/api/glebas", squareBody, nil).Code)
	w = do(r, http.MethodGet, "/api/glebas", "", map[string]string{"If-None-Match": etag})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEqual(t, etag, w.Header().Get("ETag"))
}

func TestInvalidInputAndMissingRecord(t *testing.T) {
	r := newTestEngine(t)

	w := do(r, http.MethodPost, "/api/glebas", `{"nome":"x"}`, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Dados inválidos", decode(t, w)["error"])

	w = do(r, http.MethodPost, "/api/glebas", `not json`, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	assert.Equal(t, http.StatusNotFound, do(r, http.MethodPut, "/api/glebas/42", `{"nome":"a"}`, nil).Code)
	assert.Equal(t, http.StatusNotFound, do(r, http.MethodDelete, "/api/glebas/42", "", nil).Code)
	assert.Equal(t, http.StatusNotFound, do(r, http.MethodDelete, "/api/glebas/abc", "", nil).Code)
}

func TestUpdateRejectsGeometryKindChange(t *testing.T) {
	r := newTestEngine(t)
	require.Equal(t, http.StatusCreated, do(r, http.MethodPost, "/api/glebas", squareBody, nil).Code)

	w := do(r, http.MethodPut, "/api/glebas/1", `{"geojson":{"type":"LineString","coordinates":[[0,0],[0,0.01]]}}`, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Dados inválidos", decode(t, w)["error"])

	w = do(r, http.MethodGet, "/api/glebas/1/history", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var rows []models.GeoRecord
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rows))
	assert.Len(t, rows, 1)
}

func TestMessage(t *testing.T) {
	r := newTestEngine(t)
	w := do(r, http.MethodGet, "/api/message", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"active":true,"title":"Aviso","content":"Manutenção"}`, w.Body.String())
}

func TestExport(t *testing.T) {
	r := newTestEngine(t)
	require.Equal(t, http.StatusCreated, do(r, http.MethodPost, "/api/glebas", squareBody, nil).Code)

	w := do(r, http.MethodGet, "/export/kml/1", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/vnd.google-earth.kml+xml", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "attachment")
	assert.Contains(t, w.Body.String(), "<kml")

	w = do(r, http.MethodGet, "/export/csv/1", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.HasPrefix(w.Body.String(), "\ufeffPonto;"))

	assert.Equal(t, http.StatusNotFound, do(r, http.MethodGet, "/export/gpx/1", "", nil).Code)
	assert.Equal(t, http.StatusNotFound, do(r, http.MethodGet, "/export/kml/99", "", nil).Code)

	multi := `{"nome":"m","cor":"#000000","geojson":{"type":"MultiPoint","coordinates":[[1,1],[2,2]]}}`
	require.Equal(t, http.StatusCreated, do(r, http.MethodPost, "/api/glebas", multi, nil).Code)
	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodGet, "/export/shp/2", "", nil).Code)
}

func upload(t *testing.T, r http.Handler, field, filename, content string) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if field != "" {
		fw, err := mw.CreateFormFile(field, filename)
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	req := httptest.NewRequest(http.MethodPost, "/import/universal", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestImport(t *testing.T) {
	r := newTestEngine(t)

	kml := `<kml xmlns="http://www.opengis.net/kml/2.2"><Document>
<Placemark><name>Sede</name><Point><coordinates>-47.85,-15.75,0</coordinates></Point></Placemark>
</Document></kml>`
	w := upload(t, r, "file", "sede.kml", kml)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "1 itens importados.", decode(t, w)["message"])

	w = upload(t, r, "", "", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Sem arquivo", decode(t, w)["error"])

	w = upload(t, r, "file", "vazio.kml", `<kml><Document></Document></kml>`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Nenhuma geometria válida.", decode(t, w)["error"])
}

func TestIndexRendersList(t *testing.T) {
	r := newTestEngine(t)
	require.Equal(t, http.StatusCreated, do(r, http.MethodPost, "/api/glebas", squareBody, nil).Code)

	w := do(r, http.MethodGet, "/", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
	body := w.Body.String()
	assert.Contains(t, body, `data-id="1"`)
	assert.Contains(t, body, "Talhão 1")
	assert.Contains(t, body, " ha")
	assert.Contains(t, body, "Manutenção")
	assert.Contains(t, body, "/export/shp/1")
}
