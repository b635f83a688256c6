package views

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"strconv"

	"github.com/GrainArc/GlebaMap/Transformer"
	"github.com/GrainArc/GlebaMap/config"
	"github.com/GrainArc/GlebaMap/editor"
	"github.com/GrainArc/GlebaMap/methods"
	"github.com/GrainArc/GlebaMap/services"
	"github.com/gin-gonic/gin"
	"github.com/paulmach/orb/geojson"
)

// GlebaController /api/glebas 以及导入导出接口
type GlebaController struct {
	svc     *services.GlebaService
	message config.Message
	hub     *ChangeHub
	log     *slog.Logger
}

func NewGlebaController(svc *services.GlebaService, msg config.Message, log *slog.Logger) *GlebaController {
	if log == nil {
		log = slog.Default()
	}
	hub := NewChangeHub(log)
	svc.OnChange(hub.Broadcast)
	return &GlebaController{svc: svc, message: msg, hub: hub, log: log}
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		notFound(c, "Não encontrada")
		return 0, false
	}
	return id, true
}

// List 全部记录的 FeatureCollection，按创建时间排序；带 ETag
func (uc *GlebaController) List(c *gin.Context) {
	data, err := uc.svc.Collection(c.Request.Context())
	if err != nil {
		uc.log.Error("gleba_list_failed", "err", err)
		serverError(c, "Falha ao listar", err)
		return
	}
	etag := `"` + methods.Md5Hex(data) + `"`
	c.Header("ETag", etag)
	if c.GetHeader("If-None-Match") == etag {
		c.Status(http.StatusNotModified)
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", data)
}

func (uc *GlebaController) Create(c *gin.Context) {
	var in services.GlebaInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "Dados inválidos")
		return
	}
	g, err := uc.svc.Create(c.Request.Context(), in, c.GetHeader(editor.EditSessionHeader))
	switch {
	case errors.Is(err, services.ErrInvalidInput):
		badRequest(c, "Dados inválidos")
		return
	case err != nil:
		uc.log.Error("gleba_create_failed", "err", err)
		serverError(c, "Falha ao salvar", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Salvo", "id": g.ID})
}

// Update 未提交的字段保持不变；X-Edit-Session 记入变更历史
func (uc *GlebaController) Update(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var in services.GlebaInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "Dados inválidos")
		return
	}
	g, err := uc.svc.Update(c.Request.Context(), id, in, c.GetHeader(editor.EditSessionHeader))
	switch {
	case errors.Is(err, services.ErrNotFound):
		notFound(c, "Não encontrada")
		return
	case errors.Is(err, services.ErrInvalidInput):
		badRequest(c, "Dados inválidos")
		return
	case err != nil:
		uc.log.Error("gleba_update_failed", "id", id, "err", err)
		serverError(c, "Falha ao atualizar", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Atualizada", "id": g.ID})
}

func (uc *GlebaController) Delete(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	err := uc.svc.Delete(c.Request.Context(), id, c.GetHeader(editor.EditSessionHeader))
	switch {
	case errors.Is(err, services.ErrNotFound):
		notFound(c, "Não encontrada")
		return
	case err != nil:
		uc.log.Error("gleba_delete_failed", "id", id, "err", err)
		serverError(c, "Falha ao excluir", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Deletada"})
}

// History 记录的变更历史
func (uc *GlebaController) History(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	rows, err := uc.svc.History(c.Request.Context(), id)
	if err != nil {
		serverError(c, "Falha ao consultar histórico", err)
		return
	}
	c.JSON(http.StatusOK, rows)
}

// Session 一次编辑会话提交的全部变更
func (uc *GlebaController) Session(c *gin.Context) {
	es, rows, err := uc.svc.Session(c.Request.Context(), c.Param("sid"))
	switch {
	case errors.Is(err, services.ErrNotFound):
		notFound(c, "Sessão não encontrada")
		return
	case err != nil:
		serverError(c, "Falha ao consultar sessão", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": es, "records": rows})
}

func (uc *GlebaController) Message(c *gin.Context) {
	c.JSON(http.StatusOK, uc.message)
}

// Export GET /export/:format/:id，以附件形式返回
func (uc *GlebaController) Export(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	out, err := uc.svc.Export(c.Request.Context(), id, c.Param("format"))
	var ufe *services.UnsupportedFormatError
	switch {
	case errors.Is(err, services.ErrNotFound):
		notFound(c, "Não encontrada")
		return
	case errors.As(err, &ufe):
		notFound(c, "Formato não suportado")
		return
	case errors.Is(err, Transformer.ErrUnsupportedGeometry):
		badRequest(c, "Tipo de geometria não suportado.")
		return
	case err != nil:
		uc.log.Error("gleba_export_failed", "id", id, "format", c.Param("format"), "err", err)
		serverError(c, "Erro na exportação", err)
		return
	}
	c.Header("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": out.Filename}))
	c.Data(http.StatusOK, out.ContentType, out.Data)
}

// Import POST /import/universal，表单字段 file：.zip/.rar 内含 shp，其余按 KML 解析
func (uc *GlebaController) Import(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil || file.Filename == "" {
		badRequest(c, "Sem arquivo")
		return
	}
	src, err := file.Open()
	if err != nil {
		badRequest(c, "Sem arquivo")
		return
	}
	defer src.Close()

	n, err := uc.svc.ImportFile(c.Request.Context(), file.Filename, src)
	switch {
	case errors.Is(err, services.ErrNoFeatures):
		badRequest(c, "Nenhuma geometria válida.")
		return
	case err != nil:
		uc.log.Error("gleba_import_failed", "file", file.Filename, "err", err)
		serverError(c, "Falha na importação", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": fmt.Sprintf("%d itens importados.", n)})
}

// Index 服务端渲染的记录列表
func (uc *GlebaController) Index(c *gin.Context) {
	data, err := uc.svc.Collection(c.Request.Context())
	if err != nil {
		serverError(c, "Falha ao listar", err)
		return
	}
	var fc geojson.FeatureCollection
	if err := json.Unmarshal(data, &fc); err != nil {
		serverError(c, "Falha ao listar", err)
		return
	}
	m := editor.NewMirror(uc.log)
	m.Rebuild(&fc)

	c.Header("Content-Type", "text/html; charset=utf-8")
	c.Status(http.StatusOK)
	_, _ = c.Writer.WriteString("<!DOCTYPE html>\n<html lang=\"pt-br\">\n<head><meta charset=\"utf-8\"><title>Gestão de Glebas</title></head>\n<body>\n")
	b := &editor.HTMLBinder{W: c.Writer}
	b.ShowBanner(editor.Banner{Active: uc.message.Active, Title: uc.message.Title, Content: uc.message.Content})
	b.Render(editor.ListItems(m))
	_, _ = c.Writer.WriteString("</body>\n</html>\n")
}
