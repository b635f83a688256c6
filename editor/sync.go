package editor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/paulmach/orb/geojson"
	"golang.org/x/sync/errgroup"
)

// ErrNetworkFailure 所有同步调用失败都满足 errors.Is(err, ErrNetworkFailure)
var ErrNetworkFailure = errors.New("network failure")

// CreateRequest 对应 POST /api/glebas 的请求体
type CreateRequest struct {
	Name    string           `json:"nome"`
	Color   string           `json:"cor"`
	Feature *geojson.Feature `json:"geojson"`
}

// Patch 对应 PUT /api/glebas/{id}，nil 字段不提交
type Patch struct {
	Name    *string          `json:"nome,omitempty"`
	Color   *string          `json:"cor,omitempty"`
	Feature *geojson.Feature `json:"geojson,omitempty"`
}

// Banner 启动时读取一次的提示信息
type Banner struct {
	Active  bool   `json:"active"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

// Backend 后端接口的传输层，见 client 包
type Backend interface {
	List(ctx context.Context) (*geojson.FeatureCollection, error)
	Create(ctx context.Context, req CreateRequest) (int64, error)
	Update(ctx context.Context, id int64, p Patch) error
	Delete(ctx context.Context, id int64) error
	Message(ctx context.Context) (*Banner, error)
}

// SyncError 包装一次失败的后端调用
type SyncError struct {
	Op  string
	ID  int64
	Err error
}

func (e *SyncError) Error() string {
	if e.ID != 0 {
		return fmt.Sprintf("%s %d: %v", e.Op, e.ID, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *SyncError) Unwrap() error { return e.Err }

func (e *SyncError) Is(target error) bool { return target == ErrNetworkFailure }

// Update 一次批量更新中的单个图层
type Update struct {
	ID    int64
	Patch Patch
}

// Sync 同步客户端：每个操作只发一次请求，不自动重试
type Sync struct {
	backend Backend
	log     *slog.Logger
}

func NewSync(b Backend, log *slog.Logger) *Sync {
	if log == nil {
		log = slog.Default()
	}
	return &Sync{backend: b, log: log}
}

func (s *Sync) Create(ctx context.Context, req CreateRequest) (int64, error) {
	id, err := s.backend.Create(ctx, req)
	if err != nil {
		s.log.Warn("sync_create_failed", "err", err)
		return 0, &SyncError{Op: "create", Err: err}
	}
	return id, nil
}

func (s *Sync) Update(ctx context.Context, id int64, p Patch) error {
	if err := s.backend.Update(ctx, id, p); err != nil {
		s.log.Warn("sync_update_failed", "id", id, "err", err)
		return &SyncError{Op: "update", ID: id, Err: err}
	}
	return nil
}

func (s *Sync) Delete(ctx context.Context, id int64) error {
	if err := s.backend.Delete(ctx, id); err != nil {
		s.log.Warn("sync_delete_failed", "id", id, "err", err)
		return &SyncError{Op: "delete", ID: id, Err: err}
	}
	return nil
}

func (s *Sync) List(ctx context.Context) (*geojson.FeatureCollection, error) {
	fc, err := s.backend.List(ctx)
	if err != nil {
		return nil, &SyncError{Op: "list", Err: err}
	}
	return fc, nil
}

func (s *Sync) Message(ctx context.Context) (*Banner, error) {
	b, err := s.backend.Message(ctx)
	if err != nil {
		return nil, &SyncError{Op: "message", Err: err}
	}
	return b, nil
}

// UpdateAll 为每个图层各发一个 update，全部结束（成功或失败）后才返回。
// 返回的切片与 updates 一一对应，成功的位置为 nil。
func (s *Sync) UpdateAll(ctx context.Context, updates []Update) []error {
	errs := make([]error, len(updates))
	var g errgroup.Group
	for i, u := range updates {
		i, u := i, u
		g.Go(func() error {
			errs[i] = s.Update(ctx, u.ID, u.Patch)
			return nil
		})
	}
	_ = g.Wait()
	return errs
}

// ChangeEvent 服务端 /ws/changes 推送的消息；连接就绪时先发送 Type 为 ready 的一条
type ChangeEvent struct {
	Type string `json:"type"`
	Op   string `json:"op,omitempty"`
}

// EditSessionHeader 批量更新时携带编辑会话 id 的请求头
const EditSessionHeader = "X-Edit-Session"

type editSessionKey struct{}

// WithEditSession 把编辑会话 id 放入 context，传输层据此设置 X-Edit-Session
func WithEditSession(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, editSessionKey{}, id)
}

func EditSessionFrom(ctx context.Context) string {
	v, _ := ctx.Value(editSessionKey{}).(string)
	return v
}
