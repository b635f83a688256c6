package editor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultColor 新建要素时元数据对话框的默认颜色
const DefaultColor = "#ff7700"

// DefaultSettleDelay 进入编辑后首次计算标注前的等待时间，
// 绘制工具内部的几何状态在 edit-start 回调中尚未就绪
const DefaultSettleDelay = 50 * time.Millisecond

var (
	ErrMissingMetadata   = errors.New("name and color are required")
	ErrInvalidTransition = errors.New("invalid session transition")
	ErrUnknownRecord     = errors.New("unknown record")
)

// Phase 会话状态
type Phase int

const (
	Idle Phase = iota
	Creating
	EditActive
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Creating:
		return "creating"
	case EditActive:
		return "edit_active"
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// VertexEvent 编辑期间的顶点事件
type VertexEvent int

const (
	VertexAdded VertexEvent = iota
	VertexRemoved
	VertexDragged
)

// Metadata 用户在对话框中填写的名称与颜色
type Metadata struct {
	Name  string
	Color string
}

func (m Metadata) valid() bool { return m.Name != "" && m.Color != "" }

// Prompter 与用户交互的部分：元数据对话框、确认框、错误提示。
// RequestMetadata 与 Confirm 在控制器锁外调用，可以同步回调控制器；
// Report 在锁内调用，不能再进入控制器。
type Prompter interface {
	RequestMetadata(defaults Metadata)
	Confirm(ctx context.Context, message string) bool
	Report(err error)
}

// sessionState 控制器持有的会话状态
type sessionState struct {
	phase   Phase
	id      string
	editing []*Layer
	settle  *time.Timer
	gen     uint64
}

// Controller 绘制/编辑会话控制器。
// 所有命令与延迟回调都在 mu 下串行执行，一个命令执行完毕才会处理下一个。
type Controller struct {
	mu       sync.Mutex
	state    sessionState
	mirror   *Mirror
	annot    *Annotator
	syncer   *Sync
	prompter Prompter
	binder   Binder
	settle   time.Duration
	log      *slog.Logger
}

type Option func(*Controller)

func WithSettleDelay(d time.Duration) Option { return func(c *Controller) { c.settle = d } }

func WithLogger(l *slog.Logger) Option { return func(c *Controller) { c.log = l } }

func WithLabelSink(s LabelSink) Option { return func(c *Controller) { c.annot = NewAnnotator(s) } }

func WithBinder(b Binder) Option { return func(c *Controller) { c.binder = b } }

func NewController(backend Backend, prompter Prompter, opts ...Option) *Controller {
	c := &Controller{
		prompter: prompter,
		settle:   DefaultSettleDelay,
		log:      slog.Default(),
	}
	for _, o := range opts {
		o(c)
	}
	if c.annot == nil {
		c.annot = NewAnnotator(nil)
	}
	if c.binder == nil {
		c.binder = nopBinder{}
	}
	c.mirror = NewMirror(c.log)
	c.syncer = NewSync(backend, c.log)
	return c
}

func (c *Controller) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.phase
}

// Mirror 只供读取；修改只能经由控制器
func (c *Controller) Mirror() *Mirror { return c.mirror }

// Start 启动时读取一次提示信息，然后加载全部记录
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if b, err := c.syncer.Message(ctx); err != nil {
		c.log.Warn("banner_fetch_failed", "err", err)
	} else if b != nil && b.Active {
		c.binder.ShowBanner(*b)
	}
	return c.reload(ctx)
}

// Reload 从后端取回全部记录并重建镜像，这是唯一的对账点
func (c *Controller) Reload(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reload(ctx)
}

func (c *Controller) reload(ctx context.Context) error {
	fc, err := c.syncer.List(ctx)
	if err != nil {
		c.prompter.Report(err)
		return err
	}
	c.annot.Clear()
	if c.state.phase == EditActive {
		// 编辑中的图层已随重建销毁
		c.endEdit()
	}
	c.mirror.Rebuild(fc)
	c.binder.Render(ListItems(c.mirror))
	c.log.Debug("mirror_reloaded", "count", c.mirror.Len())
	return nil
}

// Created 绘制工具产生新图形：Idle -> Creating，然后打开元数据对话框
func (c *Controller) Created(l *Layer) error {
	if err := c.beginCreate(l); err != nil {
		return err
	}
	c.prompter.RequestMetadata(Metadata{Color: DefaultColor})
	return nil
}

func (c *Controller) beginCreate(l *Layer) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.phase != Idle {
		return fmt.Errorf("%w: create while %s", ErrInvalidTransition, c.state.phase)
	}
	if err := c.mirror.AddPending(l); err != nil {
		return err
	}
	c.state.phase = Creating
	return nil
}

// CommitCreate 提交元数据并创建记录：Creating -> Idle。
// 请求失败时保留待创建图层，仍处于 Creating，用户可重试或取消。
func (c *Controller) CommitCreate(ctx context.Context, meta Metadata) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.phase != Creating {
		return fmt.Errorf("%w: commit while %s", ErrInvalidTransition, c.state.phase)
	}
	if !meta.valid() {
		return ErrMissingMetadata
	}
	pending := c.mirror.Pending()
	id, err := c.syncer.Create(ctx, CreateRequest{Name: meta.Name, Color: meta.Color, Feature: pending.Feature()})
	if err != nil {
		c.prompter.Report(err)
		return err
	}
	l, err := c.mirror.BindPending(id)
	if err != nil {
		return err
	}
	l.Name, l.Color = meta.Name, meta.Color
	c.state.phase = Idle
	c.log.Info("record_created", "id", id, "kind", l.Kind)
	return c.reload(ctx)
}

// CancelCreate 放弃新绘制的图形，不访问后端
func (c *Controller) CancelCreate() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.phase != Creating {
		return fmt.Errorf("%w: cancel while %s", ErrInvalidTransition, c.state.phase)
	}
	c.mirror.DropPending()
	c.state.phase = Idle
	return nil
}

// EditStart 进入编辑：Idle -> EditActive，延迟 settle 后首次生成顶点标注
func (c *Controller) EditStart(layers ...*Layer) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.phase != Idle {
		return fmt.Errorf("%w: edit-start while %s", ErrInvalidTransition, c.state.phase)
	}
	var editing []*Layer
	for _, l := range layers {
		if l == nil || !l.Bound() {
			continue
		}
		l.snapshot()
		editing = append(editing, l)
	}
	if len(editing) == 0 {
		return fmt.Errorf("%w: no bound layers to edit", ErrInvalidTransition)
	}
	c.state.phase = EditActive
	c.state.editing = editing
	c.state.id = uuid.NewString()
	c.state.gen++
	gen := c.state.gen
	c.state.settle = time.AfterFunc(c.settle, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.state.phase != EditActive || c.state.gen != gen {
			return
		}
		c.annot.Recompute(c.state.editing)
	})
	c.log.Debug("edit_started", "session", c.state.id, "layers", len(editing))
	return nil
}

// VertexChanged 顶点增删或拖动后重新生成全部标注。
// 几何已由绘制工具就地修改。
func (c *Controller) VertexChanged(ev VertexEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.phase != EditActive {
		return fmt.Errorf("%w: vertex event while %s", ErrInvalidTransition, c.state.phase)
	}
	n := c.annot.Recompute(c.state.editing)
	c.log.Debug("labels_recomputed", "event", int(ev), "labels", n)
	return nil
}

// EditStop 结束编辑并提交修改：EditActive -> Idle。
// 每个修改过的图层发一个 update，全部结束后才 reload。
func (c *Controller) EditStop(ctx context.Context, modified ...*Layer) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.phase != EditActive {
		return fmt.Errorf("%w: edit-stop while %s", ErrInvalidTransition, c.state.phase)
	}
	session := c.state.id
	c.endEdit()

	var updates []Update
	for _, l := range modified {
		if l == nil || !l.Bound() {
			continue
		}
		name, color := l.Name, l.Color
		updates = append(updates, Update{ID: l.ID, Patch: Patch{Name: &name, Color: &color, Feature: l.Feature()}})
	}
	errs := c.syncer.UpdateAll(WithEditSession(ctx, session), updates)
	joined := errors.Join(errs...)
	if joined != nil {
		c.prompter.Report(joined)
	}
	if err := c.reload(ctx); err != nil {
		return errors.Join(joined, err)
	}
	return joined
}

// EditCancel 放弃编辑，几何恢复到进入编辑时的状态
func (c *Controller) EditCancel() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.phase != EditActive {
		return fmt.Errorf("%w: edit-cancel while %s", ErrInvalidTransition, c.state.phase)
	}
	for _, l := range c.state.editing {
		l.revert()
	}
	c.endEdit()
	return nil
}

func (c *Controller) endEdit() {
	if c.state.settle != nil {
		c.state.settle.Stop()
		c.state.settle = nil
	}
	c.annot.Clear()
	c.state.editing = nil
	c.state.id = ""
	c.state.phase = Idle
}

// Delete 删除一条记录，需用户确认；拒绝确认时不做任何改动。
// 确认期间记录可能已被重建移除，确认后重新检查。
func (c *Controller) Delete(ctx context.Context, id int64) error {
	c.mu.Lock()
	_, ok := c.mirror.Get(id)
	c.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownRecord, id)
	}
	if !c.prompter.Confirm(ctx, "Excluir permanentemente?") {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.mirror.Get(id); !ok {
		return fmt.Errorf("%w: %d", ErrUnknownRecord, id)
	}
	switch c.state.phase {
	case EditActive:
		for _, l := range c.state.editing {
			l.revert()
		}
		c.endEdit()
	case Creating:
		c.mirror.DropPending()
		c.state.phase = Idle
	}
	if err := c.syncer.Delete(ctx, id); err != nil {
		c.prompter.Report(err)
		return err
	}
	c.mirror.Remove(id)
	c.log.Info("record_deleted", "id", id)
	return c.reload(ctx)
}

// UpdateMetadata 只修改名称和颜色，不涉及几何，也不进入编辑状态。
// 编辑进行中时拒绝，之后的 reload 会丢掉未提交的几何修改。
func (c *Controller) UpdateMetadata(ctx context.Context, id int64, meta Metadata) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.phase == EditActive {
		return fmt.Errorf("%w: metadata update while %s", ErrInvalidTransition, c.state.phase)
	}
	if !meta.valid() {
		return ErrMissingMetadata
	}
	l, ok := c.mirror.Get(id)
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownRecord, id)
	}
	if err := c.syncer.Update(ctx, id, Patch{Name: &meta.Name, Color: &meta.Color}); err != nil {
		c.prompter.Report(err)
		return err
	}
	l.Name, l.Color = meta.Name, meta.Color
	return c.reload(ctx)
}

type nopBinder struct{}

func (nopBinder) Render([]ListItem) {}
func (nopBinder) ShowBanner(Banner) {}
