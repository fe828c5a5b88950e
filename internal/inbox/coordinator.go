// Package inbox 实现临时邮箱的生命周期协调器。
//
// 协调器是活跃地址的唯一写入方：生成随机地址、维护会话内的
// 历史地址、刷新邮件列表，并在地址存续期间保持一份后端推送
// 订阅。展示层只读它暴露的快照，所有变更都经过它的方法。
package inbox

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"tempmail/webclient/internal/backend"
	"tempmail/webclient/internal/cache"
	"tempmail/webclient/internal/domain"
	"tempmail/webclient/internal/notify"
)

var (
	// ErrNoDomains 没有可用域名，无法生成地址
	ErrNoDomains = errors.New("no active domains available")
	// ErrNoActiveAddress 当前没有活跃地址
	ErrNoActiveAddress = errors.New("no active address")
)

// localPartAlphabet 随机本地部分的字符集（小写字母 + 数字）。
const localPartAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// RetryPolicy 域名查询的重试策略。
//
// 重试只用于域名列表读取；邮件列表读取失败不重试，
// 保留上一次的缓存。
type RetryPolicy struct {
	MaxTries        uint          // 总尝试次数（含首次）
	InitialInterval time.Duration // 指数退避起始间隔
}

// Options 协调器配置。
type Options struct {
	PollInterval    time.Duration // 邮件轮询间隔，默认 5s
	HistoryLimit    int           // 历史地址上限，默认 5
	LocalPartLength int           // 随机本地部分长度，默认 8
	DomainRetry     RetryPolicy   // 域名查询重试策略，默认 3 次
	PushRefreshRate rate.Limit    // 推送触发刷新的限速，默认每秒 2 次
}

// withDefaults 填充缺省配置。
func (o Options) withDefaults() Options {
	if o.PollInterval <= 0 {
		o.PollInterval = 5 * time.Second
	}
	if o.HistoryLimit <= 0 {
		o.HistoryLimit = 5
	}
	if o.LocalPartLength <= 0 {
		o.LocalPartLength = 8
	}
	if o.DomainRetry.MaxTries == 0 {
		o.DomainRetry.MaxTries = 3
	}
	if o.DomainRetry.InitialInterval <= 0 {
		o.DomainRetry.InitialInterval = 500 * time.Millisecond
	}
	if o.PushRefreshRate <= 0 {
		o.PushRefreshRate = rate.Limit(2)
	}
	return o
}

// pushEvent 带纪元标记的推送事件。纪元在地址切换时递增，
// 用于丢弃旧地址订阅晚到的事件。
type pushEvent struct {
	epoch   uint64
	message domain.Message
}

// Coordinator 单个 UI 会话的邮箱生命周期协调器。
type Coordinator struct {
	store   backend.Store
	sink    notify.Sink
	clip    Clipboard
	log     *zap.Logger
	opts    Options
	shared  *cache.DomainCache[[]domain.Domain] // 进程级域名快照，可为 nil
	limiter *rate.Limiter
	events  chan pushEvent

	mu       sync.Mutex
	random   *rand.Rand
	address  string
	epoch    uint64
	history  []string
	domains  []domain.Domain
	messages []domain.Message
	sub      backend.Subscription
	runCtx   context.Context
}

// NewCoordinator 创建协调器。
//
// shared 为全部会话共享的域名快照缓存，传 nil 则每次都查后端。
func NewCoordinator(store backend.Store, sink notify.Sink, clip Clipboard, shared *cache.DomainCache[[]domain.Domain], opts Options, log *zap.Logger) *Coordinator {
	opts = opts.withDefaults()
	if sink == nil {
		sink = notify.Nop()
	}
	if clip == nil {
		clip = NewMemoryClipboard()
	}
	if log == nil {
		log = zap.NewNop()
	}

	return &Coordinator{
		store:   store,
		sink:    sink,
		clip:    clip,
		log:     log,
		opts:    opts,
		shared:  shared,
		limiter: rate.NewLimiter(opts.PushRefreshRate, 1),
		events:  make(chan pushEvent, 16),
		random:  rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Run 驱动定时轮询与推送刷新，直到上下文结束。
//
// 轮询和推送都会走同一条刷新路径；两者可能竞争，但每次查询
// 都是全量快照，后到的覆盖先到的即可。退出时订阅被显式关闭，
// 不留悬挂订阅。
func (c *Coordinator) Run(ctx context.Context) {
	c.mu.Lock()
	c.runCtx = ctx
	if c.address != "" && c.sub == nil {
		c.resubscribeLocked()
	}
	c.mu.Unlock()

	ticker := time.NewTicker(c.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.shutdown()
			return
		case <-ticker.C:
			c.RefreshMessages(ctx)
		case ev := <-c.events:
			c.handlePush(ctx, ev)
		}
	}
}

// ListActiveDomains 查询可用域名并缓存。
//
// 按配置的策略重试（默认 3 次指数退避）；最终失败时返回空
// 序列并发出错误提示，调用方无需区分失败与确无域名。
func (c *Coordinator) ListActiveDomains(ctx context.Context) ([]domain.Domain, error) {
	if c.shared != nil {
		if cached, ok := c.shared.Get(); ok {
			c.mu.Lock()
			c.domains = cached
			c.mu.Unlock()
			return cached, nil
		}
	}

	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = c.opts.DomainRetry.InitialInterval

	domains, err := backoff.Retry(ctx,
		func() ([]domain.Domain, error) {
			return c.store.ListActiveDomains(ctx)
		},
		backoff.WithBackOff(expo),
		backoff.WithMaxTries(c.opts.DomainRetry.MaxTries),
	)
	if err != nil {
		c.log.Warn("failed to list active domains", zap.Error(err))
		c.sink.Notify(notify.Error("错误", "获取域名列表失败，请稍后重试"))
		return []domain.Domain{}, err
	}

	c.mu.Lock()
	c.domains = domains
	c.mu.Unlock()
	if c.shared != nil {
		c.shared.Set(domains)
	}
	return domains, nil
}

// GenerateAddress 生成一个新的随机地址并设为活跃。
//
// 域名缓存为空时不做任何变更，只发出错误提示。生成本身不碰
// 后端：地址在收到邮件或登记自定义地址之前只存在于内存里。
func (c *Coordinator) GenerateAddress() (string, error) {
	c.mu.Lock()
	if len(c.domains) == 0 {
		c.mu.Unlock()
		c.log.Warn("generate address requested with no domains cached")
		c.sink.Notify(notify.Error("错误", "暂无可用域名，请稍后重试"))
		return "", ErrNoDomains
	}

	picked := c.domains[c.random.Intn(len(c.domains))]
	local := c.randomLocalPartLocked()
	address := local + "@" + picked.Domain
	c.swapAddressLocked(address)
	c.mu.Unlock()

	c.sink.Notify(notify.Success("新邮箱已创建", address))
	return address, nil
}

// SetAddress 把外部产生的地址（自定义地址登记成功后）设为活跃。
func (c *Coordinator) SetAddress(address string) {
	c.mu.Lock()
	c.swapAddressLocked(address)
	c.mu.Unlock()
}

// RefreshMessages 拉取活跃地址的邮件快照。
//
// 查询失败时保留并返回上一次的缓存，避免界面闪烁和数据丢失；
// 地址在查询进行中被切换时，过期结果被直接丢弃。
func (c *Coordinator) RefreshMessages(ctx context.Context) []domain.Message {
	c.mu.Lock()
	address := c.address
	epoch := c.epoch
	cached := c.messages
	c.mu.Unlock()

	if address == "" {
		return []domain.Message{}
	}

	messages, err := c.store.ListMessages(ctx, address)
	if err != nil {
		c.log.Warn("failed to refresh messages",
			zap.String("address", address),
			zap.Error(err))
		c.sink.Notify(notify.Error("错误", "获取邮件列表失败，请稍后重试"))
		return cached
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.epoch != epoch {
		// 地址已切换，丢弃过期快照
		return c.messages
	}
	c.messages = messages
	return messages
}

// MarkMessageRead 标记活跃地址下的某封邮件为已读。
func (c *Coordinator) MarkMessageRead(ctx context.Context, messageID string) error {
	c.mu.Lock()
	address := c.address
	c.mu.Unlock()

	if address == "" {
		return ErrNoActiveAddress
	}
	return c.store.MarkMessageRead(ctx, address, messageID)
}

// CopyAddress 把活跃地址写入剪贴板设施，无活跃地址时不做任何事。
func (c *Coordinator) CopyAddress() error {
	c.mu.Lock()
	address := c.address
	c.mu.Unlock()

	if address == "" {
		return nil
	}
	if err := c.clip.WriteText(address); err != nil {
		c.sink.Notify(notify.Error("错误", "复制邮箱地址失败"))
		return err
	}
	c.sink.Notify(notify.Success("已复制", "邮箱地址已复制到剪贴板"))
	return nil
}

// EnsureAddress 在尚无活跃地址时生成一个初始地址。
//
// 对应页面首次加载的行为：域名就绪且没有地址时立即生成。
func (c *Coordinator) EnsureAddress(ctx context.Context) (string, error) {
	c.mu.Lock()
	address := c.address
	c.mu.Unlock()
	if address != "" {
		return address, nil
	}
	if _, err := c.ListActiveDomains(ctx); err != nil {
		return "", err
	}
	return c.GenerateAddress()
}

// Address 返回当前活跃地址，可能为空。
func (c *Coordinator) Address() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.address
}

// History 返回历史地址快照，最近使用的在前。
func (c *Coordinator) History() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.history))
	copy(out, c.history)
	return out
}

// Messages 返回最近一次刷新得到的邮件快照。
func (c *Coordinator) Messages() []domain.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]domain.Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// Domains 返回缓存的可用域名快照。
func (c *Coordinator) Domains() []domain.Domain {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]domain.Domain, len(c.domains))
	copy(out, c.domains)
	return out
}

// swapAddressLocked 原子地切换活跃地址：旧地址入历史、纪元
// 递增、清空邮件缓存、订阅换到新地址。查询过滤条件和订阅过滤
// 条件在同一把锁内完成切换，不存在旧地址邮件挂在新地址名下的
// 窗口。调用方必须持有 mu。
func (c *Coordinator) swapAddressLocked(address string) {
	if c.address != "" {
		c.history = append([]string{c.address}, c.history...)
		if len(c.history) > c.opts.HistoryLimit {
			c.history = c.history[:c.opts.HistoryLimit]
		}
	}
	c.address = address
	c.epoch++
	c.messages = nil
	c.resubscribeLocked()
}

// resubscribeLocked 撤掉旧订阅并为当前地址建立新订阅。
// 协调器尚未运行时推迟到 Run 开始时建立。调用方必须持有 mu。
func (c *Coordinator) resubscribeLocked() {
	if c.sub != nil {
		c.sub.Close()
		c.sub = nil
	}
	if c.runCtx == nil || c.address == "" {
		return
	}

	sub, err := c.store.Subscribe(c.runCtx, c.address)
	if err != nil {
		// 订阅失败不致命，轮询仍在工作
		c.log.Warn("failed to subscribe for new mail",
			zap.String("address", c.address),
			zap.Error(err))
		return
	}
	c.sub = sub
	go c.forward(sub, c.epoch)
}

// forward 把订阅事件打上建立时的纪元标记后送入主循环。
func (c *Coordinator) forward(sub backend.Subscription, epoch uint64) {
	for message := range sub.Events() {
		select {
		case c.events <- pushEvent{epoch: epoch, message: message}:
		default:
			// 主循环忙，丢弃；轮询会兜底
		}
	}
}

// handlePush 处理一条推送事件：刷新邮件并提示新邮件来信人。
func (c *Coordinator) handlePush(ctx context.Context, ev pushEvent) {
	c.mu.Lock()
	stale := ev.epoch != c.epoch
	c.mu.Unlock()
	if stale {
		return
	}
	if !c.limiter.Allow() {
		// 推送风暴限速，漏掉的由轮询补齐
		return
	}

	c.RefreshMessages(ctx)
	c.sink.Notify(notify.Info("收到新邮件", "来自: "+ev.message.FromEmail))
}

// randomLocalPartLocked 生成均匀随机的小写字母数字本地部分。
// 调用方必须持有 mu。
func (c *Coordinator) randomLocalPartLocked() string {
	b := make([]byte, c.opts.LocalPartLength)
	for i := range b {
		b[i] = localPartAlphabet[c.random.Intn(len(localPartAlphabet))]
	}
	return string(b)
}

// shutdown 关闭订阅并停止接收事件。
func (c *Coordinator) shutdown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sub != nil {
		c.sub.Close()
		c.sub = nil
	}
	c.runCtx = nil
}
