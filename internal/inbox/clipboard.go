package inbox

import "sync"

// Clipboard 剪贴板写入设施。
//
// 浏览器会话里由 WebSocket 指令驱动前端写入系统剪贴板，
// 测试和无前端场景用内存实现。
type Clipboard interface {
	WriteText(text string) error
}

// MemoryClipboard 进程内剪贴板，保存最近一次写入的文本。
type MemoryClipboard struct {
	mu   sync.Mutex
	text string
}

// NewMemoryClipboard 创建内存剪贴板。
func NewMemoryClipboard() *MemoryClipboard {
	return &MemoryClipboard{}
}

// WriteText 覆盖保存文本。
func (c *MemoryClipboard) WriteText(text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.text = text
	return nil
}

// Text 返回最近一次写入的文本。
func (c *MemoryClipboard) Text() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.text
}
