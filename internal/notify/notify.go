// Package notify 定义用户可见提示（toast）的投递契约。
//
// 提示是即发即忘的：业务逻辑不消费投递结果，投递失败只记日志。
package notify

import (
	"go.uber.org/zap"

	"tempmail/webclient/internal/pool"
)

// Severity 提示级别
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
	SeverityError   Severity = "error"
)

// Notification 一条用户可见提示。
type Notification struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Severity    Severity `json:"severity"`
}

// Sink 提示投递目标。
type Sink interface {
	// Notify 投递一条提示，即发即忘。
	Notify(n Notification)
}

// Success 构造成功提示。
func Success(title, description string) Notification {
	return Notification{Title: title, Description: description, Severity: SeveritySuccess}
}

// Info 构造普通提示。
func Info(title, description string) Notification {
	return Notification{Title: title, Description: description, Severity: SeverityInfo}
}

// Error 构造错误提示。
func Error(title, description string) Notification {
	return Notification{Title: title, Description: description, Severity: SeverityError}
}

// logSink 把提示写入结构化日志，开发环境和测试使用。
type logSink struct {
	log *zap.Logger
}

// NewLogSink 创建日志投递目标。
func NewLogSink(log *zap.Logger) Sink {
	if log == nil {
		log = zap.NewNop()
	}
	return &logSink{log: log}
}

func (s *logSink) Notify(n Notification) {
	fields := []zap.Field{
		zap.String("title", n.Title),
		zap.String("description", n.Description),
	}
	switch n.Severity {
	case SeverityError:
		s.log.Warn("notification", fields...)
	default:
		s.log.Info("notification", fields...)
	}
}

// fanout 把提示转发到多个目标，投递在协程池上执行，
// 保证调用方永不阻塞。
type fanout struct {
	sinks   []Sink
	workers *pool.WorkerPool
}

// NewFanout 创建多路投递目标。
func NewFanout(workers *pool.WorkerPool, sinks ...Sink) Sink {
	return &fanout{sinks: sinks, workers: workers}
}

func (f *fanout) Notify(n Notification) {
	for _, sink := range f.sinks {
		s := sink
		if f.workers == nil {
			s.Notify(n)
			continue
		}
		if !f.workers.TrySubmit(func() { s.Notify(n) }) {
			// 队列满时直接丢弃，提示不值得阻塞业务路径
			continue
		}
	}
}

// Nop 返回丢弃一切提示的目标。
func Nop() Sink {
	return nopSink{}
}

type nopSink struct{}

func (nopSink) Notify(Notification) {}
