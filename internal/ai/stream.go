package ai

import (
	"context"
	"io"
)

// result 流内部的单个传递单元
// err 非空表示流异常终止，之后不会再有片段
type result struct {
	text string
	err  error
}

// Stream 一个惰性的、有限的、不可重启的片段序列
// 生产者 goroutine 往通道里送片段，消费者通过 Recv 逐个取出
type Stream struct {
	ch chan result
}

func newStream() *Stream {
	return &Stream{
		// 小缓冲，避免生产者在消费者处理期间完全阻塞
		ch: make(chan result, 8),
	}
}

// Recv 取出下一个片段
// 返回:
//   - string: 片段文本
//   - error: 流正常结束返回 io.EOF；上游失败返回包装了 ErrUpstream 的错误
//
// 返回非 nil 错误后，流已终止，继续调用仍返回同一类结果
func (s *Stream) Recv() (string, error) {
	r, ok := <-s.ch
	if !ok {
		return "", io.EOF
	}
	if r.err != nil {
		return "", r.err
	}
	return r.text, nil
}

// emit 发出一个片段
// 消费者已放弃（ctx 取消）时返回 ctx 的错误，生产者应停止
func (s *Stream) emit(ctx context.Context, text string) error {
	select {
	case s.ch <- result{text: text}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// fail 以错误终止流
// 消费者已放弃时直接返回，不阻塞生产者
func (s *Stream) fail(ctx context.Context, err error) {
	select {
	case s.ch <- result{err: err}:
	case <-ctx.Done():
	}
}

// close 关闭流，之后 Recv 返回 io.EOF
func (s *Stream) close() {
	close(s.ch)
}
