package sse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// collector 收集解码器分发的事件
type collector struct {
	chunks []string
	errors []string
}

func newCollectingDecoder() (*Decoder, *collector) {
	c := &collector{}
	d := NewDecoder(
		func(chunk string) { c.chunks = append(c.chunks, chunk) },
		func(message string) { c.errors = append(c.errors, message) },
	)
	return d, c
}

func TestDecoder_SingleEvent(t *testing.T) {
	d, c := newCollectingDecoder()

	d.Feed([]byte("data: {\"chunk\":\"Hello\"}\n\n"))

	require.Equal(t, []string{"Hello"}, c.chunks)
	assert.Empty(t, c.errors)
	assert.False(t, d.Done())
}

func TestDecoder_MultipleEventsInOneRead(t *testing.T) {
	d, c := newCollectingDecoder()

	// 一次读取携带多个事件
	d.Feed([]byte("data: {\"chunk\":\"He\"}\n\ndata: {\"chunk\":\"llo\"}\n\ndata: {\"done\":true}\n\n"))

	require.Equal(t, []string{"He", "llo"}, c.chunks)
	assert.True(t, d.Done())
}

func TestDecoder_EventSplitAcrossReads(t *testing.T) {
	d, c := newCollectingDecoder()

	// 事件在任意位置被网络读取边界切断
	d.Feed([]byte("data: {\"chu"))
	assert.Empty(t, c.chunks)

	d.Feed([]byte("nk\":\"Hello\"}\n"))
	assert.Empty(t, c.chunks)

	d.Feed([]byte("\n"))
	require.Equal(t, []string{"Hello"}, c.chunks)
}

func TestDecoder_ByteByByte(t *testing.T) {
	d, c := newCollectingDecoder()

	raw := "data: {\"chunk\":\"He\"}\n\ndata: {\"chunk\":\"llo\"}\n\ndata: {\"done\":true}\n\n"
	for i := 0; i < len(raw); i++ {
		d.Feed([]byte{raw[i]})
	}

	require.Equal(t, []string{"He", "llo"}, c.chunks)
	assert.True(t, d.Done())
}

// 同样的字节流不管怎样切分，分发结果都一致，不丢不重
func TestDecoder_ArbitrarySplitsEquivalent(t *testing.T) {
	raw := "data: {\"chunk\":\"He\"}\n\ndata: {\"chunk\":\"llo\"}\n\ndata: {\"done\":true}\n\n"

	for split := 1; split < len(raw); split++ {
		d, c := newCollectingDecoder()
		d.Feed([]byte(raw[:split]))
		d.Feed([]byte(raw[split:]))

		require.Equal(t, []string{"He", "llo"}, c.chunks, "split at %d", split)
		require.True(t, d.Done(), "split at %d", split)
	}
}

func TestDecoder_ErrorEvent(t *testing.T) {
	d, c := newCollectingDecoder()

	d.Feed([]byte("data: {\"chunk\":\"partial\"}\n\ndata: {\"error\":\"upstream failed\"}\n\n"))

	assert.Equal(t, []string{"partial"}, c.chunks)
	require.Equal(t, []string{"upstream failed"}, c.errors)
}

func TestDecoder_IgnoresAfterDone(t *testing.T) {
	d, c := newCollectingDecoder()

	d.Feed([]byte("data: {\"done\":true}\n\n"))
	require.True(t, d.Done())

	// done 之后的数据被丢弃
	d.Feed([]byte("data: {\"chunk\":\"late\"}\n\n"))
	assert.Empty(t, c.chunks)
}

func TestDecoder_SkipsMalformedLines(t *testing.T) {
	d, c := newCollectingDecoder()

	d.Feed([]byte("data: not-json\n\ndata: {\"chunk\":\"ok\"}\n\n"))

	require.Equal(t, []string{"ok"}, c.chunks)
}

func TestEncode_RoundTrip(t *testing.T) {
	d, c := newCollectingDecoder()

	d.Feed(Encode(ChunkEvent("Hello")))
	d.Feed(Encode(ChunkEvent("世界")))
	d.Feed(Encode(DoneEvent()))

	require.Equal(t, []string{"Hello", "世界"}, c.chunks)
	assert.True(t, d.Done())
}

func TestEncode_ErrorRoundTrip(t *testing.T) {
	d, c := newCollectingDecoder()

	d.Feed(Encode(ErrorEvent("boom")))

	require.Equal(t, []string{"boom"}, c.errors)
	assert.False(t, d.Done())
}
