package segment

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSegmenterTaggedSentences(t *testing.T) {
	s := New(0)

	res := s.Push("[happy]你好！今天天氣真好呢。")
	require.Len(t, res.Sentences, 2)

	assert.Equal(t, "你好！", res.Sentences[0].Text)
	assert.Equal(t, "happy", res.Sentences[0].Tag)
	assert.True(t, res.Sentences[0].Speakable)

	// The second sentence carries no new marker and inherits the tag.
	assert.Equal(t, "今天天氣真好呢。", res.Sentences[1].Text)
	assert.Equal(t, "happy", res.Sentences[1].Tag)
}

func TestSegmenterCompletenessUnderChunking(t *testing.T) {
	const input = "[happy]你好！今天天氣真好呢。還有一句沒講完"
	const want = "你好！今天天氣真好呢。還有一句沒講完"

	for _, chunkSize := range []int{1, 2, 3, 5, 100} {
		s := New(0)
		var got strings.Builder

		runes := []rune(input)
		for i := 0; i < len(runes); i += chunkSize {
			end := i + chunkSize
			if end > len(runes) {
				end = len(runes)
			}
			for _, u := range s.Push(string(runes[i:end])).Sentences {
				got.WriteString(u.Text)
			}
		}
		for _, u := range s.Flush().Sentences {
			got.WriteString(u.Text)
		}

		assert.Equal(t, want, got.String(), "chunk size %d", chunkSize)
	}
}

func TestSegmenterCommaBreak(t *testing.T) {
	s := New(20)

	long := strings.Repeat("啊", 20) + "、"
	res := s.Push(long)
	require.Len(t, res.Sentences, 1)
	assert.Equal(t, long, res.Sentences[0].Text)

	res = s.Push("後面還有。")
	require.Len(t, res.Sentences, 1)
	assert.Equal(t, "後面還有。", res.Sentences[0].Text)

	// Short runs do not break on a comma.
	s2 := New(20)
	res2 := s2.Push("短句、")
	assert.Empty(t, res2.Sentences)
	assert.Equal(t, "短句、", s2.Remainder())
}

func TestSegmenterUnspeakableUnits(t *testing.T) {
	s := New(0)
	res := s.Push("。。。")
	require.NotEmpty(t, res.Sentences)
	for _, u := range res.Sentences {
		assert.False(t, u.Speakable, "unit %q", u.Text)
	}
}

func TestSpeakable(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{"你好", true},
		{"OK。", true},
		{"。！？", false},
		{"「」（）", false},
		{"   ", false},
		{"", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Speakable(tt.text), "text %q", tt.text)
	}
}

func TestSegmenterCodeFence(t *testing.T) {
	s := New(0)

	var units []SentenceUnit
	var code []string
	collect := func(r Result) {
		units = append(units, r.Sentences...)
		code = append(code, r.Code...)
	}

	collect(s.Push("範例如下。```x := 1\n```收工。"))
	collect(s.Flush())

	var texts []string
	for _, u := range units {
		texts = append(texts, u.Text)
	}
	assert.Equal(t, []string{"範例如下。", "收工。"}, texts)
	require.Len(t, code, 1)
	assert.Equal(t, "x := 1\n", code[0])
}

func TestSegmenterFlushOpenFence(t *testing.T) {
	s := New(0)
	res := s.Push("看看這段。```y := 2")
	require.Len(t, res.Sentences, 1)

	flushed := s.Flush()
	require.Len(t, flushed.Code, 1)
	assert.Equal(t, "y := 2", flushed.Code[0])
}

func TestSegmenterFlushRemainder(t *testing.T) {
	s := New(0)
	assert.Empty(t, s.Push("沒有結尾標點的句子").Sentences)

	res := s.Flush()
	require.Len(t, res.Sentences, 1)
	assert.Equal(t, "沒有結尾標點的句子", res.Sentences[0].Text)

	// Flush is terminal for the buffered text; nothing emits twice.
	assert.Empty(t, s.Flush().Sentences)
}

func TestSegmenterTagSwitch(t *testing.T) {
	s := New(0)
	res := s.Push("[happy]太好了！[sad]真可惜。")
	require.Len(t, res.Sentences, 2)
	assert.Equal(t, "happy", res.Sentences[0].Tag)
	assert.Equal(t, "sad", res.Sentences[1].Tag)
}
