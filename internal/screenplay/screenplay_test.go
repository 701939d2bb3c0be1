package screenplay

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jwlin/voicetalk/internal/segment"
)

func TestCompileStyleMapping(t *testing.T) {
	tests := []struct {
		tag       string
		wantExpr  EmotionTag
		wantStyle TalkStyle
	}{
		{"happy", EmotionHappy, StyleHappy},
		{"angry", EmotionAngry, StyleAngry},
		{"sad", EmotionSad, StyleSad},
		{"relaxed", EmotionRelaxed, StyleTalk},
		{"neutral", EmotionNeutral, StyleTalk},
	}

	for _, tt := range tests {
		sp := Compile(segment.SentenceUnit{Text: "你好。", Tag: tt.tag}, EmotionNeutral)
		assert.Equal(t, tt.wantExpr, sp.Expression, "tag %s", tt.tag)
		assert.Equal(t, tt.wantStyle, sp.Talk.Style, "tag %s", tt.tag)
		assert.Equal(t, "你好。", sp.Talk.Message)
	}
}

func TestCompileStickyExpression(t *testing.T) {
	// No tag inherits the previous expression.
	sp := Compile(segment.SentenceUnit{Text: "接著說。"}, EmotionHappy)
	assert.Equal(t, EmotionHappy, sp.Expression)
	assert.Equal(t, StyleHappy, sp.Talk.Style)

	// Unknown tags also fall back.
	sp = Compile(segment.SentenceUnit{Text: "嗯。", Tag: "confused"}, EmotionSad)
	assert.Equal(t, EmotionSad, sp.Expression)

	// Empty previous expression defaults to neutral.
	sp = Compile(segment.SentenceUnit{Text: "開始。"}, "")
	assert.Equal(t, EmotionNeutral, sp.Expression)
	assert.Equal(t, StyleTalk, sp.Talk.Style)
}
