// Package screenplay maps tagged sentence units to renderable talk units.
package screenplay

import (
	"github.com/jwlin/voicetalk/internal/segment"
)

// EmotionTag is an avatar expression carried on a sentence.
type EmotionTag string

const (
	EmotionNeutral EmotionTag = "neutral"
	EmotionHappy   EmotionTag = "happy"
	EmotionAngry   EmotionTag = "angry"
	EmotionSad     EmotionTag = "sad"
	EmotionRelaxed EmotionTag = "relaxed"
)

// TalkStyle selects the voice delivery style for synthesis.
type TalkStyle string

const (
	StyleTalk  TalkStyle = "talk"
	StyleHappy TalkStyle = "happy"
	StyleAngry TalkStyle = "angry"
	StyleSad   TalkStyle = "sad"
)

// Talk is the speakable half of a screenplay.
type Talk struct {
	Style   TalkStyle
	Message string
}

// Screenplay pairs an avatar expression with a talk unit. It is created per
// sentence and consumed immediately by the dispatcher.
type Screenplay struct {
	Expression EmotionTag
	Talk       Talk
}

var knownEmotions = map[EmotionTag]bool{
	EmotionNeutral: true,
	EmotionHappy:   true,
	EmotionAngry:   true,
	EmotionSad:     true,
	EmotionRelaxed: true,
}

// Compile builds a Screenplay for one sentence unit. A sentence without a
// recognized tag inherits prev, so the expression is sticky across sentences.
func Compile(unit segment.SentenceUnit, prev EmotionTag) Screenplay {
	if prev == "" {
		prev = EmotionNeutral
	}

	expression := prev
	if tag := EmotionTag(unit.Tag); knownEmotions[tag] {
		expression = tag
	}

	return Screenplay{
		Expression: expression,
		Talk: Talk{
			Style:   styleFor(expression),
			Message: unit.Text,
		},
	}
}

func styleFor(e EmotionTag) TalkStyle {
	switch e {
	case EmotionAngry:
		return StyleAngry
	case EmotionHappy:
		return StyleHappy
	case EmotionSad:
		return StyleSad
	default:
		return StyleTalk
	}
}
