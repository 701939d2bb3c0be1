// Package segment turns an accumulating stream of model text into speakable
// sentence units. It tolerates arbitrary chunk boundaries, strips and carries
// leading emotion tags, and routes fenced code blocks out of the spoken path.
package segment

import (
	"fmt"
	"regexp"
	"strings"
)

// DefaultCommaBreakRunes is the minimum run length before a comma-class
// delimiter is accepted as a sentence boundary. Ideographic text often runs
// long without terminal punctuation; a pure-punctuation heuristic alone
// under-segments it.
const DefaultCommaBreakRunes = 20

var tagPattern = regexp.MustCompile(`^\[(.*?)\]`)

// unspeakablePattern matches runs that are only whitespace, brackets, quotes
// or punctuation in either ASCII or CJK form. Such runs must not reach the
// synthesis dispatcher.
var unspeakablePattern = regexp.MustCompile(`^[\s　\[\(\{「［（【『〈《〔｛«‹〘〚〛〙›»〕》〉』】）］」\}\)\]'"‘’“”・、。,.!?！？:：;；\-_=+~～*＊@＠#＃$＄%％^＾&＆|｜\\＼/／` + "`" + `｀]+$`)

// SentenceUnit is one speakable unit extracted from the stream.
type SentenceUnit struct {
	Text      string
	Tag       string // emotion tag carried from the last [tag] marker, "" if none seen
	Speakable bool   // false for whitespace/punctuation-only units
}

// Result holds the units emitted by one Push or Flush call.
type Result struct {
	Sentences []SentenceUnit
	Code      []string // completed code blocks, never spoken
}

// Segmenter accumulates streamed text and emits complete sentences.
// It is not safe for concurrent use; the pipeline owns one per stream.
type Segmenter struct {
	boundary *regexp.Regexp
	buf      string
	tag      string
	inCode   bool
	codeBuf  strings.Builder
}

// New creates a Segmenter with the given comma-break run length.
func New(commaBreakRunes int) *Segmenter {
	if commaBreakRunes <= 0 {
		commaBreakRunes = DefaultCommaBreakRunes
	}
	return &Segmenter{
		boundary: regexp.MustCompile(fmt.Sprintf(`^(.+?[。．.!?！？\n]|.{%d,}[、,])`, commaBreakRunes)),
	}
}

// Push appends a stream chunk and returns any sentences completed by it.
func (s *Segmenter) Push(chunk string) Result {
	s.buf += chunk
	var res Result
	s.drain(&res)
	return res
}

// Flush force-emits whatever remains at end of stream: the trailing partial
// sentence and, if a code fence was left open, the accumulated code block.
func (s *Segmenter) Flush() Result {
	var res Result
	s.drain(&res)

	s.stripTag()
	if s.buf != "" {
		s.emit(s.buf, &res)
		s.buf = ""
	}
	if s.inCode {
		if code := s.codeBuf.String(); code != "" {
			res.Code = append(res.Code, code)
		}
		s.codeBuf.Reset()
		s.inCode = false
	}
	return res
}

// Remainder returns the unemitted trailing buffer.
func (s *Segmenter) Remainder() string {
	return s.buf
}

// Tag returns the currently carried emotion tag.
func (s *Segmenter) Tag() string {
	return s.tag
}

func (s *Segmenter) drain(res *Result) {
	for {
		s.stripTag()

		m := s.boundary.FindString(s.buf)
		if m == "" {
			return
		}
		s.buf = strings.TrimLeft(s.buf[len(m):], " \t")
		s.emit(m, res)
	}
}

// stripTag consumes a leading [tag] marker and carries it forward for all
// sentences emitted until a new marker appears.
func (s *Segmenter) stripTag() {
	if m := tagPattern.FindStringSubmatch(s.buf); m != nil {
		s.tag = m[1]
		s.buf = s.buf[len(m[0]):]
	}
}

func (s *Segmenter) emit(sentence string, res *Result) {
	hasFence := strings.Contains(sentence, "```")

	if s.inCode && !hasFence {
		s.codeBuf.WriteString(sentence)
		return
	}

	if hasFence {
		parts := strings.SplitN(sentence, "```", 2)
		if s.inCode {
			// Closing fence: everything before it belongs to the block.
			s.codeBuf.WriteString(parts[0])
			res.Code = append(res.Code, s.codeBuf.String())
			s.codeBuf.Reset()
			s.inCode = false
			sentence = strings.ReplaceAll(parts[1], "```", "")
		} else {
			// Opening fence: speak the lead-in, start accumulating code.
			s.inCode = true
			s.codeBuf.WriteString(parts[1])
			sentence = parts[0]
		}
	}

	if sentence == "" {
		return
	}

	res.Sentences = append(res.Sentences, SentenceUnit{
		Text:      sentence,
		Tag:       s.tag,
		Speakable: Speakable(sentence),
	})
}

// Speakable reports whether text contains anything worth synthesizing.
func Speakable(text string) bool {
	if text == "" {
		return false
	}
	return !unspeakablePattern.MatchString(text)
}
