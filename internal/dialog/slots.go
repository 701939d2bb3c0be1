// Package dialog implements the slot-filling intake flow. The machine
// never parses raw user speech; it matches the model's own canonical
// paraphrase sentence for the current slot and extracts the value from it.
package dialog

import (
	"regexp"
	"strings"
)

// Slot is one field of the guided intake flow.
type Slot string

const (
	SlotName    Slot = "name"
	SlotSex     Slot = "sex"
	SlotAge     Slot = "age"
	SlotHeight  Slot = "height"
	SlotWeight  Slot = "weight"
	SlotConfirm Slot = "confirm"
	SlotUpdate  Slot = "update"
	SlotTopic   Slot = "topic"
)

// State is the machine's externally observable value: a bare slot while
// listening, or its Obtained/Error variant after a paraphrase was judged.
type State string

const StateDone State = "done"

// Obtained returns the success variant of a slot.
func Obtained(s Slot) State { return State(string(s) + "Obtained") }

// Errored returns the failure variant of a slot.
func Errored(s Slot) State { return State(string(s) + "Error") }

// Rule matches a slot's paraphrase template and normalizes the capture.
type Rule struct {
	Pattern   *regexp.Regexp
	Transform func(string) string
}

// Extract runs the rule against a paraphrase. ok is false when the
// sentence does not match the slot's template.
func (r Rule) Extract(text string) (value string, ok bool) {
	m := r.Pattern.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	value = m[1]
	if r.Transform != nil {
		value = r.Transform(value)
	}
	return value, true
}

// updateFields maps the natural-language field name captured in an update
// request to its canonical slot.
var updateFields = map[string]Slot{
	"姓名": SlotName,
	"性別": SlotSex,
	"年齡": SlotAge,
	"身高": SlotHeight,
	"體重": SlotWeight,
}

// rules is the paraphrase table, keyed by the slot being collected.
var rules = map[Slot]Rule{
	SlotName: {
		Pattern: regexp.MustCompile(`好的，我可以稱呼您是?(.+)。`),
	},
	SlotSex: {
		Pattern: regexp.MustCompile(`好的，您的性別是?(.+)。`),
		Transform: func(v string) string {
			if strings.Contains(v, "男") {
				return "M"
			}
			return "F"
		},
	},
	SlotAge: {
		Pattern: regexp.MustCompile(`好的，您今年(\d+)歲`),
	},
	SlotHeight: {
		Pattern: regexp.MustCompile(`好的，您的身高是?(\d+)公分`),
	},
	SlotWeight: {
		Pattern: regexp.MustCompile(`好的，您的體重是?(\d+)公斤`),
	},
	SlotConfirm: {
		Pattern: regexp.MustCompile(`好的，資料(.+)，`),
	},
	SlotUpdate: {
		Pattern: regexp.MustCompile(`好的，您想要修改(.+)資料為多少？`),
		Transform: func(v string) string {
			if slot, ok := updateFields[v]; ok {
				return string(slot)
			}
			return v
		},
	},
	SlotTopic: {
		Pattern: regexp.MustCompile(`好的，您的選擇是?(\d+)。`),
	},
}

// confirmAccepted applies the readback acceptance heuristic. This is a
// substring check, not negation parsing; a paraphrase containing both
// 正確 and 不正確 is treated as a rejection.
func confirmAccepted(captured string) bool {
	return strings.Contains(captured, "正確") && !strings.Contains(captured, "不正確")
}

// nextSlot is the forward collection order.
var nextSlot = map[Slot]Slot{
	SlotName:   SlotSex,
	SlotSex:    SlotAge,
	SlotAge:    SlotHeight,
	SlotHeight: SlotWeight,
	SlotWeight: SlotConfirm,
}

// prompts holds the question spoken when each slot becomes current. The
// confirm prompt is built dynamically from collected values.
var prompts = map[Slot]string{
	SlotSex:    "接下來請告訴我您的性別",
	SlotAge:    "請問您的年齡",
	SlotHeight: "請問您身高多少？",
	SlotWeight: "請問您的體重",
	SlotUpdate: "請問您要修改哪個欄位？",
	SlotTopic:  "接下來，請選擇您想討論的主題",
}
