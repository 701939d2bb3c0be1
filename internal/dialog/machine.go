package dialog

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/jwlin/voicetalk/internal/bus"
)

// internal phases of the current slot
type phase int

const (
	phaseListening phase = iota // waiting for the model's paraphrase
	phaseObtained               // paraphrase matched, value stored
	phaseError                  // paraphrase did not match
)

// Callbacks connect the machine to the speech pipeline. All three are
// invoked outside the machine's lock.
type Callbacks struct {
	// Prompt speaks a question through the pipeline, starting a new turn.
	Prompt func(text string)
	// Listen reopens input capture for the user's next answer.
	Listen func()
	// Submit receives the collected fields once the readback is accepted.
	Submit func(fields map[string]string)
}

// Machine walks the intake slots in order. Transitions are two-phase: a
// paraphrase match marks the slot Obtained or Error, and the slot only
// advances once the whole turn's speech has finished. The split matters
// because a slot's confirmation sentence and the next prompt can both be
// queued as separate utterances.
type Machine struct {
	mu         sync.Mutex
	slot       Slot
	phase      phase
	done       bool
	fields     map[string]string
	updateFlow bool
	redoSlot   Slot

	introPrompt string
	cb          Callbacks
	eventBus    *bus.EventBus
	logger      zerolog.Logger
}

// NewMachine creates a Machine; Start begins the flow.
func NewMachine(logger zerolog.Logger, eventBus *bus.EventBus, introPrompt string, cb Callbacks) *Machine {
	if introPrompt == "" {
		introPrompt = "您好，請問怎麼稱呼您？"
	}
	return &Machine{
		slot:        SlotName,
		fields:      make(map[string]string),
		introPrompt: introPrompt,
		cb:          cb,
		eventBus:    eventBus,
		logger:      logger.With().Str("component", "dialog-machine").Logger(),
	}
}

// Start asks the opening question. The flow always begins at name; slot
// state is transient by design and never restored across sessions.
func (m *Machine) Start() {
	m.publishState()
	m.prompt(m.introPrompt)
}

// Current returns the observable state: the bare slot while listening,
// its Obtained/Error variant after judgment, or done.
func (m *Machine) Current() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.currentLocked()
}

// Fields returns a copy of the values collected so far.
func (m *Machine) Fields() map[string]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]string, len(m.fields))
	for k, v := range m.fields {
		out[k] = v
	}
	return out
}

// HandleParaphrase judges one finished model sentence against the current
// slot's rule. Only the first judgment per slot counts; later sentences in
// the same turn are commentary.
func (m *Machine) HandleParaphrase(text string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.done || m.phase != phaseListening {
		return
	}

	rule := rules[m.slot]

	switch m.slot {
	case SlotConfirm:
		captured, ok := rule.Extract(text)
		if ok && confirmAccepted(captured) {
			m.phase = phaseObtained
		} else if ok {
			// Template matched but the readback was rejected.
			m.phase = phaseError
		} else {
			return
		}

	case SlotUpdate:
		field, ok := rule.Extract(text)
		if !ok {
			return
		}
		if !validSlotKey(field) {
			m.phase = phaseError
			break
		}
		m.redoSlot = Slot(field)
		m.phase = phaseObtained

	default:
		value, ok := rule.Extract(text)
		if !ok {
			return
		}
		m.fields[string(m.slot)] = value
		m.phase = phaseObtained
	}

	m.logger.Info().
		Str("slot", string(m.slot)).
		Str("state", string(m.currentLocked())).
		Msg("Paraphrase judged")
	m.publishStateLocked()
}

// MarkError forces the current slot into its error variant. Used when a
// turn ends without any sentence matching the slot's template.
func (m *Machine) MarkError() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.done || m.phase != phaseListening {
		return
	}
	m.phase = phaseError
	m.publishStateLocked()
}

// HandleTurnComplete runs the advance step once all speech for the turn
// has finished playing.
func (m *Machine) HandleTurnComplete() {
	m.mu.Lock()
	if m.done {
		m.mu.Unlock()
		return
	}

	switch m.phase {
	case phaseListening:
		// The turn was a prompt with nothing to judge. Reopen capture.
		m.mu.Unlock()
		m.listen()
		return

	case phaseError:
		if m.slot == SlotConfirm {
			// Rejected readback enters the update sub-flow.
			m.updateFlow = true
			m.slot = SlotUpdate
			m.phase = phaseListening
			m.mu.Unlock()
			m.publishState()
			m.prompt(prompts[SlotUpdate])
			return
		}
		text := m.promptForLocked(m.slot)
		m.phase = phaseListening
		m.mu.Unlock()
		m.publishState()
		m.prompt(text)
		return

	case phaseObtained:
		m.advanceLocked() // unlocks
		return
	}
	m.mu.Unlock()
}

// advanceLocked moves to the next slot. Called with the lock held and
// releases it before invoking callbacks.
func (m *Machine) advanceLocked() {
	switch {
	case m.slot == SlotConfirm:
		fields := make(map[string]string, len(m.fields))
		for k, v := range m.fields {
			fields[k] = v
		}
		m.slot = SlotTopic
		m.phase = phaseListening
		m.mu.Unlock()

		m.logger.Info().Msg("Readback accepted, submitting profile")
		if m.cb.Submit != nil {
			m.cb.Submit(fields)
		}
		m.eventBus.Publish(bus.Event{
			Type: bus.EventTypeProfileSubmitted,
			Data: map[string]any{"fields": fields},
		})
		m.publishState()
		m.prompt(prompts[SlotTopic])

	case m.slot == SlotUpdate:
		redo := m.redoSlot
		m.slot = redo
		m.phase = phaseListening
		text := m.promptForLocked(redo)
		m.mu.Unlock()
		m.publishState()
		m.prompt(text)

	case m.slot == SlotTopic:
		m.done = true
		m.mu.Unlock()
		m.publishState()
		m.prompt("好的，感謝您的回答。")

	case m.updateFlow:
		// A redone field returns straight to the readback.
		m.updateFlow = false
		m.slot = SlotConfirm
		m.phase = phaseListening
		text := m.promptForLocked(SlotConfirm)
		m.mu.Unlock()
		m.publishState()
		m.prompt(text)

	default:
		next := nextSlot[m.slot]
		m.slot = next
		m.phase = phaseListening
		text := m.promptForLocked(next)
		m.mu.Unlock()
		m.publishState()
		m.prompt(text)
	}
}

func (m *Machine) currentLocked() State {
	if m.done {
		return StateDone
	}
	switch m.phase {
	case phaseObtained:
		return Obtained(m.slot)
	case phaseError:
		return Errored(m.slot)
	default:
		return State(m.slot)
	}
}

// promptForLocked returns the question asked when slot becomes current.
func (m *Machine) promptForLocked(slot Slot) string {
	switch slot {
	case SlotName:
		return m.introPrompt
	case SlotConfirm:
		sex := "女性"
		if m.fields["sex"] == "M" {
			sex = "男性"
		}
		return fmt.Sprintf(
			"謝謝您的回答，您的姓名是%s，性別是%s，年齡%s歲，身高%s公分，體重%s公斤，請確認以上資料是否正確",
			m.fields["name"], sex, m.fields["age"], m.fields["height"], m.fields["weight"])
	default:
		return prompts[slot]
	}
}

func (m *Machine) prompt(text string) {
	if m.cb.Prompt != nil {
		m.cb.Prompt(text)
	}
}

func (m *Machine) listen() {
	if m.cb.Listen != nil {
		m.cb.Listen()
	}
	m.eventBus.Publish(bus.Event{Type: bus.EventTypeListenRequested})
}

func (m *Machine) publishState() {
	m.mu.Lock()
	m.publishStateLocked()
	m.mu.Unlock()
}

func (m *Machine) publishStateLocked() {
	m.eventBus.Publish(bus.Event{
		Type: bus.EventTypeSlotChanged,
		Data: map[string]any{"state": string(m.currentLocked())},
	})
}

func validSlotKey(s string) bool {
	switch Slot(s) {
	case SlotName, SlotSex, SlotAge, SlotHeight, SlotWeight:
		return true
	}
	return false
}
