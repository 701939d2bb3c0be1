// Package profile holds the collected user profile and its persistence.
package profile

import (
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Profile is one completed intake record.
type Profile struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Sex       string    `json:"sex"` // "M" or "F"
	Age       int       `json:"age"`
	Height    int       `json:"height"` // centimeters
	Weight    int       `json:"weight"` // kilograms
	Topic     string    `json:"topic,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// FromFields builds a Profile from collected slot values. Numeric fields
// arrive as digit strings captured from paraphrases.
func FromFields(fields map[string]string) (*Profile, error) {
	p := &Profile{
		ID:        uuid.New().String(),
		Name:      fields["name"],
		Sex:       fields["sex"],
		Topic:     fields["topic"],
		CreatedAt: time.Now(),
	}

	for _, f := range []struct {
		key  string
		dest *int
	}{
		{"age", &p.Age},
		{"height", &p.Height},
		{"weight", &p.Weight},
	} {
		raw, ok := fields[f.key]
		if !ok || raw == "" {
			continue
		}
		v, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", f.key, err)
		}
		*f.dest = v
	}
	return p, nil
}

// Summary renders the readback line used for confirmation.
func (p *Profile) Summary() string {
	sex := "女性"
	if p.Sex == "M" {
		sex = "男性"
	}
	return fmt.Sprintf("您的姓名是%s，性別是%s，年齡%d歲，身高%d公分，體重%d公斤",
		p.Name, sex, p.Age, p.Height, p.Weight)
}
