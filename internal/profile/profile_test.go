package profile

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromFields(t *testing.T) {
	p, err := FromFields(map[string]string{
		"name":   "林先生",
		"sex":    "M",
		"age":    "57",
		"height": "170",
		"weight": "65",
	})
	require.NoError(t, err)

	assert.NotEmpty(t, p.ID)
	assert.Equal(t, "林先生", p.Name)
	assert.Equal(t, "M", p.Sex)
	assert.Equal(t, 57, p.Age)
	assert.Equal(t, 170, p.Height)
	assert.Equal(t, 65, p.Weight)
	assert.False(t, p.CreatedAt.IsZero())
}

func TestFromFieldsRejectsNonNumeric(t *testing.T) {
	_, err := FromFields(map[string]string{
		"name": "小美",
		"sex":  "F",
		"age":  "五十七",
	})
	assert.Error(t, err)
}

func TestSummary(t *testing.T) {
	p := &Profile{Name: "小美", Sex: "F", Age: 30, Height: 160, Weight: 50}
	s := p.Summary()
	assert.Contains(t, s, "小美")
	assert.Contains(t, s, "女性")
	assert.Contains(t, s, "30歲")
	assert.Contains(t, s, "160公分")
	assert.Contains(t, s, "50公斤")

	p.Sex = "M"
	assert.Contains(t, p.Summary(), "男性")
}

func TestStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profiles.db")
	store, err := NewStore(zerolog.Nop(), path)
	require.NoError(t, err)
	defer store.Close()

	p, err := FromFields(map[string]string{
		"name": "林先生", "sex": "M", "age": "57", "height": "170", "weight": "65",
	})
	require.NoError(t, err)
	require.NoError(t, store.Save(context.Background(), p))

	got, err := store.List(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, p.ID, got[0].ID)
	assert.Equal(t, "林先生", got[0].Name)
	assert.Equal(t, 57, got[0].Age)
}
