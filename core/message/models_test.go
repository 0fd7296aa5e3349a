package message

import (
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maraakiz/maraakiz/core"
)

func TestConversationID(t *testing.T) {
	assert.Equal(t, "3_12", ConversationID(3, 12))
	assert.Equal(t, "3_12", ConversationID(12, 3))
	assert.Equal(t, "7_7", ConversationID(7, 7))
}

func TestNewMessage_Validate(t *testing.T) {
	validate := validator.New()

	t.Run("tags are stripped", func(t *testing.T) {
		nm := NewMessage{DestinataireID: 2, Sujet: "<b>Cours</b>", Contenu: "<script>x()</script>Salam"}
		require.NoError(t, nm.Validate(validate, false))
		assert.Equal(t, "Cours", nm.Sujet)
		assert.Equal(t, "Salam", nm.Contenu)
	})

	t.Run("empty after sanitizing", func(t *testing.T) {
		nm := NewMessage{DestinataireID: 2, Contenu: "<p></p>"}
		err := nm.Validate(validate, false)
		require.Error(t, err)
		assert.IsType(t, &core.ValidationError{}, err)
	})

	t.Run("empty content with a file", func(t *testing.T) {
		nm := NewMessage{DestinataireID: 2}
		assert.NoError(t, nm.Validate(validate, true))
	})

	t.Run("missing recipient", func(t *testing.T) {
		nm := NewMessage{Contenu: "Salam"}
		assert.Error(t, nm.Validate(validate, false))
	})
}

func TestMessage_Involves(t *testing.T) {
	m := Message{ExpediteurID: 1, DestinataireID: 2}
	assert.True(t, m.Involves(1))
	assert.True(t, m.Involves(2))
	assert.False(t, m.Involves(3))
}
