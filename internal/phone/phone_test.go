package phone_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/popeskul/wa-dispatcher/internal/phone"
)

func TestValid(t *testing.T) {
	tests := []struct {
		input string
		valid bool
	}{
		{"+5511999999999", true},
		{"5511999999999", true},
		{"12", true},
		{"+0123456", false},
		{"1", false},
		{"+1234567890123456", false},
		{"55 11 99999-9999", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.valid, phone.Valid(tt.input))
		})
	}
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "5511999999999", phone.Normalize("+55 (11) 99999-9999"))
	assert.Equal(t, "5511999999999", phone.Normalize("5511999999999@s.whatsapp.net"))
	assert.Equal(t, "5511999999999", phone.Normalize("+5511999999999"))
	assert.Equal(t, "", phone.Normalize("  "))
}

func TestValidate(t *testing.T) {
	n, err := phone.Validate("+5511999999999")
	require.NoError(t, err)
	assert.Equal(t, "5511999999999", n)

	_, err = phone.Validate("abc")
	assert.ErrorIs(t, err, phone.ErrInvalidPhone)
}

func TestJID(t *testing.T) {
	jid := phone.JID("+5511999999999")
	assert.Equal(t, "5511999999999@s.whatsapp.net", jid.String())

	n, err := phone.FromJID(jid.String())
	require.NoError(t, err)
	assert.Equal(t, "5511999999999", n)

	_, err = phone.FromJID("status@broadcast")
	assert.ErrorIs(t, err, phone.ErrInvalidPhone)
}
