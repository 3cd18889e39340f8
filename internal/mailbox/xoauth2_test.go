package mailbox

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestXOAuth2Start(t *testing.T) {
	client := NewXOAuth2Client("user@gmail.com", "ya29.token")

	mech, ir, err := client.Start()
	require.NoError(t, err)
	assert.Equal(t, "XOAUTH2", mech)
	assert.Equal(t, []byte("user=user@gmail.com\x01auth=Bearer ya29.token\x01\x01"), ir)
}

func TestXOAuth2NextRepliesEmpty(t *testing.T) {
	client := NewXOAuth2Client("user@gmail.com", "tok")

	resp, err := client.Next([]byte("eyJzdGF0dXMiOiI0MDEifQ=="))
	require.NoError(t, err)
	assert.Equal(t, []byte{}, resp)
}
