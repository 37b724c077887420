package protocol

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"moment-chat/internal/models"
	"moment-chat/internal/sealer"
)

func TestNormalizeDirectStringID(t *testing.T) {
	raw := []byte(`{"id":"abc123","text":"hello","fromUsername":"alice","fromPhoto":"a.png"}`)

	msg, err := NormalizeDirect(raw, 1, 2)
	require.NoError(t, err)

	assert.Equal(t, "abc123", msg.ID)
	assert.Equal(t, 1, msg.From)
	assert.Equal(t, 2, msg.To)
	assert.Equal(t, "hello", msg.Text)
	assert.Equal(t, "alice", msg.FromUsername)
	assert.Equal(t, models.DeleteStateActive, msg.IsDelete)
	assert.False(t, msg.Time.IsZero())
}

func TestNormalizeDirectNumericID(t *testing.T) {
	msg, err := NormalizeDirect([]byte(`{"id":42,"text":"x"}`), 1, 2)
	require.NoError(t, err)
	assert.Equal(t, "42", msg.ID)
}

func TestNormalizeDirectMissingIDGetsFallback(t *testing.T) {
	msg, err := NormalizeDirect([]byte(`{"text":"x"}`), 1, 2)
	require.NoError(t, err)
	assert.NotEmpty(t, msg.ID)
}

func TestNormalizeDirectHonorsClientTime(t *testing.T) {
	stamp := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	raw := []byte(`{"text":"x","time":"2024-03-01T10:00:00Z"}`)

	msg, err := NormalizeDirect(raw, 1, 2)
	require.NoError(t, err)
	assert.True(t, msg.Time.Equal(stamp))
}

func TestNormalizeDirectMalformed(t *testing.T) {
	_, err := NormalizeDirect([]byte(`{not json`), 1, 2)
	require.Error(t, err)
}

func TestNormalizeGroupStampsServerFields(t *testing.T) {
	raw := []byte(`{"text":"hey","fromUsername":"spoofed"}`)

	msg, err := NormalizeGroup(raw, 7, "group_1a2b3c4d", "team", "carol", "c.png")
	require.NoError(t, err)

	assert.Equal(t, 7, msg.From)
	assert.Equal(t, "group_1a2b3c4d", msg.To)
	assert.Equal(t, "team", msg.GroupName)
	// Display info comes from the directory, not the payload.
	assert.Equal(t, "carol", msg.FromUsername)
	assert.Equal(t, "c.png", msg.FromPhoto)
}

func TestShouldPersist(t *testing.T) {
	assert.True(t, ShouldPersist("hi", ""))
	assert.True(t, ShouldPersist("", "photo.png"))
	assert.True(t, ShouldPersist("hi", "photo.png"))
	assert.False(t, ShouldPersist("", ""))
}

func TestSealRoundTrip(t *testing.T) {
	msg := models.DirectMessage{ID: "m1", From: 1, To: 2, Text: "hello", Time: time.Now().UTC()}

	env, err := Seal(msg)
	require.NoError(t, err)
	require.NotEmpty(t, env.EncryptData)
	require.NotEmpty(t, env.PublickKey)

	key, err := sealer.KeyFromUUID(env.PublickKey)
	require.NoError(t, err)
	plain, err := sealer.Decrypt(env.EncryptData, key)
	require.NoError(t, err)

	var got models.DirectMessage
	require.NoError(t, json.Unmarshal([]byte(plain), &got))
	assert.Equal(t, msg.ID, got.ID)
	assert.Equal(t, msg.Text, got.Text)
}

func TestSealFreshKeyPerCall(t *testing.T) {
	msg := models.DirectMessage{ID: "m1", Text: "same"}

	a, err := Seal(msg)
	require.NoError(t, err)
	b, err := Seal(msg)
	require.NoError(t, err)

	assert.NotEqual(t, a.PublickKey, b.PublickKey)
	assert.NotEqual(t, a.EncryptData, b.EncryptData)
}

func TestSealedEnvelopeWireFieldNames(t *testing.T) {
	env, err := Seal(map[string]string{"k": "v"})
	require.NoError(t, err)

	body, err := json.Marshal(env)
	require.NoError(t, err)

	var fields map[string]string
	require.NoError(t, json.Unmarshal(body, &fields))
	assert.Contains(t, fields, "encrypt_data")
	assert.Contains(t, fields, "publick_key")
}
