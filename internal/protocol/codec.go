// Package protocol normalizes raw inbound channel payloads into canonical
// messages and seals canonical messages for transport.
package protocol

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"moment-chat/internal/models"
	"moment-chat/internal/sealer"
)

// inboundPayload is the sender-supplied shape. The id may arrive as a string
// or a number; display fields are passed through.
type inboundPayload struct {
	ID           json.RawMessage `json:"id"`
	Text         string          `json:"text"`
	Media        string          `json:"media"`
	Time         *time.Time      `json:"time"`
	FromUsername string          `json:"fromUsername"`
	FromPhoto    string          `json:"fromPhoto"`
}

// SealedEnvelope is the transport wrapper: base64 ciphertext plus the UUID the
// one-time symmetric key derives from. The field spelling is the wire format.
type SealedEnvelope struct {
	EncryptData string `json:"encrypt_data"`
	PublickKey  string `json:"publick_key"`
}

// NormalizeDirect builds the canonical 1:1 message from a raw payload:
// client id or a transient fallback, empty-string defaults, client timestamp
// honored, soft-delete flag active.
func NormalizeDirect(raw []byte, from, to int) (models.DirectMessage, error) {
	p, err := parse(raw)
	if err != nil {
		return models.DirectMessage{}, err
	}
	return models.DirectMessage{
		ID:           clientID(p.ID),
		From:         from,
		To:           to,
		Text:         p.Text,
		Media:        p.Media,
		FromUsername: p.FromUsername,
		FromPhoto:    p.FromPhoto,
		IsDelete:     models.DeleteStateActive,
		Time:         stamp(p.Time),
	}, nil
}

// NormalizeGroup builds the canonical group message. Sender display info comes
// from the user directory rather than the payload, and the group name is
// stamped server-side.
func NormalizeGroup(raw []byte, from int, groupID, groupName, senderName, senderPhoto string) (models.GroupMessage, error) {
	p, err := parse(raw)
	if err != nil {
		return models.GroupMessage{}, err
	}
	return models.GroupMessage{
		ID:           clientID(p.ID),
		From:         from,
		To:           groupID,
		Text:         p.Text,
		Media:        p.Media,
		FromUsername: senderName,
		FromPhoto:    senderPhoto,
		GroupName:    groupName,
		IsDelete:     models.DeleteStateActive,
		Time:         stamp(p.Time),
	}, nil
}

// ShouldPersist reports whether a normalized payload is worth storing: either
// text or a media reference must be present. Everything else (typing signals
// and the like) is transient.
func ShouldPersist(text, media string) bool {
	return text != "" || media != ""
}

// Seal encrypts the JSON form of v with a fresh one-time key. Every call
// yields a new key; the same message sealed twice produces two different
// envelopes.
func Seal(v any) (SealedEnvelope, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return SealedEnvelope{}, fmt.Errorf("marshal for seal: %w", err)
	}

	keyID := uuid.NewString()
	key, err := sealer.KeyFromUUID(keyID)
	if err != nil {
		return SealedEnvelope{}, err
	}

	ciphertext, err := sealer.Encrypt(string(body), key)
	if err != nil {
		return SealedEnvelope{}, fmt.Errorf("seal: %w", err)
	}
	return SealedEnvelope{EncryptData: ciphertext, PublickKey: keyID}, nil
}

func parse(raw []byte) (inboundPayload, error) {
	var p inboundPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return inboundPayload{}, fmt.Errorf("malformed payload: %w", err)
	}
	return p, nil
}

// clientID keeps a sender-assigned id (string or number) and falls back to a
// transient microsecond id until the store assigns the real one.
func clientID(raw json.RawMessage) string {
	if len(raw) > 0 {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil && s != "" {
			return s
		}
		var n json.Number
		if err := json.Unmarshal(raw, &n); err == nil && n.String() != "" {
			return n.String()
		}
	}
	return fmt.Sprintf("%d", time.Now().UnixMicro())
}

func stamp(t *time.Time) time.Time {
	if t != nil && !t.IsZero() {
		return *t
	}
	return time.Now().UTC()
}
