package session

import (
	"encoding/json"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// Identity is the client-side copy of the authoritative identity record.
// It is a snapshot of the last successful resolution; the server may have
// promoted the role since, which the next refresh picks up.
type Identity struct {
	ID        string     `json:"id"`
	Name      string     `json:"name,omitempty"`
	Email     string     `json:"email,omitempty"`
	Avatar    string     `json:"avatar,omitempty"`
	Role      string     `json:"role,omitempty"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
}

// Encode serializes the identity for the persistent cache.
func (i *Identity) Encode() ([]byte, error) {
	data, err := json.Marshal(i)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to encode identity")
	}
	return data, nil
}

// DecodeIdentity deserializes a cached identity record. A corrupt cache
// entry is an error, not a valid empty identity.
func DecodeIdentity(data []byte) (*Identity, error) {
	if len(data) == 0 {
		return nil, goerrors.New("empty identity record", goerrors.CategoryBadInput).
			WithCode(goerrors.CodeBadRequest)
	}

	identity := &Identity{}
	if err := json.Unmarshal(data, identity); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to decode identity record").
			WithCode(goerrors.CodeBadRequest)
	}

	if identity.ID == "" {
		return nil, goerrors.New("identity record has no id", goerrors.CategoryBadInput).
			WithCode(goerrors.CodeBadRequest)
	}

	return identity, nil
}
