// Package typeconfig encodes and decodes the per-type configuration
// blobs attached to a game. Blobs are schemaless JSON objects; each
// game type owns its own blob and writes to one type never touch the
// others.
package typeconfig

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"gorm.io/datatypes"
)

var (
	ErrNotAnObject      = errors.New("config blob must be a JSON object")
	ErrInvalidGameType  = errors.New("invalid game type")
	ErrBlobTooLarge     = errors.New("config blob exceeds size limit")
	ErrMalformedPayload = errors.New("malformed config payload")
)

// MaxBlobBytes bounds a single serialized blob. Mirrors the storage
// item limit the data model was sized against.
const MaxBlobBytes = 256 << 10

// Blob is one game type's configuration object.
type Blob map[string]any

// NormalizeGameType canonicalizes a game type key. Types are
// case-insensitive on input and stored upper-case.
func NormalizeGameType(gameType string) (string, error) {
	trimmed := strings.ToUpper(strings.TrimSpace(gameType))
	if trimmed == "" {
		return "", ErrInvalidGameType
	}
	for _, r := range trimmed {
		if (r < 'A' || r > 'Z') && (r < '0' || r > '9') && r != '_' {
			return "", fmt.Errorf("%w: %q", ErrInvalidGameType, gameType)
		}
	}
	return trimmed, nil
}

// Decode parses a stored column value into a Blob. A NULL or empty
// column decodes to an empty object.
func Decode(raw datatypes.JSON) (Blob, error) {
	if len(raw) == 0 {
		return Blob{}, nil
	}
	var blob Blob
	if err := json.Unmarshal(raw, &blob); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotAnObject, err)
	}
	if blob == nil {
		blob = Blob{}
	}
	return blob, nil
}

// Encode serializes a Blob for storage, enforcing the size bound.
// A nil Blob encodes as an empty object.
func Encode(blob Blob) (datatypes.JSON, error) {
	if blob == nil {
		blob = Blob{}
	}
	raw, err := json.Marshal(blob)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if len(raw) > MaxBlobBytes {
		return nil, ErrBlobTooLarge
	}
	return datatypes.JSON(raw), nil
}

// ParseBody parses a request body into a Blob, rejecting anything that
// is not a JSON object.
func ParseBody(body []byte) (Blob, error) {
	if !json.Valid(body) {
		return nil, ErrMalformedPayload
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var value any
	if err := dec.Decode(&value); err != nil {
		return nil, ErrMalformedPayload
	}
	obj, ok := value.(map[string]any)
	if !ok {
		return nil, ErrNotAnObject
	}
	return Blob(obj), nil
}
