package repository

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/noah-isme/timeblock-api/internal/models"
)

// DefaultRootKey namespaces persisted session state.
const DefaultRootKey = "timeblocks"

// StateKey returns the root key under which the state of userID is stored.
func StateKey(rootKey, userID string) string {
	if rootKey == "" {
		rootKey = DefaultRootKey
	}
	return rootKey + ":" + userID
}

func encodeState(state models.SessionState) ([]byte, error) {
	payload, err := json.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("marshal session state: %w", err)
	}
	return payload, nil
}

func decodeState(payload []byte) (*models.SessionState, error) {
	if len(strings.TrimSpace(string(payload))) == 0 {
		return nil, errors.New("empty session state payload")
	}
	var state models.SessionState
	if err := json.Unmarshal(payload, &state); err != nil {
		return nil, fmt.Errorf("unmarshal session state: %w", err)
	}
	return &state, nil
}
