package brain

import (
	"encoding/json"
	"fmt"

	"biru/internal/services"
)

// EncodeSnapshot serializes a snapshot for the decision audit record.
func EncodeSnapshot(s Snapshot) (string, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("encode decision snapshot: %w", err)
	}
	return string(data), nil
}

// DecodeSnapshot parses a stored decision snapshot.
func DecodeSnapshot(payload string) (Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal([]byte(payload), &s); err != nil {
		return Snapshot{}, services.Wrap(services.ErrValidation, "brain", "decode snapshot",
			"malformed decision snapshot", err)
	}
	return s, nil
}

// Replay reruns the slot choice from a recorded snapshot and verifies it
// reproduces the slot that was chosen at decision time.
func Replay(inputsJSON, chosenSlot string) error {
	snapshot, err := DecodeSnapshot(inputsJSON)
	if err != nil {
		return err
	}
	_, slotKey, _, ok := ChooseSlot(snapshot)
	if !ok {
		return services.Wrap(services.ErrValidation, "brain", "replay",
			fmt.Sprintf("snapshot for clip %d yields no slot, decision chose %s", snapshot.ClipID, chosenSlot), nil)
	}
	if slotKey != chosenSlot {
		return services.Wrap(services.ErrValidation, "brain", "replay",
			fmt.Sprintf("snapshot for clip %d yields %s, decision chose %s", snapshot.ClipID, slotKey, chosenSlot), nil)
	}
	return nil
}
