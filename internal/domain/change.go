package domain

import (
	"encoding/json"
	"time"
)

// ChangeOp — вид изменения документа.
type ChangeOp string

const (
	ChangeSet    ChangeOp = "set"
	ChangeRemove ChangeOp = "remove"
)

// Change — событие изменения поддерева хранилища документов.
// Value = nil для ChangeRemove.
type Change struct {
	Path  string          `json:"path"`
	Op    ChangeOp        `json:"op"`
	Value json.RawMessage `json:"value,omitempty"`
	At    time.Time       `json:"at"`
}

// SyncReport — итог одного прогона фоновой синхронизации.
type SyncReport struct {
	Attempted int `json:"attempted"`
	Synced    int `json:"synced"`
	Failed    int `json:"failed"`
	Remaining int `json:"remaining"`
}
