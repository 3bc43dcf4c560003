package domain

import (
	"time"

	"github.com/google/uuid"
)

// Stream names
const (
	StreamDatasetReload   = "stream:permits:reload"
	StreamDatasetReloaded = "stream:permits:reloaded"
)

// DatasetReloadEvent - запрос на перезагрузку датасетов
type DatasetReloadEvent struct {
	EventID     uuid.UUID `json:"event_id"`
	Reason      string    `json:"reason,omitempty"`
	RequestedAt time.Time `json:"requested_at"`
}

// Validate проверяет обязательные поля события
func (e *DatasetReloadEvent) Validate() bool {
	return e.EventID != uuid.Nil
}

// DatasetReloadedEvent - результат перезагрузки
type DatasetReloadedEvent struct {
	EventID     uuid.UUID  `json:"event_id"`
	Report      LoadReport `json:"report"`
	CompletedAt time.Time  `json:"completed_at"`
	Error       string     `json:"error,omitempty"`
}

// LoadReport - итог загрузки трёх коллекций
type LoadReport struct {
	Version          string        `json:"version"`
	PermitsLoaded    bool          `json:"permits_loaded"`
	TypesLoaded      bool          `json:"types_loaded"`
	BoundariesLoaded bool          `json:"boundaries_loaded"`
	Records          int           `json:"records"`
	Types            int           `json:"types"`
	Boundaries       int           `json:"boundaries"`
	Errors           []string      `json:"errors,omitempty"`
	Duration         time.Duration `json:"duration_ns"`
}

// Ready - все три коллекции загружены
func (r LoadReport) Ready() bool {
	return r.PermitsLoaded && r.TypesLoaded && r.BoundariesLoaded
}

// StreamMessage - сообщение из Redis Stream
type StreamMessage struct {
	ID   string
	Data string
}
