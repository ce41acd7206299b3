package domain

import "time"

// EventType enumerates the durable event log's event_type column. The core
// only ever emits DataCollectionCompleted (spec §3.2); the remaining values
// are reserved, carried over from the original schema's enum. The column
// here is a VARCHAR, so any of these values can be stored without a
// migration.
type EventType string

const (
	EventDataCollectionCompleted   EventType = "data_collection_completed"
	EventTechnicalAnalysisComplete EventType = "technical_analysis_completed"
	EventScenarioCreated           EventType = "scenario_created"
	EventScenarioTriggered         EventType = "scenario_triggered"
	EventScenarioEntered           EventType = "scenario_entered"
	EventScenarioExited            EventType = "scenario_exited"
	EventScenarioCancelled         EventType = "scenario_cancelled"
	EventErrorOccurred             EventType = "error_occurred"
)

// Event is a row in the durable events table. It is immutable except for the
// Processed/ProcessedAt/ErrorMessage/RetryCount fields (spec §3.2).
type Event struct {
	ID           int64      `db:"id" json:"id"`
	EventType    EventType  `db:"event_type" json:"event_type"`
	Symbol       string     `db:"symbol" json:"symbol"`
	EventData    []byte     `db:"event_data" json:"event_data"`
	Processed    bool       `db:"processed" json:"processed"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	ProcessedAt  *time.Time `db:"processed_at" json:"processed_at,omitempty"`
	ErrorMessage *string    `db:"error_message" json:"error_message,omitempty"`
	RetryCount   int        `db:"retry_count" json:"retry_count"`
}

// DataCollectionPayload is the event_data shape for EventDataCollectionCompleted
// (spec §6.5), with the daemon_type tag carried over from the original collector.
type DataCollectionPayload struct {
	Symbol           string                         `json:"symbol"`
	Timeframes       map[string]TimeframeCollection `json:"timeframes"`
	TotalNewRecords  int                            `json:"total_new_records"`
	Timestamp        time.Time                      `json:"timestamp"`
	DaemonType       string                          `json:"daemon_type"`
}

// TimeframeCollection is one entry of DataCollectionPayload.Timeframes.
type TimeframeCollection struct {
	NewRecords      int       `json:"new_records"`
	LatestTimestamp time.Time `json:"latest_timestamp"`
}
