package domain

// EventType identifies a stream event emitted while a document job runs.
type EventType string

const (
	// EventStart is emitted once, after the PDF opened successfully.
	// Payload: total page count (int).
	EventStart EventType = "start"
	// EventPageProcessing is emitted before a page's inference call.
	EventPageProcessing EventType = "page_processing"
	// EventPageComplete carries a finished PageResult plus progress.
	EventPageComplete EventType = "page_complete"
	// EventError reports a fatal, job-level failure. Payload: string.
	EventError EventType = "error"
	// EventComplete terminates a successful run. Payload: CompletePayload.
	EventComplete EventType = "complete"
)

// StreamEvent is one message on a document job's event channel.
type StreamEvent struct {
	Type     EventType
	Page     int
	Progress *Progress
	Payload  any
}

// CompletePayload is the terminal payload of a successful run: the
// full result list in strict ascending page order.
type CompletePayload struct {
	Pages []PageResult
}
