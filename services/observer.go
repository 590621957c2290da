package services

import (
	"context"
	"log"
	"time"

	"callbridge/models"
)

// CallObserver fans session activity out to the monitor hub and, on
// session end, archives the call record in Firestore. Either collaborator
// may be nil; the other keeps working.
type CallObserver struct {
	Hub       *WebSocketHub
	Firestore *FirestoreClient
}

func (o *CallObserver) TranscriptUpdated(update models.TranscriptUpdate) {
	if o.Hub != nil {
		o.Hub.Broadcast(update.CallID, update)
	}
}

func (o *CallObserver) SessionEnded(record models.CallTranscript) {
	if o.Hub != nil {
		o.Hub.Broadcast(record.CallID, models.TranscriptUpdate{
			Type:        "call_ended",
			CallID:      record.CallID,
			Path:        record.Path,
			Transcript:  record.Transcript,
			StartTime:   record.StartTime,
			LastUpdated: record.EndTime,
			IsActive:    false,
		})
	}
	if o.Firestore == nil {
		return
	}
	// Archive off the session goroutine; teardown must not wait on I/O.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if _, err := o.Firestore.SaveCallTranscript(ctx, record); err != nil {
			log.Printf("Error saving call transcript for %s: %v", record.CallID, err)
			return
		}
		log.Printf("Call transcript stored for %s", record.CallID)
	}()
}
