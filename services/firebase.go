package services

import (
	"context"
	"errors"
	"fmt"
	"os"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"callbridge/models"
)

// FirestoreClient wraps the firebase client used to archive completed
// call records.
type FirestoreClient struct {
	client *firestore.Client
}

// InitFirestore initializes a Firestore client. Credentials come from
// FIREBASE_CREDENTIALS_JSON, FIREBASE_CREDENTIALS_FILE, or application
// default credentials, in that order.
func InitFirestore(ctx context.Context) (*FirestoreClient, error) {
	var app *firebase.App
	var err error

	if credJSON := os.Getenv("FIREBASE_CREDENTIALS_JSON"); credJSON != "" {
		app, err = firebase.NewApp(ctx, nil, option.WithCredentialsJSON([]byte(credJSON)))
	} else if credFile := os.Getenv("FIREBASE_CREDENTIALS_FILE"); credFile != "" {
		app, err = firebase.NewApp(ctx, nil, option.WithCredentialsFile(credFile))
	} else {
		// Try application default credentials.
		app, err = firebase.NewApp(ctx, nil)
	}
	if err != nil {
		return nil, err
	}

	client, err := app.Firestore(ctx)
	if err != nil {
		return nil, err
	}
	return &FirestoreClient{client: client}, nil
}

func callsCollection() string {
	if name := os.Getenv("FIRESTORE_CALLS_COLLECTION"); name != "" {
		return name
	}
	return "calls"
}

// SaveCallTranscript archives a completed call record, keyed by call ID.
func (fc *FirestoreClient) SaveCallTranscript(ctx context.Context, record models.CallTranscript) (string, error) {
	if record.CallID == "" {
		return "", errors.New("call ID is required")
	}
	ref := fc.client.Collection(callsCollection()).Doc(record.CallID)
	if _, err := ref.Set(ctx, record); err != nil {
		return "", fmt.Errorf("failed to save call transcript: %w", err)
	}
	return record.CallID, nil
}

// GetCallTranscript retrieves an archived call record by its call ID.
func (fc *FirestoreClient) GetCallTranscript(ctx context.Context, callID string) (*models.CallTranscript, error) {
	if callID == "" {
		return nil, errors.New("call ID is required")
	}
	doc, err := fc.client.Collection(callsCollection()).Doc(callID).Get(ctx)
	if err != nil {
		return nil, err
	}
	if !doc.Exists() {
		return nil, errors.New("call transcript not found")
	}
	var record models.CallTranscript
	if err := doc.DataTo(&record); err != nil {
		return nil, err
	}
	return &record, nil
}

// ListCallTranscripts retrieves the most recently ended calls.
func (fc *FirestoreClient) ListCallTranscripts(ctx context.Context, limit int) ([]*models.CallTranscript, error) {
	if limit <= 0 {
		limit = 50
	}
	iter := fc.client.Collection(callsCollection()).
		OrderBy("end_time", firestore.Desc).
		Limit(limit).
		Documents(ctx)
	defer iter.Stop()

	var records []*models.CallTranscript
	for {
		doc, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, err
		}
		var record models.CallTranscript
		if err := doc.DataTo(&record); err != nil {
			continue
		}
		records = append(records, &record)
	}
	return records, nil
}

// Close closes the Firestore client.
func (fc *FirestoreClient) Close() error {
	if fc.client != nil {
		return fc.client.Close()
	}
	return nil
}
