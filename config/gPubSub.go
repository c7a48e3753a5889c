package config

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"os"
	"sync"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/joho/godotenv"
	"google.golang.org/api/option"
)

// NotificationMessage is the payload published for every domain event.
type NotificationMessage struct {
	NotificationId int                    `json:"notification_id"`
	EventKind      string                 `json:"event_kind"`
	EntityType     string                 `json:"entity_type"`
	EntityIds      []int                  `json:"entity_ids"`
	Context        map[string]interface{} `json:"context,omitempty"`
	OccurredAt     time.Time              `json:"occurred_at"`
	CorrelationId  string                 `json:"correlation_id,omitempty"`
}

var (
	pubsubClient   *pubsub.Client
	pubsubClientMu sync.Mutex
)

func init() {
	// Load env from .env
	godotenv.Load()
}

func getPubSubProjectID() string {
	if v := os.Getenv("PUBSUB_PROJECT_ID"); v != "" {
		return v
	}
	// Cloud Run/Cloud Functions often set this.
	if v := os.Getenv("GOOGLE_CLOUD_PROJECT"); v != "" {
		return v
	}
	return ""
}

// PubSubConfigured reports whether a project and topic are configured for notifications.
func PubSubConfigured() bool {
	return getPubSubProjectID() != "" && os.Getenv("NOTIFICATION_TOPIC") != ""
}

func getPubSubClient(ctx context.Context) (*pubsub.Client, error) {
	pubsubClientMu.Lock()
	defer pubsubClientMu.Unlock()
	if pubsubClient != nil {
		return pubsubClient, nil
	}

	projectID := getPubSubProjectID()
	if projectID == "" {
		return nil, errors.New("PUBSUB_PROJECT_ID/GOOGLE_CLOUD_PROJECT not set")
	}

	var (
		c   *pubsub.Client
		err error
	)
	if credJSON := os.Getenv("PUBSUB_CREDENTIALS_JSON"); credJSON != "" {
		c, err = pubsub.NewClient(ctx, projectID, option.WithCredentialsJSON([]byte(credJSON)))
	} else {
		// Uses Application Default Credentials (Cloud Run service account or GOOGLE_APPLICATION_CREDENTIALS).
		c, err = pubsub.NewClient(ctx, projectID)
	}
	if err != nil {
		return nil, err
	}
	pubsubClient = c
	log.Printf("pubsub client ready (project_id=%s)", projectID)
	return pubsubClient, nil
}

// PubSubNotificationPublisher publishes notification messages to NOTIFICATION_TOPIC.
// The dispatcher owns retries, so a failed publish simply returns its error.
type PubSubNotificationPublisher struct {
	Topic string
}

func NewPubSubNotificationPublisher() *PubSubNotificationPublisher {
	return &PubSubNotificationPublisher{Topic: os.Getenv("NOTIFICATION_TOPIC")}
}

// Publish returns the Pub/Sub server-assigned message ID.
func (p *PubSubNotificationPublisher) Publish(ctx context.Context, msg NotificationMessage) (string, error) {
	if p.Topic == "" {
		return "", errors.New("NOTIFICATION_TOPIC is required")
	}
	client, err := getPubSubClient(ctx)
	if err != nil {
		return "", err
	}

	msgJSON, err := json.Marshal(msg)
	if err != nil {
		return "", err
	}
	t := client.Topic(p.Topic)
	result := t.Publish(ctx, &pubsub.Message{
		Data: msgJSON,
		Attributes: map[string]string{
			"event_kind":  msg.EventKind,
			"entity_type": msg.EntityType,
		},
	})

	id, err := result.Get(ctx)
	return id, err
}
