package mongo

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/hszk-dev/vidproxy/internal/domain/model"
)

// unreachableURI points at a port nothing listens on.
const unreachableURI = "mongodb://127.0.0.1:1/?connect=direct"

func TestOpen_DoesNotRequireReachableServer(t *testing.T) {
	ctx := context.Background()

	client, err := Open(ctx, unreachableURI, options.Client().SetServerSelectionTimeout(200*time.Millisecond))
	if err != nil {
		t.Fatalf("Open() unexpected error: %v", err)
	}
	t.Cleanup(func() { _ = client.Disconnect(context.Background()) })

	store := NewVideoStore(client, "video_db", "videos")
	err = store.Ping(ctx)
	if !errors.Is(err, model.ErrStorageUnavailable) {
		t.Errorf("Ping() error = %v, want ErrStorageUnavailable", err)
	}
}

func TestConnect_FailsWhenServerUnreachable(t *testing.T) {
	ctx := context.Background()

	_, err := Connect(ctx, unreachableURI, options.Client().SetServerSelectionTimeout(200*time.Millisecond))
	if err == nil {
		t.Fatal("Connect() expected error for unreachable server")
	}
}

func TestOpen_InvalidURI(t *testing.T) {
	if _, err := Open(context.Background(), "not-a-mongo-uri"); err == nil {
		t.Fatal("Open() expected error for invalid URI")
	}
}
