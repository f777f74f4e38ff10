package services

import (
	"context"
	"fmt"
	"time"

	"github.com/sohana-dev/nammai-web/internal/models"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

const sessionsCollection = "sessions"

// Mongo implements the document-store contract on a MongoDB collection.
// Store-assigned ids are ObjectID hex strings.
type Mongo struct {
	sessions *mongo.Collection
}

// NewMongo connects to the given URI and pings the server before returning.
func NewMongo(ctx context.Context, uri, database string) (Mongo, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return Mongo{}, fmt.Errorf("failed to connect to mongo: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		return Mongo{}, fmt.Errorf("failed to ping mongo: %w", err)
	}

	return Mongo{
		sessions: client.Database(database).Collection(sessionsCollection),
	}, nil
}

type sessionRecord struct {
	ID                 bson.ObjectID `bson:"_id,omitempty"`
	models.ChatSession `bson:",inline"`
}

// SessionsByOwner returns the owner's sessions ordered by creation time
// descending.
func (m Mongo) SessionsByOwner(ctx context.Context, ownerID string) ([]models.ChatSession, error) {
	opts := options.Find().SetSort(bson.M{"created_at": -1})
	cursor, err := m.sessions.Find(ctx, bson.M{"owner_id": ownerID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find sessions: %w", err)
	}
	defer cursor.Close(ctx)

	var records []sessionRecord
	if err := cursor.All(ctx, &records); err != nil {
		return nil, fmt.Errorf("failed to decode sessions: %w", err)
	}

	sessions := make([]models.ChatSession, 0, len(records))
	for _, rec := range records {
		sess := rec.ChatSession
		sess.ID = rec.ID.Hex()
		sessions = append(sessions, sess)
	}
	return sessions, nil
}

// InsertSession stores a new session record and returns the assigned
// ObjectID as a hex string.
func (m Mongo) InsertSession(ctx context.Context, sess models.ChatSession) (string, error) {
	rec := sessionRecord{ID: bson.NewObjectID(), ChatSession: sess}
	if _, err := m.sessions.InsertOne(ctx, rec); err != nil {
		return "", fmt.Errorf("failed to insert session: %w", err)
	}
	return rec.ID.Hex(), nil
}

// UpdateSession overwrites an existing session record.
func (m Mongo) UpdateSession(ctx context.Context, sess models.ChatSession) error {
	id, err := bson.ObjectIDFromHex(sess.ID)
	if err != nil {
		return fmt.Errorf("invalid session id %q: %w", sess.ID, err)
	}

	rec := sessionRecord{ID: id, ChatSession: sess}
	if _, err := m.sessions.ReplaceOne(ctx, bson.M{"_id": id}, rec); err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}
	return nil
}

// DeleteSession removes a session record.
func (m Mongo) DeleteSession(ctx context.Context, id string) error {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("invalid session id %q: %w", id, err)
	}
	if _, err := m.sessions.DeleteOne(ctx, bson.M{"_id": oid}); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}
