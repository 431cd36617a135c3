package mongo

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/medicaldate/clinic-portal/internal/core/domain"
	"github.com/medicaldate/clinic-portal/internal/core/ports"
)

const collectionRefreshTokens = "mock_refresh_tokens"

// RefreshTokenRepository stores refresh tokens by SHA-256 hash. Raw tokens
// are never written.
type RefreshTokenRepository struct {
	col *mongo.Collection
}

func NewRefreshTokenRepository(db *mongo.Database) *RefreshTokenRepository {
	return &RefreshTokenRepository{col: db.Collection(collectionRefreshTokens)}
}

type refreshTokenDoc struct {
	Hash      string    `bson:"_id"`
	UserID    string    `bson:"user_id"`
	SessionID string    `bson:"session_id"`
	ExpiresAt time.Time `bson:"expires_at"`
	CreatedAt time.Time `bson:"created_at"`
}

func (r *RefreshTokenRepository) Create(ctx context.Context, token string, rec ports.RefreshTokenRecord) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	doc := refreshTokenDoc{
		Hash:      hashToken(token),
		UserID:    rec.UserID,
		SessionID: rec.SessionID,
		ExpiresAt: rec.ExpiresAt.UTC(),
		CreatedAt: time.Now().UTC(),
	}
	if _, err := r.col.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("insert refresh token: %w", err)
	}
	return nil
}

// Consume deletes and returns the unexpired token in one operation, so a
// token can be redeemed at most once.
func (r *RefreshTokenRepository) Consume(ctx context.Context, token string) (*ports.RefreshTokenRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	filter := bson.M{
		"_id":        hashToken(token),
		"expires_at": bson.M{"$gt": time.Now().UTC()},
	}
	var doc refreshTokenDoc
	if err := r.col.FindOneAndDelete(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrRefreshTokenInvalid
		}
		return nil, fmt.Errorf("consume refresh token: %w", err)
	}
	return &ports.RefreshTokenRecord{
		UserID:    doc.UserID,
		SessionID: doc.SessionID,
		ExpiresAt: doc.ExpiresAt,
	}, nil
}

func (r *RefreshTokenRepository) DeleteBySession(ctx context.Context, sessionID string) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if _, err := r.col.DeleteMany(ctx, bson.M{"session_id": sessionID}); err != nil {
		return fmt.Errorf("delete session tokens: %w", err)
	}
	return nil
}

// EnsureIndexes creates the session index and the TTL index that lets
// MongoDB reap expired tokens.
func (r *RefreshTokenRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "session_id", Value: 1}}},
		{
			Keys:    bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(0),
		},
	}
	_, err := r.col.Indexes().CreateMany(ctx, indexes)
	return err
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
