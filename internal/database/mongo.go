package database

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Collection names shared with the SQL table names.
const (
	usersCollection       = "users"
	chatHistoryCollection = "chat_history"
	fileMetadataColl      = "file_metadata"
	referralsCollection   = "referrals"
)

// mongoStore implements Store on a MongoDB database.
type mongoStore struct {
	client *mongo.Client
	db     *mongo.Database
	logger *slog.Logger
}

// NewMongoStore wraps a connected client. The caller applies migrations.
func NewMongoStore(client *mongo.Client, dbName string, logger *slog.Logger) Store {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &mongoStore{
		client: client,
		db:     client.Database(dbName),
		logger: logger.With("component", "store", "driver", "mongodb", "database", dbName),
	}
}

func (s *mongoStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

func (s *mongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

func (s *mongoStore) SaveAnalysisRecord(ctx context.Context, rec *AnalysisRecord) error {
	if err := validateRecord(rec); err != nil {
		return err
	}
	if _, err := s.db.Collection(fileMetadataColl).InsertOne(ctx, rec); err != nil {
		s.logger.ErrorContext(ctx, "Error saving analysis record", "chat_id", rec.ChatID, "file_name", rec.FileName, "error", err)
		return fmt.Errorf("failed to save analysis record (chat %d): %w", rec.ChatID, err)
	}
	s.logger.DebugContext(ctx, "Analysis record saved", "id", rec.ID, "chat_id", rec.ChatID)
	return nil
}

func (s *mongoStore) GetUser(ctx context.Context, chatID int64) (*User, error) {
	var user User
	err := s.db.Collection(usersCollection).FindOne(ctx, bson.M{"chat_id": chatID}).Decode(&user)
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		return nil, ErrNotFound
	case err != nil:
		s.logger.ErrorContext(ctx, "Error getting user", "chat_id", chatID, "error", err)
		return nil, fmt.Errorf("failed to get user for chat %d: %w", chatID, err)
	}
	return &user, nil
}

func (s *mongoStore) CreateUser(ctx context.Context, user *User) (bool, error) {
	if user == nil {
		return false, fmt.Errorf("cannot save nil user")
	}
	if user.ChatID == 0 {
		return false, fmt.Errorf("user must have a non-zero chat_id")
	}

	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	res, err := s.db.Collection(usersCollection).UpdateOne(ctx,
		bson.M{"chat_id": user.ChatID},
		bson.M{"$setOnInsert": user},
		options.Update().SetUpsert(true))
	if err != nil {
		s.logger.ErrorContext(ctx, "Error creating user", "chat_id", user.ChatID, "error", err)
		return false, fmt.Errorf("failed to create user (chat %d): %w", user.ChatID, err)
	}
	return res.UpsertedCount == 1, nil
}

func (s *mongoStore) UpdateUserPhone(ctx context.Context, chatID int64, phone string) error {
	res, err := s.db.Collection(usersCollection).UpdateOne(ctx,
		bson.M{"chat_id": chatID},
		bson.M{"$set": bson.M{"phone_number": phone, "updated_at": time.Now().UTC()}})
	if err != nil {
		s.logger.ErrorContext(ctx, "Error updating phone number", "chat_id", chatID, "error", err)
		return fmt.Errorf("failed to update phone for chat %d: %w", chatID, err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *mongoStore) SaveChatHistory(ctx context.Context, entry *ChatHistory) error {
	if entry == nil || entry.ID == "" {
		return fmt.Errorf("chat history must have an id")
	}
	if _, err := s.db.Collection(chatHistoryCollection).InsertOne(ctx, entry); err != nil {
		s.logger.ErrorContext(ctx, "Error saving chat history", "chat_id", entry.ChatID, "error", err)
		return fmt.Errorf("failed to save chat history (chat %d): %w", entry.ChatID, err)
	}
	return nil
}

func (s *mongoStore) UpsertReferral(ctx context.Context, ref *Referral) error {
	if ref == nil || ref.ReferralCode == "" {
		return fmt.Errorf("referral must have a code")
	}
	_, err := s.db.Collection(referralsCollection).UpdateOne(ctx,
		bson.M{"referral_code": ref.ReferralCode},
		bson.M{"$set": bson.M{"referrer": ref.Referrer, "timestamp": ref.Timestamp}},
		options.Update().SetUpsert(true))
	if err != nil {
		s.logger.ErrorContext(ctx, "Error saving referral", "referral_code", ref.ReferralCode, "error", err)
		return fmt.Errorf("failed to save referral %s: %w", ref.ReferralCode, err)
	}
	return nil
}

// RunMaintenance checks connectivity and logs per-collection document
// counts; MongoDB compacts on its own.
func (s *mongoStore) RunMaintenance(ctx context.Context) error {
	if err := s.Ping(ctx); err != nil {
		s.logger.ErrorContext(ctx, "Database maintenance ping failed", "error", err)
		return fmt.Errorf("mongodb ping: %w", err)
	}

	for _, name := range []string{usersCollection, chatHistoryCollection, fileMetadataColl, referralsCollection} {
		n, err := s.db.Collection(name).EstimatedDocumentCount(ctx)
		if err != nil {
			s.logger.WarnContext(ctx, "Could not count documents", "collection", name, "error", err)
			continue
		}
		s.logger.InfoContext(ctx, "Collection stats", "collection", name, "documents", n)
	}
	return nil
}
