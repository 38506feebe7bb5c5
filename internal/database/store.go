package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
)

// ErrNotFound is returned when a lookup or update matches nothing.
var ErrNotFound = errors.New("record not found")

// Store defines the interface for database operations.
// Methods accept context.Context for cancellation and timeouts.
type Store interface {
	// Ping checks the database connection.
	Ping(ctx context.Context) error

	// SaveAnalysisRecord appends one file analysis outcome.
	SaveAnalysisRecord(ctx context.Context, rec *AnalysisRecord) error

	// GetUser returns the registered user for chatID or ErrNotFound.
	GetUser(ctx context.Context, chatID int64) (*User, error)

	// CreateUser registers user unless the chat is already registered.
	// It reports whether a new user was created.
	CreateUser(ctx context.Context, user *User) (bool, error)

	// UpdateUserPhone stores the phone number of a registered user.
	// Returns ErrNotFound if the user never ran /start.
	UpdateUserPhone(ctx context.Context, chatID int64, phone string) error

	// SaveChatHistory appends one relayed exchange.
	SaveChatHistory(ctx context.Context, entry *ChatHistory) error

	// UpsertReferral creates or refreshes a referral code.
	UpsertReferral(ctx context.Context, ref *Referral) error

	// RunMaintenance performs backend housekeeping.
	RunMaintenance(ctx context.Context) error

	// Close releases the underlying connection.
	Close() error
}

// sqlxStore provides an implementation of the Store interface using sqlx.
type sqlxStore struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewStore creates a new Store implementation backed by sqlx.
// It requires a connected sqlx.DB instance and a logger.
func NewStore(db *sqlx.DB, logger *slog.Logger) Store {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &sqlxStore{
		db:     db,
		logger: logger.With("component", "store", "driver", "sqlite"),
	}
}

func (s *sqlxStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *sqlxStore) Close() error {
	return s.db.Close()
}

func (s *sqlxStore) SaveAnalysisRecord(ctx context.Context, rec *AnalysisRecord) error {
	if err := validateRecord(rec); err != nil {
		return err
	}

	query := `
		INSERT INTO file_metadata (id, chat_id, file_name, description, created_at)
		VALUES (:id, :chat_id, :file_name, :description, :created_at);
	`
	if _, err := s.db.NamedExecContext(ctx, query, rec); err != nil {
		s.logger.ErrorContext(ctx, "Error saving analysis record", "chat_id", rec.ChatID, "file_name", rec.FileName, "error", err)
		return fmt.Errorf("failed to save analysis record (chat %d): %w", rec.ChatID, err)
	}

	s.logger.DebugContext(ctx, "Analysis record saved", "id", rec.ID, "chat_id", rec.ChatID)
	return nil
}

func (s *sqlxStore) GetUser(ctx context.Context, chatID int64) (*User, error) {
	if chatID == 0 {
		return nil, fmt.Errorf("chat_id cannot be zero")
	}

	var user User
	query := `SELECT chat_id, first_name, username, phone_number, created_at, updated_at
	          FROM users WHERE chat_id = ?`

	err := s.db.GetContext(ctx, &user, query, chatID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, ErrNotFound
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		s.logger.WarnContext(ctx, "Context timeout or cancellation while fetching user", "chat_id", chatID, "error", err)
		return nil, err
	case err != nil:
		s.logger.ErrorContext(ctx, "Error getting user", "chat_id", chatID, "error", err)
		return nil, fmt.Errorf("failed to get user for chat %d: %w", chatID, err)
	}
	return &user, nil
}

func (s *sqlxStore) CreateUser(ctx context.Context, user *User) (bool, error) {
	if user == nil {
		return false, fmt.Errorf("cannot save nil user")
	}
	if user.ChatID == 0 {
		return false, fmt.Errorf("user must have a non-zero chat_id")
	}

	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	query := `
		INSERT INTO users (chat_id, first_name, username, phone_number, created_at, updated_at)
		VALUES (:chat_id, :first_name, :username, :phone_number, :created_at, :updated_at)
		ON CONFLICT(chat_id) DO NOTHING;
	`
	result, err := s.db.NamedExecContext(ctx, query, user)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error creating user", "chat_id", user.ChatID, "error", err)
		return false, fmt.Errorf("failed to create user (chat %d): %w", user.ChatID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return affected == 1, nil
}

func (s *sqlxStore) UpdateUserPhone(ctx context.Context, chatID int64, phone string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE users SET phone_number = ?, updated_at = ? WHERE chat_id = ?`,
		phone, time.Now().UTC(), chatID)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error updating phone number", "chat_id", chatID, "error", err)
		return fmt.Errorf("failed to update phone for chat %d: %w", chatID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *sqlxStore) SaveChatHistory(ctx context.Context, entry *ChatHistory) error {
	if entry == nil {
		return fmt.Errorf("cannot save nil chat history")
	}
	if entry.ID == "" {
		return fmt.Errorf("chat history must have an id")
	}

	query := `
		INSERT INTO chat_history (id, chat_id, user_message, bot_response, timestamp)
		VALUES (:id, :chat_id, :user_message, :bot_response, :timestamp);
	`
	if _, err := s.db.NamedExecContext(ctx, query, entry); err != nil {
		s.logger.ErrorContext(ctx, "Error saving chat history", "chat_id", entry.ChatID, "error", err)
		return fmt.Errorf("failed to save chat history (chat %d): %w", entry.ChatID, err)
	}
	return nil
}

func (s *sqlxStore) UpsertReferral(ctx context.Context, ref *Referral) error {
	if ref == nil || ref.ReferralCode == "" {
		return fmt.Errorf("referral must have a code")
	}

	query := `
		INSERT INTO referrals (referral_code, referrer, timestamp)
		VALUES (:referral_code, :referrer, :timestamp)
		ON CONFLICT(referral_code) DO UPDATE SET
			referrer = excluded.referrer,
			timestamp = excluded.timestamp;
	`
	if _, err := s.db.NamedExecContext(ctx, query, ref); err != nil {
		s.logger.ErrorContext(ctx, "Error saving referral", "referral_code", ref.ReferralCode, "error", err)
		return fmt.Errorf("failed to save referral %s: %w", ref.ReferralCode, err)
	}
	return nil
}

// RunMaintenance runs VACUUM and ANALYZE. VACUUM must run outside a
// transaction in SQLite.
func (s *sqlxStore) RunMaintenance(ctx context.Context) error {
	if ctx.Err() != nil {
		s.logger.WarnContext(ctx, "Context cancelled or timed out before starting maintenance", "error", ctx.Err())
		return ctx.Err()
	}

	s.logger.InfoContext(ctx, "Starting database maintenance (VACUUM, ANALYZE)...")

	for _, stmt := range []string{"VACUUM;", "ANALYZE;"} {
		_, err := s.db.ExecContext(ctx, stmt)
		switch {
		case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
			s.logger.WarnContext(ctx, "Database maintenance timed out or was cancelled", "statement", stmt, "error", err)
			return fmt.Errorf("database maintenance (%s) timed out: %w", stmt, err)
		case err != nil:
			s.logger.ErrorContext(ctx, "Database maintenance failed", "statement", stmt, "error", err)
			return fmt.Errorf("failed to execute %s: %w", stmt, err)
		}
	}

	s.logger.InfoContext(ctx, "Database maintenance completed successfully")
	return nil
}

func validateRecord(rec *AnalysisRecord) error {
	switch {
	case rec == nil:
		return fmt.Errorf("cannot save nil analysis record")
	case rec.ID == "":
		return fmt.Errorf("analysis record must have an id")
	case rec.ChatID == 0:
		return fmt.Errorf("analysis record must have a non-zero chat_id")
	case rec.CreatedAt.IsZero():
		return fmt.Errorf("analysis record must have a timestamp")
	}
	return nil
}
