package database

import "time"

// User is a registered chat. Registration happens on /start; the phone
// number arrives later through a shared contact.
type User struct {
	ChatID      int64     `db:"chat_id"      bson:"chat_id"`
	FirstName   string    `db:"first_name"   bson:"first_name"`
	Username    string    `db:"username"     bson:"username"`
	PhoneNumber string    `db:"phone_number" bson:"phone_number,omitempty"`
	CreatedAt   time.Time `db:"created_at"   bson:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"   bson:"updated_at"`
}

// ChatHistory is one relayed exchange between a user and the AI.
type ChatHistory struct {
	ID          string    `db:"id"           bson:"_id"`
	ChatID      int64     `db:"chat_id"      bson:"chat_id"`
	UserMessage string    `db:"user_message" bson:"user_message"`
	BotResponse string    `db:"bot_response" bson:"bot_response"`
	Timestamp   time.Time `db:"timestamp"    bson:"timestamp"`
}

// AnalysisRecord is the append-only outcome of one analyzed file,
// including failed analyses.
type AnalysisRecord struct {
	ID          string    `db:"id"          bson:"_id"`
	ChatID      int64     `db:"chat_id"     bson:"chat_id"`
	FileName    string    `db:"file_name"   bson:"file_name"`
	Description string    `db:"description" bson:"description"`
	CreatedAt   time.Time `db:"created_at"  bson:"timestamp"`
}

// Referral maps a referral code to the username that owns it.
type Referral struct {
	ReferralCode string    `db:"referral_code" bson:"referral_code"`
	Referrer     string    `db:"referrer"      bson:"referrer"`
	Timestamp    time.Time `db:"timestamp"     bson:"timestamp"`
}
