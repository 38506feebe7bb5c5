// Package config loads, defaults and validates the LensBot configuration.
// Values come from an optional YAML file, an optional .env file and the
// process environment, in increasing order of precedence.
package config

import (
	"time"

	"github.com/go-telegram/bot/models"
)

// Config is the root configuration for all bot components.
type Config struct {
	Logger    LoggerConfig    `mapstructure:"logger"`
	Telegram  TelegramConfig  `mapstructure:"telegram"`
	AI        AIConfig        `mapstructure:"ai"`
	Gemini    GeminiConfig    `mapstructure:"gemini"`
	OpenAI    OpenAIConfig    `mapstructure:"openai"`
	Analysis  AnalysisConfig  `mapstructure:"analysis"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Messages  MessagesConfig  `mapstructure:"messages"`
}

// LoggerConfig controls log level and output format.
type LoggerConfig struct {
	Level string `mapstructure:"level" validate:"oneof=debug info warn error"`
	JSON  bool   `mapstructure:"json"`
}

// TelegramConfig holds the bot token and runtime bot identity.
type TelegramConfig struct {
	Token string `mapstructure:"token" validate:"required"`

	// FileBaseURL is where file paths returned by getFile are downloaded from.
	FileBaseURL string `mapstructure:"file_base_url" validate:"required,url"`

	// BotInfo is filled at startup from getMe.
	BotInfo models.User `mapstructure:"-"`
}

// AIConfig selects the generative-AI provider.
type AIConfig struct {
	Provider string `mapstructure:"provider" validate:"oneof=gemini openai"`
}

// GeminiConfig configures the Google Gemini client.
type GeminiConfig struct {
	APIKey            string  `mapstructure:"api_key"`
	ModelName         string  `mapstructure:"model_name"          validate:"required"`
	VisionModelName   string  `mapstructure:"vision_model_name"   validate:"required"`
	Temperature       float32 `mapstructure:"temperature"         validate:"min=0,max=2"`
	SystemInstruction string  `mapstructure:"system_instruction"`
	MaxRetries        int     `mapstructure:"max_retries"         validate:"min=0,max=10"`
	RetryDelaySeconds int     `mapstructure:"retry_delay_seconds" validate:"min=0,max=60"`
}

// OpenAIConfig configures an OpenAI-compatible endpoint.
type OpenAIConfig struct {
	APIKey      string  `mapstructure:"api_key"`
	BaseURL     string  `mapstructure:"base_url"     validate:"omitempty,url"`
	Model       string  `mapstructure:"model"        validate:"required"`
	VisionModel string  `mapstructure:"vision_model" validate:"required"`
	Temperature float32 `mapstructure:"temperature"  validate:"min=0,max=2"`
	MaxTokens   int     `mapstructure:"max_tokens"   validate:"min=1"`
}

// AnalysisConfig tunes the file analysis retry loop and input limits.
type AnalysisConfig struct {
	MaxAttempts       int           `mapstructure:"max_attempts"        validate:"min=1,max=10"`
	InitialBackoff    time.Duration `mapstructure:"initial_backoff"     validate:"min=0"`
	BackoffMultiplier int           `mapstructure:"backoff_multiplier"  validate:"min=1"`
	RequestTimeout    time.Duration `mapstructure:"request_timeout"     validate:"min=1s"`
	MaxDocumentChars  int           `mapstructure:"max_document_chars"  validate:"min=1"`
	MaxDownloadBytes  int64         `mapstructure:"max_download_bytes"  validate:"min=1"`
	ImagePrompt       string        `mapstructure:"image_prompt"        validate:"required"`
	DocumentPrompt    string        `mapstructure:"document_prompt"     validate:"required"`
}

// DatabaseConfig selects and configures the record store.
type DatabaseConfig struct {
	Driver        string        `mapstructure:"driver"         validate:"oneof=sqlite mongodb"`
	Path          string        `mapstructure:"path"           validate:"required_if=Driver sqlite"`
	MongoURI      string        `mapstructure:"mongo_uri"      validate:"required_if=Driver mongodb"`
	MongoDatabase string        `mapstructure:"mongo_database" validate:"required_if=Driver mongodb"`
	Timeout       time.Duration `mapstructure:"timeout"        validate:"min=1s"`
}

// SchedulerConfig holds the scheduler timezone and task schedules.
type SchedulerConfig struct {
	Timezone string                `mapstructure:"timezone" validate:"required"`
	Tasks    map[string]TaskConfig `mapstructure:"tasks"`
}

// TaskConfig enables a registered task on a cron schedule.
type TaskConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Schedule string `mapstructure:"schedule"`
}

// MessagesConfig holds every user-facing string.
type MessagesConfig struct {
	Welcome             string `mapstructure:"welcome"               validate:"required"`
	ShareContactButton  string `mapstructure:"share_contact_button"  validate:"required"`
	AlreadyRegistered   string `mapstructure:"already_registered"    validate:"required"`
	RegistrationDone    string `mapstructure:"registration_done"     validate:"required"`
	ContactHint         string `mapstructure:"contact_hint"          validate:"required"`
	ContactError        string `mapstructure:"contact_error"         validate:"required"`
	Help                string `mapstructure:"help"                  validate:"required"`
	ChatError           string `mapstructure:"chat_error"            validate:"required"`
	SearchUsage         string `mapstructure:"search_usage"          validate:"required"`
	SearchResultPrefix  string `mapstructure:"search_result_prefix"  validate:"required"`
	SearchNoResults     string `mapstructure:"search_no_results"     validate:"required"`
	SearchError         string `mapstructure:"search_error"          validate:"required"`
	ReferralNotRegister string `mapstructure:"referral_not_register" validate:"required"`
	ReferralCode        string `mapstructure:"referral_code"         validate:"required"`
	ReferralError       string `mapstructure:"referral_error"        validate:"required"`
	ErrorGeneral        string `mapstructure:"error_general"         validate:"required"`

	AnalysisResultPrefix string `mapstructure:"analysis_result_prefix" validate:"required"`
	AnalysisUnsupported  string `mapstructure:"analysis_unsupported"   validate:"required"`
	AnalysisExhausted    string `mapstructure:"analysis_exhausted"     validate:"required"`
	AnalysisFailed       string `mapstructure:"analysis_failed"        validate:"required"`
	AnalysisNoImageText  string `mapstructure:"analysis_no_image_text" validate:"required"`
	AnalysisNoPDFText    string `mapstructure:"analysis_no_pdf_text"   validate:"required"`
	AnalysisDownloadFail string `mapstructure:"analysis_download_fail" validate:"required"`
}

// CommandDescriptions is the bot command menu published at startup.
var CommandDescriptions = []models.BotCommand{
	{Command: "start", Description: "Register with the bot"},
	{Command: "help", Description: "Show available commands"},
	{Command: "websearch", Description: "Search the web: /websearch <query>"},
	{Command: "referral", Description: "Get your referral code"},
}
