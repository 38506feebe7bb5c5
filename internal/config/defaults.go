package config

import "time"

const defaultTelegramFileBaseURL = "https://api.telegram.org/file"

var defaults = map[string]any{
	"logger.level": "info",
	"logger.json":  false,

	"telegram.file_base_url": defaultTelegramFileBaseURL,

	"ai.provider": "gemini",

	"gemini.model_name":          "gemini-2.0-flash",
	"gemini.vision_model_name":   "gemini-2.0-flash",
	"gemini.temperature":         0.7,
	"gemini.system_instruction":  "You are a helpful assistant in a Telegram chat. Answer clearly and concisely.",
	"gemini.max_retries":         2,
	"gemini.retry_delay_seconds": 2,

	"openai.base_url":     "https://api.openai.com/v1",
	"openai.model":        "gpt-4o-mini",
	"openai.vision_model": "gpt-4o-mini",
	"openai.temperature":  0.7,
	"openai.max_tokens":   2048,

	"analysis.max_attempts":       3,
	"analysis.initial_backoff":    5 * time.Second,
	"analysis.backoff_multiplier": 2,
	"analysis.request_timeout":    10 * time.Second,
	"analysis.max_document_chars": 30000,
	"analysis.max_download_bytes": int64(20 * 1024 * 1024),
	"analysis.image_prompt":       "Analyze this image and provide a detailed description",
	"analysis.document_prompt":    "Analyze this PDF and summarize its contents.",

	"database.driver":         "sqlite",
	"database.path":           "lensbot.db",
	"database.mongo_database": "telegram_bot",
	"database.timeout":        5 * time.Second,

	"scheduler.timezone": "Asia/Kolkata",
	"scheduler.tasks": map[string]any{
		"db_maintenance": map[string]any{
			"enabled":  true,
			"schedule": "0 0 3 * * *",
		},
	},

	"messages.welcome":               "Welcome! Please share your phone number to complete registration.",
	"messages.share_contact_button":  "Share Phone Number",
	"messages.already_registered":    "You are already registered!",
	"messages.registration_done":     "Thank you! Registration is now complete.",
	"messages.contact_hint":          "Please use the 'Share Phone Number' button to share your contact.",
	"messages.contact_error":         "An error occurred while saving your contact. Please try again.",
	"messages.help":                  "Send me a message to chat, or an image or PDF to analyze.\n\n/start - register\n/websearch <query> - search the web\n/referral - get your referral code",
	"messages.chat_error":            "I'm having trouble processing your request right now.",
	"messages.search_usage":          "Please provide a search query after /websearch.",
	"messages.search_result_prefix":  "Search Results:\n",
	"messages.search_no_results":     "No results found.",
	"messages.search_error":          "Unable to perform the search at the moment.",
	"messages.referral_not_register": "Please register first using the /start command.",
	"messages.referral_code":         "Your referral code is: %s\nShare it with friends to get rewards!",
	"messages.referral_error":        "Unable to generate a referral code. Please try again later.",
	"messages.error_general":         "An error occurred. Please try again later.",

	"messages.analysis_result_prefix": "Analysis Result:\n",
	"messages.analysis_unsupported":   "Could not analyze this file type.",
	"messages.analysis_exhausted":     "Resource exhausted. Please try again later.",
	"messages.analysis_failed":        "An error occurred during processing.",
	"messages.analysis_no_image_text": "No description generated.",
	"messages.analysis_no_pdf_text":   "PDF analysis failed.",
	"messages.analysis_download_fail": "Sorry, I couldn't analyze that file. Please try another image or PDF.",
}

// envAliases maps config keys to extra environment variable names accepted
// besides the BOT_ prefixed form.
var envAliases = map[string][]string{
	"telegram.token":     {"TELEGRAM_BOT_TOKEN"},
	"gemini.api_key":     {"GEMINI_API_KEY"},
	"openai.api_key":     {"OPENAI_API_KEY"},
	"database.mongo_uri": {"MONGO_URI"},
}
