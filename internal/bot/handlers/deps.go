package handlers

import (
	"log/slog"

	"github.com/edgard/lensbot/internal/ai"
	"github.com/edgard/lensbot/internal/analysis"
	"github.com/edgard/lensbot/internal/config"
	"github.com/edgard/lensbot/internal/database"
)

// HandlerDeps provides dependencies for Telegram update handlers.
type HandlerDeps struct {
	Logger   *slog.Logger
	Config   *config.Config
	Store    database.Store
	AI       ai.Client
	Analysis *analysis.Service
}
