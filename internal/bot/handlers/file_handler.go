package handlers

import (
	"context"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/lensbot/internal/analysis"
	"github.com/edgard/lensbot/internal/telegram"
)

// NewFileHandler returns a handler for uploaded documents and photos.
func NewFileHandler(deps HandlerDeps) bot.HandlerFunc {
	return fileHandler{deps}.Handle
}

type fileHandler struct {
	deps HandlerDeps
}

// IsFileMessage matches messages carrying a document or a photo.
func IsFileMessage(update *models.Update) bool {
	msg := update.Message
	return msg != nil && (msg.Document != nil || len(msg.Photo) > 0)
}

func (h fileHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "file")

	msg := update.Message
	if msg == nil {
		log.WarnContext(ctx, "File handler received update with nil message", "update_id", update.ID)
		return
	}

	var file analysis.InboundFile
	switch {
	case msg.Document != nil:
		file = analysis.NewDocumentFile(msg.Document.FileID, msg.Document.FileName)
	case len(msg.Photo) > 0:
		best, _ := telegram.BestPhoto(msg.Photo)
		log.DebugContext(ctx, "Selected best quality photo", "file_id", best.FileID, "width", best.Width, "height", best.Height)
		file = analysis.NewPhotoFile(best.FileID)
	default:
		log.DebugContext(ctx, "Ignoring message without a file", "chat_id", msg.Chat.ID)
		return
	}

	log.InfoContext(ctx, "Handling file", "chat_id", msg.Chat.ID, "file_name", file.Name, "source", file.Source.String())

	rep := h.deps.Analysis.Handle(ctx, gateway(b, h.deps), analysis.Event{ChatID: msg.Chat.ID, File: file})

	log.DebugContext(ctx, "File handled",
		"chat_id", msg.Chat.ID,
		"kind", rep.Kind.String(),
		"outcome", rep.Outcome.String(),
		"calls", rep.Calls)
}
