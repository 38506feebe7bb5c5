package handlers

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/go-telegram/bot/models"
	"github.com/stretchr/testify/require"

	"github.com/edgard/lensbot/internal/analysis"
	"github.com/edgard/lensbot/internal/config"
	"github.com/edgard/lensbot/internal/database"
	"github.com/edgard/lensbot/internal/telegram/telegramtest"
)

var errBoom = errors.New("boom")

type fakeAI struct {
	mu          sync.Mutex
	reply       string
	replyErr    error
	search      string
	searchErr   error
	analysis    analysis.Result
	prompts     []string
	analyzeCall int
}

func (a *fakeAI) DescribeImage(_ context.Context, _ analysis.Image, prompt string) analysis.Result {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.analyzeCall++
	a.prompts = append(a.prompts, prompt)
	return a.analysis
}

func (a *fakeAI) SummarizeDocument(_ context.Context, _ analysis.Document, prompt string) analysis.Result {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.analyzeCall++
	a.prompts = append(a.prompts, prompt)
	return a.analysis
}

func (a *fakeAI) Reply(_ context.Context, prompt string) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.prompts = append(a.prompts, prompt)
	return a.reply, a.replyErr
}

func (a *fakeAI) Search(_ context.Context, query string) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.prompts = append(a.prompts, query)
	return a.search, a.searchErr
}

type fakeStore struct {
	mu        sync.Mutex
	users     map[int64]*database.User
	history   []database.ChatHistory
	records   []database.AnalysisRecord
	referrals map[string]database.Referral
	err       error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:     make(map[int64]*database.User),
		referrals: make(map[string]database.Referral),
	}
}

func (s *fakeStore) Ping(context.Context) error           { return s.err }
func (s *fakeStore) RunMaintenance(context.Context) error { return s.err }
func (s *fakeStore) Close() error                         { return nil }

func (s *fakeStore) SaveAnalysisRecord(_ context.Context, rec *database.AnalysisRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.records = append(s.records, *rec)
	return nil
}

func (s *fakeStore) GetUser(_ context.Context, chatID int64) (*database.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	u, ok := s.users[chatID]
	if !ok {
		return nil, database.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *fakeStore) CreateUser(_ context.Context, user *database.User) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return false, s.err
	}
	if _, ok := s.users[user.ChatID]; ok {
		return false, nil
	}
	cp := *user
	s.users[user.ChatID] = &cp
	return true, nil
}

func (s *fakeStore) UpdateUserPhone(_ context.Context, chatID int64, phone string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	u, ok := s.users[chatID]
	if !ok {
		return database.ErrNotFound
	}
	u.PhoneNumber = phone
	return nil
}

func (s *fakeStore) SaveChatHistory(_ context.Context, entry *database.ChatHistory) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.history = append(s.history, *entry)
	return nil
}

func (s *fakeStore) UpsertReferral(_ context.Context, ref *database.Referral) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.referrals[ref.ReferralCode] = *ref
	return nil
}

type noSleep struct{}

func (noSleep) Sleep(ctx context.Context, _ time.Duration) error { return ctx.Err() }

type fixture struct {
	deps  HandlerDeps
	ai    *fakeAI
	store *fakeStore
	srv   *telegramtest.Server
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	srv := telegramtest.NewServer(t)
	cfg := config.Defaults()
	cfg.Telegram = srv.TelegramConfig()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	fake := &fakeAI{}
	store := newFakeStore()

	svc := analysis.NewService(analysis.Deps{
		Analyzer: fake,
		Store:    store,
		Sleeper:  noSleep{},
		Logger:   log,
	}, analysis.NewSettings(cfg.Analysis, cfg.Messages))

	return &fixture{
		deps: HandlerDeps{
			Logger:   log,
			Config:   cfg,
			Store:    store,
			AI:       fake,
			Analysis: svc,
		},
		ai:    fake,
		store: store,
		srv:   srv,
	}
}

const testChatID int64 = 987654321

func textUpdate(text string) *models.Update {
	return &models.Update{
		ID: 1,
		Message: &models.Message{
			ID:   10,
			Chat: models.Chat{ID: testChatID, FirstName: "Ada", Username: "ada"},
			From: &models.User{ID: testChatID, FirstName: "Ada", Username: "ada"},
			Text: text,
		},
	}
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}
