package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/edgard/lensbot/internal/config"
	"github.com/edgard/lensbot/internal/database"
)

const (
	persistTimeout = 5 * time.Second
	replyTimeout   = 10 * time.Second
)

// Analyzer is the AI side of the flow. Implementations never retry on their
// own; they report one call as a tagged Result.
type Analyzer interface {
	DescribeImage(ctx context.Context, img Image, prompt string) Result
	SummarizeDocument(ctx context.Context, doc Document, prompt string) Result
}

// Gateway is the chat platform side: fetch uploaded bytes and send replies.
type Gateway interface {
	DownloadFile(ctx context.Context, fileID string) ([]byte, error)
	Reply(ctx context.Context, chatID int64, text string) error
}

// RecordStore persists one record per analyzed file.
type RecordStore interface {
	SaveAnalysisRecord(ctx context.Context, rec *database.AnalysisRecord) error
}

// Messages are the user-facing strings of the flow.
type Messages struct {
	ResultPrefix   string
	Unsupported    string
	Exhausted      string
	Failed         string
	NoImageText    string
	NoDocumentText string
	DownloadFailed string
}

// Settings are the tunables of the flow.
type Settings struct {
	Policy           Policy
	MaxDocumentChars int
	ImagePrompt      string
	DocumentPrompt   string
	Messages         Messages
}

// NewSettings maps the loaded configuration onto Settings.
func NewSettings(cfg config.AnalysisConfig, msgs config.MessagesConfig) Settings {
	return Settings{
		Policy: Policy{
			MaxAttempts:    cfg.MaxAttempts,
			InitialDelay:   cfg.InitialBackoff,
			Multiplier:     cfg.BackoffMultiplier,
			RequestTimeout: cfg.RequestTimeout,
		},
		MaxDocumentChars: cfg.MaxDocumentChars,
		ImagePrompt:      cfg.ImagePrompt,
		DocumentPrompt:   cfg.DocumentPrompt,
		Messages: Messages{
			ResultPrefix:   msgs.AnalysisResultPrefix,
			Unsupported:    msgs.AnalysisUnsupported,
			Exhausted:      msgs.AnalysisExhausted,
			Failed:         msgs.AnalysisFailed,
			NoImageText:    msgs.AnalysisNoImageText,
			NoDocumentText: msgs.AnalysisNoPDFText,
			DownloadFailed: msgs.AnalysisDownloadFail,
		},
	}
}

// Deps are the collaborators of a Service. Clock and Sleeper default to the
// real clock.
type Deps struct {
	Analyzer Analyzer
	Store    RecordStore
	Sleeper  Sleeper
	Clock    clockwork.Clock
	Logger   *slog.Logger
}

// Report summarizes one handled event.
type Report struct {
	Kind        Kind
	Outcome     Outcome
	Description string
	Reply       string
	Calls       int
	Attempts    int
	Persisted   bool
	Downloaded  bool
}

// Service runs the file analysis flow for one event at a time; concurrent
// events are independent.
type Service struct {
	analyzer Analyzer
	store    RecordStore
	sleeper  Sleeper
	clock    clockwork.Clock
	settings Settings
	log      *slog.Logger
}

// NewService wires a Service.
func NewService(deps Deps, settings Settings) *Service {
	clock := deps.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	sleeper := deps.Sleeper
	if sleeper == nil {
		sleeper = NewClockSleeper(clock)
	}
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		analyzer: deps.Analyzer,
		store:    deps.Store,
		sleeper:  sleeper,
		clock:    clock,
		settings: settings,
		log:      log.With("component", "analysis"),
	}
}

// Handle downloads, analyzes, records and answers one inbound file. It
// never returns an error; every fault ends in a reply to the chat.
func (s *Service) Handle(ctx context.Context, gw Gateway, ev Event) Report {
	log := s.log.With("chat_id", ev.ChatID, "file_name", ev.File.Name, "source", ev.File.Source.String())

	data, err := gw.DownloadFile(ctx, ev.File.FileID)
	if err != nil {
		log.ErrorContext(ctx, "Failed to download file", "error", err)
		rep := Report{Kind: Classify(ev.File.Name), Outcome: OutcomeFailed, Reply: s.settings.Messages.DownloadFailed}
		s.reply(ctx, gw, ev.ChatID, rep.Reply, log)
		return rep
	}

	rep := Report{Kind: Classify(ev.File.Name), Downloaded: true}
	log = log.With("kind", rep.Kind.String(), "size", len(data))
	log.DebugContext(ctx, "File downloaded")

	switch rep.Kind {
	case KindImage:
		s.describeImage(ctx, data, &rep, log)
	case KindDocument:
		s.describeDocument(ctx, ev.File.Name, data, &rep, log)
	default:
		rep.Outcome = OutcomeUnsupported
		rep.Description = s.settings.Messages.Unsupported
	}

	rep.Persisted = s.persist(ctx, ev, rep.Description, log)

	rep.Reply = s.settings.Messages.ResultPrefix + rep.Description
	s.reply(ctx, gw, ev.ChatID, rep.Reply, log)

	log.InfoContext(ctx, "File analysis finished",
		"outcome", rep.Outcome.String(),
		"calls", rep.Calls,
		"attempts", rep.Attempts,
		"persisted", rep.Persisted)
	return rep
}

func (s *Service) describeImage(ctx context.Context, data []byte, rep *Report, log *slog.Logger) {
	img, err := DecodeImage(data)
	if err != nil {
		log.WarnContext(ctx, "Image did not decode", "error", err)
		rep.Outcome = OutcomeFailed
		rep.Description = s.settings.Messages.Failed
		return
	}

	res := s.run(ctx, rep, log, func(callCtx context.Context) Result {
		return s.analyzer.DescribeImage(callCtx, img, s.settings.ImagePrompt)
	})
	rep.Description = s.describe(rep.Outcome, res, s.settings.Messages.NoImageText)
}

func (s *Service) describeDocument(ctx context.Context, name string, data []byte, rep *Report, log *slog.Logger) {
	doc := ExtractDocument(name, data, s.settings.MaxDocumentChars)
	log.DebugContext(ctx, "Document prepared",
		"extracted", doc.Extracted,
		"pages", doc.Pages,
		"truncated", doc.Truncated)

	res := s.run(ctx, rep, log, func(callCtx context.Context) Result {
		return s.analyzer.SummarizeDocument(callCtx, doc, s.settings.DocumentPrompt)
	})
	rep.Description = s.describe(rep.Outcome, res, s.settings.Messages.NoDocumentText)
}

func (s *Service) describe(outcome Outcome, res Result, empty string) string {
	switch outcome {
	case OutcomeSucceeded:
		if res.Text == "" {
			return empty
		}
		return res.Text
	case OutcomeExhausted:
		return s.settings.Messages.Exhausted
	default:
		return s.settings.Messages.Failed
	}
}

// run drives the retry loop and records the outcome on rep. The returned
// Result is the last one seen.
func (s *Service) run(ctx context.Context, rep *Report, log *slog.Logger, call func(context.Context) Result) Result {
	policy := s.settings.Policy
	state := policy.Start()

	for {
		res := s.attempt(ctx, call)
		rep.Calls++

		d := policy.Decide(state, res)
		rep.Attempts = d.Next.Attempts
		if !d.Retry {
			rep.Outcome = d.Outcome
			if d.Outcome != OutcomeSucceeded {
				log.WarnContext(ctx, "Analysis did not succeed",
					"outcome", d.Outcome.String(),
					"attempts", d.Next.Attempts,
					"error", res.Err)
			}
			return res
		}

		log.InfoContext(ctx, "Rate limited, backing off",
			"attempt", d.Next.Attempts,
			"max_attempts", policy.MaxAttempts,
			"wait", d.Wait)

		if err := s.sleeper.Sleep(ctx, d.Wait); err != nil {
			log.WarnContext(ctx, "Backoff interrupted", "error", err)
			rep.Outcome = OutcomeFailed
			return Failed(fmt.Errorf("backoff interrupted: %w", err))
		}
		state = d.Next
	}
}

func (s *Service) attempt(ctx context.Context, call func(context.Context) Result) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			res = Failed(fmt.Errorf("analyzer panic: %v", r))
		}
	}()

	if err := ctx.Err(); err != nil {
		return Failed(err)
	}

	callCtx := ctx
	if timeout := s.settings.Policy.RequestTimeout; timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	res = call(callCtx)
	if res.Status == StatusFailed && res.Err == nil {
		res.Err = errors.New("analyzer reported failure")
	}
	return res
}

func (s *Service) persist(ctx context.Context, ev Event, description string, log *slog.Logger) bool {
	if s.store == nil {
		return false
	}

	rec := &database.AnalysisRecord{
		ID:          uuid.NewString(),
		ChatID:      ev.ChatID,
		FileName:    ev.File.Name,
		Description: description,
		CreatedAt:   s.clock.Now().UTC(),
	}

	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()

	if err := s.store.SaveAnalysisRecord(saveCtx, rec); err != nil {
		log.ErrorContext(ctx, "Failed to save analysis record", "error", err, "record_id", rec.ID)
		return false
	}
	return true
}

func (s *Service) reply(ctx context.Context, gw Gateway, chatID int64, text string, log *slog.Logger) {
	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), replyTimeout)
	defer cancel()

	if err := gw.Reply(sendCtx, chatID, text); err != nil {
		log.ErrorContext(ctx, "Failed to send reply", "error", err)
	}
}
