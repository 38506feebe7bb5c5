package analysis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgard/lensbot/internal/config"
)

var fixedNow = time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC)

type harness struct {
	gw       *fakeGateway
	analyzer *fakeAnalyzer
	store    *fakeStore
	sleeper  *recordingSleeper
	svc      *Service
}

func newHarness(t *testing.T, data []byte, script ...Result) *harness {
	t.Helper()
	h := &harness{
		gw:       &fakeGateway{data: data},
		analyzer: &fakeAnalyzer{script: script},
		store:    &fakeStore{},
		sleeper:  &recordingSleeper{},
	}
	h.svc = NewService(Deps{
		Analyzer: h.analyzer,
		Store:    h.store,
		Sleeper:  h.sleeper,
		Clock:    clockwork.NewFakeClockAt(fixedNow),
	}, testSettings())
	return h
}

func documentEvent(name string) Event {
	return Event{ChatID: 42, File: NewDocumentFile("file-1", name)}
}

func TestHandlePhotoUsesDefaultName(t *testing.T) {
	t.Parallel()

	h := newHarness(t, pngBytes(t, 2, 2), Succeeded("a sunset"))
	rep := h.svc.Handle(context.Background(), h.gw, Event{ChatID: 42, File: NewPhotoFile("photo-1")})

	assert.Equal(t, KindImage, rep.Kind)
	assert.Equal(t, OutcomeSucceeded, rep.Outcome)
	require.Len(t, h.store.records, 1)
	assert.Equal(t, DefaultPhotoName, h.store.records[0].FileName)
	assert.Equal(t, []string{"Analysis Result:\na sunset"}, h.gw.replies)
}

func TestHandleImageFirstAttemptSuccess(t *testing.T) {
	t.Parallel()

	h := newHarness(t, pngBytes(t, 4, 3), Succeeded("a red bicycle"))
	rep := h.svc.Handle(context.Background(), h.gw, documentEvent("photo.JPG"))

	assert.Equal(t, KindImage, rep.Kind)
	assert.Equal(t, OutcomeSucceeded, rep.Outcome)
	assert.Equal(t, 1, rep.Calls)
	assert.Empty(t, h.sleeper.delays)
	assert.Equal(t, []string{"Analysis Result:\na red bicycle"}, h.gw.replies)

	require.Len(t, h.store.records, 1)
	rec := h.store.records[0]
	assert.Equal(t, int64(42), rec.ChatID)
	assert.Equal(t, "photo.JPG", rec.FileName)
	assert.Equal(t, "a red bicycle", rec.Description)
	assert.Equal(t, fixedNow, rec.CreatedAt)
	assert.NotEmpty(t, rec.ID)

	require.Len(t, h.analyzer.images, 1)
	assert.Equal(t, "image/png", h.analyzer.images[0].MIMEType)
	assert.Equal(t, 4, h.analyzer.images[0].Width)
	assert.Equal(t, []string{testSettings().ImagePrompt}, h.analyzer.prompts)
	assert.True(t, h.analyzer.deadlineOK, "each call runs under a timeout")
}

func TestHandleRateLimitedThenSuccess(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		script []Result
		sleeps []time.Duration
	}{
		{
			name:   "second attempt",
			script: []Result{RateLimited(errRateLimited), Succeeded("summary")},
			sleeps: []time.Duration{5 * time.Second},
		},
		{
			name:   "third attempt",
			script: []Result{RateLimited(errRateLimited), RateLimited(errRateLimited), Succeeded("summary")},
			sleeps: []time.Duration{5 * time.Second, 10 * time.Second},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			h := newHarness(t, []byte("%PDF-1.4 not really"), tc.script...)
			rep := h.svc.Handle(context.Background(), h.gw, documentEvent("report.pdf"))

			assert.Equal(t, OutcomeSucceeded, rep.Outcome)
			assert.Equal(t, len(tc.script), rep.Calls)
			assert.Equal(t, tc.sleeps, h.sleeper.delays)
			require.Len(t, h.store.records, 1)
			assert.Equal(t, "summary", h.store.records[0].Description)
			assert.Equal(t, []string{"Analysis Result:\nsummary"}, h.gw.replies)
		})
	}
}

func TestHandleRateLimitExhausted(t *testing.T) {
	t.Parallel()

	h := newHarness(t, []byte("%PDF-1.4"), RateLimited(errRateLimited))
	rep := h.svc.Handle(context.Background(), h.gw, documentEvent("report.pdf"))

	assert.Equal(t, OutcomeExhausted, rep.Outcome)
	assert.Equal(t, 3, rep.Calls)
	assert.Equal(t, 3, rep.Attempts)
	assert.Equal(t, []time.Duration{5 * time.Second, 10 * time.Second}, h.sleeper.delays)
	require.Len(t, h.store.records, 1)
	assert.Equal(t, "Resource exhausted. Please try again later.", h.store.records[0].Description)
	require.Len(t, h.gw.replies, 1)
	assert.Contains(t, h.gw.replies[0], "Resource exhausted. Please try again later.")
}

func TestHandleNonRateLimitFailureStopsImmediately(t *testing.T) {
	t.Parallel()

	h := newHarness(t, pngBytes(t, 2, 2), Failed(errors.New("500 internal")), Succeeded("never"))
	rep := h.svc.Handle(context.Background(), h.gw, documentEvent("pic.png"))

	assert.Equal(t, OutcomeFailed, rep.Outcome)
	assert.Equal(t, 1, rep.Calls)
	assert.Empty(t, h.sleeper.delays)
	require.Len(t, h.store.records, 1)
	assert.Equal(t, "An error occurred during processing.", h.store.records[0].Description)
	assert.Equal(t, []string{"Analysis Result:\nAn error occurred during processing."}, h.gw.replies)
}

func TestHandleUnsupportedSkipsAnalyzer(t *testing.T) {
	t.Parallel()

	for _, name := range []string{"archive.zip", "notes.txt", "README", "photo.gif", "pdf", ""} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			h := newHarness(t, []byte("PK\x03\x04"), Succeeded("never"))
			rep := h.svc.Handle(context.Background(), h.gw, documentEvent(name))

			assert.Equal(t, KindUnsupported, rep.Kind)
			assert.Equal(t, OutcomeUnsupported, rep.Outcome)
			assert.Zero(t, rep.Calls)
			assert.Zero(t, h.analyzer.calls)
			require.Len(t, h.store.records, 1)
			assert.Equal(t, "Could not analyze this file type.", h.store.records[0].Description)
			assert.Equal(t, []string{"Analysis Result:\nCould not analyze this file type."}, h.gw.replies)
		})
	}
}

func TestHandleNamelessDocumentIsUnsupported(t *testing.T) {
	t.Parallel()

	h := newHarness(t, []byte("PK\x03\x04"), Succeeded("never"))
	rep := h.svc.Handle(context.Background(), h.gw, documentEvent(""))

	assert.Equal(t, KindUnsupported, rep.Kind)
	assert.Equal(t, OutcomeUnsupported, rep.Outcome)
	assert.Zero(t, h.analyzer.calls)
	require.Len(t, h.store.records, 1)
	assert.Equal(t, DefaultDocumentName, h.store.records[0].FileName)
	assert.Equal(t, []string{"Analysis Result:\nCould not analyze this file type."}, h.gw.replies)
}

func TestHandleDownloadFailure(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil, Succeeded("never"))
	h.gw.downloadErr = errors.New("file is too big")

	rep := h.svc.Handle(context.Background(), h.gw, documentEvent("photo.jpg"))

	assert.False(t, rep.Downloaded)
	assert.False(t, rep.Persisted)
	assert.Zero(t, h.analyzer.calls)
	assert.Empty(t, h.store.records)
	assert.Equal(t, []string{testMessages().DownloadFailed}, h.gw.replies)
}

func TestHandleEmptyDescriptionFallbacks(t *testing.T) {
	t.Parallel()

	h := newHarness(t, pngBytes(t, 1, 1), Succeeded(""))
	h.svc.Handle(context.Background(), h.gw, documentEvent("a.jpeg"))
	require.Len(t, h.store.records, 1)
	assert.Equal(t, "No description generated.", h.store.records[0].Description)

	h = newHarness(t, []byte("%PDF"), Succeeded(""))
	h.svc.Handle(context.Background(), h.gw, documentEvent("a.PDF"))
	require.Len(t, h.store.records, 1)
	assert.Equal(t, "PDF analysis failed.", h.store.records[0].Description)
}

func TestHandleCorruptImage(t *testing.T) {
	t.Parallel()

	h := newHarness(t, []byte("definitely not a jpeg"), Succeeded("never"))
	rep := h.svc.Handle(context.Background(), h.gw, documentEvent("broken.jpg"))

	assert.Equal(t, OutcomeFailed, rep.Outcome)
	assert.Zero(t, h.analyzer.calls)
	require.Len(t, h.store.records, 1)
	assert.Equal(t, "An error occurred during processing.", h.store.records[0].Description)
}

func TestHandleStoreFailureStillReplies(t *testing.T) {
	t.Parallel()

	h := newHarness(t, pngBytes(t, 1, 1), Succeeded("a cat"))
	h.store.err = errors.New("disk full")

	rep := h.svc.Handle(context.Background(), h.gw, documentEvent("cat.png"))

	assert.False(t, rep.Persisted)
	assert.Equal(t, []string{"Analysis Result:\na cat"}, h.gw.replies)
}

func TestHandleAnalyzerPanicIsContained(t *testing.T) {
	t.Parallel()

	h := newHarness(t, pngBytes(t, 1, 1))
	h.analyzer.panicWith = "boom"

	var rep Report
	require.NotPanics(t, func() {
		rep = h.svc.Handle(context.Background(), h.gw, documentEvent("cat.png"))
	})
	assert.Equal(t, OutcomeFailed, rep.Outcome)
	require.Len(t, h.store.records, 1)
	assert.Equal(t, "An error occurred during processing.", h.store.records[0].Description)
}

func TestHandleInterruptedBackoff(t *testing.T) {
	t.Parallel()

	h := newHarness(t, pngBytes(t, 1, 1), RateLimited(errRateLimited))
	h.sleeper.err = context.Canceled

	rep := h.svc.Handle(context.Background(), h.gw, documentEvent("cat.png"))

	assert.Equal(t, OutcomeFailed, rep.Outcome)
	assert.Equal(t, 1, rep.Calls)
	require.Len(t, h.store.records, 1)
	assert.Equal(t, "An error occurred during processing.", h.store.records[0].Description)
	assert.Len(t, h.gw.replies, 1)
}

func TestHandleWaitsOnClock(t *testing.T) {
	t.Parallel()

	clock := clockwork.NewFakeClockAt(fixedNow)
	gw := &fakeGateway{data: pngBytes(t, 1, 1)}
	analyzer := &fakeAnalyzer{script: []Result{
		RateLimited(errRateLimited),
		RateLimited(errRateLimited),
		Succeeded("finally"),
	}}
	store := &fakeStore{}
	svc := NewService(Deps{Analyzer: analyzer, Store: store, Clock: clock}, testSettings())

	done := make(chan Report, 1)
	go func() {
		done <- svc.Handle(context.Background(), gw, documentEvent("slow.png"))
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	clock.Advance(5 * time.Second)
	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	clock.Advance(10 * time.Second)

	select {
	case rep := <-done:
		assert.Equal(t, OutcomeSucceeded, rep.Outcome)
		assert.Equal(t, 3, rep.Calls)
		require.Len(t, store.records, 1)
		assert.Equal(t, fixedNow.Add(15*time.Second), store.records[0].CreatedAt)
	case <-ctx.Done():
		t.Fatal("handler did not finish after clock advanced")
	}
}

func TestNewSettings(t *testing.T) {
	t.Parallel()

	s := NewSettings(config.AnalysisConfig{
		MaxAttempts:       4,
		InitialBackoff:    2 * time.Second,
		BackoffMultiplier: 3,
		RequestTimeout:    7 * time.Second,
		MaxDocumentChars:  100,
		ImagePrompt:       "img",
		DocumentPrompt:    "doc",
	}, config.MessagesConfig{
		AnalysisResultPrefix: "R:",
		AnalysisExhausted:    "busy",
	})

	assert.Equal(t, Policy{MaxAttempts: 4, InitialDelay: 2 * time.Second, Multiplier: 3, RequestTimeout: 7 * time.Second}, s.Policy)
	assert.Equal(t, 100, s.MaxDocumentChars)
	assert.Equal(t, "img", s.ImagePrompt)
	assert.Equal(t, "doc", s.DocumentPrompt)
	assert.Equal(t, "R:", s.Messages.ResultPrefix)
	assert.Equal(t, "busy", s.Messages.Exhausted)
}
