package analysis

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/edgard/lensbot/internal/database"
)

var errRateLimited = errors.New("429 Too Many Requests")

type fakeGateway struct {
	mu          sync.Mutex
	data        []byte
	downloadErr error
	replyErr    error
	downloads   []string
	replies     []string
}

func (g *fakeGateway) DownloadFile(_ context.Context, fileID string) ([]byte, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.downloads = append(g.downloads, fileID)
	if g.downloadErr != nil {
		return nil, g.downloadErr
	}
	return g.data, nil
}

func (g *fakeGateway) Reply(_ context.Context, _ int64, text string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.replies = append(g.replies, text)
	return g.replyErr
}

// fakeAnalyzer answers from a script; the last entry repeats once the
// script runs out.
type fakeAnalyzer struct {
	mu         sync.Mutex
	script     []Result
	calls      int
	prompts    []string
	images     []Image
	documents  []Document
	deadlineOK bool
	panicWith  any
}

func (a *fakeAnalyzer) next(ctx context.Context) Result {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.panicWith != nil {
		panic(a.panicWith)
	}
	_, a.deadlineOK = ctx.Deadline()
	a.calls++
	if len(a.script) == 0 {
		return Succeeded("")
	}
	idx := a.calls - 1
	if idx >= len(a.script) {
		idx = len(a.script) - 1
	}
	return a.script[idx]
}

func (a *fakeAnalyzer) DescribeImage(ctx context.Context, img Image, prompt string) Result {
	res := a.next(ctx)
	a.mu.Lock()
	a.images = append(a.images, img)
	a.prompts = append(a.prompts, prompt)
	a.mu.Unlock()
	return res
}

func (a *fakeAnalyzer) SummarizeDocument(ctx context.Context, doc Document, prompt string) Result {
	res := a.next(ctx)
	a.mu.Lock()
	a.documents = append(a.documents, doc)
	a.prompts = append(a.prompts, prompt)
	a.mu.Unlock()
	return res
}

type fakeStore struct {
	mu      sync.Mutex
	err     error
	records []*database.AnalysisRecord
}

func (s *fakeStore) SaveAnalysisRecord(_ context.Context, rec *database.AnalysisRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.records = append(s.records, rec)
	return nil
}

// recordingSleeper records requested delays instead of waiting.
type recordingSleeper struct {
	mu     sync.Mutex
	delays []time.Duration
	err    error
}

func (s *recordingSleeper) Sleep(_ context.Context, d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delays = append(s.delays, d)
	return s.err
}

func testMessages() Messages {
	return Messages{
		ResultPrefix:   "Analysis Result:\n",
		Unsupported:    "Could not analyze this file type.",
		Exhausted:      "Resource exhausted. Please try again later.",
		Failed:         "An error occurred during processing.",
		NoImageText:    "No description generated.",
		NoDocumentText: "PDF analysis failed.",
		DownloadFailed: "Sorry, I couldn't analyze that file. Please try another image or PDF.",
	}
}

func testSettings() Settings {
	return Settings{
		Policy:           DefaultPolicy(),
		MaxDocumentChars: 1000,
		ImagePrompt:      "Analyze this image and provide a detailed description",
		DocumentPrompt:   "Analyze this PDF and summarize its contents.",
		Messages:         testMessages(),
	}
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}
