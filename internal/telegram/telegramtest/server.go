// Package telegramtest runs a fake Telegram Bot API and file host for tests.
package telegramtest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-telegram/bot"
	"github.com/stretchr/testify/require"

	"github.com/edgard/lensbot/internal/config"
)

// Token is the bot token the fake server accepts.
const Token = "123456:TEST-TOKEN"

// Call is one Bot API request seen by the server.
type Call struct {
	Method string
	Params map[string]string
}

// Server answers Bot API methods and serves registered files.
type Server struct {
	*httptest.Server

	mu        sync.Mutex
	calls     []Call
	files     map[string][]byte
	fileSizes map[string]int64
	failing   map[string]int
	broken    map[string]bool
	nextMsgID int
}

// NewServer starts a server that is closed with the test.
func NewServer(t *testing.T) *Server {
	t.Helper()
	s := &Server{
		files:     make(map[string][]byte),
		fileSizes: make(map[string]int64),
		failing:   make(map[string]int),
		broken:    make(map[string]bool),
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	t.Cleanup(s.Close)
	return s
}

// NewBot returns a bot that talks to s.
func (s *Server) NewBot(t *testing.T) *bot.Bot {
	t.Helper()
	b, err := bot.New(Token, bot.WithServerURL(s.URL), bot.WithSkipGetMe())
	require.NoError(t, err)
	return b
}

// TelegramConfig points file downloads at s.
func (s *Server) TelegramConfig() config.TelegramConfig {
	return config.TelegramConfig{Token: Token, FileBaseURL: s.URL + "/file"}
}

// AddFile makes fileID resolvable through getFile and downloadable.
func (s *Server) AddFile(fileID string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[fileID] = data
	s.fileSizes[fileID] = int64(len(data))
}

// SetReportedSize overrides the file_size getFile returns for fileID.
func (s *Server) SetReportedSize(fileID string, size int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fileSizes[fileID] = size
}

// BreakDownload keeps fileID resolvable but makes its download return 404.
func (s *Server) BreakDownload(fileID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.broken[fileID] = true
}

// Fail makes the next n calls of method return a Bot API error.
func (s *Server) Fail(method string, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failing[method] = n
}

// Calls returns the recorded calls of method, or all calls when method is empty.
func (s *Server) Calls(method string) []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Call
	for _, c := range s.calls {
		if method == "" || c.Method == method {
			out = append(out, c)
		}
	}
	return out
}

// SentTexts returns the text of every sendMessage call.
func (s *Server) SentTexts() []string {
	var texts []string
	for _, c := range s.Calls("sendMessage") {
		texts = append(texts, c.Params["text"])
	}
	return texts
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request) {
	if rest, ok := strings.CutPrefix(r.URL.Path, "/file/bot"+Token+"/"); ok {
		s.serveFile(w, rest)
		return
	}

	method, ok := strings.CutPrefix(r.URL.Path, "/bot"+Token+"/")
	if !ok {
		http.NotFound(w, r)
		return
	}

	params := make(map[string]string)
	if err := r.ParseMultipartForm(1 << 20); err == nil && r.MultipartForm != nil {
		for k, v := range r.MultipartForm.Value {
			if len(v) > 0 {
				params[k] = v[0]
			}
		}
	} else if err := r.ParseForm(); err == nil {
		for k, v := range r.PostForm {
			if len(v) > 0 {
				params[k] = v[0]
			}
		}
	}

	s.mu.Lock()
	s.calls = append(s.calls, Call{Method: method, Params: params})
	fail := s.failing[method] > 0
	if fail {
		s.failing[method]--
	}
	s.mu.Unlock()

	if fail {
		writeJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "error_code": 400, "description": "Bad Request: injected failure"})
		return
	}

	switch method {
	case "getUpdates":
		// Long polling with nothing to deliver.
		select {
		case <-r.Context().Done():
		case <-time.After(50 * time.Millisecond):
		}
		writeResult(w, []any{})
	case "getMe":
		writeResult(w, map[string]any{"id": 1, "is_bot": true, "first_name": "LensBot", "username": "lens_test_bot"})
	case "getFile":
		s.serveGetFile(w, params["file_id"])
	case "sendMessage":
		s.mu.Lock()
		s.nextMsgID++
		id := s.nextMsgID
		s.mu.Unlock()
		chatID, _ := strconv.ParseInt(params["chat_id"], 10, 64)
		writeResult(w, map[string]any{
			"message_id": id,
			"date":       0,
			"chat":       map[string]any{"id": chatID, "type": "private"},
			"text":       params["text"],
		})
	default:
		writeResult(w, true)
	}
}

func (s *Server) serveGetFile(w http.ResponseWriter, fileID string) {
	s.mu.Lock()
	_, ok := s.files[fileID]
	size := s.fileSizes[fileID]
	s.mu.Unlock()

	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "error_code": 400, "description": "Bad Request: invalid file_id"})
		return
	}
	writeResult(w, map[string]any{
		"file_id":        fileID,
		"file_unique_id": "u-" + fileID,
		"file_size":      size,
		"file_path":      "files/" + fileID,
	})
}

func (s *Server) serveFile(w http.ResponseWriter, path string) {
	fileID, _ := strings.CutPrefix(path, "files/")
	s.mu.Lock()
	data, ok := s.files[fileID]
	broken := s.broken[fileID]
	s.mu.Unlock()
	if !ok || broken {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	_, _ = w.Write(data)
}

func writeResult(w http.ResponseWriter, result any) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "result": result})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		panic(fmt.Sprintf("telegramtest: encode response: %v", err))
	}
}
