package handlers

import (
	"context"
	"testing"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgard/lensbot/internal/analysis"
	"github.com/edgard/lensbot/internal/database"
)

func TestStartRegistersOnce(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	b := f.srv.NewBot(t)
	h := NewStartHandler(f.deps)

	h(context.Background(), b, textUpdate("/start"))
	h(context.Background(), b, textUpdate("/start"))

	user, err := f.store.GetUser(context.Background(), testChatID)
	require.NoError(t, err)
	assert.Equal(t, "Ada", user.FirstName)
	assert.Equal(t, "ada", user.Username)

	sent := f.srv.Calls("sendMessage")
	require.Len(t, sent, 2)
	assert.Equal(t, "Welcome! Please share your phone number to complete registration.", sent[0].Params["text"])
	assert.Contains(t, sent[0].Params["reply_markup"], `"request_contact":true`)
	assert.Contains(t, sent[0].Params["reply_markup"], `"one_time_keyboard":true`)
	assert.Equal(t, "You are already registered!", sent[1].Params["text"])
}

func TestStartStoreError(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.store.err = errBoom

	NewStartHandler(f.deps)(context.Background(), f.srv.NewBot(t), textUpdate("/start"))

	assert.Equal(t, []string{"An error occurred. Please try again later."}, f.srv.SentTexts())
}

func contactUpdate(userID int64, phone string) *models.Update {
	u := textUpdate("")
	u.Message.Contact = &models.Contact{PhoneNumber: phone, FirstName: "Ada", UserID: userID}
	return u
}

func TestContactSavesPhone(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	b := f.srv.NewBot(t)
	_, err := f.store.CreateUser(context.Background(), &database.User{ChatID: testChatID, Username: "ada"})
	require.NoError(t, err)

	NewContactHandler(f.deps)(context.Background(), b, contactUpdate(testChatID, "+15550100"))

	user, err := f.store.GetUser(context.Background(), testChatID)
	require.NoError(t, err)
	assert.Equal(t, "+15550100", user.PhoneNumber)

	sent := f.srv.Calls("sendMessage")
	require.Len(t, sent, 1)
	assert.Equal(t, "Thank you! Registration is now complete.", sent[0].Params["text"])
	assert.Contains(t, sent[0].Params["reply_markup"], `"remove_keyboard":true`)
}

func TestContactCases(t *testing.T) {
	t.Parallel()

	t.Run("missing user id", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		NewContactHandler(f.deps)(context.Background(), f.srv.NewBot(t), contactUpdate(0, "+1"))
		assert.Equal(t, []string{"Please use the 'Share Phone Number' button to share your contact."}, f.srv.SentTexts())
	})

	t.Run("unregistered user still thanked", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		NewContactHandler(f.deps)(context.Background(), f.srv.NewBot(t), contactUpdate(testChatID, "+1"))
		assert.Equal(t, []string{"Thank you! Registration is now complete."}, f.srv.SentTexts())
	})

	t.Run("store error", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		f.store.err = errBoom
		NewContactHandler(f.deps)(context.Background(), f.srv.NewBot(t), contactUpdate(testChatID, "+1"))
		assert.Equal(t, []string{"An error occurred while saving your contact. Please try again."}, f.srv.SentTexts())
	})
}

func TestChatRelaysAndRecords(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.ai.reply = "Hello, Ada!"

	NewChatHandler(f.deps)(context.Background(), f.srv.NewBot(t), textUpdate("hi there"))

	assert.Equal(t, []string{"Hello, Ada!"}, f.srv.SentTexts())
	require.Len(t, f.store.history, 1)
	entry := f.store.history[0]
	assert.NotEmpty(t, entry.ID)
	assert.Equal(t, testChatID, entry.ChatID)
	assert.Equal(t, "hi there", entry.UserMessage)
	assert.Equal(t, "Hello, Ada!", entry.BotResponse)
	assert.False(t, entry.Timestamp.IsZero())
}

func TestChatFailures(t *testing.T) {
	t.Parallel()

	t.Run("ai error", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		f.ai.replyErr = errBoom
		NewChatHandler(f.deps)(context.Background(), f.srv.NewBot(t), textUpdate("hi"))
		assert.Equal(t, []string{"I'm having trouble processing your request right now."}, f.srv.SentTexts())
		assert.Empty(t, f.store.history)
	})

	t.Run("history error still replies", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		f.ai.reply = "answer"
		f.store.err = errBoom
		NewChatHandler(f.deps)(context.Background(), f.srv.NewBot(t), textUpdate("hi"))
		assert.Equal(t, []string{"answer"}, f.srv.SentTexts())
	})

	t.Run("commands ignored", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		NewChatHandler(f.deps)(context.Background(), f.srv.NewBot(t), textUpdate("/unknown"))
		assert.Empty(t, f.srv.SentTexts())
		assert.Empty(t, f.ai.prompts)
	})
}

func TestWebSearch(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name      string
		text      string
		result    string
		err       error
		want      string
		wantQuery string
	}{
		{name: "usage", text: "/websearch", want: "Please provide a search query after /websearch."},
		{name: "results", text: "/websearch go  generics", result: "Go 1.18 added generics.", want: "Search Results:\nGo 1.18 added generics.", wantQuery: "go generics"},
		{name: "no results", text: "/websearch nothing", result: "  ", want: "Search Results:\nNo results found.", wantQuery: "nothing"},
		{name: "error", text: "/websearch boom", err: errBoom, want: "Unable to perform the search at the moment.", wantQuery: "boom"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			f := newFixture(t)
			f.ai.search, f.ai.searchErr = tc.result, tc.err

			NewWebSearchHandler(f.deps)(context.Background(), f.srv.NewBot(t), textUpdate(tc.text))

			assert.Equal(t, []string{tc.want}, f.srv.SentTexts())
			if tc.wantQuery == "" {
				assert.Empty(t, f.ai.prompts)
			} else {
				assert.Equal(t, []string{tc.wantQuery}, f.ai.prompts)
			}
		})
	}
}

func TestReferralCode(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "654321", ReferralCode(987654321))
	assert.Equal(t, "12345", ReferralCode(12345))
	assert.Equal(t, "123456", ReferralCode(-100123456))
}

func TestReferral(t *testing.T) {
	t.Parallel()

	t.Run("unregistered", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		NewReferralHandler(f.deps)(context.Background(), f.srv.NewBot(t), textUpdate("/referral"))
		assert.Equal(t, []string{"Please register first using the /start command."}, f.srv.SentTexts())
		assert.Empty(t, f.store.referrals)
	})

	t.Run("issues code", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		_, err := f.store.CreateUser(context.Background(), &database.User{ChatID: testChatID, Username: "ada"})
		require.NoError(t, err)

		NewReferralHandler(f.deps)(context.Background(), f.srv.NewBot(t), textUpdate("/referral"))

		assert.Equal(t, []string{"Your referral code is: 654321\nShare it with friends to get rewards!"}, f.srv.SentTexts())
		ref, ok := f.store.referrals["654321"]
		require.True(t, ok)
		assert.Equal(t, "ada", ref.Referrer)
	})

	t.Run("store error", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		f.store.err = errBoom
		NewReferralHandler(f.deps)(context.Background(), f.srv.NewBot(t), textUpdate("/referral"))
		assert.Equal(t, []string{"Unable to generate a referral code. Please try again later."}, f.srv.SentTexts())
	})
}

func TestHelp(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	NewHelpHandler(f.deps)(context.Background(), f.srv.NewBot(t), textUpdate("/help"))

	texts := f.srv.SentTexts()
	require.Len(t, texts, 1)
	assert.Contains(t, texts[0], "/websearch")
}

func documentUpdate(fileID, name string) *models.Update {
	u := textUpdate("")
	u.Message.Document = &models.Document{FileID: fileID, FileName: name}
	return u
}

func TestFileHandlerImage(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.ai.analysis = analysis.Succeeded("a red square")
	f.srv.AddFile("big", pngBytes(t))

	u := textUpdate("")
	u.Message.Photo = []models.PhotoSize{
		{FileID: "thumb", Width: 90, Height: 90},
		{FileID: "big", Width: 800, Height: 600},
	}
	NewFileHandler(f.deps)(context.Background(), f.srv.NewBot(t), u)

	assert.Equal(t, []string{"Analysis Result:\na red square"}, f.srv.SentTexts())
	assert.Equal(t, "big", f.srv.Calls("getFile")[0].Params["file_id"])
	require.Len(t, f.store.records, 1)
	assert.Equal(t, analysis.DefaultPhotoName, f.store.records[0].FileName)
	assert.Equal(t, "a red square", f.store.records[0].Description)
	assert.Equal(t, []string{"Analyze this image and provide a detailed description"}, f.ai.prompts)
}

func TestFileHandlerDocumentOutcomes(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name      string
		fileName  string
		result    analysis.Result
		want      string
		wantCalls int
	}{
		{name: "pdf", fileName: "Report.PDF", result: analysis.Succeeded("quarterly numbers"), want: "Analysis Result:\nquarterly numbers", wantCalls: 1},
		{name: "empty pdf text", fileName: "a.pdf", result: analysis.Succeeded(""), want: "Analysis Result:\nPDF analysis failed.", wantCalls: 1},
		{name: "exhausted", fileName: "a.pdf", result: analysis.RateLimited(errBoom), want: "Analysis Result:\nResource exhausted. Please try again later.", wantCalls: 3},
		{name: "failed", fileName: "a.pdf", result: analysis.Failed(errBoom), want: "Analysis Result:\nAn error occurred during processing.", wantCalls: 1},
		{name: "unsupported", fileName: "notes.txt", want: "Analysis Result:\nCould not analyze this file type.", wantCalls: 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			f := newFixture(t)
			f.ai.analysis = tc.result
			f.srv.AddFile("doc", []byte("plain document text"))

			NewFileHandler(f.deps)(context.Background(), f.srv.NewBot(t), documentUpdate("doc", tc.fileName))

			assert.Equal(t, []string{tc.want}, f.srv.SentTexts())
			assert.Equal(t, tc.wantCalls, f.ai.analyzeCall)
			require.Len(t, f.store.records, 1)
			assert.Equal(t, tc.fileName, f.store.records[0].FileName)
		})
	}
}

func TestFileHandlerDownloadFailure(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	NewFileHandler(f.deps)(context.Background(), f.srv.NewBot(t), documentUpdate("missing", "a.pdf"))

	assert.Equal(t, []string{"Sorry, I couldn't analyze that file. Please try another image or PDF."}, f.srv.SentTexts())
	assert.Empty(t, f.store.records)
	assert.Zero(t, f.ai.analyzeCall)
}

func TestMatchers(t *testing.T) {
	t.Parallel()

	assert.True(t, IsChatMessage(textUpdate("hello")))
	assert.False(t, IsChatMessage(textUpdate("/start")))
	assert.False(t, IsChatMessage(textUpdate("   ")))
	assert.False(t, IsChatMessage(&models.Update{}))

	assert.True(t, IsFileMessage(documentUpdate("d", "a.pdf")))
	assert.False(t, IsFileMessage(textUpdate("hello")))

	assert.True(t, IsContactMessage(contactUpdate(1, "+1")))
	assert.False(t, IsContactMessage(textUpdate("hello")))
}

func TestRegisterAllCommands(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	registered := RegisterAllCommands(f.deps)

	for _, name := range []string{"/start", "/help", "/websearch", "/referral", "contact", "file", "chat"} {
		reg, ok := registered[name]
		require.True(t, ok, name)
		assert.NotNil(t, reg.Handler, name)
	}
	assert.NotNil(t, registered["file"].Match)
	assert.Equal(t, tgbot.MatchTypeCommandStartOnly, registered["/websearch"].MatchType)
	assert.Len(t, registered["chat"].Middleware, 1)
}

func TestTypingMiddleware(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	b := f.srv.NewBot(t)

	var ran bool
	h := Typing(f.deps)(func(context.Context, *tgbot.Bot, *models.Update) { ran = true })
	h(context.Background(), b, textUpdate("hi"))

	assert.True(t, ran)
	calls := f.srv.Calls("sendChatAction")
	require.NotEmpty(t, calls)
	assert.Equal(t, "typing", calls[0].Params["action"])
}
