package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/catmaid/backend/internal/model/persona"
	"github.com/zhouzirui/catmaid/backend/internal/model/status"
	"github.com/zhouzirui/catmaid/backend/internal/service/history"
	statusService "github.com/zhouzirui/catmaid/backend/internal/service/status"
	"github.com/zhouzirui/catmaid/backend/internal/service/turn"
	"github.com/zhouzirui/catmaid/backend/internal/store"
)

type stubGenerator struct{ reply string }

func (s stubGenerator) Generate(ctx context.Context, _ []*schema.Message) (string, error) {
	return s.reply, nil
}

func setupRouter(t *testing.T) *chi.Mux {
	t.Helper()
	repo, err := store.NewSQLite(filepath.Join(t.TempDir(), "handler.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	statuses := statusService.NewService(repo, statusService.Config{Initial: status.DefaultInitial})
	hist := history.NewService(repo, nil)
	processor := turn.NewProcessor(repo, statuses, hist, stubGenerator{reply: "喵~ [affection: +5]"}, persona.Seed()[0], turn.DefaultConfig)

	r := chi.NewRouter()
	New(processor, statuses, hist, 8).RegisterRoutes(r)
	return r
}

func do(t *testing.T, r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

func decodeReply(t *testing.T, resp *httptest.ResponseRecorder) string {
	t.Helper()
	var out replyResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("failed to decode reply: %v", err)
	}
	return out.Reply
}

func TestChatTextMessage(t *testing.T) {
	r := setupRouter(t)

	resp := do(t, r, http.MethodPost, "/chat", `{"userId":"alice","message":"你好"}`)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	reply := decodeReply(t, resp)
	if !strings.Contains(reply, "❤️ 好感度：55/100") || !strings.Contains(reply, "⚡ 体力值：98/100") {
		t.Fatalf("unexpected reply: %q", reply)
	}
}

func TestChatSegmentMessage(t *testing.T) {
	r := setupRouter(t)

	body := `{"userId":"alice","message":[{"type":"at","data":{"qq":"10001"}},{"type":"text","data":{"text":"早"}}]}`
	resp := do(t, r, http.MethodPost, "/chat", body)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if reply := decodeReply(t, resp); !strings.HasPrefix(reply, "喵~") {
		t.Fatalf("unexpected reply: %q", reply)
	}
}

func TestChatRepliesInCharacterOnBadInput(t *testing.T) {
	r := setupRouter(t)

	tests := []struct {
		name, body, want string
	}{
		{"missing user", `{"message":"hi"}`, turn.ReplyLogin},
		{"unsupported message", `{"userId":"alice","message":{"text":"hi"}}`, turn.ReplyInvalid},
		{"symbols only", `{"userId":"alice","message":"???"}`, turn.ReplyInvalid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := do(t, r, http.MethodPost, "/chat", tt.body)
			if resp.Code != http.StatusOK {
				t.Fatalf("expected 200, got %d", resp.Code)
			}
			if got := decodeReply(t, resp); got != tt.want {
				t.Fatalf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestChatMalformedBody(t *testing.T) {
	r := setupRouter(t)
	resp := do(t, r, http.MethodPost, "/chat", `{not json`)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestResetAndStatus(t *testing.T) {
	r := setupRouter(t)

	do(t, r, http.MethodPost, "/chat", `{"userId":"alice","message":"你好"}`)

	resp := do(t, r, http.MethodPost, "/reset", `{"userId":"alice"}`)
	if got := decodeReply(t, resp); got != turn.ReplyReset {
		t.Fatalf("got %q", got)
	}

	resp = do(t, r, http.MethodGet, "/status/alice", "")
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	var st statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if st.Affection != 50 || st.Stamina != 100 || st.Mood != 50 || st.Max != 100 {
		t.Fatalf("unexpected status: %+v", st)
	}
}

func TestStatusInvalidUser(t *testing.T) {
	r := setupRouter(t)
	resp := do(t, r, http.MethodGet, "/status/bad-user", "")
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestHistory(t *testing.T) {
	r := setupRouter(t)

	do(t, r, http.MethodPost, "/chat", `{"userId":"alice","message":"一"}`)
	do(t, r, http.MethodPost, "/chat", `{"userId":"alice","message":"二"}`)

	resp := do(t, r, http.MethodGet, "/history/alice?limit=3", "")
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}

	var out struct {
		Entries []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"entries"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode history: %v", err)
	}
	if len(out.Entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(out.Entries))
	}
	if out.Entries[0].Role != "assistant" || out.Entries[1].Content != "二" {
		t.Fatalf("unexpected entries: %+v", out.Entries)
	}

	resp = do(t, r, http.MethodGet, "/history/alice?limit=abc", "")
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}

	resp = do(t, r, http.MethodGet, "/history/nobody", "")
	if !bytes.Contains(resp.Body.Bytes(), []byte(`"entries":[]`)) {
		t.Fatalf("expected empty entries, got %s", resp.Body.String())
	}
}
