package app

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cloudwego/eino/schema"

	"github.com/zhouzirui/catmaid/backend/internal/config"
	"github.com/zhouzirui/catmaid/backend/internal/model/message"
)

type fixedGenerator string

func (g fixedGenerator) Generate(ctx context.Context, _ []*schema.Message) (string, error) {
	return string(g), nil
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	t.Setenv("DB_PATH", filepath.Join(t.TempDir(), "app.db"))
	t.Setenv("PERSONA_FILE", "")
	t.Setenv("MAX_STATUS_VALUE", "120")
	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("config.Load err: %v", err)
	}
	return cfg
}

func TestOpenWiresServices(t *testing.T) {
	a, err := Open(testConfig(t))
	if err != nil {
		t.Fatalf("Open err: %v", err)
	}
	defer a.Close()

	if a.Statuses.Limits().Max != 120 {
		t.Fatalf("Max: got %d", a.Statuses.Limits().Max)
	}
	if a.Scheduler.Policy().Max != 120 {
		t.Fatalf("policy Max: got %d", a.Scheduler.Policy().Max)
	}

	p := a.ProcessorWith(fixedGenerator("喵~"))
	reply := p.ProcessTurn(context.Background(), "alice", message.Text("你好"))
	if !strings.Contains(reply, "⚡ 体力值：98/120") {
		t.Fatalf("unexpected reply: %q", reply)
	}
}

func TestOpenLoadsPersonaFile(t *testing.T) {
	cfg := testConfig(t)
	path := filepath.Join(t.TempDir(), "personas.yaml")
	data := "personas:\n  - id: shiba\n    name: 小柴\n    title: 柴犬管家\n    tone: 憨厚\n"
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("write persona file: %v", err)
	}
	cfg.Persona.File = path

	a, err := Open(cfg)
	if err != nil {
		t.Fatalf("Open err: %v", err)
	}
	defer a.Close()

	if got := a.Personas.Default(); got.ID != "shiba" {
		t.Fatalf("default persona: got %q", got.ID)
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, config.LogConfig{Level: "warn", Format: "json"})
	logger.Info("hidden")
	logger.Warn("shown", "user_id", "alice")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("info should be filtered at warn level: %s", out)
	}
	if !strings.Contains(out, `"user_id":"alice"`) {
		t.Fatalf("expected json output, got %s", out)
	}
}
