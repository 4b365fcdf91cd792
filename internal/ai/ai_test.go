package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"bsod-cli/internal/bugcheck"
	"bsod-cli/internal/config"
	"bsod-cli/internal/dump"
	"bsod-cli/internal/engine"
)

func TestOllamaAnalyze(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Errorf("unexpected path: %s", r.URL.Path)
			return
		}
		var req generateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
			return
		}
		if req.Stream {
			t.Error("expected stream to be false")
		}
		if req.Model != "test-model" {
			t.Errorf("model = %q", req.Model)
		}
		json.NewEncoder(w).Encode(generateResponse{
			Response: "The GPU driver is the likely culprit.",
			Done:     true,
		})
	}))
	defer server.Close()

	p := NewOllamaProvider(server.URL, "test-model")
	text, err := p.Analyze(context.Background(), "why did it crash?")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if text != "The GPU driver is the likely culprit." {
		t.Errorf("text = %q", text)
	}
}

func TestOllamaErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer server.Close()

	p := NewOllamaProvider(server.URL, "missing")
	if _, err := p.Analyze(context.Background(), "x"); err == nil {
		t.Fatal("expected error on non-200 status")
	}
}

func TestOpenAIAnalyze(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path: %s", r.URL.Path)
			return
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("auth header = %q", got)
		}
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
			return
		}
		if len(req.Messages) != 2 || req.Messages[0].Role != "system" {
			t.Errorf("messages = %+v", req.Messages)
		}
		var resp chatResponse
		resp.Choices = make([]chatChoice, 1)
		resp.Choices[0].Message.Content = "  Update nvlddmkm.sys.  "
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	p := NewOpenAIProvider(server.URL, "gpt-4o-mini", "sk-test", 512)
	text, err := p.Analyze(context.Background(), "prompt")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if text != "Update nvlddmkm.sys." {
		t.Errorf("text = %q, want trimmed content", text)
	}
}

func TestFromConfig(t *testing.T) {
	p, err := FromConfig(&config.Config{AIProvider: "ollama", AIModel: "llama3.2"})
	if err != nil {
		t.Fatalf("ollama: %v", err)
	}
	if !strings.HasPrefix(p.Name(), "ollama/") {
		t.Errorf("Name = %q", p.Name())
	}

	if _, err := FromConfig(&config.Config{AIProvider: "openai"}); err == nil {
		t.Error("openai without a key must fail")
	}
	if _, err := FromConfig(&config.Config{AIProvider: "hal9000"}); err == nil {
		t.Error("unknown provider must fail")
	}
}

func TestCrashPromptContents(t *testing.T) {
	result := &engine.Result{
		Summary:  dump.Summary{Format: dump.FormatMinidump, OSVersion: "10.0.19045", Architecture: "AMD64"},
		Crash:    dump.CrashInfo{Code: 0x3B, Parameters: []uint64{0xC0000005}},
		Bugcheck: bugcheck.Lookup(0x3B),
		Suspect: &engine.Suspect{
			Module:   dump.Module{Name: "nvlddmkm.sys"},
			Strategy: engine.StrategyTopOfStack,
		},
		Stack:      dump.StackTrace{{Address: 0x1000, Module: "nvlddmkm.sys", Offset: 0x234}},
		Cause:      "graphics driver fault",
		Confidence: 0.9,
	}
	prompt := CrashPrompt(result)
	for _, want := range []string{"0x3B", "SYSTEM_SERVICE_EXCEPTION", "nvlddmkm.sys", "graphics driver fault", "0.90"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}

	noSuspect := CrashPrompt(&engine.Result{Bugcheck: bugcheck.Lookup(0x9C)})
	if !strings.Contains(noSuspect, "No suspect driver") {
		t.Error("prompt should state when no suspect was found")
	}
}
