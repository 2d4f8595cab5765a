package honeypot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/scamshield-ai/honeypot-platform/internal/session"
	"github.com/scamshield-ai/honeypot-platform/pkg/logging"
)

func TestPersonaReply_TrimsQuotes(t *testing.T) {
	backend := &scriptedBackend{text: `"Oh wonderful! How do I claim it?"`}
	g := NewPersonaReplyGenerator(backend, "model", 0, logging.Default())

	reply, err := g.GenerateReply(context.Background(), "You won a prize", nil, session.Intelligence{}, "SMS")
	if err != nil {
		t.Fatalf("GenerateReply returned error: %v", err)
	}
	if reply != "Oh wonderful! How do I claim it?" {
		t.Fatalf("reply = %q", reply)
	}
}

func TestPersonaReply_CannedLineWhenPoolExhausted(t *testing.T) {
	backend := &scriptedBackend{err: fmt.Errorf("%w: provider down", ErrAllBackendsExhausted)}
	g := NewPersonaReplyGenerator(backend, "model", 0, logging.Default())

	reply, err := g.GenerateReply(context.Background(), "You won a prize", nil, session.Intelligence{}, "SMS")
	if err != nil {
		t.Fatalf("exhaustion must not surface as an error, got %v", err)
	}
	if reply != fallbackReply {
		t.Fatalf("reply = %q, want canned line", reply)
	}
}

func TestPersonaReply_OtherErrorsSurface(t *testing.T) {
	backend := &scriptedBackend{err: errors.New("bad request")}
	g := NewPersonaReplyGenerator(backend, "model", 0, logging.Default())

	if _, err := g.GenerateReply(context.Background(), "hello", nil, session.Intelligence{}, "SMS"); err == nil {
		t.Fatal("expected error for non-exhaustion failure")
	}
}

func TestPersonaReply_EmptyModelOutputFallsBack(t *testing.T) {
	backend := &scriptedBackend{text: "   "}
	g := NewPersonaReplyGenerator(backend, "model", 0, logging.Default())

	reply, err := g.GenerateReply(context.Background(), "hello", nil, session.Intelligence{}, "SMS")
	if err != nil {
		t.Fatalf("GenerateReply returned error: %v", err)
	}
	if reply != fallbackReply {
		t.Fatalf("reply = %q, want canned line", reply)
	}
}

func TestBuildPersonaPrompt_StagesWithTurnCount(t *testing.T) {
	history := []session.TranscriptEntry{
		{Sender: session.SenderScammer, Text: "You won"},
		{Sender: session.SenderAgent, Text: "Really?"},
		{Sender: session.SenderScammer, Text: "Yes, pay the fee"},
		{Sender: session.SenderAgent, Text: "How?"},
	}

	prompt := buildPersonaPrompt("Send to my UPI", history, session.Intelligence{}, "WhatsApp")
	if !strings.Contains(prompt, "TURN NUMBER: 2") {
		t.Fatalf("expected turn 2 in prompt:\n%s", prompt)
	}
	if !strings.Contains(prompt, "WhatsApp") {
		t.Fatal("channel missing from prompt")
	}
	if !strings.Contains(prompt, "Yes, pay the fee") {
		t.Fatal("history missing from prompt")
	}
}

func TestBuildPersonaPrompt_HistoryWindowed(t *testing.T) {
	history := make([]session.TranscriptEntry, 0, 10)
	for i := 0; i < 10; i++ {
		history = append(history, session.TranscriptEntry{
			Sender: session.SenderScammer,
			Text:   fmt.Sprintf("message-%d", i),
		})
	}

	prompt := buildPersonaPrompt("latest", history, session.Intelligence{}, "SMS")
	if strings.Contains(prompt, "message-3") {
		t.Fatal("prompt includes history outside the window")
	}
	if !strings.Contains(prompt, "message-9") {
		t.Fatal("prompt missing most recent history")
	}
}

func TestBuildPersonaPrompt_ListsCollectedDetails(t *testing.T) {
	intel := session.Intelligence{
		BankAccounts: []string{"123456789012"},
		UPIIDs:       []string{"scammer@oksbi"},
	}

	prompt := buildPersonaPrompt("pay me", nil, intel, "SMS")
	if !strings.Contains(prompt, "DETAILS THE SCAMMER ALREADY SHARED: bank account, UPI ID") {
		t.Fatalf("collected details missing from prompt:\n%s", prompt)
	}

	prompt = buildPersonaPrompt("pay me", nil, session.Intelligence{}, "SMS")
	if !strings.Contains(prompt, "DETAILS THE SCAMMER ALREADY SHARED: none yet") {
		t.Fatal("empty intelligence should read as none yet")
	}
}
