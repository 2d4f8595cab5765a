package honeypot

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/scamshield-ai/honeypot-platform/pkg/logging"
)

func TestRegexExtractor_FullMessage(t *testing.T) {
	text := "URGENT: your account is blocked! Transfer to account 123456789012 right now. " +
		"Call +91-9876543210 or pay winner@oksbi. Questions? help@fraud-desk.com. " +
		"Claim here: https://evil.example/login or bit.ly/win123"

	intel, err := NewRegexExtractor().Extract(context.Background(), text, nil)
	if err != nil {
		t.Fatalf("Extract returned error: %v", err)
	}

	if want := []string{"123456789012"}; !reflect.DeepEqual(intel.BankAccounts, want) {
		t.Errorf("bank accounts = %v, want %v", intel.BankAccounts, want)
	}
	if want := []string{"winner@oksbi"}; !reflect.DeepEqual(intel.UPIIDs, want) {
		t.Errorf("upi ids = %v, want %v", intel.UPIIDs, want)
	}
	if want := []string{"help@fraud-desk.com"}; !reflect.DeepEqual(intel.EmailAddresses, want) {
		t.Errorf("emails = %v, want %v", intel.EmailAddresses, want)
	}
	if len(intel.PhoneNumbers) == 0 || intel.PhoneNumbers[0] != "+91-9876543210" {
		t.Errorf("phone numbers = %v, want +91-9876543210 first", intel.PhoneNumbers)
	}
	if want := []string{"https://evil.example/login", "bit.ly/win123"}; !reflect.DeepEqual(intel.PhishingLinks, want) {
		t.Errorf("links = %v, want %v", intel.PhishingLinks, want)
	}
	for _, kw := range []string{"urgent", "blocked", "claim"} {
		if !containsString(intel.SuspiciousKeywords, kw) {
			t.Errorf("keywords %v missing %q", intel.SuspiciousKeywords, kw)
		}
	}
}

func TestRegexExtractor_PhoneRunsAreNotBankAccounts(t *testing.T) {
	// A bare 10-digit mobile must never land in the bank set, and a digit run
	// already claimed as a phone (with or without country code) is excluded.
	tests := []struct {
		name  string
		text  string
		banks int
	}{
		{"ten digit mobile", "send money, my number is 9876543210", 0},
		{"country code duplicate", "call +91 9876543210 or wire to 919876543210", 0},
		{"genuine account survives", "account 34712893401 and phone 9876543210", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			intel, err := NewRegexExtractor().Extract(context.Background(), tt.text, nil)
			if err != nil {
				t.Fatalf("Extract returned error: %v", err)
			}
			if len(intel.BankAccounts) != tt.banks {
				t.Fatalf("bank accounts = %v, want %d entries", intel.BankAccounts, tt.banks)
			}
		})
	}
}

func TestRegexExtractor_KeywordsLowercased(t *testing.T) {
	intel, err := NewRegexExtractor().Extract(context.Background(), "Act NOW or face LEGAL ACTION, share your OTP", nil)
	if err != nil {
		t.Fatalf("Extract returned error: %v", err)
	}
	for _, kw := range intel.SuspiciousKeywords {
		if kw != "now" && kw != "legal action" && kw != "otp" {
			t.Fatalf("unexpected keyword %q in %v", kw, intel.SuspiciousKeywords)
		}
	}
	if len(intel.SuspiciousKeywords) != 3 {
		t.Fatalf("keywords = %v, want 3 entries", intel.SuspiciousKeywords)
	}
}

func TestContextualExtractor_LLMFiltersCandidates(t *testing.T) {
	backend := &scriptedBackend{text: `{"bankAccounts": ["123456789012"], "upiIds": [], "phoneNumbers": [], "phishingLinks": []}`}
	ex := NewContextualExtractor(NewRegexExtractor(), backend, "model", 0, logging.Default())

	intel, err := ex.Extract(context.Background(),
		"transfer to 123456789012, I also mentioned my own upi me@okaxis, urgent", nil)
	if err != nil {
		t.Fatalf("Extract returned error: %v", err)
	}
	if want := []string{"123456789012"}; !reflect.DeepEqual(intel.BankAccounts, want) {
		t.Errorf("bank accounts = %v, want %v", intel.BankAccounts, want)
	}
	// The model dropped the UPI candidate.
	if len(intel.UPIIDs) != 0 {
		t.Errorf("upi ids = %v, want none", intel.UPIIDs)
	}
	// Keywords always come from the regex pass.
	if !containsString(intel.SuspiciousKeywords, "urgent") {
		t.Errorf("keywords %v missing urgent", intel.SuspiciousKeywords)
	}
}

func TestContextualExtractor_FallsBackOnLLMFailure(t *testing.T) {
	backend := &scriptedBackend{err: errors.New("provider down")}
	ex := NewContextualExtractor(NewRegexExtractor(), backend, "model", 0, logging.Default())

	intel, err := ex.Extract(context.Background(), "pay to scammer@okicici now", nil)
	if err != nil {
		t.Fatalf("Extract returned error: %v", err)
	}
	if want := []string{"scammer@okicici"}; !reflect.DeepEqual(intel.UPIIDs, want) {
		t.Fatalf("expected regex candidates on llm failure, got %v", intel.UPIIDs)
	}
}

func TestContextualExtractor_FallsBackOnUnparseableVerdict(t *testing.T) {
	backend := &scriptedBackend{text: "I think the account belongs to the scammer."}
	ex := NewContextualExtractor(NewRegexExtractor(), backend, "model", 0, logging.Default())

	intel, err := ex.Extract(context.Background(), "wire it all to 123456789012", nil)
	if err != nil {
		t.Fatalf("Extract returned error: %v", err)
	}
	if want := []string{"123456789012"}; !reflect.DeepEqual(intel.BankAccounts, want) {
		t.Fatalf("expected regex candidates on parse failure, got %v", intel.BankAccounts)
	}
}

func TestContextualExtractor_SkipsLLMWithoutActionableCandidates(t *testing.T) {
	backend := &scriptedBackend{text: "{}"}
	ex := NewContextualExtractor(NewRegexExtractor(), backend, "model", 0, logging.Default())

	intel, err := ex.Extract(context.Background(), "please verify immediately", nil)
	if err != nil {
		t.Fatalf("Extract returned error: %v", err)
	}
	if backend.calls != 0 {
		t.Fatalf("expected no llm call for keyword-only hits, got %d", backend.calls)
	}
	if len(intel.SuspiciousKeywords) != 2 {
		t.Fatalf("keywords = %v, want verify and immediately", intel.SuspiciousKeywords)
	}
}

func TestContextualExtractor_FencedJSONAccepted(t *testing.T) {
	backend := &scriptedBackend{text: "```json\n{\"bankAccounts\": [], \"upiIds\": [\"pay@okhdfc\"], \"phoneNumbers\": [], \"phishingLinks\": []}\n```"}
	ex := NewContextualExtractor(NewRegexExtractor(), backend, "model", 0, logging.Default())

	intel, err := ex.Extract(context.Background(), "send to pay@okhdfc", nil)
	if err != nil {
		t.Fatalf("Extract returned error: %v", err)
	}
	if want := []string{"pay@okhdfc"}; !reflect.DeepEqual(intel.UPIIDs, want) {
		t.Fatalf("upi ids = %v, want %v", intel.UPIIDs, want)
	}
}

func containsString(set []string, want string) bool {
	for _, v := range set {
		if v == want {
			return true
		}
	}
	return false
}
