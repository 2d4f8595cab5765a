package honeypot

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/scamshield-ai/honeypot-platform/internal/session"
	"github.com/scamshield-ai/honeypot-platform/pkg/logging"
)

// Extractor pulls structured intelligence out of a single scammer message.
// Implementations must return within a bounded time; callers proceed with an
// empty result on error.
type Extractor interface {
	Extract(ctx context.Context, text string, recentTurns []session.TranscriptEntry) (session.Intelligence, error)
}

var (
	cardPattern    = regexp.MustCompile(`\b\d{4}[-\s]?\d{4}[-\s]?\d{4}[-\s]?\d{4}\b`)
	accountPattern = regexp.MustCompile(`\b\d{11,18}\b`)
	// Matches both UPI handles (name@oksbi) and emails (name@host.tld).
	// Handles with a dotted domain suffix are routed to the email set.
	handlePattern    = regexp.MustCompile(`[\w.\-]+@[\w\-]+(?:\.[\w\-]+)*`)
	emailSuffix      = regexp.MustCompile(`@[\w\-]+(?:\.[\w\-]+)*\.[A-Za-z]{2,}$`)
	urlPattern       = regexp.MustCompile(`https?://[^\s<>"']+`)
	shortLinkPattern = regexp.MustCompile(`\b(?:bit\.ly|tinyurl\.com|goo\.gl)/[^\s]+`)
	intlPhonePattern = regexp.MustCompile(`\+91[-\s]?\d{10}`)
	mobilePattern    = regexp.MustCompile(`\b[6-9]\d{9}\b`)
	nonDigits        = regexp.MustCompile(`[^\d]`)

	keywordPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b(?:urgent|immediately|now|hurry|asap)\b`),
		regexp.MustCompile(`(?i)\b(?:verify|blocked|suspended|locked)\b`),
		regexp.MustCompile(`(?i)\b(?:prize|lottery|won|winner|claim)\b`),
		regexp.MustCompile(`(?i)\b(?:legal action|police|arrest|court)\b`),
		regexp.MustCompile(`(?i)\b(?:otp|pin|password|cvv)\b`),
	}
)

// RegexExtractor is the fast first pass: every pattern match is a candidate,
// with phone-number digit runs filtered out of the bank-account set.
type RegexExtractor struct{}

var _ Extractor = (*RegexExtractor)(nil)

func NewRegexExtractor() *RegexExtractor {
	return &RegexExtractor{}
}

func (e *RegexExtractor) Extract(_ context.Context, text string, _ []session.TranscriptEntry) (session.Intelligence, error) {
	var intel session.Intelligence

	for _, m := range intlPhonePattern.FindAllString(text, -1) {
		intel.PhoneNumbers = appendUnique(intel.PhoneNumbers, strings.TrimSpace(m))
	}
	for _, m := range mobilePattern.FindAllString(text, -1) {
		intel.PhoneNumbers = appendUnique(intel.PhoneNumbers, strings.TrimSpace(m))
	}

	// Digit runs already claimed as phone numbers are not bank accounts.
	phoneDigits := make(map[string]bool, len(intel.PhoneNumbers))
	for _, p := range intel.PhoneNumbers {
		phoneDigits[nonDigits.ReplaceAllString(p, "")] = true
	}

	for _, m := range append(cardPattern.FindAllString(text, -1), accountPattern.FindAllString(text, -1)...) {
		candidate := strings.TrimSpace(m)
		digits := nonDigits.ReplaceAllString(candidate, "")
		if len(digits) == 10 || phoneDigits[digits] || phoneDigits["91"+digits] {
			continue
		}
		intel.BankAccounts = appendUnique(intel.BankAccounts, candidate)
	}

	for _, m := range handlePattern.FindAllString(text, -1) {
		handle := strings.TrimSpace(m)
		if emailSuffix.MatchString(handle) {
			intel.EmailAddresses = appendUnique(intel.EmailAddresses, handle)
		} else {
			intel.UPIIDs = appendUnique(intel.UPIIDs, handle)
		}
	}

	for _, m := range append(urlPattern.FindAllString(text, -1), shortLinkPattern.FindAllString(text, -1)...) {
		intel.PhishingLinks = appendUnique(intel.PhishingLinks, strings.TrimSpace(m))
	}

	for _, pat := range keywordPatterns {
		for _, m := range pat.FindAllString(text, -1) {
			intel.SuspiciousKeywords = appendUnique(intel.SuspiciousKeywords, strings.ToLower(strings.TrimSpace(m)))
		}
	}

	return intel, nil
}

func appendUnique(set []string, value string) []string {
	if value == "" {
		return set
	}
	for _, existing := range set {
		if existing == value {
			return set
		}
	}
	return append(set, value)
}

const defaultExtractionTimeout = 3 * time.Second

// ContextualExtractor layers an LLM validation pass over the regex first
// pass: the model decides which regex candidates are the scammer's own
// payment and contact details rather than the victim's. Any failure, timeout
// or unparseable response falls back to the unfiltered regex result, so the
// turn never stalls on extraction.
type ContextualExtractor struct {
	base    Extractor
	llm     LLMClient
	model   string
	timeout time.Duration
	logger  *logging.Logger
}

var _ Extractor = (*ContextualExtractor)(nil)

func NewContextualExtractor(base Extractor, llm LLMClient, model string, timeout time.Duration, logger *logging.Logger) *ContextualExtractor {
	if base == nil {
		base = NewRegexExtractor()
	}
	if timeout <= 0 {
		timeout = defaultExtractionTimeout
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &ContextualExtractor{
		base:    base,
		llm:     llm,
		model:   model,
		timeout: timeout,
		logger:  logger,
	}
}

func (e *ContextualExtractor) Extract(ctx context.Context, text string, recentTurns []session.TranscriptEntry) (session.Intelligence, error) {
	candidates, err := e.base.Extract(ctx, text, recentTurns)
	if err != nil {
		return session.Intelligence{}, err
	}

	// Keyword-only hits do not need contextual filtering.
	if e.llm == nil || !candidates.HasActionable() {
		return candidates, nil
	}

	llmCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	validated, err := e.validateWithLLM(llmCtx, text, candidates, recentTurns)
	if err != nil {
		e.logger.Warn("contextual extraction failed, keeping regex candidates", "error", err)
		return candidates, nil
	}
	return validated, nil
}

type extractionVerdict struct {
	BankAccounts  []string `json:"bankAccounts"`
	UPIIDs        []string `json:"upiIds"`
	PhoneNumbers  []string `json:"phoneNumbers"`
	PhishingLinks []string `json:"phishingLinks"`
}

func (e *ContextualExtractor) validateWithLLM(ctx context.Context, text string, candidates session.Intelligence, recentTurns []session.TranscriptEntry) (session.Intelligence, error) {
	prompt, err := buildExtractionPrompt(text, candidates, recentTurns)
	if err != nil {
		return session.Intelligence{}, err
	}

	resp, err := e.llm.Complete(ctx, LLMRequest{
		Model:       e.model,
		Messages:    []ChatMessage{{Role: ChatRoleUser, Content: prompt}},
		MaxTokens:   200,
		Temperature: 0,
	})
	if err != nil {
		return session.Intelligence{}, err
	}

	var verdict extractionVerdict
	if err := json.Unmarshal([]byte(stripCodeFences(resp.Text)), &verdict); err != nil {
		return session.Intelligence{}, fmt.Errorf("honeypot: extraction verdict parse: %w", err)
	}

	result := session.Intelligence{
		BankAccounts:  verdict.BankAccounts,
		UPIIDs:        verdict.UPIIDs,
		PhoneNumbers:  verdict.PhoneNumbers,
		PhishingLinks: verdict.PhishingLinks,
		// Keywords and emails come straight from the regex pass.
		EmailAddresses:     candidates.EmailAddresses,
		SuspiciousKeywords: candidates.SuspiciousKeywords,
	}
	if len(result.PhishingLinks) == 0 {
		result.PhishingLinks = candidates.PhishingLinks
	}
	return result, nil
}

func buildExtractionPrompt(text string, candidates session.Intelligence, recentTurns []session.TranscriptEntry) (string, error) {
	contextSummary := "No prior conversation."
	if len(recentTurns) > 0 {
		recent := recentTurns
		if len(recent) > 6 {
			recent = recent[len(recent)-6:]
		}
		lines := make([]string, 0, len(recent))
		for _, turn := range recent {
			body := turn.Text
			if len(body) > 100 {
				body = body[:100]
			}
			lines = append(lines, fmt.Sprintf("%s: %s", turn.Sender, body))
		}
		contextSummary = strings.Join(lines, "\n")
	}

	candidateJSON, err := json.MarshalIndent(extractionVerdict{
		BankAccounts:  candidates.BankAccounts,
		UPIIDs:        candidates.UPIIDs,
		PhoneNumbers:  candidates.PhoneNumbers,
		PhishingLinks: candidates.PhishingLinks,
	}, "", "  ")
	if err != nil {
		return "", fmt.Errorf("honeypot: marshal extraction candidates: %w", err)
	}

	return fmt.Sprintf(`You are analyzing a scam conversation to extract the SCAMMER'S payment and contact details.

MESSAGE: %q

CONVERSATION CONTEXT:
%s

REGEX FOUND THESE CANDIDATES:
%s

YOUR TASK: Determine which of these belong to the SCAMMER (data they want money sent to, or their contact info).

RULES:
1. EXTRACT: Account numbers, UPI IDs, phone numbers the scammer wants the VICTIM to send money/transfer to
2. EXTRACT: Payment details the scammer provides as THEIR OWN receiving details
3. EXTRACT: Any number used with "transfer to", "send to", "pay to" (this is the scammer's receiving account)
4. IGNORE: Numbers ONLY mentioned as the victim's account with NO transfer request
5. KEY RULE: If the SAME number is mentioned as "your account" BUT ALSO used as a transfer destination, EXTRACT it
6. WHEN UNSURE: INCLUDE the data (better to over-extract than miss scammer details)

Return ONLY valid JSON with these exact keys:
{"bankAccounts": [], "upiIds": [], "phoneNumbers": [], "phishingLinks": []}`, text, contextSummary, candidateJSON), nil
}

// stripCodeFences unwraps responses the model packaged as a markdown code
// block.
func stripCodeFences(raw string) string {
	raw = strings.TrimSpace(raw)
	if !strings.Contains(raw, "```") {
		return raw
	}
	parts := strings.Split(raw, "```")
	if len(parts) < 2 {
		return raw
	}
	body := parts[1]
	body = strings.TrimPrefix(body, "json")
	return strings.TrimSpace(body)
}
