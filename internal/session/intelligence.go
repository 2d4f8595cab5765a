package session

import "strings"

// Intelligence holds the named sets of strings extracted from the
// counterparty. Each slice is a set: membership matters, order does not,
// and duplicates (including near-duplicate phone formats) are collapsed
// on merge.
type Intelligence struct {
	BankAccounts       []string `json:"bankAccounts" dynamodbav:"bankAccounts"`
	UPIIDs             []string `json:"upiIds" dynamodbav:"upiIds"`
	PhishingLinks      []string `json:"phishingLinks" dynamodbav:"phishingLinks"`
	PhoneNumbers       []string `json:"phoneNumbers" dynamodbav:"phoneNumbers"`
	EmailAddresses     []string `json:"emailAddresses" dynamodbav:"emailAddresses"`
	SuspiciousKeywords []string `json:"suspiciousKeywords" dynamodbav:"suspiciousKeywords"`
}

// Merge returns the monotone per-category union of i and other. Phone
// numbers are collapsed to canonical form before comparison; the most
// complete textual form wins.
func (i Intelligence) Merge(other Intelligence) Intelligence {
	return Intelligence{
		BankAccounts:       unionStrings(i.BankAccounts, other.BankAccounts, normalizeDigits),
		UPIIDs:             unionStrings(i.UPIIDs, other.UPIIDs, strings.ToLower),
		PhishingLinks:      unionStrings(i.PhishingLinks, other.PhishingLinks, strings.TrimSpace),
		PhoneNumbers:       unionPhones(i.PhoneNumbers, other.PhoneNumbers),
		EmailAddresses:     unionStrings(i.EmailAddresses, other.EmailAddresses, strings.ToLower),
		SuspiciousKeywords: unionStrings(i.SuspiciousKeywords, other.SuspiciousKeywords, strings.ToLower),
	}
}

// NonEmptyCategories counts how many categories currently hold at least one
// entry. Used to gate re-finalization.
func (i Intelligence) NonEmptyCategories() int {
	count := 0
	for _, set := range [][]string{
		i.BankAccounts, i.UPIIDs, i.PhishingLinks,
		i.PhoneNumbers, i.EmailAddresses, i.SuspiciousKeywords,
	} {
		if len(set) > 0 {
			count++
		}
	}
	return count
}

// HasActionable reports whether any category beyond keyword flags is
// populated. Keyword flags alone are not reportable intelligence.
func (i Intelligence) HasActionable() bool {
	return len(i.BankAccounts) > 0 || len(i.UPIIDs) > 0 ||
		len(i.PhishingLinks) > 0 || len(i.PhoneNumbers) > 0 ||
		len(i.EmailAddresses) > 0
}

// IsEmpty reports whether no category holds anything at all.
func (i Intelligence) IsEmpty() bool {
	return i.NonEmptyCategories() == 0
}

// unionStrings merges two sets, deduplicating by the supplied key function
// while keeping first-seen textual forms and insertion order.
func unionStrings(existing, incoming []string, key func(string) string) []string {
	if len(incoming) == 0 {
		return existing
	}
	seen := make(map[string]struct{}, len(existing)+len(incoming))
	out := make([]string, 0, len(existing)+len(incoming))
	for _, v := range existing {
		k := key(v)
		if k == "" {
			k = v
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, v)
	}
	for _, v := range incoming {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		k := key(v)
		if k == "" {
			k = v
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, v)
	}
	return out
}

// unionPhones merges phone sets keyed by canonical form. Formatting and
// country-code variants of the same number collapse to one entry, stored
// canonically so a later re-merge is a no-op.
func unionPhones(existing, incoming []string) []string {
	seen := make(map[string]struct{}, len(existing)+len(incoming))
	out := make([]string, 0, len(existing)+len(incoming))

	add := func(raw string) {
		canonical := CanonicalPhone(strings.TrimSpace(raw))
		if canonical == "" {
			return
		}
		if _, ok := seen[canonical]; ok {
			return
		}
		seen[canonical] = struct{}{}
		out = append(out, canonical)
	}

	for _, v := range existing {
		add(v)
	}
	for _, v := range incoming {
		add(v)
	}
	return out
}

// CanonicalPhone reduces a phone number to its canonical form: separators
// stripped, a bare 10-digit mobile prefixed with its country code. Returns
// "" when the input does not look like a phone number at all.
func CanonicalPhone(raw string) string {
	digits := normalizeDigits(raw)
	if digits == "" {
		return ""
	}
	switch {
	case len(digits) == 10:
		return "+91" + digits
	case len(digits) == 12 && strings.HasPrefix(digits, "91"):
		return "+" + digits
	case strings.HasPrefix(strings.TrimSpace(raw), "+"):
		return "+" + digits
	default:
		return digits
	}
}

// normalizeDigits strips everything except digits.
func normalizeDigits(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
