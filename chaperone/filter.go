package chaperone

import (
	"regexp"
	"sort"
	"strings"
	"sync"
	"unicode"
)

// FilterReason identifies why the content filter flagged a message.
type FilterReason string

const (
	ReasonFilteredWord     FilterReason = "Contains inappropriate content"
	ReasonInviteLink       FilterReason = "Contains Discord invite link"
	ReasonExternalLink     FilterReason = "Contains external link"
	ReasonExcessiveCaps    FilterReason = "Excessive capital letters"
	ReasonExcessiveRepeats FilterReason = "Excessive repeated characters"
	ReasonSpamLike         FilterReason = "Appears to be spam"
)

var (
	urlPattern = regexp.MustCompile(
		`http[s]?://(?:[a-zA-Z]|[0-9]|[$-_@.&+]|[!*\\(\\),]|(?:%[0-9a-fA-F][0-9a-fA-F]))+`,
	)
	invitePattern = regexp.MustCompile(
		`(discord\.gg/|discord\.com/invite/|discordapp\.com/invite/)[a-zA-Z0-9]+`,
	)
)

const (
	// capsRatioThreshold is the uppercase-to-letters ratio above which a
	// message counts as excessive caps
	capsRatioThreshold = DefaultCapsRatio

	// capsMinLength / capsMinLetters gate the caps check so short
	// messages are never flagged
	capsMinLength  = 10
	capsMinLetters = 5

	// repeatRunLength is the consecutive-character run length that
	// counts as excessive repeats
	repeatRunLength = 5

	// spamLikeScoreThreshold is the composite score at or above which a
	// message is considered spam-like
	spamLikeScoreThreshold = 2

	spamLikeMinLength = 50
	spamLikeMaxWords  = 3
	spamLikeMaxEmoji  = 5
)

// FilterVerdict is the result of running a message through the content
// filter. Matched reflects only the hard blockers (filtered word or
// invite link); the remaining reasons are advisory, surfaced to
// moderators but not independently blocking.
type FilterVerdict struct {
	Matched  bool
	SpamLike bool
	Reasons  []FilterReason
}

// MessageFilter holds the process-wide content filtering rules: a set
// of forbidden terms plus pattern matchers and heuristics for links,
// caps, repeats and spam-like composition. Term mutation is guarded;
// everything else is read-only after construction.
type MessageFilter struct {
	mu    sync.RWMutex
	words map[string]struct{}
}

// NewMessageFilter creates a filter with the given forbidden terms.
// Terms are lowercased; empty entries are dropped.
func NewMessageFilter(words []string) *MessageFilter {
	f := &MessageFilter{words: map[string]struct{}{}}
	for _, w := range words {
		w = strings.ToLower(strings.TrimSpace(w))
		if w != "" {
			f.words[w] = struct{}{}
		}
	}
	return f
}

// ContainsFilteredWords reports whether the message contains a
// forbidden term. Two checks are applied: the lowercased message, with
// punctuation collapsed to whitespace, is tokenized and each token
// compared for equality; then each term is checked as a raw substring
// of the lowercased message. The substring check is intentionally broad
// and over-matches on short terms embedded in longer words.
func (f *MessageFilter) ContainsFilteredWords(message string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if len(f.words) == 0 {
		return false
	}
	lower := strings.ToLower(message)

	for _, token := range strings.Fields(collapsePunctuation(lower)) {
		if _, ok := f.words[token]; ok {
			return true
		}
	}
	for word := range f.words {
		if strings.Contains(lower, word) {
			return true
		}
	}
	return false
}

// ContainsInvite reports whether the message contains a Discord invite link.
func (f *MessageFilter) ContainsInvite(message string) bool {
	return invitePattern.MatchString(message)
}

// ContainsExternalLink reports whether the message contains a URL.
func (f *MessageFilter) ContainsExternalLink(message string) bool {
	return urlPattern.MatchString(message)
}

// IsExcessiveCaps reports whether more than 70% of the message's
// letters are uppercase. Messages under 10 characters, or with fewer
// than 5 letters, are never flagged.
func (f *MessageFilter) IsExcessiveCaps(message string) bool {
	runes := []rune(message)
	if len(runes) < capsMinLength {
		return false
	}
	var letters, caps int
	for _, r := range runes {
		if unicode.IsLetter(r) {
			letters++
			if unicode.IsUpper(r) {
				caps++
			}
		}
	}
	if letters < capsMinLetters {
		return false
	}
	return float64(caps)/float64(letters) > capsRatioThreshold
}

// HasExcessiveRepeats reports whether any single character is repeated
// five or more times consecutively.
func (f *MessageFilter) HasExcessiveRepeats(message string) bool {
	var prev rune
	run := 0
	for _, r := range message {
		if r == prev {
			run++
			if run >= repeatRunLength {
				return true
			}
		} else {
			prev = r
			run = 1
		}
	}
	return false
}

// IsSpamLike scores one point each for excessive caps, excessive
// repeats, a long message with very few words, and heavy emoji use.
// Two or more points make the message spam-like. This is a composite,
// advisory signal: a message can be spam-like without any individual
// reason being a hard block.
func (f *MessageFilter) IsSpamLike(message string) bool {
	score := 0
	if f.IsExcessiveCaps(message) {
		score++
	}
	if f.HasExcessiveRepeats(message) {
		score++
	}
	if len(strings.Fields(message)) < spamLikeMaxWords &&
		len([]rune(message)) > spamLikeMinLength {
		score++
	}
	if countEmoji(message) > spamLikeMaxEmoji {
		score++
	}
	return score >= spamLikeScoreThreshold
}

// Check evaluates every rule against the message and reports all
// triggered reasons; nothing short-circuits. Matched is true only for
// the hard blockers: a filtered word or an invite link.
func (f *MessageFilter) Check(message string) FilterVerdict {
	var verdict FilterVerdict

	if f.ContainsFilteredWords(message) {
		verdict.Matched = true
		verdict.Reasons = append(verdict.Reasons, ReasonFilteredWord)
	}
	if f.ContainsInvite(message) {
		verdict.Matched = true
		verdict.Reasons = append(verdict.Reasons, ReasonInviteLink)
	}
	if f.ContainsExternalLink(message) {
		verdict.Reasons = append(verdict.Reasons, ReasonExternalLink)
	}
	if f.IsExcessiveCaps(message) {
		verdict.Reasons = append(verdict.Reasons, ReasonExcessiveCaps)
	}
	if f.HasExcessiveRepeats(message) {
		verdict.Reasons = append(verdict.Reasons, ReasonExcessiveRepeats)
	}
	if f.IsSpamLike(message) {
		verdict.SpamLike = true
		verdict.Reasons = append(verdict.Reasons, ReasonSpamLike)
	}
	return verdict
}

// Clean collapses excessive character runs down to two and redacts
// invite links.
func (f *MessageFilter) Clean(message string) string {
	var b strings.Builder
	var prev rune
	run := 0
	for _, r := range message {
		if r == prev {
			run++
			if run > 2 {
				continue
			}
		} else {
			prev = r
			run = 1
		}
		b.WriteRune(r)
	}
	return invitePattern.ReplaceAllString(b.String(), "[INVITE_REMOVED]")
}

// AddWord adds a term to the filter list.
func (f *MessageFilter) AddWord(word string) {
	word = strings.ToLower(strings.TrimSpace(word))
	if word == "" {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.words[word] = struct{}{}
}

// RemoveWord removes a term from the filter list. Reports whether the
// term was present.
func (f *MessageFilter) RemoveWord(word string) bool {
	word = strings.ToLower(strings.TrimSpace(word))
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.words[word]
	delete(f.words, word)
	return ok
}

// Words returns the current filter terms, sorted.
func (f *MessageFilter) Words() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	words := make([]string, 0, len(f.words))
	for w := range f.words {
		words = append(words, w)
	}
	sort.Strings(words)
	return words
}

// collapsePunctuation replaces anything that isn't a word character or
// whitespace with a space, so tokenization isn't thrown off by
// punctuation stuck to words.
func collapsePunctuation(s string) string {
	return strings.Map(
		func(r rune) rune {
			if r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) ||
				unicode.IsSpace(r) {
				return r
			}
			return ' '
		}, s,
	)
}

// countEmoji counts code points in the common emoji blocks
// (emoticons, symbols/pictographs, transport, regional indicators).
func countEmoji(s string) int {
	count := 0
	for _, r := range s {
		switch {
		case r >= 0x1F600 && r <= 0x1F64F,
			r >= 0x1F300 && r <= 0x1F5FF,
			r >= 0x1F680 && r <= 0x1F6FF,
			r >= 0x1F1E0 && r <= 0x1F1FF:
			count++
		}
	}
	return count
}
