// Package priority classifies messages into translation priority tiers.
// Classification is a pure function of content shape, language match, and
// content age; it performs no I/O and holds no shared state.
package priority

import (
	"regexp"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/language"

	"github.com/lantern-intel/lantern/internal/core/domain"
)

// Default age boundaries for the three-tier shape.
const (
	DefaultHighWindow   = 6 * time.Hour
	DefaultNormalWindow = 72 * time.Hour
)

var (
	// A message that is nothing but a link.
	pureURLPattern = regexp.MustCompile(`^(?:https?://|www\.)\S+$`)

	// A single hashtag or mention token.
	singleTagPattern = regexp.MustCompile(`^[#@][\p{L}\p{N}_]+$`)
)

// Classifier maps message attributes to a translation priority tier.
// The zero value is not usable; construct with New.
type Classifier struct {
	highWindow   time.Duration
	normalWindow time.Duration
}

// New creates a classifier with the given age boundaries. Non-positive
// windows fall back to the defaults (6h / 72h).
func New(highWindow, normalWindow time.Duration) *Classifier {
	if highWindow <= 0 {
		highWindow = DefaultHighWindow
	}

	if normalWindow <= 0 {
		normalWindow = DefaultNormalWindow
	}

	return &Classifier{
		highWindow:   highWindow,
		normalWindow: normalWindow,
	}
}

// Classify returns the translation priority for a message relative to the
// current time.
func (c *Classifier) Classify(text, sourceLang, targetLang string, publishedAt time.Time) domain.Priority {
	return c.ClassifyAt(time.Now(), text, sourceLang, targetLang, publishedAt)
}

// ClassifyAt is Classify with an explicit reference time. Rules are
// evaluated in order, first match wins:
//
//  1. Same source and target language (both known): skip.
//  2. Trivial content (pure URL, single tag token, no alphabetic text): skip.
//  3. Age under the high window: high; under the normal window: normal;
//     otherwise low. Unknown publish time defaults to normal.
func (c *Classifier) ClassifyAt(now time.Time, text, sourceLang, targetLang string, publishedAt time.Time) domain.Priority {
	if sourceLang != "" && targetLang != "" && sameLanguage(sourceLang, targetLang) {
		return domain.PrioritySkip
	}

	if IsTrivial(text) {
		return domain.PrioritySkip
	}

	if publishedAt.IsZero() {
		return domain.PriorityNormal
	}

	age := now.Sub(publishedAt)

	switch {
	case age < c.highWindow:
		return domain.PriorityHigh
	case age < c.normalWindow:
		return domain.PriorityNormal
	default:
		return domain.PriorityLow
	}
}

// IsTrivial reports whether translating the text would produce no value:
// a bare URL, a single hashtag or mention, or content with no alphabetic
// characters at all (pure numbers, punctuation, emoji).
func IsTrivial(text string) bool {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return true
	}

	if pureURLPattern.MatchString(trimmed) {
		return true
	}

	if singleTagPattern.MatchString(trimmed) {
		return true
	}

	return !strings.ContainsFunc(trimmed, unicode.IsLetter)
}

// sameLanguage compares two language codes by their base language, so
// "en-US" and "en" count as the same. Unparseable tags fall back to a
// case-insensitive string comparison.
func sameLanguage(a, b string) bool {
	tagA, errA := language.Parse(a)
	tagB, errB := language.Parse(b)

	if errA != nil || errB != nil {
		return strings.EqualFold(a, b)
	}

	baseA, confA := tagA.Base()
	baseB, confB := tagB.Base()

	if confA == language.No || confB == language.No {
		return strings.EqualFold(a, b)
	}

	return baseA == baseB
}
