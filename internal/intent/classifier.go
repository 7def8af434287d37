// Package intent maps free-form chat text to a typed booking intent.
// Classification is deterministic weighted keyword matching, no network.
package intent

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"citabot/internal/metrics"
	"citabot/internal/models"
)

// DefaultLanguage is used when the detected language has no pattern table.
const DefaultLanguage = "en"

// intentPriority breaks score ties deterministically: the more specific
// booking intents win over generic conversation.
var intentPriority = []models.IntentType{
	models.IntentNewBooking,
	models.IntentModifyBooking,
	models.IntentCancelBooking,
	models.IntentAvailability,
	models.IntentConversational,
}

var (
	clockRe   = regexp.MustCompile(`\b(\d{1,2}):(\d{2})\b`)
	hourRe    = regexp.MustCompile(`(?:\bat|\ba las|\bàs)\s+(\d{1,2})\s*(am|pm)?\b`)
	numDateRe = regexp.MustCompile(`\b(\d{1,2})/(\d{1,2})(?:/(\d{2,4}))?\b`)
)

// Vocabulary holds the facility's service and staff names so entity
// extraction can match against them.
type Vocabulary struct {
	Services []string
	Staff    []string
}

// Classifier scores inbound text against per-language pattern tables.
type Classifier struct {
	logger *zerolog.Logger
}

func NewClassifier(logger *zerolog.Logger) *Classifier {
	return &Classifier{logger: logger}
}

// Classify returns the typed intent for text. If the full classifier
// panics it degrades to the keyword-only subset instead of failing the
// request; the degradation is logged.
func (c *Classifier) Classify(text, language string, now time.Time, vocab Vocabulary) (result models.BookingIntent) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error().Interface("panic", r).Str("language", language).
				Msg("intent classifier panicked, degrading to keyword-only mode")
			metrics.IncClassifierDegraded()
			result = c.classifyKeywords(text, language)
		}
	}()
	return c.classifyFull(text, language, now, vocab)
}

func (c *Classifier) classifyFull(text, language string, now time.Time, vocab Vocabulary) models.BookingIntent {
	lang := normalizeLanguage(language)
	lowered := strings.ToLower(strings.TrimSpace(text))

	result := models.BookingIntent{
		RawText:    text,
		Language:   lang,
		Type:       models.IntentUnknown,
		Confidence: 0,
	}
	if lowered == "" {
		return result
	}

	table := patternTables[lang]
	if table == nil {
		table = patternTables[DefaultLanguage]
	}

	scores := make(map[models.IntentType]float64, len(table))
	for intentType, patterns := range table {
		var score float64
		for _, p := range patterns {
			if strings.Contains(lowered, p.phrase) {
				score += p.weight
			}
		}
		if score > 1 {
			score = 1
		}
		scores[intentType] = score
	}

	best := models.IntentUnknown
	bestScore := 0.0
	for _, intentType := range intentPriority {
		if scores[intentType] > bestScore {
			best = intentType
			bestScore = scores[intentType]
		}
	}

	result.Type = best
	result.Confidence = bestScore
	if bestScore == 0 {
		result.Type = models.IntentUnknown
		return result
	}

	result.ServiceName = matchVocabulary(lowered, vocab.Services)
	result.StaffName = matchVocabulary(lowered, vocab.Staff)
	if d := extractDate(lowered, lang, now); d != nil {
		result.DesiredDate = d
	}
	if m := extractMinute(lowered); m != nil {
		result.DesiredMinute = m
	}
	return result
}

// classifyKeywords is the degraded-mode classifier: a strict subset of the
// pattern table, no entity extraction. Confidence is fixed above threshold
// for an exact keyword hit so degraded operation still routes bookings.
func (c *Classifier) classifyKeywords(text, language string) models.BookingIntent {
	lang := normalizeLanguage(language)
	lowered := strings.ToLower(strings.TrimSpace(text))

	keywords := fallbackKeywords[lang]
	if keywords == nil {
		keywords = fallbackKeywords[DefaultLanguage]
	}

	result := models.BookingIntent{
		RawText:  text,
		Language: lang,
		Type:     models.IntentConversational,
	}
	for _, intentType := range intentPriority {
		kw, ok := keywords[intentType]
		if ok && strings.Contains(lowered, kw) {
			result.Type = intentType
			result.Confidence = 0.7
			return result
		}
	}
	result.Confidence = 0.3
	return result
}

func normalizeLanguage(language string) string {
	lang := strings.ToLower(language)
	if i := strings.IndexAny(lang, "-_"); i > 0 {
		lang = lang[:i]
	}
	if _, ok := patternTables[lang]; !ok {
		return DefaultLanguage
	}
	return lang
}

// matchVocabulary returns the longest vocabulary entry contained in the
// text, so "deep tissue massage" beats "massage".
func matchVocabulary(lowered string, entries []string) string {
	candidates := append([]string(nil), entries...)
	sort.Slice(candidates, func(i, j int) bool { return len(candidates[i]) > len(candidates[j]) })
	for _, entry := range candidates {
		if entry != "" && strings.Contains(lowered, strings.ToLower(entry)) {
			return entry
		}
	}
	return ""
}

func extractDate(lowered, lang string, now time.Time) *time.Time {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	if word, ok := tomorrowWords[lang]; ok && strings.Contains(lowered, word) {
		d := today.AddDate(0, 0, 1)
		return &d
	}

	if names, ok := weekdayNames[lang]; ok {
		for wd, name := range names {
			if !strings.Contains(lowered, name) {
				continue
			}
			// Next occurrence of that weekday, today excluded.
			days := (wd - int(now.Weekday()) + 7) % 7
			if days == 0 {
				days = 7
			}
			d := today.AddDate(0, 0, days)
			return &d
		}
	}

	if m := numDateRe.FindStringSubmatch(lowered); m != nil {
		day, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		year := now.Year()
		if m[3] != "" {
			year, _ = strconv.Atoi(m[3])
			if year < 100 {
				year += 2000
			}
		}
		if month >= 1 && month <= 12 && day >= 1 && day <= 31 {
			d := time.Date(year, time.Month(month), day, 0, 0, 0, 0, now.Location())
			if d.Before(today) && m[3] == "" {
				d = d.AddDate(1, 0, 0)
			}
			return &d
		}
	}
	return nil
}

func extractMinute(lowered string) *int {
	if m := clockRe.FindStringSubmatch(lowered); m != nil {
		hour, _ := strconv.Atoi(m[1])
		minute, _ := strconv.Atoi(m[2])
		if hour <= 23 && minute <= 59 {
			v := hour*60 + minute
			return &v
		}
	}
	if m := hourRe.FindStringSubmatch(lowered); m != nil {
		hour, _ := strconv.Atoi(m[1])
		if m[2] == "pm" && hour < 12 {
			hour += 12
		}
		if hour <= 23 {
			v := hour * 60
			return &v
		}
	}
	return nil
}
