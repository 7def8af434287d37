// Package suggest ranks alternative slot candidates by temporal proximity
// to the customer's original request.
package suggest

import (
	"sort"
	"time"

	"citabot/internal/models"
)

// MaxSuggestions caps how many candidates are presented: the interactive
// list of the chat channel shows at most this many options. Truncation
// happens after ranking, never before.
const MaxSuggestions = 10

// RankByTimeProximity orders slots by absolute distance of their start to
// the target instant, ties broken by earliest start. The sort is stable, so
// equal inputs always produce the same order.
func RankByTimeProximity(slots []models.SlotCandidate, target time.Time) []models.SlotCandidate {
	ranked := append([]models.SlotCandidate(nil), slots...)
	sort.SliceStable(ranked, func(i, j int) bool {
		di := absDuration(ranked[i].Start.Sub(target))
		dj := absDuration(ranked[j].Start.Sub(target))
		if di != dj {
			return di < dj
		}
		return ranked[i].Start.Before(ranked[j].Start)
	})
	return ranked
}

// RankByDateProximity orders slots by absolute distance of their date to
// the target date, ties broken by earliest start.
func RankByDateProximity(slots []models.SlotCandidate, targetDate time.Time) []models.SlotCandidate {
	target := time.Date(targetDate.Year(), targetDate.Month(), targetDate.Day(), 0, 0, 0, 0, targetDate.Location())
	ranked := append([]models.SlotCandidate(nil), slots...)
	sort.SliceStable(ranked, func(i, j int) bool {
		di := absDuration(ranked[i].Date.Sub(target))
		dj := absDuration(ranked[j].Date.Sub(target))
		if di != dj {
			return di < dj
		}
		return ranked[i].Start.Before(ranked[j].Start)
	})
	return ranked
}

// Cap truncates a ranked list to the display limit.
func Cap(slots []models.SlotCandidate) []models.SlotCandidate {
	if len(slots) <= MaxSuggestions {
		return slots
	}
	return slots[:MaxSuggestions]
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
