// Package cards renders slot lists and prompts into channel-agnostic
// choice structures with table-driven localization.
package cards

import (
	"fmt"

	"citabot/internal/models"
)

// ChoiceItem is one selectable option. ID round-trips through the channel
// unchanged and is decoded by DecodeSelection.
type ChoiceItem struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// ChoiceCard is an abstract set of user-selectable options.
type ChoiceCard struct {
	Title string       `json:"title"`
	Items []ChoiceItem `json:"items"`
}

// ErrorKind selects the localized message for BuildErrorCard.
type ErrorKind string

const (
	ErrorOutOfHours       ErrorKind = "out_of_hours"
	ErrorDurationExceeds  ErrorKind = "duration_exceeds"
	ErrorStaffUnavailable ErrorKind = "staff_unavailable"
	ErrorSessionExpired   ErrorKind = "session_expired"
	ErrorConflict         ErrorKind = "conflict"
	ErrorValidation       ErrorKind = "validation"
	ErrorNoSlots          ErrorKind = "no_slots"
	ErrorGeneric          ErrorKind = "generic"
)

// BuildSlotCard renders candidate slots as selectable options. leadKey
// overrides the default title (e.g. the alternatives lead-in); pass ""
// for the plain availability title.
func BuildSlotCard(slots []models.SlotCandidate, language, leadKey string) ChoiceCard {
	if leadKey == "" {
		leadKey = "slot_card_title"
	}
	card := ChoiceCard{Title: lookup(leadKey, language)}
	for _, slot := range slots {
		card.Items = append(card.Items, ChoiceItem{
			ID:    EncodeSlot(ActionPickSlot, slot),
			Label: slotLabel(slot, language),
		})
	}
	return card
}

// BuildConfirmationCard renders the confirm/cancel prompt for one slot.
func BuildConfirmationCard(slot models.SlotCandidate, language string) ChoiceCard {
	title := fmt.Sprintf("%s\n%s", lookup("confirm_title", language), slotLabel(slot, language))
	return ChoiceCard{
		Title: title,
		Items: []ChoiceItem{
			{ID: EncodeSlot(ActionConfirm, slot), Label: lookup("confirm_yes", language)},
			{ID: ActionCancel, Label: lookup("confirm_no", language)},
		},
	}
}

// BuildErrorCard renders a localized plain-text message for an error kind.
// Unknown languages degrade to English, unknown kinds to the generic text.
func BuildErrorCard(kind ErrorKind, language string) string {
	text := lookup("error_"+string(kind), language)
	if text == "" {
		text = lookup("error_generic", language)
	}
	return text
}

// BuildText renders an arbitrary localized message by key.
func BuildText(key, language string, args ...interface{}) string {
	text := lookup(key, language)
	if text == "" {
		text = lookup("error_generic", language)
	}
	if len(args) > 0 {
		return fmt.Sprintf(text, args...)
	}
	return text
}

func slotLabel(slot models.SlotCandidate, language string) string {
	return fmt.Sprintf("%s %s %s–%s",
		weekdayLabel(language, int(slot.Date.Weekday())),
		slot.Date.Format("02.01"),
		slot.Start.Format("15:04"),
		slot.End.Format("15:04"),
	)
}
