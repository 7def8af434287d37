package cards

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"citabot/internal/models"
)

func testSlot(t *testing.T) models.SlotCandidate {
	t.Helper()
	loc, err := time.LoadLocation("Europe/Madrid")
	assert.NoError(t, err)
	return models.SlotCandidate{
		StaffID:   3,
		ServiceID: 7,
		Date:      time.Date(2026, 3, 4, 0, 0, 0, 0, loc),
		Start:     time.Date(2026, 3, 4, 15, 0, 0, 0, loc),
		End:       time.Date(2026, 3, 4, 16, 0, 0, 0, loc),
	}
}

func TestBuildSlotCard(t *testing.T) {
	slot := testSlot(t)

	t.Run("DefaultTitle", func(t *testing.T) {
		card := BuildSlotCard([]models.SlotCandidate{slot}, "en", "")
		assert.Equal(t, "Available times", card.Title)
		assert.Len(t, card.Items, 1)
		assert.Equal(t, "slot|3|7|2026-03-04|15:00|16:00", card.Items[0].ID)
		assert.Equal(t, "Wed 04.03 15:00–16:00", card.Items[0].Label)
	})

	t.Run("AlternativesLeadIn", func(t *testing.T) {
		card := BuildSlotCard([]models.SlotCandidate{slot}, "es", "slot_card_alternatives")
		assert.Equal(t, "Ese horario está ocupado. Alternativas más cercanas:", card.Title)
	})

	t.Run("LocalizedWeekday", func(t *testing.T) {
		card := BuildSlotCard([]models.SlotCandidate{slot}, "pt", "")
		assert.Equal(t, "qua 04.03 15:00–16:00", card.Items[0].Label)
	})
}

func TestBuildConfirmationCard(t *testing.T) {
	slot := testSlot(t)
	card := BuildConfirmationCard(slot, "en")

	assert.Contains(t, card.Title, "Confirm your appointment")
	assert.Contains(t, card.Title, "15:00–16:00")
	assert.Len(t, card.Items, 2)
	assert.Equal(t, "confirm|3|7|2026-03-04|15:00|16:00", card.Items[0].ID)
	assert.Equal(t, ActionCancel, card.Items[1].ID)
}

func TestBuildErrorCard(t *testing.T) {
	t.Run("KnownKind", func(t *testing.T) {
		assert.Equal(t, "That time is outside our working hours.", BuildErrorCard(ErrorOutOfHours, "en"))
	})

	t.Run("RegionTagFallsToBaseLanguage", func(t *testing.T) {
		assert.Equal(t, BuildErrorCard(ErrorConflict, "es"), BuildErrorCard(ErrorConflict, "es-MX"))
	})

	t.Run("UnsupportedLanguageFallsToEnglish", func(t *testing.T) {
		assert.Equal(t, BuildErrorCard(ErrorGeneric, "en"), BuildErrorCard(ErrorGeneric, "xx-unsupported"))
	})

	t.Run("UnknownKindFallsToGeneric", func(t *testing.T) {
		assert.Equal(t, BuildErrorCard(ErrorGeneric, "en"), BuildErrorCard(ErrorKind("nope"), "en"))
	})
}

func TestBuildText(t *testing.T) {
	t.Run("FormatsArgs", func(t *testing.T) {
		assert.Contains(t, BuildText("booked", "en", "XK7M2P"), "XK7M2P")
	})

	t.Run("UnknownKeyFallsToGeneric", func(t *testing.T) {
		assert.Equal(t, BuildText("error_generic", "en"), BuildText("no_such_key", "en"))
	})
}

func TestEncodeDecodeSelection(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Madrid")
	assert.NoError(t, err)
	slot := testSlot(t)

	t.Run("RoundTrip", func(t *testing.T) {
		id := EncodeSlot(ActionPickSlot, slot)
		assert.LessOrEqual(t, len(id), 64)

		action, decoded, err := DecodeSelection(id, loc)
		assert.NoError(t, err)
		assert.Equal(t, ActionPickSlot, action)
		assert.Equal(t, slot.StaffID, decoded.StaffID)
		assert.Equal(t, slot.ServiceID, decoded.ServiceID)
		assert.True(t, slot.Date.Equal(decoded.Date))
		assert.True(t, slot.Start.Equal(decoded.Start))
		assert.True(t, slot.End.Equal(decoded.End))
	})

	t.Run("ConfirmRoundTrip", func(t *testing.T) {
		action, decoded, err := DecodeSelection(EncodeSlot(ActionConfirm, slot), loc)
		assert.NoError(t, err)
		assert.Equal(t, ActionConfirm, action)
		assert.NotNil(t, decoded)
	})

	t.Run("PlainCancel", func(t *testing.T) {
		action, decoded, err := DecodeSelection(ActionCancel, loc)
		assert.NoError(t, err)
		assert.Equal(t, ActionCancel, action)
		assert.Nil(t, decoded)
	})

	t.Run("Malformed", func(t *testing.T) {
		for _, id := range []string{
			"slot|1|2",
			"slot|x|2|2026-03-04|15:00|16:00",
			"slot|1|y|2026-03-04|15:00|16:00",
			"slot|1|2|not-a-date|15:00|16:00",
			"slot|1|2|2026-03-04|25:99|16:00",
			"slot|1|2|2026-03-04|15:00|zz",
		} {
			_, _, err := DecodeSelection(id, loc)
			assert.ErrorIs(t, err, models.ErrValidation, id)
		}
	})
}
