package bot

import (
	"context"
	"io"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"citabot/internal/audit"
	"citabot/internal/availability"
	"citabot/internal/booking"
	"citabot/internal/cards"
	"citabot/internal/flow"
	"citabot/internal/intent"
	"citabot/internal/models"
	"citabot/internal/session"
)

type fakeTelegram struct {
	sent     []tgbotapi.Chattable
	requests []tgbotapi.Chattable
}

func (f *fakeTelegram) Send(msg tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.sent = append(f.sent, msg)
	return tgbotapi.Message{}, nil
}

func (f *fakeTelegram) Request(msg tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.requests = append(f.requests, msg)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeTelegram) GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	ch := make(chan tgbotapi.Update)
	close(ch)
	return ch
}

// allWeek keeps the transport tests independent of the real wall-clock
// weekday.
func allWeek(start, end string) models.WorkingHoursSpec {
	spec := models.WorkingHoursSpec{}
	for _, day := range []string{"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday"} {
		spec[day] = models.DayHours{Start: start, End: end}
	}
	return spec
}

type stubRepo struct{}

func (stubRepo) GetFacility(context.Context, int64) (*models.Facility, error) {
	return &models.Facility{ID: 1, Name: "Test Salon", Timezone: "UTC", Hours: allWeek("00:00", "24:00")}, nil
}

func (stubRepo) GetStaff(context.Context, int64) (*models.Staff, error) {
	return &models.Staff{ID: 1, FacilityID: 1, Name: "Ana", IsActive: true, Hours: allWeek("00:00", "24:00")}, nil
}

func (stubRepo) ListActiveStaff(context.Context, int64) ([]models.Staff, error) {
	return []models.Staff{{ID: 1, FacilityID: 1, Name: "Ana", IsActive: true, Hours: allWeek("00:00", "24:00")}}, nil
}

func (stubRepo) GetService(context.Context, int64) (*models.Service, error) {
	return &models.Service{ID: 1, FacilityID: 1, Name: "Haircut", DurationMinutes: 60, IsActive: true}, nil
}

func (stubRepo) GetServiceByName(context.Context, int64, string) (*models.Service, error) {
	return &models.Service{ID: 1, FacilityID: 1, Name: "Haircut", DurationMinutes: 60, IsActive: true}, nil
}

func (stubRepo) ListActiveServices(context.Context, int64) ([]models.Service, error) {
	return []models.Service{{ID: 1, FacilityID: 1, Name: "Haircut", DurationMinutes: 60, IsActive: true}}, nil
}

func (stubRepo) GetActiveBookings(context.Context, int64, time.Time, time.Time) ([]models.Booking, error) {
	return nil, nil
}

type stubCommitter struct{}

func (stubCommitter) Commit(_ context.Context, req booking.CommitRequest) (*models.Booking, error) {
	return &models.Booking{ID: 1, BookingCode: "XK7M2P", StartTs: req.StartTs, EndTs: req.EndTs}, nil
}

type stubSource struct{}

func (stubSource) GetBookingsByDateRange(context.Context, int64, time.Time, time.Time) ([]models.Booking, error) {
	return []models.Booking{{BookingCode: "XK7M2P", Status: models.StatusConfirmed}}, nil
}

func newTestBot(t *testing.T) (*Bot, *fakeTelegram) {
	t.Helper()
	logger := zerolog.New(io.Discard)
	store := session.NewMemoryStore(&logger)

	handler := flow.NewHandler(stubRepo{}, store,
		intent.NewClassifier(&logger),
		availability.NewEngine(availability.DefaultGranularityMinutes, &logger),
		stubCommitter{},
		flow.Options{ConfidenceThreshold: 0.7, SessionTTL: 30 * time.Minute, SearchDays: 7},
		&logger)
	exporter := audit.NewExporter(stubSource{}, &logger)

	fake := &fakeTelegram{}
	return newBot(fake, handler, exporter, 1, []int64{555}, &logger), fake
}

func textMessage(userID int64, text string) *tgbotapi.Message {
	return &tgbotapi.Message{
		Text: text,
		From: &tgbotapi.User{ID: userID, LanguageCode: "en"},
		Chat: &tgbotapi.Chat{ID: userID},
	}
}

func TestHandleMessage(t *testing.T) {
	ctx := context.Background()

	t.Run("GreetingGetsTextReply", func(t *testing.T) {
		b, fake := newTestBot(t)
		b.handleMessage(ctx, textMessage(10, "hello"))

		if assert.Len(t, fake.sent, 1) {
			msg, ok := fake.sent[0].(tgbotapi.MessageConfig)
			assert.True(t, ok)
			assert.Equal(t, cards.BuildText("conversational_reply", "en"), msg.Text)
		}
	})

	t.Run("BookingRequestGetsKeyboard", func(t *testing.T) {
		b, fake := newTestBot(t)
		b.handleMessage(ctx, textMessage(10, "I want to book an appointment"))

		if assert.Len(t, fake.sent, 1) {
			msg, ok := fake.sent[0].(tgbotapi.MessageConfig)
			assert.True(t, ok)
			markup, ok := msg.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
			assert.True(t, ok)
			assert.NotEmpty(t, markup.InlineKeyboard)
		}
	})
}

func TestHandleCallback(t *testing.T) {
	ctx := context.Background()

	t.Run("AcksBeforeAnswering", func(t *testing.T) {
		b, fake := newTestBot(t)
		b.handleCallback(ctx, &tgbotapi.CallbackQuery{
			ID:      "cb1",
			From:    &tgbotapi.User{ID: 10, LanguageCode: "en"},
			Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: 10}},
			Data:    "cancel",
		})

		assert.Len(t, fake.requests, 1)
		if assert.Len(t, fake.sent, 1) {
			msg := fake.sent[0].(tgbotapi.MessageConfig)
			assert.Equal(t, cards.BuildText("cancelled", "en"), msg.Text)
		}
	})
}

func TestNotifyManagers(t *testing.T) {
	b, fake := newTestBot(t)
	b.NotifyManagers(context.Background(), "New booking XK7M2P")

	if assert.Len(t, fake.sent, 1) {
		msg := fake.sent[0].(tgbotapi.MessageConfig)
		assert.Equal(t, int64(555), msg.ChatID)
		assert.Equal(t, "New booking XK7M2P", msg.Text)
	}
}

func TestHandleExport(t *testing.T) {
	ctx := context.Background()

	command := func(userID int64) *tgbotapi.Message {
		return &tgbotapi.Message{
			Text:     "/export",
			Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: 7}},
			From:     &tgbotapi.User{ID: userID, LanguageCode: "en"},
			Chat:     &tgbotapi.Chat{ID: userID},
		}
	}

	t.Run("ManagerGetsDocument", func(t *testing.T) {
		b, fake := newTestBot(t)
		b.handleMessage(ctx, command(555))

		if assert.Len(t, fake.sent, 1) {
			_, ok := fake.sent[0].(tgbotapi.DocumentConfig)
			assert.True(t, ok)
		}
	})

	t.Run("NonManagerIgnored", func(t *testing.T) {
		b, fake := newTestBot(t)
		b.handleMessage(ctx, command(777))
		assert.Empty(t, fake.sent)
	})
}
