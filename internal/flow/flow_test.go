package flow

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"citabot/internal/availability"
	"citabot/internal/booking"
	"citabot/internal/cards"
	"citabot/internal/intent"
	"citabot/internal/models"
	"citabot/internal/session"
)

type mockRepo struct {
	mock.Mock
}

func (m *mockRepo) GetFacility(ctx context.Context, id int64) (*models.Facility, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Facility), args.Error(1)
}

func (m *mockRepo) GetStaff(ctx context.Context, id int64) (*models.Staff, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Staff), args.Error(1)
}

func (m *mockRepo) ListActiveStaff(ctx context.Context, facilityID int64) ([]models.Staff, error) {
	args := m.Called(ctx, facilityID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Staff), args.Error(1)
}

func (m *mockRepo) GetService(ctx context.Context, id int64) (*models.Service, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Service), args.Error(1)
}

func (m *mockRepo) GetServiceByName(ctx context.Context, facilityID int64, name string) (*models.Service, error) {
	args := m.Called(ctx, facilityID, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Service), args.Error(1)
}

func (m *mockRepo) ListActiveServices(ctx context.Context, facilityID int64) ([]models.Service, error) {
	args := m.Called(ctx, facilityID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Service), args.Error(1)
}

func (m *mockRepo) GetActiveBookings(ctx context.Context, staffID int64, from, to time.Time) ([]models.Booking, error) {
	args := m.Called(ctx, staffID, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Booking), args.Error(1)
}

type mockCommitter struct {
	mock.Mock
}

func (m *mockCommitter) Commit(ctx context.Context, req booking.CommitRequest) (*models.Booking, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Booking), args.Error(1)
}

type mockSessions struct {
	mock.Mock
}

func (m *mockSessions) Put(ctx context.Context, s *models.ConversationSession, ttl time.Duration) error {
	return m.Called(ctx, s, ttl).Error(0)
}

func (m *mockSessions) Get(ctx context.Context, key string) (*models.ConversationSession, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ConversationSession), args.Error(1)
}

func (m *mockSessions) Delete(ctx context.Context, key string) error {
	return m.Called(ctx, key).Error(0)
}

// tuesday 2026-03-03 10:00 UTC
var testNow = time.Date(2026, 3, 3, 10, 0, 0, 0, time.UTC)

var (
	testFacility = &models.Facility{
		ID:       1,
		Name:     "Test Salon",
		Timezone: "UTC",
		Hours: models.WorkingHoursSpec{
			"monday":    {Start: "09:00", End: "20:00"},
			"tuesday":   {Start: "09:00", End: "20:00"},
			"wednesday": {Start: "09:00", End: "20:00"},
			"thursday":  {Start: "09:00", End: "20:00"},
			"friday":    {Start: "09:00", End: "20:00"},
		},
	}
	testStaff = models.Staff{
		ID:         1,
		FacilityID: 1,
		Name:       "Ana",
		IsActive:   true,
		Hours: models.WorkingHoursSpec{
			"monday":    {Start: "09:00", End: "18:00"},
			"tuesday":   {Start: "09:00", End: "18:00"},
			"wednesday": {Start: "09:00", End: "18:00"},
			"thursday":  {Start: "09:00", End: "18:00"},
			"friday":    {Start: "09:00", End: "18:00"},
		},
	}
	testService = models.Service{
		ID: 1, FacilityID: 1, Name: "Haircut", DurationMinutes: 60, IsActive: true,
	}
)

type fixture struct {
	repo      *mockRepo
	committer *mockCommitter
	store     *session.MemoryStore
	handler   *Handler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := zerolog.New(io.Discard)
	repo := new(mockRepo)
	committer := new(mockCommitter)
	store := session.NewMemoryStore(&logger)

	handler := NewHandler(repo, store,
		intent.NewClassifier(&logger),
		availability.NewEngine(availability.DefaultGranularityMinutes, &logger),
		committer,
		Options{
			ConfidenceThreshold: 0.7,
			SessionTTL:          30 * time.Minute,
			SearchDays:          7,
			MaxAdvance:          30 * 24 * time.Hour,
		}, &logger)
	handler.now = func() time.Time { return testNow }

	return &fixture{repo: repo, committer: committer, store: store, handler: handler}
}

func (f *fixture) expectCatalog() {
	f.repo.On("GetFacility", mock.Anything, int64(1)).Return(testFacility, nil)
	f.repo.On("ListActiveServices", mock.Anything, int64(1)).Return([]models.Service{testService}, nil)
	f.repo.On("ListActiveStaff", mock.Anything, int64(1)).Return([]models.Staff{testStaff}, nil)
}

func TestHandleInboundText(t *testing.T) {
	ctx := context.Background()

	t.Run("LowConfidenceRoutesToConversation", func(t *testing.T) {
		f := newFixture(t)
		f.expectCatalog()

		// Superficial keyword hit must not start a booking search.
		resp, err := f.handler.HandleInbound(ctx, InboundEvent{
			CustomerID: 10, FacilityID: 1, Language: "en",
			Text: "my book is available somewhere",
		})
		assert.NoError(t, err)
		assert.Nil(t, resp.Card)
		assert.Equal(t, cards.BuildText("conversational_reply", "en"), resp.Text)

		_, err = f.store.Get(ctx, models.SessionKey(10, 1))
		assert.ErrorIs(t, err, models.ErrSessionNotFound)
	})

	t.Run("GreetingRoutesToConversation", func(t *testing.T) {
		f := newFixture(t)
		f.expectCatalog()

		resp, err := f.handler.HandleInbound(ctx, InboundEvent{
			CustomerID: 10, FacilityID: 1, Language: "en", Text: "hello!",
		})
		assert.NoError(t, err)
		assert.Equal(t, cards.BuildText("conversational_reply", "en"), resp.Text)
	})

	t.Run("ExactTimeGoesToConfirmation", func(t *testing.T) {
		f := newFixture(t)
		f.expectCatalog()
		f.repo.On("GetActiveBookings", mock.Anything, int64(1), mock.Anything, mock.Anything).
			Return(nil, nil)

		resp, err := f.handler.HandleInbound(ctx, InboundEvent{
			CustomerID: 10, FacilityID: 1, Language: "en",
			Text: "book an appointment tomorrow at 15:00",
		})
		assert.NoError(t, err)
		if assert.NotNil(t, resp.Card) {
			assert.Len(t, resp.Card.Items, 2)
			assert.Equal(t, "confirm|1|1|2026-03-04|15:00|16:00", resp.Card.Items[0].ID)
			assert.Equal(t, cards.ActionCancel, resp.Card.Items[1].ID)
		}

		sess, err := f.store.Get(ctx, models.SessionKey(10, 1))
		assert.NoError(t, err)
		if assert.NotNil(t, sess.Selected) {
			assert.Equal(t, time.Date(2026, 3, 4, 15, 0, 0, 0, time.UTC), sess.Selected.Start)
		}
	})

	t.Run("MissedTimePresentsRankedAlternatives", func(t *testing.T) {
		f := newFixture(t)
		f.expectCatalog()
		f.repo.On("GetActiveBookings", mock.Anything, int64(1), mock.Anything, mock.Anything).
			Return(nil, nil)

		// 19:30 is inside facility hours but past the staff day.
		resp, err := f.handler.HandleInbound(ctx, InboundEvent{
			CustomerID: 10, FacilityID: 1, Language: "en",
			Text: "book an appointment tomorrow at 19:30",
		})
		assert.NoError(t, err)
		if assert.NotNil(t, resp.Card) {
			assert.Contains(t, resp.Card.Title, cards.BuildErrorCard(cards.ErrorOutOfHours, "en"))
			assert.LessOrEqual(t, len(resp.Card.Items), 10)
			// Closest alternative first: the last staff slot of the same day.
			assert.Contains(t, resp.Card.Items[0].ID, "2026-03-04|17:00")
		}
	})

	t.Run("NoDesiredTimeListsDaySlots", func(t *testing.T) {
		f := newFixture(t)
		f.expectCatalog()
		f.repo.On("GetActiveBookings", mock.Anything, int64(1), mock.Anything, mock.Anything).
			Return(nil, nil)

		resp, err := f.handler.HandleInbound(ctx, InboundEvent{
			CustomerID: 10, FacilityID: 1, Language: "en",
			Text: "I want to book an appointment tomorrow",
		})
		assert.NoError(t, err)
		if assert.NotNil(t, resp.Card) {
			assert.Equal(t, cards.BuildText("slot_card_title", "en"), resp.Card.Title)
			assert.LessOrEqual(t, len(resp.Card.Items), 10)
			assert.Contains(t, resp.Card.Items[0].ID, "2026-03-04")
		}
	})

	t.Run("NewIntentOverwritesSession", func(t *testing.T) {
		f := newFixture(t)
		f.expectCatalog()
		f.repo.On("GetActiveBookings", mock.Anything, int64(1), mock.Anything, mock.Anything).
			Return(nil, nil)

		_, err := f.handler.HandleInbound(ctx, InboundEvent{
			CustomerID: 10, FacilityID: 1, Language: "en",
			Text: "book an appointment tomorrow at 15:00",
		})
		assert.NoError(t, err)
		first, err := f.store.Get(ctx, models.SessionKey(10, 1))
		assert.NoError(t, err)

		_, err = f.handler.HandleInbound(ctx, InboundEvent{
			CustomerID: 10, FacilityID: 1, Language: "en",
			Text: "book an appointment tomorrow at 16:00",
		})
		assert.NoError(t, err)
		second, err := f.store.Get(ctx, models.SessionKey(10, 1))
		assert.NoError(t, err)

		assert.NotEqual(t, first.SessionID, second.SessionID)
		assert.Equal(t, time.Date(2026, 3, 4, 16, 0, 0, 0, time.UTC), second.Selected.Start)
	})

	t.Run("CancelIntentDropsSession", func(t *testing.T) {
		f := newFixture(t)
		f.expectCatalog()
		f.repo.On("GetActiveBookings", mock.Anything, int64(1), mock.Anything, mock.Anything).
			Return(nil, nil)

		_, err := f.handler.HandleInbound(ctx, InboundEvent{
			CustomerID: 10, FacilityID: 1, Language: "en",
			Text: "book an appointment tomorrow at 15:00",
		})
		assert.NoError(t, err)

		resp, err := f.handler.HandleInbound(ctx, InboundEvent{
			CustomerID: 10, FacilityID: 1, Language: "en",
			Text: "cancel my appointment please",
		})
		assert.NoError(t, err)
		assert.Equal(t, cards.BuildText("cancelled", "en"), resp.Text)

		_, err = f.store.Get(ctx, models.SessionKey(10, 1))
		assert.ErrorIs(t, err, models.ErrSessionNotFound)
	})

	t.Run("DateBeyondMaxAdvanceRejected", func(t *testing.T) {
		f := newFixture(t)
		f.expectCatalog()

		resp, err := f.handler.HandleInbound(ctx, InboundEvent{
			CustomerID: 10, FacilityID: 1, Language: "en",
			Text: "book an appointment on 15/08",
		})
		assert.NoError(t, err)
		assert.Equal(t, cards.BuildErrorCard(cards.ErrorValidation, "en"), resp.Text)
	})

	t.Run("InvalidEvent", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.handler.HandleInbound(ctx, InboundEvent{CustomerID: 0, FacilityID: 1, Text: "hi"})
		assert.ErrorIs(t, err, models.ErrValidation)
	})
}

func TestHandleInboundSelection(t *testing.T) {
	ctx := context.Background()

	liveSession := func(customerID int64) *models.ConversationSession {
		return &models.ConversationSession{
			SessionID:  "live",
			CustomerID: customerID,
			FacilityID: 1,
			Language:   "en",
			CreatedAt:  time.Now(),
			ExpiresAt:  time.Now().Add(30 * time.Minute),
			Schema:     models.SessionSchemaVersion,
		}
	}

	t.Run("ExpiredSessionRejectsClick", func(t *testing.T) {
		logger := zerolog.New(io.Discard)
		repo := new(mockRepo)
		committer := new(mockCommitter)
		sessions := new(mockSessions)
		handler := NewHandler(repo, sessions,
			intent.NewClassifier(&logger),
			availability.NewEngine(availability.DefaultGranularityMinutes, &logger),
			committer, Options{}, &logger)

		repo.On("GetFacility", mock.Anything, int64(1)).Return(testFacility, nil)
		sessions.On("Get", mock.Anything, models.SessionKey(10, 1)).
			Return(nil, models.ErrSessionExpired).Once()

		resp, err := handler.HandleInbound(ctx, InboundEvent{
			CustomerID: 10, FacilityID: 1, Language: "en",
			SelectionID: "confirm|1|1|2026-03-04|15:00|16:00",
		})
		assert.NoError(t, err)
		assert.Equal(t, cards.BuildErrorCard(cards.ErrorSessionExpired, "en"), resp.Text)

		// A dead session never reaches the commit engine.
		committer.AssertNotCalled(t, "Commit", mock.Anything, mock.Anything)
		sessions.AssertNotCalled(t, "Put", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("MissingSessionRejectsClick", func(t *testing.T) {
		f := newFixture(t)
		f.repo.On("GetFacility", mock.Anything, int64(1)).Return(testFacility, nil)

		resp, err := f.handler.HandleInbound(ctx, InboundEvent{
			CustomerID: 10, FacilityID: 1, Language: "en",
			SelectionID: "slot|1|1|2026-03-04|15:00|16:00",
		})
		assert.NoError(t, err)
		assert.Equal(t, cards.BuildErrorCard(cards.ErrorSessionExpired, "en"), resp.Text)
	})

	t.Run("CancelOnDeadSessionStillAnswered", func(t *testing.T) {
		f := newFixture(t)
		f.repo.On("GetFacility", mock.Anything, int64(1)).Return(testFacility, nil)

		resp, err := f.handler.HandleInbound(ctx, InboundEvent{
			CustomerID: 10, FacilityID: 1, Language: "en", SelectionID: "cancel",
		})
		assert.NoError(t, err)
		assert.Equal(t, cards.BuildText("cancelled", "en"), resp.Text)
	})

	t.Run("PickSlotAsksForConfirmation", func(t *testing.T) {
		f := newFixture(t)
		f.repo.On("GetFacility", mock.Anything, int64(1)).Return(testFacility, nil)
		assert.NoError(t, f.store.Put(ctx, liveSession(10), 30*time.Minute))

		resp, err := f.handler.HandleInbound(ctx, InboundEvent{
			CustomerID: 10, FacilityID: 1, Language: "en",
			SelectionID: "slot|1|1|2026-03-04|15:00|16:00",
		})
		assert.NoError(t, err)
		if assert.NotNil(t, resp.Card) {
			assert.Equal(t, "confirm|1|1|2026-03-04|15:00|16:00", resp.Card.Items[0].ID)
		}

		sess, err := f.store.Get(ctx, models.SessionKey(10, 1))
		assert.NoError(t, err)
		assert.NotNil(t, sess.Selected)
	})

	t.Run("ConfirmCommitsAndClearsSession", func(t *testing.T) {
		f := newFixture(t)
		f.repo.On("GetFacility", mock.Anything, int64(1)).Return(testFacility, nil)
		assert.NoError(t, f.store.Put(ctx, liveSession(10), 30*time.Minute))

		f.committer.On("Commit", mock.Anything, booking.CommitRequest{
			FacilityID: 1, StaffID: 1, ServiceID: 1, CustomerID: 10,
			StartTs: time.Date(2026, 3, 4, 15, 0, 0, 0, time.UTC),
			EndTs:   time.Date(2026, 3, 4, 16, 0, 0, 0, time.UTC),
		}).Return(&models.Booking{ID: 42, BookingCode: "XK7M2P"}, nil).Once()

		resp, err := f.handler.HandleInbound(ctx, InboundEvent{
			CustomerID: 10, FacilityID: 1, Language: "en",
			SelectionID: "confirm|1|1|2026-03-04|15:00|16:00",
		})
		assert.NoError(t, err)
		assert.Contains(t, resp.Text, "XK7M2P")

		_, err = f.store.Get(ctx, models.SessionKey(10, 1))
		assert.ErrorIs(t, err, models.ErrSessionNotFound)
		f.committer.AssertExpectations(t)
	})

	t.Run("ConflictReentersSearch", func(t *testing.T) {
		f := newFixture(t)
		f.repo.On("GetFacility", mock.Anything, int64(1)).Return(testFacility, nil)
		f.repo.On("GetService", mock.Anything, int64(1)).Return(&testService, nil)
		f.repo.On("GetStaff", mock.Anything, int64(1)).Return(&testStaff, nil)

		// The contested interval shows up as an active booking, so the
		// re-search cannot offer the same slot again.
		taken := models.Booking{
			StaffID: 1,
			Status:  models.StatusConfirmed,
			StartTs: time.Date(2026, 3, 4, 15, 0, 0, 0, time.UTC),
			EndTs:   time.Date(2026, 3, 4, 16, 0, 0, 0, time.UTC),
		}
		f.repo.On("GetActiveBookings", mock.Anything, int64(1), mock.Anything, mock.Anything).
			Return([]models.Booking{taken}, nil)

		f.committer.On("Commit", mock.Anything, mock.AnythingOfType("booking.CommitRequest")).
			Return(nil, &models.ConflictError{StaffID: 1, StartTs: taken.StartTs, EndTs: taken.EndTs}).Once()

		assert.NoError(t, f.store.Put(ctx, liveSession(10), 30*time.Minute))

		resp, err := f.handler.HandleInbound(ctx, InboundEvent{
			CustomerID: 10, FacilityID: 1, Language: "en",
			SelectionID: "confirm|1|1|2026-03-04|15:00|16:00",
		})
		assert.NoError(t, err)
		if assert.NotNil(t, resp.Card) {
			assert.Equal(t, cards.BuildErrorCard(cards.ErrorConflict, "en"), resp.Card.Title)
			assert.LessOrEqual(t, len(resp.Card.Items), 10)
			for _, item := range resp.Card.Items {
				assert.False(t, strings.Contains(item.ID, "2026-03-04|15:00"),
					"conflicted slot offered again: %s", item.ID)
			}
		}

		sess, err := f.store.Get(ctx, models.SessionKey(10, 1))
		assert.NoError(t, err)
		assert.Nil(t, sess.Selected)
		assert.NotEmpty(t, sess.Candidates)
	})

	t.Run("MalformedSelection", func(t *testing.T) {
		f := newFixture(t)
		f.repo.On("GetFacility", mock.Anything, int64(1)).Return(testFacility, nil)

		resp, err := f.handler.HandleInbound(ctx, InboundEvent{
			CustomerID: 10, FacilityID: 1, Language: "en",
			SelectionID: "slot|garbage",
		})
		assert.NoError(t, err)
		assert.Equal(t, cards.BuildErrorCard(cards.ErrorValidation, "en"), resp.Text)
	})

	t.Run("UnknownAction", func(t *testing.T) {
		f := newFixture(t)
		f.repo.On("GetFacility", mock.Anything, int64(1)).Return(testFacility, nil)
		assert.NoError(t, f.store.Put(ctx, liveSession(10), 30*time.Minute))

		resp, err := f.handler.HandleInbound(ctx, InboundEvent{
			CustomerID: 10, FacilityID: 1, Language: "en",
			SelectionID: "bogus|1|1|2026-03-04|15:00|16:00",
		})
		assert.NoError(t, err)
		assert.Equal(t, cards.BuildErrorCard(cards.ErrorValidation, "en"), resp.Text)
	})
}
