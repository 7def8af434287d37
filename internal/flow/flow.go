// Package flow orchestrates a booking conversation: classify, search,
// present, decode selection, commit. It owns routing policy (confidence
// threshold, advance-window rules) and resolves every domain error into a
// localized response; only infrastructure failures surface as errors.
package flow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"citabot/internal/availability"
	"citabot/internal/booking"
	"citabot/internal/cards"
	"citabot/internal/hours"
	"citabot/internal/intent"
	"citabot/internal/metrics"
	"citabot/internal/models"
	"citabot/internal/session"
	"citabot/internal/suggest"
)

// InboundEvent is what the transport layer hands the core: either free
// text or an interactive selection id, never both empty.
type InboundEvent struct {
	CustomerID  int64  `validate:"gt=0"`
	FacilityID  int64  `validate:"gt=0"`
	Text        string
	SelectionID string
	Language    string
}

// Response is what goes back to the transport layer: structured options
// or a plain localized text.
type Response struct {
	Text string
	Card *cards.ChoiceCard
}

// Repository is the persistence surface the flow reads.
type Repository interface {
	GetFacility(ctx context.Context, id int64) (*models.Facility, error)
	GetStaff(ctx context.Context, id int64) (*models.Staff, error)
	ListActiveStaff(ctx context.Context, facilityID int64) ([]models.Staff, error)
	GetService(ctx context.Context, id int64) (*models.Service, error)
	GetServiceByName(ctx context.Context, facilityID int64, name string) (*models.Service, error)
	ListActiveServices(ctx context.Context, facilityID int64) ([]models.Service, error)
	GetActiveBookings(ctx context.Context, staffID int64, from, to time.Time) ([]models.Booking, error)
}

// Committer is the booking commit engine surface.
type Committer interface {
	Commit(ctx context.Context, req booking.CommitRequest) (*models.Booking, error)
}

// Options carries the routing policy knobs from config.
type Options struct {
	ConfidenceThreshold float64
	SessionTTL          time.Duration
	SearchDays          int
	MinAdvance          time.Duration
	MaxAdvance          time.Duration
}

// Handler drives one conversation turn per inbound event. Stateless apart
// from the injected session store; safe for concurrent use.
type Handler struct {
	repo       Repository
	sessions   session.Store
	classifier *intent.Classifier
	engine     *availability.Engine
	committer  Committer
	opts       Options
	logger     *zerolog.Logger
	validate   *validator.Validate
	now        func() time.Time
}

func NewHandler(
	repo Repository,
	sessions session.Store,
	classifier *intent.Classifier,
	engine *availability.Engine,
	committer Committer,
	opts Options,
	logger *zerolog.Logger,
) *Handler {
	if opts.ConfidenceThreshold == 0 {
		opts.ConfidenceThreshold = 0.7
	}
	if opts.SessionTTL == 0 {
		opts.SessionTTL = session.DefaultTTL
	}
	if opts.SearchDays == 0 {
		opts.SearchDays = 7
	}
	return &Handler{
		repo:       repo,
		sessions:   sessions,
		classifier: classifier,
		engine:     engine,
		committer:  committer,
		opts:       opts,
		logger:     logger,
		validate:   validator.New(),
		now:        time.Now,
	}
}

// HandleInbound processes one inbound event and returns the outbound
// response. Domain errors never escape; the returned error is reserved for
// infrastructure failures the transport should turn into a generic retry
// message.
func (h *Handler) HandleInbound(ctx context.Context, ev InboundEvent) (Response, error) {
	if err := h.validate.Struct(&ev); err != nil {
		return Response{}, fmt.Errorf("%w: %v", models.ErrValidation, err)
	}

	facility, err := h.repo.GetFacility(ctx, ev.FacilityID)
	if err != nil {
		return Response{}, fmt.Errorf("load facility %d: %w", ev.FacilityID, err)
	}
	loc := facilityLocation(facility)

	if ev.SelectionID != "" {
		return h.handleSelection(ctx, ev, facility, loc)
	}
	return h.handleText(ctx, ev, facility, loc)
}

func (h *Handler) handleText(ctx context.Context, ev InboundEvent, facility *models.Facility, loc *time.Location) (Response, error) {
	vocab, services, staff, err := h.loadVocabulary(ctx, facility.ID)
	if err != nil {
		return Response{}, err
	}

	now := h.now().In(loc)
	it := h.classifier.Classify(ev.Text, ev.Language, now, vocab)
	metrics.IncIntentClassified(string(it.Type))
	lang := it.Language

	// Below threshold every message takes the cheaper conversational
	// path, whatever the detected type looked like.
	if it.Confidence < h.opts.ConfidenceThreshold {
		h.logger.Debug().Str("type", string(it.Type)).Float64("confidence", it.Confidence).
			Msg("low-confidence intent routed to conversation")
		return Response{Text: cards.BuildText("conversational_reply", lang)}, nil
	}

	switch it.Type {
	case models.IntentNewBooking, models.IntentModifyBooking, models.IntentAvailability:
		// A live session is silently overwritten: last intent wins.
		return h.startSearch(ctx, ev, facility, it, services, staff, now)
	case models.IntentCancelBooking:
		_ = h.sessions.Delete(ctx, models.SessionKey(ev.CustomerID, facility.ID))
		return Response{Text: cards.BuildText("cancelled", lang)}, nil
	default:
		return Response{Text: cards.BuildText("conversational_reply", lang)}, nil
	}
}

// startSearch computes candidates for a fresh booking intent and stores
// the new session, replacing any prior one.
func (h *Handler) startSearch(
	ctx context.Context,
	ev InboundEvent,
	facility *models.Facility,
	it models.BookingIntent,
	services []models.Service,
	staff []models.Staff,
	now time.Time,
) (Response, error) {
	lang := it.Language

	service := resolveService(it.ServiceName, services)
	if service == nil {
		return Response{Text: cards.BuildErrorCard(cards.ErrorValidation, lang)}, nil
	}
	candidatesStaff := resolveStaff(it.StaffName, staff)
	if len(candidatesStaff) == 0 {
		return Response{Text: cards.BuildErrorCard(cards.ErrorStaffUnavailable, lang)}, nil
	}

	date := startOfDay(now)
	if it.DesiredDate != nil {
		date = it.DesiredDate.In(now.Location())
	}
	if h.opts.MaxAdvance > 0 && date.Sub(startOfDay(now)) > h.opts.MaxAdvance {
		return Response{Text: cards.BuildErrorCard(cards.ErrorValidation, lang)}, nil
	}

	daySlots, err := h.collectSlots(ctx, facility, candidatesStaff, service, date, now)
	if err != nil {
		return Response{}, err
	}

	var (
		presented []models.SlotCandidate
		leadKey   string
	)
	if it.DesiredMinute != nil {
		target := hours.OnDate(date, *it.DesiredMinute)
		if exact := findExact(daySlots, target); exact != nil {
			sess := h.newSession(ev, facility.ID, it, []models.SlotCandidate{*exact}, exact, now)
			if err := h.sessions.Put(ctx, sess, h.opts.SessionTTL); err != nil {
				h.logger.Error().Err(err).Msg("failed to store session")
			}
			card := cards.BuildConfirmationCard(*exact, lang)
			return Response{Card: &card}, nil
		}

		// The exact request missed: explain why, then rank nearby slots.
		leadKey = "slot_card_alternatives"
		missText := h.missText(facility, candidatesStaff, service, date, *it.DesiredMinute, lang)
		widened, err := h.widenSearch(ctx, facility, candidatesStaff, service, date, now)
		if err != nil {
			return Response{}, err
		}
		presented = suggest.Cap(suggest.RankByTimeProximity(widened, target))
		if len(presented) == 0 {
			return Response{Text: missText + "\n" + cards.BuildErrorCard(cards.ErrorNoSlots, lang)}, nil
		}

		sess := h.newSession(ev, facility.ID, it, presented, nil, now)
		if err := h.sessions.Put(ctx, sess, h.opts.SessionTTL); err != nil {
			h.logger.Error().Err(err).Msg("failed to store session")
		}
		card := cards.BuildSlotCard(presented, lang, leadKey)
		card.Title = missText + "\n" + card.Title
		return Response{Card: &card}, nil
	}

	presented = suggest.Cap(daySlots)
	if len(presented) == 0 {
		widened, err := h.widenSearch(ctx, facility, candidatesStaff, service, date, now)
		if err != nil {
			return Response{}, err
		}
		presented = suggest.Cap(suggest.RankByDateProximity(widened, date))
		if len(presented) == 0 {
			return Response{Text: cards.BuildErrorCard(cards.ErrorNoSlots, lang)}, nil
		}
	}

	sess := h.newSession(ev, facility.ID, it, presented, nil, now)
	if err := h.sessions.Put(ctx, sess, h.opts.SessionTTL); err != nil {
		h.logger.Error().Err(err).Msg("failed to store session")
	}
	card := cards.BuildSlotCard(presented, lang, "")
	return Response{Card: &card}, nil
}

func (h *Handler) handleSelection(ctx context.Context, ev InboundEvent, facility *models.Facility, loc *time.Location) (Response, error) {
	action, slot, err := cards.DecodeSelection(ev.SelectionID, loc)
	if err != nil {
		return Response{Text: cards.BuildErrorCard(cards.ErrorValidation, languageOrDefault(ev.Language))}, nil
	}

	key := models.SessionKey(ev.CustomerID, facility.ID)
	sess, err := h.sessions.Get(ctx, key)
	switch {
	case errors.Is(err, models.ErrSessionExpired), errors.Is(err, models.ErrSessionNotFound):
		// A click on a dead session is rejected, never resurrected.
		metrics.IncSessionExpired()
		if action == cards.ActionCancel {
			return Response{Text: cards.BuildText("cancelled", languageOrDefault(ev.Language))}, nil
		}
		return Response{Text: cards.BuildErrorCard(cards.ErrorSessionExpired, languageOrDefault(ev.Language))}, nil
	case err != nil:
		return Response{}, fmt.Errorf("load session %s: %w", key, err)
	}
	lang := sess.Language

	switch action {
	case cards.ActionCancel:
		_ = h.sessions.Delete(ctx, key)
		return Response{Text: cards.BuildText("cancelled", lang)}, nil

	case cards.ActionPickSlot:
		sess.Selected = slot
		if err := h.sessions.Put(ctx, sess, time.Until(sess.ExpiresAt)); err != nil {
			h.logger.Error().Err(err).Msg("failed to update session")
		}
		card := cards.BuildConfirmationCard(*slot, lang)
		return Response{Card: &card}, nil

	case cards.ActionConfirm:
		return h.commitSelection(ctx, ev, facility, sess, slot, key)

	default:
		return Response{Text: cards.BuildErrorCard(cards.ErrorValidation, lang)}, nil
	}
}

// commitSelection hands the chosen slot to the commit engine and matches
// on the typed result: committed, conflicted, or failed.
func (h *Handler) commitSelection(
	ctx context.Context,
	ev InboundEvent,
	facility *models.Facility,
	sess *models.ConversationSession,
	slot *models.SlotCandidate,
	key string,
) (Response, error) {
	lang := sess.Language

	booked, err := h.committer.Commit(ctx, booking.CommitRequest{
		FacilityID: facility.ID,
		StaffID:    slot.StaffID,
		ServiceID:  slot.ServiceID,
		CustomerID: ev.CustomerID,
		StartTs:    slot.Start,
		EndTs:      slot.End,
	})
	if err == nil {
		_ = h.sessions.Delete(ctx, key)
		return Response{Text: cards.BuildText("booked", lang, booked.BookingCode)}, nil
	}
	if !models.IsConflict(err) {
		return Response{Text: cards.BuildErrorCard(cards.ErrorGeneric, lang)}, nil
	}

	// Lost the race at commit time: re-enter slot search with the
	// original intent and present fresh options.
	service, svcErr := h.repo.GetService(ctx, slot.ServiceID)
	if svcErr != nil {
		return Response{Text: cards.BuildErrorCard(cards.ErrorGeneric, lang)}, nil
	}
	staffMember, staffErr := h.repo.GetStaff(ctx, slot.StaffID)
	if staffErr != nil {
		return Response{Text: cards.BuildErrorCard(cards.ErrorGeneric, lang)}, nil
	}

	now := h.now().In(slot.Date.Location())
	widened, searchErr := h.widenSearch(ctx, facility, []models.Staff{*staffMember}, service, slot.Date, now)
	if searchErr != nil {
		return Response{}, searchErr
	}
	alternatives := suggest.Cap(suggest.RankByTimeProximity(widened, slot.Start))
	if len(alternatives) == 0 {
		_ = h.sessions.Delete(ctx, key)
		return Response{Text: cards.BuildErrorCard(cards.ErrorNoSlots, lang)}, nil
	}

	sess.Candidates = alternatives
	sess.Selected = nil
	if err := h.sessions.Put(ctx, sess, time.Until(sess.ExpiresAt)); err != nil {
		h.logger.Error().Err(err).Msg("failed to update session")
	}
	card := cards.BuildSlotCard(alternatives, lang, "")
	card.Title = cards.BuildErrorCard(cards.ErrorConflict, lang)
	return Response{Card: &card}, nil
}

// collectSlots merges the bookable slots of the given staff members for
// one date, dropping starts inside the minimum advance window.
func (h *Handler) collectSlots(
	ctx context.Context,
	facility *models.Facility,
	staff []models.Staff,
	service *models.Service,
	date time.Time,
	now time.Time,
) ([]models.SlotCandidate, error) {
	earliest := now.Add(h.opts.MinAdvance)

	var out []models.SlotCandidate
	for i := range staff {
		s := &staff[i]
		bookings, err := h.repo.GetActiveBookings(ctx, s.ID, date, date.AddDate(0, 0, 1))
		if err != nil {
			return nil, fmt.Errorf("bookings for staff %d: %w", s.ID, err)
		}
		for _, slot := range h.engine.FindSlots(facility.Hours, s.Hours, bookings, s.ID, service.ID, date, service.DurationMinutes) {
			if slot.Start.Before(earliest) {
				continue
			}
			out = append(out, slot)
		}
	}
	return out, nil
}

// widenSearch collects slots over the configured date range around the
// requested date, for the suggester to rank.
func (h *Handler) widenSearch(
	ctx context.Context,
	facility *models.Facility,
	staff []models.Staff,
	service *models.Service,
	date time.Time,
	now time.Time,
) ([]models.SlotCandidate, error) {
	var out []models.SlotCandidate
	for offset := 0; offset <= h.opts.SearchDays; offset++ {
		day := date.AddDate(0, 0, offset)
		if h.opts.MaxAdvance > 0 && day.Sub(startOfDay(now)) > h.opts.MaxAdvance {
			break
		}
		slots, err := h.collectSlots(ctx, facility, staff, service, day, now)
		if err != nil {
			return nil, err
		}
		out = append(out, slots...)
	}
	return out, nil
}

// missText explains why the exact requested time is not bookable.
func (h *Handler) missText(
	facility *models.Facility,
	staff []models.Staff,
	service *models.Service,
	date time.Time,
	startMinute int,
	lang string,
) string {
	reason := h.engine.ClassifyMiss(facility.Hours, staff[0].Hours, date, startMinute, service.DurationMinutes)
	switch {
	case errors.Is(reason, models.ErrDurationExceedsWindow):
		return cards.BuildErrorCard(cards.ErrorDurationExceeds, lang)
	case errors.Is(reason, models.ErrStaffUnavailable):
		return cards.BuildErrorCard(cards.ErrorStaffUnavailable, lang)
	case errors.Is(reason, models.ErrOutOfHours):
		return cards.BuildErrorCard(cards.ErrorOutOfHours, lang)
	default:
		return cards.BuildErrorCard(cards.ErrorNoSlots, lang)
	}
}

func (h *Handler) loadVocabulary(ctx context.Context, facilityID int64) (intent.Vocabulary, []models.Service, []models.Staff, error) {
	services, err := h.repo.ListActiveServices(ctx, facilityID)
	if err != nil {
		return intent.Vocabulary{}, nil, nil, fmt.Errorf("list services: %w", err)
	}
	staff, err := h.repo.ListActiveStaff(ctx, facilityID)
	if err != nil {
		return intent.Vocabulary{}, nil, nil, fmt.Errorf("list staff: %w", err)
	}

	vocab := intent.Vocabulary{}
	for _, s := range services {
		vocab.Services = append(vocab.Services, s.Name)
	}
	for _, s := range staff {
		vocab.Staff = append(vocab.Staff, s.Name)
	}
	return vocab, services, staff, nil
}

func (h *Handler) newSession(
	ev InboundEvent,
	facilityID int64,
	it models.BookingIntent,
	candidates []models.SlotCandidate,
	selected *models.SlotCandidate,
	now time.Time,
) *models.ConversationSession {
	return &models.ConversationSession{
		SessionID:  uuid.NewString(),
		CustomerID: ev.CustomerID,
		FacilityID: facilityID,
		Language:   it.Language,
		Intent:     it,
		Candidates: candidates,
		Selected:   selected,
		CreatedAt:  now,
		ExpiresAt:  now.Add(h.opts.SessionTTL),
		Schema:     models.SessionSchemaVersion,
	}
}

func resolveService(name string, services []models.Service) *models.Service {
	if name != "" {
		for i := range services {
			if services[i].Name == name {
				return &services[i]
			}
		}
	}
	if len(services) > 0 {
		return &services[0]
	}
	return nil
}

func resolveStaff(name string, staff []models.Staff) []models.Staff {
	if name != "" {
		for i := range staff {
			if staff[i].Name == name {
				return staff[i : i+1]
			}
		}
	}
	return staff
}

func findExact(slots []models.SlotCandidate, target time.Time) *models.SlotCandidate {
	for i := range slots {
		if slots[i].Start.Equal(target) {
			return &slots[i]
		}
	}
	return nil
}

func facilityLocation(f *models.Facility) *time.Location {
	loc, err := time.LoadLocation(f.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func languageOrDefault(lang string) string {
	if lang == "" {
		return intent.DefaultLanguage
	}
	return lang
}
