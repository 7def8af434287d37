// Package bot adapts Telegram to the conversation flow. It owns nothing
// booking-related: updates become inbound events, responses become
// messages or inline keyboards.
package bot

import (
	"bytes"
	"context"
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"citabot/internal/audit"
	"citabot/internal/cards"
	"citabot/internal/flow"
)

type telegramClient interface {
	Send(tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
}

type realTelegramClient struct {
	api *tgbotapi.BotAPI
}

func (c *realTelegramClient) Send(msg tgbotapi.Chattable) (tgbotapi.Message, error) {
	return c.api.Send(msg)
}

func (c *realTelegramClient) Request(msg tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	return c.api.Request(msg)
}

func (c *realTelegramClient) GetUpdatesChan(cfg tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return c.api.GetUpdatesChan(cfg)
}

// Bot bridges Telegram updates and the booking flow.
type Bot struct {
	tg         telegramClient
	handler    *flow.Handler
	exporter   *audit.Exporter
	facilityID int64
	managers   map[int64]struct{}
	limiter    *rate.Limiter
	logger     *zerolog.Logger
}

func New(
	token string,
	debug bool,
	handler *flow.Handler,
	exporter *audit.Exporter,
	facilityID int64,
	managers []int64,
	logger *zerolog.Logger,
) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	api.Debug = debug
	return newBot(&realTelegramClient{api: api}, handler, exporter, facilityID, managers, logger), nil
}

// newBot allows injecting a mocked Telegram client for tests.
func newBot(
	tg telegramClient,
	handler *flow.Handler,
	exporter *audit.Exporter,
	facilityID int64,
	managers []int64,
	logger *zerolog.Logger,
) *Bot {
	managerSet := make(map[int64]struct{}, len(managers))
	for _, id := range managers {
		managerSet[id] = struct{}{}
	}
	return &Bot{
		tg:         tg,
		handler:    handler,
		exporter:   exporter,
		facilityID: facilityID,
		managers:   managerSet,
		// Telegram caps bots around 30 messages per second.
		limiter: rate.NewLimiter(rate.Limit(25), 30),
		logger:  logger,
	}
}

// Start consumes updates until the context is cancelled. Each update is
// handled on its own goroutine; ordering between a customer's messages is
// not guaranteed and not needed.
func (b *Bot) Start(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := b.tg.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			go b.handleUpdate(ctx, update)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.CallbackQuery != nil:
		b.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil && update.Message.Text != "":
		b.handleMessage(ctx, update.Message)
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.IsCommand() && msg.Command() == "export" {
		b.handleExport(ctx, msg)
		return
	}

	resp, err := b.handler.HandleInbound(ctx, flow.InboundEvent{
		CustomerID: msg.From.ID,
		FacilityID: b.facilityID,
		Text:       msg.Text,
		Language:   msg.From.LanguageCode,
	})
	if err != nil {
		b.logger.Error().Err(err).Int64("user_id", msg.From.ID).Msg("inbound message failed")
		b.sendText(ctx, msg.Chat.ID, cards.BuildErrorCard(cards.ErrorGeneric, msg.From.LanguageCode))
		return
	}
	b.sendResponse(ctx, msg.Chat.ID, resp)
}

func (b *Bot) handleCallback(ctx context.Context, cq *tgbotapi.CallbackQuery) {
	// Ack first so the client stops its spinner even if handling is slow.
	_, _ = b.tg.Request(tgbotapi.NewCallback(cq.ID, ""))

	lang := ""
	if cq.From != nil {
		lang = cq.From.LanguageCode
	}
	resp, err := b.handler.HandleInbound(ctx, flow.InboundEvent{
		CustomerID:  cq.From.ID,
		FacilityID:  b.facilityID,
		SelectionID: cq.Data,
		Language:    lang,
	})
	if err != nil {
		b.logger.Error().Err(err).Int64("user_id", cq.From.ID).Msg("selection failed")
		b.sendText(ctx, cq.Message.Chat.ID, cards.BuildErrorCard(cards.ErrorGeneric, lang))
		return
	}
	b.sendResponse(ctx, cq.Message.Chat.ID, resp)
}

// handleExport sends the last 30 days of bookings as an xlsx document.
// Manager-only.
func (b *Bot) handleExport(ctx context.Context, msg *tgbotapi.Message) {
	if _, ok := b.managers[msg.From.ID]; !ok {
		return
	}

	to := time.Now().AddDate(0, 0, 1)
	from := to.AddDate(0, 0, -31)

	var buf bytes.Buffer
	if err := b.exporter.ExportBookings(ctx, b.facilityID, from, to, &buf); err != nil {
		b.logger.Error().Err(err).Msg("export failed")
		b.sendText(ctx, msg.Chat.ID, cards.BuildErrorCard(cards.ErrorGeneric, msg.From.LanguageCode))
		return
	}

	doc := tgbotapi.NewDocument(msg.Chat.ID, tgbotapi.FileBytes{
		Name:  fmt.Sprintf("bookings-%s.xlsx", time.Now().Format("2006-01-02")),
		Bytes: buf.Bytes(),
	})
	if err := b.limiter.Wait(ctx); err != nil {
		return
	}
	if _, err := b.tg.Send(doc); err != nil {
		b.logger.Error().Err(err).Msg("send export failed")
	}
}

// NotifyManagers sends a plain text message to every configured manager.
func (b *Bot) NotifyManagers(ctx context.Context, text string) {
	for id := range b.managers {
		b.sendText(ctx, id, text)
	}
}

func (b *Bot) sendResponse(ctx context.Context, chatID int64, resp flow.Response) {
	if resp.Card != nil {
		b.sendCard(ctx, chatID, *resp.Card)
		return
	}
	b.sendText(ctx, chatID, resp.Text)
}

func (b *Bot) sendCard(ctx context.Context, chatID int64, card cards.ChoiceCard) {
	msg := tgbotapi.NewMessage(chatID, card.Title)

	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(card.Items))
	for _, item := range card.Items {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(item.Label, item.ID),
		))
	}
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(rows...)

	if err := b.limiter.Wait(ctx); err != nil {
		return
	}
	if _, err := b.tg.Send(msg); err != nil {
		b.logger.Error().Err(err).Int64("chat_id", chatID).Msg("send card failed")
	}
}

func (b *Bot) sendText(ctx context.Context, chatID int64, text string) {
	if err := b.limiter.Wait(ctx); err != nil {
		return
	}
	if _, err := b.tg.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		b.logger.Error().Err(err).Int64("chat_id", chatID).Msg("send message failed")
	}
}
