package bot

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
	"time"

	tele "gopkg.in/telebot.v3"

	"taxidispatch/config"
	"taxidispatch/pkg/errs"
	"taxidispatch/pkg/logger"
	"taxidispatch/pkg/models"
	"taxidispatch/service"
)

const handlerTimeout = 15 * time.Second

type Bot struct {
	Bot      *tele.Bot
	Log      logger.ILogger
	Cfg      config.Config
	Svc      service.IServiceManager
	Settings service.Settings
}

// NewTelegram connects to the Bot API with the token from cfg.
func NewTelegram(cfg config.Config) (*tele.Bot, error) {
	pref := tele.Settings{
		Token:     cfg.TelegramBotToken,
		Poller:    &tele.LongPoller{Timeout: 10 * time.Second},
		ParseMode: tele.ModeHTML,
	}
	return tele.NewBot(pref)
}

// New attaches the dispatch handlers to b.
func New(b *tele.Bot, cfg config.Config, svc service.IServiceManager, settings service.Settings, log logger.ILogger) *Bot {
	bot := &Bot{
		Bot:      b,
		Log:      log,
		Cfg:      cfg,
		Svc:      svc,
		Settings: settings,
	}
	bot.registerHandlers()
	return bot
}

func (b *Bot) Start() {
	b.Log.Info(fmt.Sprintf("🤖 Bot @%s started", b.Bot.Me.Username))
	b.Bot.Start()
}

func (b *Bot) Stop() {
	b.Bot.Stop()
}

var messages = map[string]string{
	"welcome":         "🚖 Привет, %s!\n\nДобро пожаловать в службу такси.\nНажмите кнопку ниже, чтобы заказать такси:",
	"order_button":    "🚖 Заказать такси",
	"contact_msg":     "📱 Чтобы водитель мог с вами связаться, поделитесь номером телефона:",
	"share_contact":   "📱 Поделиться номером",
	"phone_saved":     "✅ Номер сохранён",
	"own_contact":     "Отправьте, пожалуйста, свой номер.",
	"accepted":        "✅ Вы приняли заказ!",
	"taken":           "Заказ уже принят другим водителем",
	"register_first":  "Сначала завершите регистрацию в личных сообщениях бота!",
	"blocked":         "Вы заблокированы",
	"busy":            "У вас уже есть активный заказ",
	"unavailable":     "Заказ не найден или уже завершён",
	"completed":       "✅ Заказ завершён!",
	"unknown_action":  "Неизвестное действие",
	"try_again_later": "Произошла ошибка, попробуйте позже",
}

func (b *Bot) registerHandlers() {
	b.Bot.Handle("/start", b.handleStart)
	b.Bot.Handle(tele.OnContact, b.handleContact)
	b.Bot.Handle(tele.OnUserJoined, b.handleUserJoined)
	b.Bot.Handle(tele.OnCallback, b.handleCallback)
	b.Bot.Handle(tele.OnText, b.handleText)
}

func (b *Bot) handleStart(c tele.Context) error {
	if c.Chat().Type != tele.ChatPrivate {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	client, err := b.Svc.Client().Auth(ctx, profileOf(c.Sender()))
	if err != nil {
		b.Log.Error("failed to register client on /start", logger.Int64("telegram_id", c.Sender().ID), logger.Error(err))
	}

	text := fmt.Sprintf(messages["welcome"], html.EscapeString(c.Sender().FirstName))
	if b.Cfg.WebAppURL == "" {
		err = c.Send(text)
	} else {
		menu := &tele.ReplyMarkup{}
		menu.Inline(menu.Row(menu.WebApp(messages["order_button"], &tele.WebApp{URL: b.Cfg.WebAppURL})))
		err = c.Send(text, menu)
	}
	if err != nil {
		return err
	}

	if client != nil && client.Phone == "" {
		menu := &tele.ReplyMarkup{ResizeKeyboard: true, OneTimeKeyboard: true}
		menu.Reply(menu.Row(menu.Contact(messages["share_contact"])))
		return c.Send(messages["contact_msg"], menu)
	}
	return nil
}

func (b *Bot) handleContact(c tele.Context) error {
	contact := c.Message().Contact
	if c.Chat().Type != tele.ChatPrivate || contact == nil {
		return nil
	}
	if contact.UserID != c.Sender().ID {
		return c.Send(messages["own_contact"])
	}
	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	if _, err := b.Svc.Client().Auth(ctx, profileOf(c.Sender())); err != nil {
		return err
	}
	if _, err := b.Svc.Client().UpdatePhone(ctx, c.Sender().ID, contact.PhoneNumber); err != nil {
		if errors.Is(err, errs.ErrValidation) {
			return c.Send(errs.Reason(err), tele.RemoveKeyboard)
		}
		return err
	}
	return c.Send(messages["phone_saved"], tele.RemoveKeyboard)
}

// handleUserJoined starts registration for people entering the drivers group.
// telebot calls it once per joined user.
func (b *Bot) handleUserJoined(c tele.Context) error {
	driversChat := b.Settings.DriversChatID()
	if driversChat == 0 || c.Chat().ID != driversChat {
		return nil
	}
	user := c.Message().UserJoined
	if user == nil || user.IsBot {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	if _, err := b.Svc.Driver().OnJoin(ctx, profileOf(user)); err != nil {
		b.Log.Error("failed to handle drivers chat join", logger.Int64("telegram_id", user.ID), logger.Error(err))
	}
	return nil
}

// handleText feeds private messages into the registration dialogue.
func (b *Bot) handleText(c tele.Context) error {
	if c.Chat().Type != tele.ChatPrivate || strings.HasPrefix(c.Text(), "/") {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	_, err := b.Svc.Driver().HandleText(ctx, profileOf(c.Sender()), c.Text())
	if err != nil && !errors.Is(err, errs.ErrValidation) {
		b.Log.Error("failed to handle registration answer", logger.Int64("telegram_id", c.Sender().ID), logger.Error(err))
	}
	return nil
}

func (b *Bot) handleCallback(c tele.Context) error {
	payload, err := models.ParseCallbackPayload(c.Callback().Data)
	if err != nil {
		return c.Respond(&tele.CallbackResponse{Text: messages["unknown_action"], ShowAlert: true})
	}
	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	var (
		text  string
		alert bool
	)
	switch payload.Action {
	case models.CallbackAccept:
		_, err = b.Svc.Dispatcher().Claim(ctx, payload.OrderID, profileOf(c.Sender()))
		text, alert = claimReply(err)
	case models.CallbackComplete:
		_, err = b.Svc.Order().CompleteByDriver(ctx, payload.OrderID, c.Sender().ID)
		text, alert = completeReply(err)
	}
	if err != nil && !isExpected(err) {
		b.Log.Error("callback failed",
			logger.String("action", string(payload.Action)),
			logger.String("order_id", payload.OrderID),
			logger.Int64("telegram_id", c.Sender().ID),
			logger.Error(err),
		)
	}
	return c.Respond(&tele.CallbackResponse{Text: text, ShowAlert: alert})
}

func claimReply(err error) (text string, alert bool) {
	switch {
	case err == nil:
		return messages["accepted"], false
	case errors.Is(err, service.ErrOrderTaken):
		return messages["taken"], true
	case errors.Is(err, service.ErrRegistrationRequired):
		return messages["register_first"], true
	case errors.Is(err, service.ErrDriverBlocked):
		return messages["blocked"], true
	case errors.Is(err, service.ErrDriverBusy):
		return messages["busy"], true
	case errors.Is(err, errs.ErrNotFound), errors.Is(err, errs.ErrInvalidState):
		return messages["unavailable"], true
	}
	return messages["try_again_later"], true
}

func completeReply(err error) (text string, alert bool) {
	switch {
	case err == nil:
		return messages["completed"], false
	case isExpected(err):
		return messages["unavailable"], true
	}
	return messages["try_again_later"], true
}

// isExpected reports whether err is a business outcome rather than a failure.
func isExpected(err error) bool {
	return errors.Is(err, errs.ErrNotFound) ||
		errors.Is(err, errs.ErrInvalidState) ||
		errors.Is(err, errs.ErrConflict) ||
		errors.Is(err, errs.ErrValidation)
}

func profileOf(u *tele.User) models.Profile {
	return models.Profile{
		TelegramID: u.ID,
		Username:   u.Username,
		FirstName:  u.FirstName,
		LastName:   u.LastName,
	}
}
