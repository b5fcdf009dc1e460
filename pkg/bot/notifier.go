package bot

import (
	"context"
	"strconv"

	tele "gopkg.in/telebot.v3"

	"taxidispatch/pkg/models"
	"taxidispatch/service"
)

// Notifier delivers service notifications through the Telegram Bot API.
type Notifier struct {
	bot *tele.Bot
}

func NewNotifier(b *tele.Bot) *Notifier {
	return &Notifier{bot: b}
}

func (n *Notifier) Send(ctx context.Context, chatID int64, text string, buttons ...service.Button) (models.MessageHandle, error) {
	if err := ctx.Err(); err != nil {
		return models.MessageHandle{}, err
	}
	msg, err := n.bot.Send(tele.ChatID(chatID), text, sendOptions(buttons))
	if err != nil {
		return models.MessageHandle{}, err
	}
	return models.MessageHandle{ChatID: msg.Chat.ID, MessageID: msg.ID}, nil
}

// Edit replaces the text of a delivered message. Without buttons the inline
// keyboard is removed.
func (n *Notifier) Edit(ctx context.Context, msg models.MessageHandle, text string, buttons ...service.Button) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	stored := &tele.StoredMessage{MessageID: strconv.Itoa(msg.MessageID), ChatID: msg.ChatID}
	_, err := n.bot.Edit(stored, text, sendOptions(buttons))
	return err
}

func (n *Notifier) Acknowledge(ctx context.Context, interactionID, text string, alert bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return n.bot.Respond(&tele.Callback{ID: interactionID}, &tele.CallbackResponse{Text: text, ShowAlert: alert})
}

func sendOptions(buttons []service.Button) *tele.SendOptions {
	opts := &tele.SendOptions{ParseMode: tele.ModeHTML}
	if len(buttons) > 0 {
		rows := make([][]tele.InlineButton, 0, len(buttons))
		for _, b := range buttons {
			rows = append(rows, []tele.InlineButton{{Text: b.Text, Data: b.Data}})
		}
		opts.ReplyMarkup = &tele.ReplyMarkup{InlineKeyboard: rows}
	}
	return opts
}
