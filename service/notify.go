package service

import (
	"context"

	"taxidispatch/pkg/logger"
	"taxidispatch/pkg/metrics"
	"taxidispatch/pkg/models"
)

// notifications wraps a Notifier so delivery failures are logged and counted
// instead of being returned.
type notifications struct {
	n       Notifier
	metrics *metrics.Metrics
	log     logger.ILogger
}

func (s *notifications) send(ctx context.Context, chatID int64, text string, buttons ...Button) (models.MessageHandle, bool) {
	if chatID == 0 {
		return models.MessageHandle{}, false
	}
	h, err := s.n.Send(ctx, chatID, text, buttons...)
	if err != nil {
		s.failed("send", err, logger.Int64("chat_id", chatID))
		return models.MessageHandle{}, false
	}
	return h, true
}

func (s *notifications) edit(ctx context.Context, msg *models.MessageHandle, text string, buttons ...Button) {
	if msg == nil || msg.IsZero() {
		return
	}
	if err := s.n.Edit(ctx, *msg, text, buttons...); err != nil {
		s.failed("edit", err, logger.Int64("chat_id", msg.ChatID), logger.Int("message_id", msg.MessageID))
	}
}

func (s *notifications) acknowledge(ctx context.Context, interactionID, text string, alert bool) {
	if interactionID == "" {
		return
	}
	if err := s.n.Acknowledge(ctx, interactionID, text, alert); err != nil {
		s.failed("acknowledge", err)
	}
}

func (s *notifications) failed(op string, err error, fields ...logger.Field) {
	s.metrics.NotificationFailuresTotal.WithLabelValues(op).Inc()
	s.log.Warning("notification not delivered", append(fields, logger.String("op", op), logger.Error(err))...)
}

func acceptButton(o *models.Order) Button {
	return Button{Text: textAcceptButton, Data: models.NewCallbackPayload(models.CallbackAccept, o.ID).String()}
}

func completeButton(o *models.Order) Button {
	return Button{Text: textCompleteButton, Data: models.NewCallbackPayload(models.CallbackComplete, o.ID).String()}
}
