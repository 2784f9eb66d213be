package notify

import (
	"context"
	"fmt"

	tgbot "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

type Notifier interface {
	Send(msg string)
	Sendf(format string, args ...any)
}

// StatusFunc текст ответа на /status.
type StatusFunc func() string

// Telegram пассивный нотифайер плюс одна команда /status.
type Telegram struct {
	bot    *tgbot.BotAPI
	chatID int64
	log    *zap.Logger
	status StatusFunc
}

func NewTelegram(token string, chatID int64, log *zap.Logger) (*Telegram, error) {
	b, err := tgbot.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram bot: %w", err)
	}
	return &Telegram{
		bot:    b,
		chatID: chatID,
		log:    log,
	}, nil
}

// SetStatus регистрирует источник для /status, вызывать до Start.
func (t *Telegram) SetStatus(f StatusFunc) { t.status = f }

func (t *Telegram) Send(msg string) {
	if t == nil || t.bot == nil || t.chatID == 0 {
		return
	}
	if _, err := t.bot.Send(tgbot.NewMessage(t.chatID, msg)); err != nil {
		t.log.Warn("telegram send failed", zap.Error(err))
	}
}

func (t *Telegram) Sendf(format string, args ...any) { t.Send(fmt.Sprintf(format, args...)) }

// Start long-polling сообщений чата.
func (t *Telegram) Start(ctx context.Context) error {
	if t == nil || t.bot == nil {
		return nil
	}

	u := tgbot.NewUpdate(0)
	u.Timeout = 30
	u.AllowedUpdates = []string{"message"}

	updates := t.bot.GetUpdatesChan(u)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case upd, ok := <-updates:
				if !ok {
					return
				}
				if upd.Message == nil || upd.Message.Chat == nil ||
					upd.Message.Chat.ID != t.chatID || !upd.Message.IsCommand() {
					continue
				}
				switch upd.Message.Command() {
				case "status":
					if t.status == nil {
						t.Send("статус недоступен")
						continue
					}
					t.Send(t.status())
				}
			}
		}
	}()
	return nil
}

func (t *Telegram) Stop() {
	if t != nil && t.bot != nil {
		t.bot.StopReceivingUpdates()
	}
}

// Stdout пишет уведомления в лог, когда телеграм не настроен.
type Stdout struct {
	log *zap.Logger
}

func NewStdout(log *zap.Logger) *Stdout { return &Stdout{log: log} }

func (s *Stdout) Send(msg string)                  { s.log.Info("notify", zap.String("msg", msg)) }
func (s *Stdout) Sendf(format string, args ...any) { s.Send(fmt.Sprintf(format, args...)) }
