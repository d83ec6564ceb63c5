package main

import (
	"context"
	"log/slog"

	"ecopoints/internal/events"
)

type levelUpMailer interface {
	Enabled() bool
	SendLevelUp(email, name, previous, level string, total int, co2 float64) error
}

func newHandler(mail levelUpMailer, logger *slog.Logger) events.Handler {
	return func(_ context.Context, ev events.Event) error {
		switch ev.Type {
		case events.TypeLevelUp:
			if ev.Email == "" || !mail.Enabled() {
				logger.Info("level up without notification",
					slog.Uint64("user_id", uint64(ev.UserID)), slog.String("level", ev.Level))
				return nil
			}
			return mail.SendLevelUp(ev.Email, ev.Name, ev.PreviousLevel, ev.Level, ev.Total, ev.CO2Saved)
		case events.TypeUserRegistered:
			logger.Info("user registered", slog.Uint64("user_id", uint64(ev.UserID)))
		default:
			logger.Debug("ignored event", slog.String("type", string(ev.Type)))
		}
		return nil
	}
}
