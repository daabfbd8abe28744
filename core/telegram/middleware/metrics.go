package middleware

import (
	tele "gopkg.in/telebot.v4"
)

// metricsContext counts replies sent while handling one update.
type metricsContext struct{ tele.Context }

const (
	keyMessages = "messages"
	keyKeyboard = "kb"
)

// counted records a successful reply and passes err through.
func (m metricsContext) counted(err error, opts []any) error {
	if err != nil {
		return err
	}
	n, _ := m.Get(keyMessages).(int)
	m.Set(keyMessages, n+1)
	if hasKeyboard(opts) {
		m.Set(keyKeyboard, true)
	}
	return nil
}

func hasKeyboard(opts []any) bool {
	for _, o := range opts {
		switch v := o.(type) {
		case *tele.SendOptions:
			if v != nil && v.ReplyMarkup != nil {
				return true
			}
		case *tele.ReplyMarkup:
			if v != nil {
				return true
			}
		}
	}
	return false
}

func (m metricsContext) Send(what any, opts ...any) error {
	return m.counted(m.Context.Send(what, opts...), opts)
}

func (m metricsContext) Edit(what any, opts ...any) error {
	return m.counted(m.Context.Edit(what, opts...), opts)
}

func (m metricsContext) EditOrSend(what any, opts ...any) error {
	return m.counted(m.Context.EditOrSend(what, opts...), opts)
}

// UpdateObserver receives the kind of every incoming update.
type UpdateObserver func(kind string)

// MessageMetricsMiddleware instruments context to track messages count and keyboard usage
// and reports each update to observe when it is set.
func MessageMetricsMiddleware(observe UpdateObserver) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			if observe != nil {
				observe(UpdateKind(c.Update()))
			}
			c.Set(keyMessages, 0)
			c.Set(keyKeyboard, false)
			return next(metricsContext{Context: c})
		}
	}
}

// GetCounters reads message count and keyboard presence flags from context.
func GetCounters(c tele.Context) (int, bool) {
	msgs, _ := c.Get(keyMessages).(int)
	kb, _ := c.Get(keyKeyboard).(bool)
	return msgs, kb
}
