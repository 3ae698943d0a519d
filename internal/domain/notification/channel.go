package notification

import "context"

// ══════════════════════════════════════════════════════════════════════════════
// SINK & REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// Sink принимает уведомления к доставке. Реализация сама решает,
// куда их положить (таблица notifications, очередь, лог).
type Sink interface {
	Send(ctx context.Context, n Notification) error
}

// Repository хранит уведомления в таблице notifications.
type Repository interface {
	// Insert сохраняет уведомление.
	Insert(ctx context.Context, n Notification) error

	// ListByUser возвращает последние уведомления пользователя, новые первыми.
	ListByUser(ctx context.Context, userID string, limit int) ([]Notification, error)
}

// SinkFunc позволяет использовать функцию как Sink.
type SinkFunc func(ctx context.Context, n Notification) error

// Send вызывает f(ctx, n).
func (f SinkFunc) Send(ctx context.Context, n Notification) error {
	return f(ctx, n)
}
