package repository

import "context"

// 処理済みwebhookイベントの記録（再送の重複副作用を抑える）
type WebhookEventStore interface {
	Seen(ctx context.Context, eventID string) (bool, error)
	MarkProcessed(ctx context.Context, eventID string) error
}
