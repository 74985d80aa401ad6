package ledger

import (
	"context"

	"github.com/angelmondragon/packfinderz-inventory/pkg/db/models"
)

type snapshotKey struct{}

// IsSnapshot reports whether the change being notified came from a POS
// snapshot rather than a local stock movement.
func IsSnapshot(ctx context.Context) bool {
	marked, _ := ctx.Value(snapshotKey{}).(bool)
	return marked
}

func withSnapshot(ctx context.Context) context.Context {
	return context.WithValue(ctx, snapshotKey{}, true)
}

type notifiers []QuantityNotifier

// Notifiers fans one committed change out to every non-nil notifier, in order.
func Notifiers(list ...QuantityNotifier) QuantityNotifier {
	out := make(notifiers, 0, len(list))
	for _, n := range list {
		if n != nil {
			out = append(out, n)
		}
	}
	return out
}

func (n notifiers) QuantityChanged(ctx context.Context, record models.StockRecord) {
	for _, notifier := range n {
		notifier.QuantityChanged(ctx, record)
	}
}
