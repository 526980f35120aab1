package service

// Balance change reasons pushed to connected clients.
const (
	ReasonReserve = "reserve"
	ReasonRefund  = "refund"
	ReasonExpired = "expired"
	ReasonTopup   = "topup"
	ReasonAdmin   = "admin"
)

// Notifier pushes a user's new balance to their open sessions. It must
// not block; delivery is best-effort.
type Notifier interface {
	NotifyBalance(userID string, credits int64, reason, referenceID string)
}

type nopNotifier struct{}

func (nopNotifier) NotifyBalance(string, int64, string, string) {}

func orNop(n Notifier) Notifier {
	if n == nil {
		return nopNotifier{}
	}
	return n
}
