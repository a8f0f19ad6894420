package redisx

import "time"

const (
	// Idempotent order create per user: idem:order:create:{user_id}:{key} -> order_id
	KeyIdemOrderCreate = "idem:order:create:%d:%s"

	// Cached order status: order_status:{order_id} -> {"status": "...", "updatedAt": "..."}
	KeyOrderStatus = "order_status:%s"

	// Event dedup: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"

	// Cart per session: cart:{session} -> JSON array of line items
	KeyCart = "cart:%s"

	// Pending OTP verification per session: verify:pending:{session} -> {"email","expiry"}
	KeyPendingVerification = "verify:pending:%s"

	// In-flight guard for one-shot actions: inflight:{action}:{session}
	KeyInFlight = "inflight:%s:%s"
)

var (
	TTLIdempotency = 24 * time.Hour
	TTLStatusCache = 5 * time.Minute
	TTLDedup       = 48 * time.Hour
	TTLCart        = 30 * 24 * time.Hour
	TTLInFlight    = 30 * time.Second
)
