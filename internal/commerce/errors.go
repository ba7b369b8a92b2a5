package commerce

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrAlreadyReleased   = errors.New("reservation already released")
	ErrCartCompleted     = errors.New("cart already completed")
	ErrEmptyCart         = errors.New("cart has no items")
	ErrInvalidTransition = errors.New("invalid order status transition")

	// ErrUnsupportedPromotionType marks promotion types whose monetary
	// effect is not computed here (FREE_SHIPPING, BUY_X_GET_Y).
	ErrUnsupportedPromotionType = errors.New("unsupported promotion type")
)
