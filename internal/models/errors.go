package models

import "errors"

var (
	ErrNotFound              = errors.New("not found")
	ErrOrderNotFound         = errors.New("order not found")
	ErrProductNotFound       = errors.New("product not found")
	ErrEmptyCart             = errors.New("cart is empty")
	ErrCheckoutInProgress    = errors.New("an order for this cart is already being submitted")
	ErrPaymentMethodRequired = errors.New("a payment method must be selected")
	ErrInvalidCoupon         = errors.New("coupon code is not valid")
	ErrInvalidStatus         = errors.New("invalid order status")
	ErrUnauthenticated       = errors.New("you must be signed in")
	ErrNotOrderOwner         = errors.New("only the buyer of this order can confirm receipt")
	ErrNotDelivered          = errors.New("order has not been delivered yet")
	ErrForbidden             = errors.New("insufficient role")
	ErrConflict              = errors.New("already exists")
	ErrInvalidCredentials    = errors.New("invalid credentials")
)
