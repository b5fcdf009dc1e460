package service

import "errors"

// Reasons attached to taxonomy errors. Transports match them with errors.Is
// to pick the message shown to the user.
var (
	ErrPhoneRequired        = errors.New("phone number is required to order a taxi")
	ErrActiveOrderExists    = errors.New("client already has an active order")
	ErrOrderTaken           = errors.New("order already taken")
	ErrRegistrationRequired = errors.New("driver must finish registration")
	ErrDriverBlocked        = errors.New("driver is blocked")
	ErrDriverBusy           = errors.New("driver is busy with another order")
	ErrNotAssignedDriver    = errors.New("order is assigned to another driver")
	ErrCarFieldRequired     = errors.New("car details of a registered driver cannot be cleared")
)
