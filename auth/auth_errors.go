package auth

import "errors"

var (
	MissingIdentifierErr  = errors.New("missing phone number")
	InvalidPhoneNumberErr = errors.New("invalid phone number")
	MissingSecretErr      = errors.New("missing password")
)
