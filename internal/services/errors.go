package services

import "errors"

var (
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrUserNotFound       = errors.New("user not found")
	ErrNotApproved        = errors.New("account is awaiting approval")

	ErrUnknownRefCode = errors.New("referral code not found")

	ErrEntryNotFound   = errors.New("commission entry not found")
	ErrEntryNotPending = errors.New("commission entry is not pending")

	ErrInvalidTier        = errors.New("tier must be ADVOCATE or AMBASSADOR")
	ErrSelfReference      = errors.New("a user cannot be their own ambassador")
	ErrNotAmbassador      = errors.New("target user is not an ambassador")
	ErrAmbassadorCycle    = errors.New("assignment would create an ambassador cycle")
	ErrCannotDeleteSelf   = errors.New("admins cannot delete their own account")
	ErrRefCodeUnavailable = errors.New("could not allocate a unique referral code")
)
