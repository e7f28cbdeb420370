package domain

import "errors"

var (
	ErrUserNotFound            = errors.New("user not found")
	ErrDuplicateEmail          = errors.New("email already exists")
	ErrDuplicateIdentification = errors.New("identification number already exists")
	ErrDuplicateContactNo      = errors.New("contact number already exists")
	ErrDuplicateAccountNumber  = errors.New("account number already exists")
	ErrSequenceNotFound        = errors.New("sequence not found")
)
