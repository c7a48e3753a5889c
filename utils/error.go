package utils

import "errors"

var ErrorLockNotObtained = errors.New("entity is busy, try again")
