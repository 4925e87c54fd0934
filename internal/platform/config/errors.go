package config

import "errors"

// errInvalidConfig wraps all validation failures so callers can detect them
// with errors.Is without matching message text.
var errInvalidConfig = errors.New("invalid configuration")
