package database

import "errors"

// ErrNotReady indicates the database connection has not been established.
var ErrNotReady = errors.New("database not ready")

// ErrPingFailed is recorded when the startup ping does not succeed.
var ErrPingFailed = errors.New("database ping failed")
