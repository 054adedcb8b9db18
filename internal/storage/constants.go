package storage

import "time"

const (
	ratesKeyPrefix = "converter:rates:"
	lockKeyPrefix  = "converter:lock:"

	// DefaultTTL is how long a fetched rate table stays valid.
	DefaultTTL = 300 * time.Second
)
