package config

import "errors"

var (
	// ErrConfigFileNotFound is returned when config file is not found
	ErrConfigFileNotFound = errors.New("configuration file not found")

	// ErrHostsRequired is returned when either backend host is empty
	ErrHostsRequired = errors.New("both environment hosts are required")

	// ErrInvalidStorageType is returned for an unknown storage type
	ErrInvalidStorageType = errors.New("invalid storage type (allowed: leveldb, memory, redis)")

	// ErrRedisAddrRequired is returned when the redis store has no address
	ErrRedisAddrRequired = errors.New("storage.redis.addr is required for the redis store")

	// ErrInvalidDuration is returned when a duration field does not parse
	ErrInvalidDuration = errors.New("invalid duration")

	// ErrInvalidLogLevel is returned for an unknown logging level
	ErrInvalidLogLevel = errors.New("invalid logging level (allowed: debug, info, warn, error)")

	// ErrMediaRegionRequired is returned when a bucket is set without a region
	ErrMediaRegionRequired = errors.New("media.region is required when media.bucket is set")
)
