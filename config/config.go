// civictrack/config/config.go
package config

import "time"

const (
	AppVersion = "1.2.0"

	// Issue field limits
	MaxTitleLen       = 200
	MaxDescriptionLen = 1000
	MaxAddressLen     = 255

	// Photo upload limits
	MaxPhotos     = 3
	MaxPhotoSize  = 5 * 1024 * 1024 // 5MB
	ThumbnailSize = 250

	// Community moderation policy: an issue disappears from public
	// listings once this many distinct users have flagged it.
	FlagAutoHideThreshold = 3

	// Default radius for nearby lookups, in kilometers.
	DefaultRadiusKm = 5.0

	// Auth
	TokenTTL          = 7 * 24 * time.Hour
	MinPasswordLen    = 6
	BcryptCost        = 12
	DefaultAdminEmail = "admin@civictrack.local"

	// Rate Limiting Defaults (per-IP, auth endpoints)
	DefaultRateLimitEvery  = "2s"
	DefaultRateLimitBurst  = 10
	DefaultRateLimitPrune  = "1h"
	DefaultRateLimitExpire = "24h"

	// Issues a single user may submit per day.
	DailyIssueLimit = 5
)
