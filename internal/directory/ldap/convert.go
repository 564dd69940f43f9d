package ldap

import (
	"time"
)

// Active Directory userAccountControl bits.
const (
	uacAccountDisable     = 0x0002
	uacDontExpirePassword = 0x10000
	uacPasswordExpired    = 0x800000
)

// Seconds between the Windows FILETIME epoch (1601-01-01) and the Unix epoch.
const filetimeEpochOffset = 11644473600

// filetimeToTime converts a FILETIME value (100-nanosecond intervals since
// 1601) to a time.Time. A zero value has no meaning as a timestamp and
// returns nil; AD uses it for "password must change at next logon".
func filetimeToTime(ft int64) *time.Time {
	if ft <= 0 {
		return nil
	}
	secs := ft/10000000 - filetimeEpochOffset
	nanos := (ft % 10000000) * 100
	t := time.Unix(secs, nanos).UTC()
	return &t
}

// intervalToMaxAge converts an AD age interval (negative 100-nanosecond
// units) to a duration. The sentinel most-negative value and zero both mean
// "never expires" and yield 0.
func intervalToMaxAge(interval int64) time.Duration {
	const neverSentinel = -0x8000000000000000
	if interval == 0 || interval == neverSentinel {
		return 0
	}
	if interval > 0 {
		// Age intervals are stored negated; a positive value is malformed.
		return 0
	}
	return time.Duration(-interval * 100)
}
