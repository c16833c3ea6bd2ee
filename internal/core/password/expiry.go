package password

import (
	"math"
	"time"
)

type Urgency string

const (
	UrgencyExpired  Urgency = "EXPIRED"
	UrgencyCritical Urgency = "CRITICAL"
	UrgencyWarning  Urgency = "WARNING"
	UrgencyOK       Urgency = "OK"
)

// Status is the expiry view attached to authenticated responses. It is never stored.
type Status struct {
	NeedsChange         bool      `json:"needs_change"`
	DaysUntilExpiration int       `json:"days_until_expiration"`
	LastChange          time.Time `json:"last_change"`
	Urgency             Urgency   `json:"urgency"`
}

func (p *Policy) ExpiryStatus(lastChange, now time.Time) Status {
	expiration := lastChange.AddDate(0, 0, p.cfg.ExpiryDays)
	days := int(math.Floor(expiration.Sub(now).Hours() / 24))

	return Status{
		NeedsChange:         days <= 0,
		DaysUntilExpiration: days,
		LastChange:          lastChange,
		Urgency:             urgencyFor(days),
	}
}

func urgencyFor(days int) Urgency {
	switch {
	case days <= 0:
		return UrgencyExpired
	case days <= 5:
		return UrgencyCritical
	case days <= 10:
		return UrgencyWarning
	default:
		return UrgencyOK
	}
}
