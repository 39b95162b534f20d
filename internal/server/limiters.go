package server

import (
	"time"

	"github.com/ProfessorNova/focusflow/internal/ratelimit"
)

// limiters holds every in-process bucket the handlers consult. Keys are
// client IPs, user ids or session ids depending on the bucket.
type limiters struct {
	global *ratelimit.RefillingTokenBucket[string]

	signupIP *ratelimit.RefillingTokenBucket[string]
	loginIP  *ratelimit.RefillingTokenBucket[string]
	login    *ratelimit.Throttler[string]

	forgotIP   *ratelimit.RefillingTokenBucket[string]
	forgotUser *ratelimit.RefillingTokenBucket[string]
	resetEmail *ratelimit.ExpiringTokenBucket[string]

	verifyEmail     *ratelimit.ExpiringTokenBucket[string]
	sendVerifyEmail *ratelimit.ExpiringTokenBucket[string]

	totp         *ratelimit.ExpiringTokenBucket[string]
	totpSetup    *ratelimit.RefillingTokenBucket[string]
	recoveryCode *ratelimit.ExpiringTokenBucket[string]

	passwordUpdate *ratelimit.ExpiringTokenBucket[string]
}

func newLimiters(opts ...ratelimit.Option) *limiters {
	return &limiters{
		global: ratelimit.NewRefillingTokenBucket[string](100, time.Second, opts...),

		signupIP: ratelimit.NewRefillingTokenBucket[string](3, 10*time.Second, opts...),
		loginIP:  ratelimit.NewRefillingTokenBucket[string](20, time.Second, opts...),
		login:    ratelimit.NewThrottler[string](ratelimit.LoginTimeouts, opts...),

		forgotIP:   ratelimit.NewRefillingTokenBucket[string](3, time.Minute, opts...),
		forgotUser: ratelimit.NewRefillingTokenBucket[string](3, time.Minute, opts...),
		resetEmail: ratelimit.NewExpiringTokenBucket[string](5, 30*time.Minute, opts...),

		verifyEmail:     ratelimit.NewExpiringTokenBucket[string](5, 30*time.Minute, opts...),
		sendVerifyEmail: ratelimit.NewExpiringTokenBucket[string](3, 10*time.Minute, opts...),

		totp:         ratelimit.NewExpiringTokenBucket[string](5, 30*time.Minute, opts...),
		totpSetup:    ratelimit.NewRefillingTokenBucket[string](3, 10*time.Minute, opts...),
		recoveryCode: ratelimit.NewExpiringTokenBucket[string](3, time.Hour, opts...),

		passwordUpdate: ratelimit.NewExpiringTokenBucket[string](5, 30*time.Minute, opts...),
	}
}
