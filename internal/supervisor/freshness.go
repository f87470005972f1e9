package supervisor

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sweeney/dreadpi/internal/fault"
	"github.com/sweeney/dreadpi/internal/validate"
)

// CheckFreshness rejects readings whose timestamp is older than window.
// A missing timestamp is skipped, an unparseable one or one in the future
// only warns.
func CheckFreshness(ts *float64, now time.Time, window time.Duration, log logrus.FieldLogger) error {
	if ts == nil {
		return nil
	}
	if !validate.IsPosixTime(*ts) {
		log.Warnf("can't check timestamp %v; not in POSIX format", *ts)
		return nil
	}

	nowSec := float64(now.UnixNano()) / float64(time.Second)
	age := nowSec - *ts
	if age < 0 {
		log.Warn("freshness is negative; crossing timezones or incorrect time on local/source system(s)")
		return nil
	}
	if age > window.Seconds() {
		return fmt.Errorf("%w: energy source data is %.1f mins old", fault.ErrValidation, age/60)
	}
	return nil
}
