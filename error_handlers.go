package taskpool

import (
	"fmt"

	lg "github.com/Andrej220/go-utils/zlog"
)

// notify delivers msg to the configured notifier.
//
// A panicking notifier is recovered and reported through OnNotifyError;
// the scheduler operation that emitted the event carries on regardless.
func (s *Scheduler) notify(msg string) {
	if s.opts.Notify == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			s.reportNotifyError(fmt.Errorf("taskpool: notifier panicked: %v", r))
		}
	}()
	s.opts.Notify(msg)
}

// reportNotifyError reports a notifier failure. Without a handler the
// failure is logged and otherwise ignored.
func (s *Scheduler) reportNotifyError(err error) {
	if s.opts.OnNotifyError != nil {
		s.opts.OnNotifyError(err)
		return
	}
	lg.FromContext(s.opts.Ctx).Warn("notifier failed",
		lg.String("scheduler", s.opts.Name),
		lg.Any("error", err),
	)
}
