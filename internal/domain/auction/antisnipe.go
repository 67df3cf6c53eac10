package auction

import "time"

// AntiSnipePolicy decides whether a late bid pushes out the auction
// deadline. Values come from admin settings and are snapshotted per call;
// the policy itself holds no mutable state.
type AntiSnipePolicy struct {
	TriggerWindow time.Duration
	Extension     time.Duration
}

// ShouldExtend reports whether a bid admitted at now lands inside the
// trailing trigger window. A disabled policy (zero window or extension)
// never extends.
func (p AntiSnipePolicy) ShouldExtend(endTime, now time.Time) bool {
	if p.TriggerWindow <= 0 || p.Extension <= 0 {
		return false
	}
	if now.After(endTime) {
		return false
	}
	return endTime.Sub(now) <= p.TriggerWindow
}

// Extend computes the new deadline. The extension is anchored on the
// current end time, not on now: repeated late bids each push a fixed
// increment instead of resetting a full window, which keeps the clock
// from drifting indefinitely when the extension is shorter than the
// trigger window.
func (p AntiSnipePolicy) Extend(endTime time.Time) time.Time {
	return endTime.Add(p.Extension)
}
