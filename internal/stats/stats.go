// Package stats computes aggregate views over verification events.
package stats

import (
	"time"

	"verifybot/internal/store"
)

// RecentWindow is the lookback used for Summary.RecentCount.
const RecentWindow = 7 * 24 * time.Hour

// Summary is a pure aggregation over a window of events.
//
// FirstEventAt is the oldest timestamp within the supplied window. If the
// caller limited the input upstream the value is the oldest of that window,
// not the global first verification; pass a large enough limit when that
// distinction matters.
type Summary struct {
	Total           int
	UniqueVerifiers int
	UniqueVerified  int

	MostActiveVerifier      string
	MostActiveVerifierCount int

	RecentCount  int
	FirstEventAt time.Time
}

// Aggregate computes a Summary. It has no side effects and never fails;
// empty input yields the zero Summary.
//
// Most-active tie-break: among verifiers with equal counts, the one whose
// first event appears earliest in the supplied slice wins. Callers pass
// newest-first slices from store.List, so ties resolve to the verifier
// with the most recent activity.
func Aggregate(events []store.VerificationEvent, now time.Time) Summary {
	var sum Summary
	if len(events) == 0 {
		return sum
	}

	sum.Total = len(events)
	cutoff := now.Add(-RecentWindow)

	verifiers := map[string]int{}
	verified := map[string]struct{}{}
	firstSeen := map[string]int{}
	names := map[string]string{}

	for i, ev := range events {
		if _, ok := verifiers[ev.VerifierUserID]; !ok {
			firstSeen[ev.VerifierUserID] = i
			names[ev.VerifierUserID] = ev.VerifierUserName
		}
		verifiers[ev.VerifierUserID]++
		verified[ev.VerifiedUserID] = struct{}{}

		if ev.At.After(cutoff) {
			sum.RecentCount++
		}
		if sum.FirstEventAt.IsZero() || ev.At.Before(sum.FirstEventAt) {
			sum.FirstEventAt = ev.At
		}
	}

	sum.UniqueVerifiers = len(verifiers)
	sum.UniqueVerified = len(verified)

	best := ""
	for id, n := range verifiers {
		if best == "" || n > verifiers[best] || (n == verifiers[best] && firstSeen[id] < firstSeen[best]) {
			best = id
		}
	}
	sum.MostActiveVerifier = names[best]
	sum.MostActiveVerifierCount = verifiers[best]

	return sum
}
