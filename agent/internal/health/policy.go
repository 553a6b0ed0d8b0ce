package health

// Builds holds the raw build numbers a job source reports for one job.
// Jenkins numbers builds from 1, so zero means "absent".
type Builds struct {
	LastCompleted  int
	LastFailed     int
	LastSuccessful int
}

// HasHistory reports whether the job has completed any build at all.
func (b Builds) HasHistory() bool {
	return b.LastCompleted != 0 || b.LastFailed != 0 || b.LastSuccessful != 0
}

// Verdict is the outcome of evaluating Builds against a fail tolerance.
type Verdict struct {
	// OK drives the lights.
	OK bool
	// LastBuildOK is true when the latest completed build is itself green.
	// Diagnostic only.
	LastBuildOK bool
	// NeverSucceeded is true when the job has failed but has no successful build.
	NeverSucceeded bool
}

// Evaluate applies the fail-tolerance rules to b. Rules, first match wins:
//
//  1. no build history                      → ok
//  2. never failed                          → ok
//  3. failed but never succeeded            → ok iff ignoreNeverSucceeded
//  4. otherwise ok iff lastSuccessful + failTolerance >= lastFailed
//
// A negative failTolerance is treated as zero.
func Evaluate(b Builds, failTolerance int, ignoreNeverSucceeded bool) Verdict {
	if failTolerance < 0 {
		failTolerance = 0
	}
	v := Verdict{LastBuildOK: lastBuildOK(b)}

	switch {
	case !b.HasHistory():
		v.OK = true
	case b.LastFailed == 0:
		v.OK = true
	case b.LastSuccessful == 0:
		v.NeverSucceeded = true
		v.OK = ignoreNeverSucceeded
	default:
		v.OK = b.LastSuccessful+failTolerance >= b.LastFailed
	}
	return v
}

// IsOK is shorthand for Evaluate(...).OK.
func IsOK(b Builds, failTolerance int, ignoreNeverSucceeded bool) bool {
	return Evaluate(b, failTolerance, ignoreNeverSucceeded).OK
}

func lastBuildOK(b Builds) bool {
	if b.LastCompleted == 0 {
		return true
	}
	return b.LastCompleted == b.LastSuccessful
}
