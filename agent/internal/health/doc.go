// Package health turns raw CI build numbers into a job verdict.
//
// policy.go holds the pure Evaluate(Builds, failTolerance, ignoreNeverSucceeded)
// function. The tolerance is a hysteresis window: a job stays ok while its
// latest failure is at most failTolerance builds past its latest success, so
// a short run of flaky failures does not flip the lights.
//
// job.go holds Job, the shared per-job state refreshed in place by a Fetcher
// (the Jenkins adapter in production). Refresh never carries data over from
// the previous cycle; fetch errors reset the job to ok/not claimed.
package health
