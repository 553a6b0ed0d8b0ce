// Package jenkins is a job source backed by the Jenkins JSON API.
//
// A Server discovers the top-level jobs and views of one Jenkins instance
// and hands out one shared *health.Job per job. Jobs refresh through
// Server.Fetch, which reads the build numbers of the job and the claim
// state of its last completed build.
//
// Requests go through an in-memory HTTP cache and an auth round tripper
// (basic or bearer). Failed requests are retried with exponential backoff
// up to the configured attempt count.
package jenkins
