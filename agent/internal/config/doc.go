// Package config loads and watches the teamalert configuration file.
//
// Top-level types:
//   - Config - poll/reload intervals, light and job resolution policy
//     (create_missing_lights, skip_incomplete_alerts, strict), jenkins [],
//     hue, virtual_lights [], alerts [], status, notify, history
//   - Jenkins - url, auth, tls, timeout, retries, ignore_never_succeeded
//   - Alert - light(s), jobs_to_watch, jobs_to_ignore, fail_tolerance
//   - AuthConfig, StatusAuth, Hue, WebhookConfig - secrets are named by *_env fields and
//     resolved from the environment on demand
//
// Load(path) reads the YAML file, applies defaults (10s poll, 1h reload,
// 10s/10 attempts per Jenkins request, 5m status TTL), then validates
// required fields and enums.
//
// Watch(ctx, path, onChange) uses fsnotify on the parent directory so that
// editors saving through rename are still seen, and calls onChange with the
// newly parsed Config. Invalid edits are logged and skipped.
package config
