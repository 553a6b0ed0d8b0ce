// Package hue drives Philips Hue bulbs through the bridge REST API (v1).
//
// New(host, username) returns a Bridge. Bridge.Lights lists bulbs as *Light
// values that satisfy light.Light. Colors are sent as CIE 1931 xy points
// converted from RGB (color.go); white is sent as a 353 mired color
// temperature. Every request is retried with exponential backoff up to the
// configured attempt count; error objects in a Hue response body are not
// retried.
//
// Maintenance calls used by the lights command: Register, Search, TouchLink,
// Light.Rename, Light.Remove.
package hue
