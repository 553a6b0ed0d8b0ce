// Package light defines the Light target driven by alerts and the named
// Color set, plus Virtual, an in-memory light used for configured virtual
// lights and for lights that are missing from the bridge.
//
// Physical Philips Hue bulbs live in the hue subpackage.
package light
