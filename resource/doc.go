// Package resource limits index builds, cached index memory and snapshot IO.
//
// A nil *Controller is valid and imposes no limits.
package resource
