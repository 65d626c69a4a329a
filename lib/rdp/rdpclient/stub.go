//go:build !rustconn_rdp
// +build !rustconn_rdp

// Package rdpclient provides the embedded IronRDP-backed engine behind the
// rustconn_rdp build tag. Without that tag (the default build), NewEngine
// reports the embedded path unavailable so callers fall back to an external
// RDP viewer (spec §4.2, "Fallback to external client").
package rdpclient

import (
	"github.com/gravitational/rustconn/lib/errs"
	"github.com/gravitational/rustconn/lib/rdp"
)

// NewEngine always fails in a build without the rustconn_rdp tag.
func NewEngine() (rdp.Engine, error) {
	return nil, errs.ErrEmbeddedUnavailable
}
