// Package rdp implements C2, the embedded RDP client of spec §4.2: a
// per-session worker driving an IronRDP-family session off the UI thread,
// a non-blocking shared pixel buffer, and the Idle/Connecting/.../
// ReconnectBackoff state machine, with fallback to an external RDP viewer
// when the embedded engine is unavailable.
package rdp

import (
	"time"

	"github.com/gravitational/trace"

	"github.com/gravitational/rustconn/lib/secret"
)

// Config is the per-session configuration handed to NewWorker.
type Config struct {
	Addr     string
	Username string
	Domain   string
	Password secret.Value

	SecurityProtocol string // "Auto", "NLA", "TLS", "RDP"
	PerformanceMode  string // "Speed", "Quality"

	ShowDesktopWallpaper  bool
	AllowClipboard        bool
	AllowDirectorySharing bool
	SharedFolders         []string

	InitialWidth, InitialHeight int
	ResizeDebounce              time.Duration

	Reconnect ReconnectPolicy
}

func (c *Config) checkAndSetDefaults() error {
	if c.Addr == "" {
		return trace.BadParameter("rdp: Addr is required")
	}
	if c.SecurityProtocol == "" {
		c.SecurityProtocol = "Auto"
	}
	if c.PerformanceMode == "" {
		c.PerformanceMode = "Quality"
	}
	if c.InitialWidth <= 0 || c.InitialHeight <= 0 {
		c.InitialWidth, c.InitialHeight = 1024, 768
	}
	if c.ResizeDebounce <= 0 {
		c.ResizeDebounce = 500 * time.Millisecond
	}
	if c.Reconnect == (ReconnectPolicy{}) {
		c.Reconnect = DefaultReconnectPolicy()
	}
	return nil
}
