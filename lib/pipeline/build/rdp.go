package build

// buildRDPExternal assembles the xfreerdp/wlfreerdp argument vector used
// when the embedded RDP client falls back to an external process (spec
// §4.2, "Fallback to external client"; spec §4.3's RDP rule: "RDP uses
// stdin handoff"). The embedded path itself never calls this builder; it is
// consumed by lib/rdp.Fallback.
func buildRDPExternal(c *BuildContext) (Argv, *StdinPayload, error) {
	username, err := c.expand("username", c.Connection.Username, false)
	if err != nil {
		return nil, nil, err
	}
	port, err := formatPort(c.Connection.Port)
	if err != nil {
		return nil, nil, err
	}

	argv := Argv{"xfreerdp", rdpAddr(c.Connection.Host, port)}
	if username != "" {
		argv = append(argv, "/u:"+username)
	}
	if rc := c.Connection.RDP; rc != nil {
		if rc.Domain != "" {
			dom, err := c.expand("rdp.domain", rc.Domain, false)
			if err != nil {
				return nil, nil, err
			}
			argv = append(argv, "/d:"+dom)
		}
		if rc.PerformanceMode == "Speed" {
			argv = append(argv, "/bpp:16")
		} else {
			argv = append(argv, "/bpp:32", "/rfx")
		}
		if !rc.ShowDesktopWallpaper {
			argv = append(argv, "-wallpaper")
		}
		if rc.AllowClipboard {
			argv = append(argv, "/clipboard")
		}
		for _, folder := range rc.SharedFolders {
			argv = append(argv, "/drive:share,"+folder)
		}
	}
	argv = append(argv, "/cert:ignore", "/from-stdin")

	extra, err := customArgs(c)
	if err != nil {
		return nil, nil, err
	}
	argv = append(argv, extra...)

	var stdin *StdinPayload
	if !c.Credentials.Password.Empty() {
		stdin = &StdinPayload{Data: c.Credentials.Password}
	}
	return argv, stdin, nil
}

func rdpAddr(host, port string) string {
	return "/v:" + host + ":" + port
}
