package build

// buildTelnet builds the argument vector for the telnet external client.
// Telnet carries no standard credential-handoff channel, so any password
// must go through the connection's own in-band login, which is outside
// C3's remit; this builder only ever emits host/port.
func buildTelnet(c *BuildContext) (Argv, *StdinPayload, error) {
	port, err := formatPort(c.Connection.Port)
	if err != nil {
		return nil, nil, err
	}
	argv := Argv{"telnet", c.Connection.Host, port}
	extra, err := customArgs(c)
	if err != nil {
		return nil, nil, err
	}
	argv = append(argv, extra...)
	return argv, nil, nil
}
