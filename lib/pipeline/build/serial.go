package build

import (
	"strconv"

	"github.com/gravitational/rustconn/lib/errs"
)

// buildSerial builds the argument vector for picocom, RustConn's Serial
// external client. The host/port fields do not apply; the device path comes
// from the Serial sub-record instead.
func buildSerial(c *BuildContext) (Argv, *StdinPayload, error) {
	sc := c.Connection.Serial
	if sc == nil || sc.Device == "" {
		return nil, nil, errs.NewVariableError(errs.VarInvalidSyntax, "serial.device", "serial connections require a device path")
	}
	baud := sc.BaudRate
	if baud == 0 {
		baud = 9600
	}
	argv := Argv{"picocom", "--baud", strconv.Itoa(baud), sc.Device}
	extra, err := customArgs(c)
	if err != nil {
		return nil, nil, err
	}
	argv = append(argv, extra...)
	return argv, nil, nil
}
