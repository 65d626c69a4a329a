// Package keymap translates platform key events into RDP scancodes (spec
// §4.2: "must honour user-configured layout"). Only a US-QWERTY table is
// built in; the exact non-US layout tables are left as a documented gap,
// mirroring the upstream partial-implementation note the specification
// carries over from the original source.
package keymap

// Layout maps a platform-independent key identifier (as produced by the GUI
// toolkit's key event) to an RDP scancode.
type Layout interface {
	Name() string
	Scancode(keyName string) (scancode uint16, ok bool)
}

// usQWERTY is the only layout shipped today.
type usQWERTY struct{ table map[string]uint16 }

func (usQWERTY) Name() string { return "us-qwerty" }

func (l usQWERTY) Scancode(keyName string) (uint16, bool) {
	sc, ok := l.table[keyName]
	return sc, ok
}

// USQWERTY is the default Layout.
var USQWERTY Layout = usQWERTY{table: usScancodes}

// usScancodes is a partial US-QWERTY scancode table covering the
// alphanumeric row, letters, and the common control keys; it is not a
// complete set 1 scancode table.
var usScancodes = map[string]uint16{
	"Escape": 0x01, "1": 0x02, "2": 0x03, "3": 0x04, "4": 0x05, "5": 0x06,
	"6": 0x07, "7": 0x08, "8": 0x09, "9": 0x0A, "0": 0x0B,
	"Minus": 0x0C, "Equal": 0x0D, "Backspace": 0x0E, "Tab": 0x0F,
	"Q": 0x10, "W": 0x11, "E": 0x12, "R": 0x13, "T": 0x14, "Y": 0x15,
	"U": 0x16, "I": 0x17, "O": 0x18, "P": 0x19,
	"BracketLeft": 0x1A, "BracketRight": 0x1B, "Enter": 0x1C, "ControlLeft": 0x1D,
	"A": 0x1E, "S": 0x1F, "D": 0x20, "F": 0x21, "G": 0x22, "H": 0x23,
	"J": 0x24, "K": 0x25, "L": 0x26,
	"Semicolon": 0x27, "Quote": 0x28, "Backquote": 0x29, "ShiftLeft": 0x2A,
	"Backslash": 0x2B, "Z": 0x2C, "X": 0x2D, "C": 0x2E, "V": 0x2F, "B": 0x30,
	"N": 0x31, "M": 0x32, "Comma": 0x33, "Period": 0x34, "Slash": 0x35,
	"ShiftRight": 0x36, "NumpadMultiply": 0x37, "AltLeft": 0x38, "Space": 0x39,
	"CapsLock": 0x3A,
	"F1": 0x3B, "F2": 0x3C, "F3": 0x3D, "F4": 0x3E, "F5": 0x3F, "F6": 0x40,
	"F7": 0x41, "F8": 0x42, "F9": 0x43, "F10": 0x44,
	"ArrowUp": 0x48, "ArrowLeft": 0x4B, "ArrowRight": 0x4D, "ArrowDown": 0x50,
	"Delete": 0x53, "F11": 0x57, "F12": 0x58,
}
