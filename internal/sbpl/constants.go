// internal/sbpl/constants.go
package sbpl

// Wire framing bytes.
// These values define the printer command language and MUST NOT be configurable.

// ---- CONTROL BYTES ----

const (
	SOH byte = 0x01
	STX byte = 0x02
	ETX byte = 0x03
	ENQ byte = 0x05
	ESC byte = 0x1B
)

// ---- PAGE MARKERS ----

// PageStart opens one printable page inside a job frame.
var PageStart = []byte{ESC, 'A'}

// PageEnd closes one printable page.
var PageEnd = []byte{ESC, 'Z'}

// JobEnd closes the last page and the outer STX...ETX frame.
var JobEnd = []byte{ESC, 'Z', ETX}

// ---- PORTS ----

// DefaultPrintPort is the raw TCP print port.
const DefaultPrintPort = 9100

// DefaultSearchPort is the UDP port printers listen on for discovery requests.
const DefaultSearchPort = 19541
