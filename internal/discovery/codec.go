// internal/discovery/codec.go
package discovery

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/karronoli/tiny-sato/internal/sbpl"
)

// Request is the broadcast search datagram.
var Request = []byte{sbpl.SOH, 'L', 'A'}

// Response record geometry.
const (
	offsetMAC     = 1
	offsetIP      = offsetMAC + 6 + 1
	offsetMask    = offsetIP + 4 + 1
	offsetGateway = offsetMask + 4 + 1
	offsetName    = offsetGateway + 4 + 1
	nameLen       = 32
	offsetDHCP    = offsetName + nameLen + 1
	offsetRARP    = offsetDHCP + 1
	offsetETX     = offsetRARP + 1

	// ResponseLen is the size of one response record.
	ResponseLen = offsetETX + 1
)

var ErrMalformedResponse = errors.New("discovery: malformed response")

// MAC is an EUI-48 hardware address.
type MAC [6]byte

func (m MAC) String() string {
	return strings.ToUpper(net.HardwareAddr(m[:]).String())
}

func (m MAC) IsZero() bool { return m == MAC{} }

// ParseMAC accepts six hex octets separated by ':' or '-'.
// The all-zero address is rejected.
func ParseMAC(s string) (MAC, error) {
	var m MAC
	parts := strings.FieldsFunc(s, func(r rune) bool { return r == ':' || r == '-' })
	if len(parts) != len(m) || strings.Count(s, ":")+strings.Count(s, "-") != len(m)-1 {
		return m, &sbpl.ArgumentError{Field: "mac address", Value: s, Msg: "want six octets separated by ':' or '-'"}
	}
	for i, p := range parts {
		if len(p) != 2 {
			return MAC{}, &sbpl.ArgumentError{Field: "mac address", Value: s, Msg: "octet must be two hex digits"}
		}
		b, err := hex.DecodeString(p)
		if err != nil {
			return MAC{}, &sbpl.ArgumentError{Field: "mac address", Value: s, Msg: "octet must be two hex digits"}
		}
		m[i] = b[0]
	}
	if m.IsZero() {
		return MAC{}, &sbpl.ArgumentError{Field: "mac address", Value: s, Msg: "all-zero address"}
	}
	return m, nil
}

// Response is one decoded printer announcement.
type Response struct {
	MAC        MAC
	IP         net.IP
	SubnetMask net.IP
	Gateway    net.IP
	Name       string
	DHCP       bool
	RARP       bool
}

// ParseResponse decodes the first ResponseLen bytes of raw.
func ParseResponse(raw []byte) (Response, error) {
	if len(raw) < ResponseLen {
		return Response{}, fmt.Errorf("%w: len=%d want>=%d", ErrMalformedResponse, len(raw), ResponseLen)
	}
	if raw[0] != sbpl.STX || raw[offsetETX] != sbpl.ETX {
		return Response{}, fmt.Errorf("%w: missing STX/ETX", ErrMalformedResponse)
	}

	var r Response
	copy(r.MAC[:], raw[offsetMAC:offsetMAC+6])
	r.IP = ipv4(raw[offsetIP:])
	r.SubnetMask = ipv4(raw[offsetMask:])
	r.Gateway = ipv4(raw[offsetGateway:])

	name := raw[offsetName : offsetName+nameLen]
	if i := bytes.IndexByte(name, 0); i >= 0 {
		name = name[:i]
	}
	r.Name = string(name)
	r.DHCP = raw[offsetDHCP] != 0
	r.RARP = raw[offsetRARP] != 0
	return r, nil
}

// EncodeResponse renders r as a wire record. Names longer than 32 bytes are cut.
func EncodeResponse(r Response) []byte {
	raw := make([]byte, ResponseLen)
	raw[0] = sbpl.STX
	copy(raw[offsetMAC:], r.MAC[:])
	raw[offsetIP-1] = ','
	copy(raw[offsetIP:offsetIP+4], r.IP.To4())
	raw[offsetMask-1] = ','
	copy(raw[offsetMask:offsetMask+4], r.SubnetMask.To4())
	raw[offsetGateway-1] = ','
	copy(raw[offsetGateway:offsetGateway+4], r.Gateway.To4())
	raw[offsetName-1] = ','
	copy(raw[offsetName:offsetName+nameLen], r.Name)
	raw[offsetDHCP-1] = ','
	raw[offsetDHCP] = boolByte(r.DHCP)
	raw[offsetRARP] = boolByte(r.RARP)
	raw[offsetETX] = sbpl.ETX
	return raw
}

func ipv4(b []byte) net.IP {
	return net.IPv4(b[0], b[1], b[2], b[3]).To4()
}

func boolByte(v bool) byte {
	if v {
		return 1
	}
	return 0
}
