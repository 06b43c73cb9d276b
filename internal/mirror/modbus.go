// internal/mirror/modbus.go
package mirror

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/goburrow/modbus"
)

// maxWriteRegisters is the FC16 quantity limit of one request.
const maxWriteRegisters = 123

// ModbusClient writes holding registers on one PLC unit. The unit is
// fixed for the connection, so every printer block on it shares one
// handler and no per-write state changes.
type ModbusClient struct {
	endpoint string
	unitID   uint8
	handler  *modbus.TCPClientHandler
	client   modbus.Client
}

type ModbusConfig struct {
	Endpoint string
	UnitID   uint8
	Timeout  time.Duration
}

func NewModbusClient(cfg ModbusConfig) (*ModbusClient, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("mirror: modbus endpoint required")
	}

	h := modbus.NewTCPClientHandler(cfg.Endpoint)
	h.Timeout = cfg.Timeout
	h.SlaveId = cfg.UnitID

	if err := h.Connect(); err != nil {
		return nil, fmt.Errorf("mirror: connect %s: %w", cfg.Endpoint, err)
	}

	return &ModbusClient{
		endpoint: cfg.Endpoint,
		unitID:   cfg.UnitID,
		handler:  h,
		client:   modbus.NewClient(h),
	}, nil
}

func (c *ModbusClient) Close() error { return c.handler.Close() }

// WriteRegisters stores regs starting at addr with FC16, split into
// requests the protocol accepts.
func (c *ModbusClient) WriteRegisters(addr uint16, regs []uint16) error {
	for len(regs) > 0 {
		n := min(len(regs), maxWriteRegisters)
		if _, err := c.client.WriteMultipleRegisters(addr, uint16(n), registerBytes(regs[:n])); err != nil {
			return fmt.Errorf("mirror: %s unit %d: write %d registers at %d: %w", c.endpoint, c.unitID, n, addr, err)
		}
		addr += uint16(n)
		regs = regs[n:]
	}
	return nil
}

// registerBytes lays registers out big-endian, as they travel on the wire.
func registerBytes(regs []uint16) []byte {
	out := make([]byte, 2*len(regs))
	for i, r := range regs {
		binary.BigEndian.PutUint16(out[2*i:], r)
	}
	return out
}
