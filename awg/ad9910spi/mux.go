// Copyright 2017 by Thorsten von Eicken, see LICENSE file

package ad9910spi

import (
	"errors"
	"sync"

	"periph.io/x/periph/conn"
	"periph.io/x/periph/conn/gpio"
	"periph.io/x/periph/conn/spi"
)

// muxConn is a spi.Conn multiplexed onto a shared bus by an external
// demux chip: the real Tx is gated behind a GPIO select pin so two AD9910
// channels can share one physical SPI bus and chip-select line. A pair of
// muxConns is how a two-channel AWG built on this driver reaches its
// second chip without a second SPI controller.
type muxConn struct {
	mu     *sync.Mutex // shared between both halves of the pair
	conn   *spi.Conn   // shared underlying connection, set by connect
	port   spi.Port
	selPin gpio.PinIO
	sel    gpio.Level
}

// newMuxPair returns two spi.Conn-like connections sharing port, selecting
// between them via selPin: Low for the first, High for the second.
func newMuxPair(port spi.Port, selPin gpio.PinIO) (*muxConn, *muxConn) {
	mu := sync.Mutex{}
	var shared spi.Conn
	return &muxConn{&mu, &shared, port, selPin, gpio.Low},
		&muxConn{&mu, &shared, port, selPin, gpio.High}
}

// connect establishes the shared underlying connection; once it is set, a
// further call from either half of the pair is a no-op. Tx does not call
// it, so it must run before the first Tx (OpenPair does this).
func (c *muxConn) connect(maxHz int64, mode spi.Mode, bits int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if *c.conn != nil {
		return nil
	}
	conn, err := c.port.Connect(maxHz, mode, bits)
	if err != nil {
		return err
	}
	*c.conn = conn
	return nil
}

// Tx drives the select pin to this half's level, then performs the
// transaction; the mutex keeps the other half's Tx from interleaving and
// flipping the select pin mid-transaction.
func (c *muxConn) Tx(w, r []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.selPin.Out(c.sel); err != nil {
		return err
	}
	return (*c.conn).Tx(w, r)
}

func (c *muxConn) Duplex() conn.Duplex { return conn.Full }

func (c *muxConn) TxPackets(p []spi.Packet) error {
	return errors.New("ad9910spi: TxPackets is not supported on a muxed connection")
}

var _ spi.Conn = (*muxConn)(nil)
