package epd

import (
	"fmt"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"
)

// BCM pins of the Waveshare e-Paper HAT.
const (
	bcmRST  = 17
	bcmDC   = 25
	bcmBUSY = 24
)

// spidev refuses transfers above its buffer size (4096 by default).
const maxChunk = 4096

// bus is the command/data channel to a controller.
type bus interface {
	command(reg byte) error
	data(p ...byte) error
	reset()
	// ready reports whether BUSY is released.
	ready() bool
	close() error
}

// spiDev is the GPIO/SPI wiring of one HAT.
type spiDev struct {
	port spi.PortCloser
	conn spi.Conn
	dc   gpio.PinOut
	rst  gpio.PinOut
	busy gpio.PinIn
}

func openSPIDev(portName string) (*spiDev, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("epd: periph host init failed: %w", err)
	}
	port, err := spireg.Open(portName)
	if err != nil {
		return nil, fmt.Errorf("epd: failed to open SPI port: %w", err)
	}
	conn, err := port.Connect(4*physic.MegaHertz, spi.Mode0, 8)
	if err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("epd: failed to connect SPI: %w", err)
	}

	out := func(num int, level gpio.Level) (gpio.PinOut, error) {
		name := fmt.Sprintf("GPIO%d", num)
		p := gpioreg.ByName(name)
		if p == nil {
			return nil, fmt.Errorf("epd: gpio %s not found", name)
		}
		if err := p.Out(level); err != nil {
			return nil, fmt.Errorf("epd: gpio %s out: %w", name, err)
		}
		return p, nil
	}

	d := &spiDev{port: port, conn: conn}
	if d.dc, err = out(bcmDC, gpio.Low); err != nil {
		_ = port.Close()
		return nil, err
	}
	if d.rst, err = out(bcmRST, gpio.High); err != nil {
		_ = port.Close()
		return nil, err
	}
	busy := gpioreg.ByName(fmt.Sprintf("GPIO%d", bcmBUSY))
	if busy == nil {
		_ = port.Close()
		return nil, fmt.Errorf("epd: gpio GPIO%d not found", bcmBUSY)
	}
	if err := busy.In(gpio.PullUp, gpio.NoEdge); err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("epd: gpio GPIO%d in: %w", bcmBUSY, err)
	}
	d.busy = busy
	return d, nil
}

func (d *spiDev) command(reg byte) error {
	if err := d.dc.Out(gpio.Low); err != nil {
		return err
	}
	return d.conn.Tx([]byte{reg}, nil)
}

func (d *spiDev) data(p ...byte) error {
	if err := d.dc.Out(gpio.High); err != nil {
		return err
	}
	for len(p) > 0 {
		n := min(len(p), maxChunk)
		if err := d.conn.Tx(p[:n], nil); err != nil {
			return err
		}
		p = p[n:]
	}
	return nil
}

func (d *spiDev) reset() {
	_ = d.rst.Out(gpio.High)
	time.Sleep(20 * time.Millisecond)
	_ = d.rst.Out(gpio.Low)
	time.Sleep(2 * time.Millisecond)
	_ = d.rst.Out(gpio.High)
	time.Sleep(20 * time.Millisecond)
}

// BUSY is active low on the 7.5" V2 controller.
func (d *spiDev) ready() bool { return d.busy.Read() == gpio.High }

func (d *spiDev) close() error { return d.port.Close() }
