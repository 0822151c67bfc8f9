// Package canbridge transmits actuations onto a CAN bus as fixed layout
// drive command frames, for vehicles whose actuators listen on the bus
// rather than on the simulator socket.
package canbridge

import (
	"context"
	"encoding/binary"
	"math"
	"net"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"go.einride.tech/can"
	"go.einride.tech/can/pkg/socketcan"

	"go.viam.com/mpc/config"
	"go.viam.com/mpc/mpc"
)

const (
	frameLength = 8
	// milliPerUnit converts radians to milliradians and m/s² to mm/s²,
	// the physical units carried on the bus.
	milliPerUnit = 1000
)

// Bridge owns one socketcan connection and emits every actuation it is
// handed as a single frame. Not safe for concurrent Send calls; the pilot
// serializes them.
type Bridge struct {
	logger  golog.Logger
	frameID uint32
	counter byte

	conn net.Conn
	tx   *socketcan.Transmitter
}

// New dials the configured CAN interface. The interface must already be up.
func New(ctx context.Context, cfg config.CAN, logger golog.Logger) (*Bridge, error) {
	conn, err := socketcan.DialContext(ctx, "can", cfg.Interface)
	if err != nil {
		return nil, errors.Wrapf(err, "dial CAN interface %q", cfg.Interface)
	}
	logger.Infow("CAN bridge up", "interface", cfg.Interface, "frame_id", cfg.FrameID)
	return &Bridge{
		logger:  logger,
		frameID: cfg.FrameID,
		conn:    conn,
		tx:      socketcan.NewTransmitter(conn),
	}, nil
}

// Send transmits the actuation as one drive command frame.
func (b *Bridge) Send(ctx context.Context, act mpc.Actuation) error {
	if err := b.tx.TransmitFrame(ctx, b.encode(act)); err != nil {
		return errors.Wrap(err, "transmit drive command frame")
	}
	return nil
}

// encode packs the actuation little-endian: steering in millirad at bytes
// 0-1, acceleration in mm/s² at bytes 2-3, an alive counter at byte 4, and
// zero padding after. Values beyond int16 range saturate rather than wrap.
func (b *Bridge) encode(act mpc.Actuation) can.Frame {
	frame := can.Frame{ID: b.frameID, Length: frameLength}
	binary.LittleEndian.PutUint16(frame.Data[0:2], uint16(scaleToInt16(act.Steer, milliPerUnit)))
	binary.LittleEndian.PutUint16(frame.Data[2:4], uint16(scaleToInt16(act.Accel, milliPerUnit)))
	frame.Data[4] = b.counter
	b.counter++
	return frame
}

func scaleToInt16(value, scale float64) int16 {
	scaled := math.Round(value * scale)
	if scaled > math.MaxInt16 {
		return math.MaxInt16
	}
	if scaled < math.MinInt16 {
		return math.MinInt16
	}
	return int16(scaled)
}

// Close shuts the bus connection down.
func (b *Bridge) Close() error {
	return b.conn.Close()
}
