package web

import (
	"encoding/json"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"

	"go.viam.com/mpc/pilot"
	"go.viam.com/mpc/refpath"
)

// The simulator speaks a socket.io style dialect over the websocket: a
// text frame starting with "42" carries a JSON event array of the form
// ["name", payload].
const (
	eventPrefix    = "42"
	telemetryEvent = "telemetry"
)

// manualFrame tells the simulator no actuation is available and it should
// stay under manual control.
var manualFrame = []byte(`42["manual",{}]`)

var errNotEvent = errors.New("not an event frame")

type telemetryPayload struct {
	PtsX  []float64 `json:"ptsx"`
	PtsY  []float64 `json:"ptsy"`
	X     float64   `json:"x"`
	Y     float64   `json:"y"`
	Psi   float64   `json:"psi"`
	Speed float64   `json:"speed"`
}

type steerPayload struct {
	SteeringAngle float64   `json:"steering_angle"`
	Throttle      float64   `json:"throttle"`
	MPCX          []float64 `json:"mpc_x"`
	MPCY          []float64 `json:"mpc_y"`
	NextX         []float64 `json:"next_x"`
	NextY         []float64 `json:"next_y"`
}

// parseEventFrame splits an event frame into its name and raw payload. The
// payload is nil for bare events like ["name"].
func parseEventFrame(data []byte) (string, json.RawMessage, error) {
	if len(data) <= len(eventPrefix) || string(data[:len(eventPrefix)]) != eventPrefix {
		return "", nil, errNotEvent
	}
	var parts []json.RawMessage
	if err := json.Unmarshal(data[len(eventPrefix):], &parts); err != nil {
		return "", nil, errors.Wrap(errNotEvent, err.Error())
	}
	if len(parts) == 0 {
		return "", nil, errors.Wrap(errNotEvent, "empty event array")
	}
	var event string
	if err := json.Unmarshal(parts[0], &event); err != nil {
		return "", nil, errors.Wrap(errNotEvent, err.Error())
	}
	if len(parts) == 1 {
		return event, nil, nil
	}
	return event, parts[1], nil
}

// decodeTelemetry turns a telemetry payload into pipeline input. The
// waypoint coordinate sequences must pair up.
func decodeTelemetry(payload json.RawMessage) (pilot.Telemetry, error) {
	var parsed telemetryPayload
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return pilot.Telemetry{}, errors.Wrap(err, "decode telemetry")
	}
	if len(parsed.PtsX) != len(parsed.PtsY) {
		return pilot.Telemetry{}, errors.Errorf(
			"waypoint coordinate counts differ: %d x vs %d y", len(parsed.PtsX), len(parsed.PtsY))
	}
	waypoints := make([]r2.Point, len(parsed.PtsX))
	for i := range parsed.PtsX {
		waypoints[i] = r2.Point{X: parsed.PtsX[i], Y: parsed.PtsY[i]}
	}
	return pilot.Telemetry{
		Waypoints: waypoints,
		Pose:      refpath.Pose{X: parsed.X, Y: parsed.Y, Heading: parsed.Psi},
		Speed:     parsed.Speed,
	}, nil
}

// encodeSteer renders a command as the simulator's steer event.
func encodeSteer(cmd *pilot.Command) ([]byte, error) {
	mpcX, mpcY := splitPoints(cmd.Predicted)
	nextX, nextY := splitPoints(cmd.Reference)
	payload, err := json.Marshal(steerPayload{
		SteeringAngle: cmd.Steering,
		Throttle:      cmd.Throttle,
		MPCX:          mpcX,
		MPCY:          mpcY,
		NextX:         nextX,
		NextY:         nextY,
	})
	if err != nil {
		return nil, errors.Wrap(err, "encode steer")
	}
	frame := append([]byte(`42["steer",`), payload...)
	return append(frame, ']'), nil
}

// splitPoints returns the coordinate sequences the simulator plots. Empty
// input still yields arrays, not nulls.
func splitPoints(pts []r2.Point) (xs, ys []float64) {
	xs = make([]float64, len(pts))
	ys = make([]float64, len(pts))
	for i, pt := range pts {
		xs[i] = pt.X
		ys[i] = pt.Y
	}
	return xs, ys
}
