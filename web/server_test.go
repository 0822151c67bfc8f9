package web

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/edaniels/golog"
	"github.com/golang/geo/r2"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"go.viam.com/test"
	"go.viam.com/utils/testutils"

	"go.viam.com/mpc/pilot"
)

type commanderFunc func(ctx context.Context, tel pilot.Telemetry) (*pilot.Command, error)

func (f commanderFunc) Cycle(ctx context.Context, tel pilot.Telemetry) (*pilot.Command, error) {
	return f(ctx, tel)
}

const goodTelemetryFrame = `42["telemetry",{"ptsx":[1,2,3,4],"ptsy":[0,0,0,0],` +
	`"x":0,"y":0,"psi":0,"speed":12}]`

func steeringCommander(cmd *pilot.Command, err error) commanderFunc {
	return func(ctx context.Context, tel pilot.Telemetry) (*pilot.Command, error) {
		return cmd, err
	}
}

func TestHandleFrame(t *testing.T) {
	cmd := &pilot.Command{
		Steering:  -0.25,
		Throttle:  0.5,
		Predicted: []r2.Point{{X: 1, Y: 2}},
		Reference: []r2.Point{{X: 3, Y: 4}},
	}

	for _, tc := range []struct {
		name      string
		frame     string
		commander commanderFunc
		want      string
	}{
		{"websocket ping", "2", steeringCommander(cmd, nil), ""},
		{"bare event prefix", "42", steeringCommander(cmd, nil), ""},
		{"telemetry", goodTelemetryFrame, steeringCommander(cmd, nil),
			`42["steer",{"steering_angle":-0.25,"throttle":0.5,` +
				`"mpc_x":[1],"mpc_y":[2],"next_x":[3],"next_y":[4]}]`},
		{"telemetry without payload", `42["telemetry"]`, steeringCommander(cmd, nil),
			string(manualFrame)},
		{"unknown event", `42["odometry",{}]`, steeringCommander(cmd, nil),
			string(manualFrame)},
		{"mismatched waypoints", `42["telemetry",{"ptsx":[1],"ptsy":[]}]`,
			steeringCommander(cmd, nil), string(manualFrame)},
		{"cycle error", goodTelemetryFrame,
			steeringCommander(nil, errors.New("no convergence")), string(manualFrame)},
	} {
		t.Run(tc.name, func(t *testing.T) {
			s := NewServer(tc.commander, golog.NewTestLogger(t))
			reply := s.handleFrame(context.Background(), []byte(tc.frame))
			test.That(t, string(reply), test.ShouldEqual, tc.want)
		})
	}
}

func TestHandleFramePassesTelemetryThrough(t *testing.T) {
	var got pilot.Telemetry
	s := NewServer(commanderFunc(func(ctx context.Context, tel pilot.Telemetry) (*pilot.Command, error) {
		got = tel
		return &pilot.Command{}, nil
	}), golog.NewTestLogger(t))

	reply := s.handleFrame(context.Background(), []byte(goodTelemetryFrame))
	test.That(t, reply, test.ShouldNotBeNil)
	test.That(t, got.Speed, test.ShouldEqual, 12)
	test.That(t, got.Waypoints, test.ShouldResemble,
		[]r2.Point{{X: 1}, {X: 2}, {X: 3}, {X: 4}})
}

func TestServerStatusPage(t *testing.T) {
	s := NewServer(steeringCommander(&pilot.Command{}, nil), golog.NewTestLogger(t))
	srv := httptest.NewServer(s)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/")
	test.That(t, err, test.ShouldBeNil)
	body, err := io.ReadAll(resp.Body)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, resp.Body.Close(), test.ShouldBeNil)
	test.That(t, resp.StatusCode, test.ShouldEqual, http.StatusOK)
	test.That(t, string(body), test.ShouldEqual, statusPage)

	resp, err = http.Get(srv.URL + "/nope")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, resp.Body.Close(), test.ShouldBeNil)
	test.That(t, resp.StatusCode, test.ShouldEqual, http.StatusNotFound)
}

func TestServerWebSocket(t *testing.T) {
	s := NewServer(steeringCommander(&pilot.Command{Steering: 0.5}, nil), golog.NewTestLogger(t))
	srv := httptest.NewServer(s)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	test.That(t, err, test.ShouldBeNil)
	defer func() {
		test.That(t, conn.Close(), test.ShouldBeNil)
	}()

	err = conn.WriteMessage(websocket.TextMessage, []byte(goodTelemetryFrame))
	test.That(t, err, test.ShouldBeNil)
	msgType, reply, err := conn.ReadMessage()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, msgType, test.ShouldEqual, websocket.TextMessage)
	test.That(t, strings.HasPrefix(string(reply), `42["steer",`), test.ShouldBeTrue)

	// Pings and binary frames get no reply, so the next read returns the
	// manual answer to the unknown event after them.
	err = conn.WriteMessage(websocket.TextMessage, []byte("2"))
	test.That(t, err, test.ShouldBeNil)
	err = conn.WriteMessage(websocket.BinaryMessage, []byte{0x42})
	test.That(t, err, test.ShouldBeNil)
	err = conn.WriteMessage(websocket.TextMessage, []byte(`42["odometry",{}]`))
	test.That(t, err, test.ShouldBeNil)
	_, reply, err = conn.ReadMessage()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, string(reply), test.ShouldEqual, string(manualFrame))
}

func TestServeShutdown(t *testing.T) {
	s := NewServer(steeringCommander(&pilot.Command{}, nil), golog.NewTestLogger(t))
	listener := testutils.ReserveRandomListener(t)
	addr := listener.Addr().String()

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error)
	go func() {
		errCh <- s.Serve(ctx, listener)
	}()

	conn, _, err := websocket.DefaultDialer.Dial("ws://"+addr, nil)
	test.That(t, err, test.ShouldBeNil)

	// One exchange makes sure the server is tracking the connection.
	err = conn.WriteMessage(websocket.TextMessage, []byte(`42["odometry",{}]`))
	test.That(t, err, test.ShouldBeNil)
	_, _, err = conn.ReadMessage()
	test.That(t, err, test.ShouldBeNil)

	cancel()
	test.That(t, <-errCh, test.ShouldBeNil)

	// The server closed the websocket on the way out.
	_, _, err = conn.ReadMessage()
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, conn.Close(), test.ShouldBeNil)
}
