package server

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"go.uber.org/zap/zaptest/observer"
	"go.viam.com/test"
	goutils "go.viam.com/utils"
	"go.viam.com/utils/testutils"
)

func TestRunServer(t *testing.T) {
	tmp := t.TempDir()
	badSyntax := filepath.Join(tmp, "broken.json")
	test.That(t, os.WriteFile(badSyntax, []byte("{"), 0o600), test.ShouldBeNil)
	badValues := filepath.Join(tmp, "invalid.json")
	test.That(t, os.WriteFile(badValues, []byte(`{"horizon":{"steps":1}}`), 0o600), test.ShouldBeNil)
	goodConfig := filepath.Join(tmp, "controller.json")
	test.That(t, os.WriteFile(goodConfig,
		[]byte(`{"solver":{"backend":"gonum","max_iterations":60,"budget_seconds":0.2}}`), 0o600),
		test.ShouldBeNil)

	port, err := goutils.TryReserveRandomPort()
	test.That(t, err, test.ShouldBeNil)

	telemetryFrame := `42["telemetry",{"ptsx":[2,4,6,8,10,12],"ptsy":[0,0,0,0,0,0],` +
		`"x":0,"y":0,"psi":0,"speed":12}]`

	testutils.TestMain(t, RunServer, []testutils.MainTestCase{
		{"unknown named arg", []string{"--unknown"}, "not defined", nil, nil, nil},
		{"missing config file", []string{"--config=" + filepath.Join(tmp, "nope.json")},
			"error reading config", nil, nil, nil},
		{"malformed config", []string{"--config=" + badSyntax}, "error parsing config", nil, nil, nil},
		{"rejected config", []string{"--config=" + badValues}, "horizon.steps", nil, nil, nil},
		{
			"serves the simulator protocol",
			[]string{"--config=" + goodConfig, fmt.Sprintf("--port=%d", port)},
			"",
			nil,
			func(ctx context.Context, t *testing.T, exec *testutils.ContextualMainExecution) {
				t.Helper()
				var conn *websocket.Conn
				testutils.WaitForAssertion(t, func(tb testing.TB) {
					tb.Helper()
					var err error
					conn, _, err = websocket.DefaultDialer.Dial(
						fmt.Sprintf("ws://127.0.0.1:%d", port), nil)
					test.That(tb, err, test.ShouldBeNil)
				})
				defer func() {
					test.That(t, conn.Close(), test.ShouldBeNil)
				}()
				test.That(t, conn.WriteMessage(websocket.TextMessage, []byte(telemetryFrame)),
					test.ShouldBeNil)
				_, reply, err := conn.ReadMessage()
				test.That(t, err, test.ShouldBeNil)
				test.That(t, strings.HasPrefix(string(reply), `42["steer",`), test.ShouldBeTrue)
			},
			func(t *testing.T, logs *observer.ObservedLogs) {
				t.Helper()
				test.That(t, logs.FilterMessageSnippet("serving").Len(),
					test.ShouldBeGreaterThanOrEqualTo, 1)
			},
		},
	})
}
