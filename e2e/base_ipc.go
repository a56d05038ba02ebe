package e2e

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http/httptest"
	"strings"
	"time"

	"peerchat/infrastructure/loopback"
	"peerchat/infrastructure/ws"
	"peerchat/repositories"
	"peerchat/runtime"
	"peerchat/runtime/workers"
	"peerchat/services"
	"peerchat/sink"

	"github.com/blugelabs/bluge"
	"github.com/dgraph-io/badger/v4"
	"github.com/gookit/color"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/suite"
)

type BaseIPCSuite struct {
	suite.Suite
	Config  Config
	network *loopback.Network
}

// SetupSuite loads the environment configuration before running tests
func (s *BaseIPCSuite) SetupSuite() {
	var err error
	s.Config, err = LoadConfig()
	s.Require().NoError(err)
	s.network = loopback.NewNetwork(logs.GetLoggerFromLevel(slog.LevelInfo), 64)
}

// Peer is one UI client connected to a daemon.
type Peer struct {
	suite  *BaseIPCSuite
	name   string
	client *ws.Client
}

// Daemon returns the URL of the daemon named name. In process daemons share
// one loopback network so they can reach each other.
func (s *BaseIPCSuite) Daemon(name string) string {
	if s.Config.IPCURL != "" {
		return s.Config.IPCURL
	}
	log := logs.GetLoggerFromLevel(slog.LevelInfo).With("daemon", name)

	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	s.Require().NoError(err)
	s.T().Cleanup(func() { _ = db.Close() })

	blugeWriter, err := bluge.OpenWriter(bluge.DefaultConfig(s.T().TempDir()))
	s.Require().NoError(err)
	s.T().Cleanup(func() { _ = blugeWriter.Close() })

	history := repositories.NewRoomHistoryRepository(db, log, "")
	messages := repositories.NewMessageRepository(db, blugeWriter, log)
	fanout := workers.NewEventFanout(log, time.Second)
	fanout.Add("history", sink.NewMessageStoreSink(messages, log))
	session := runtime.NewSession(log, s.network, history, fanout, 50*time.Millisecond)
	s.T().Cleanup(func() { _, _ = session.Disconnect(context.Background()) })

	server := ws.NewServer(ws.Config{
		Log:        log,
		Dispatcher: services.NewCommandRouter(services.NewChatService(log, session, history, messages)),
		Registrar:  fanout,
	})
	ts := httptest.NewServer(server.Handler)
	s.T().Cleanup(ts.Close)
	return "ws" + strings.TrimPrefix(ts.URL, "http") + ws.Path
}

// Connect opens a UI connection with a colorized header in the test log.
func (s *BaseIPCSuite) Connect(name, url string) *Peer {
	header := fmt.Sprintf("  ====== %s ======", name)
	if s.Config.Colours {
		header = color.New(color.BgBlack, color.FgGreen).Render(header)
	}
	s.T().Log(header)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	client, err := ws.Dial(ctx, url, s.Config.IPCToken)
	s.Require().NoError(err, "Failed to connect to IPC server at "+url)
	s.T().Cleanup(func() { _ = client.Close() })
	return &Peer{suite: s, name: name, client: client}
}

// Call runs command and fails the test on error.
func (p *Peer) Call(command string, args any, result any) {
	p.suite.Require().NoError(p.Try(command, args, result))
}

// Try runs command and returns its error.
func (p *Peer) Try(command string, args any, result any) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	start := time.Now()
	err := p.client.Call(ctx, command, args, result)

	line := fmt.Sprintf("%s IPC %s in %v", p.name, command, time.Since(start))
	if err != nil {
		line += " ERROR: " + err.Error()
	}
	if p.suite.Config.DebugJSON && result != nil && err == nil {
		body, _ := json.MarshalIndent(result, "", "  ")
		line += "\nRESULT:\n" + string(body)
	}
	p.suite.T().Log(line)
	return err
}
