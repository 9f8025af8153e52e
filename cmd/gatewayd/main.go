// Package main is the gateway/matching-engine server process: it wires
// together the shared bus hub, the session manager, the single-threaded
// order gateway, the sharded matching engine, the synthetic price feed,
// and the console command loop, then accepts upstream/downstream TCP
// connections per spec.md §2/§4. Grounded on the teacher's
// cmd/server/main.go (flag-configured NewServer, signal.Notify-driven
// graceful shutdown with a bounded shutdown context), generalized from
// an HTTP server's Start/Shutdown pair to this process's mix of TCP
// acceptors, timers, and background goroutines.
package main

import (
	"context"
	"encoding/binary"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rishav/hft-engine/internal/appctx"
	"github.com/rishav/hft-engine/internal/bus"
	"github.com/rishav/hft-engine/internal/channel"
	"github.com/rishav/hft-engine/internal/config"
	"github.com/rishav/hft-engine/internal/console"
	"github.com/rishav/hft-engine/internal/domain"
	"github.com/rishav/hft-engine/internal/gateway"
	"github.com/rishav/hft-engine/internal/lfqworker"
	"github.com/rishav/hft-engine/internal/logging"
	"github.com/rishav/hft-engine/internal/orderbook"
	"github.com/rishav/hft-engine/internal/priceclient"
	"github.com/rishav/hft-engine/internal/risk"
	"github.com/rishav/hft-engine/internal/session"
	"github.com/rishav/hft-engine/internal/shard"
	"github.com/rishav/hft-engine/internal/telemetry"
	"github.com/rishav/hft-engine/internal/transport"
	"github.com/rishav/hft-engine/internal/wire"
)

const (
	streamRingSize      = 1024
	shardInboxSize      = 4096
	gatewayQueueCap     = 4096
	channelRecvCapacity = 1 << 16
)

// demoTicker seeds one tradeable ticker with a starting price, standing
// in for the out-of-process instrument reference data spec.md §1
// externalizes (SPEC_FULL.md §6 DOMAIN STACK: no instrument-reference
// database is wired in this entrypoint).
type demoTicker struct {
	ticker wire.Ticker
	seed   uint32
}

func demoTickers() []demoTicker {
	return []demoTicker{
		{wire.TickerFromString("AAPL"), 15000},
		{wire.TickerFromString("MSFT"), 32000},
		{wire.TickerFromString("GOOG"), 28000},
	}
}

func main() {
	configPath := flag.String("config", "", "path to an INI config file (see internal/config); defaults are used if empty")
	credentialsFlag := flag.String("credentials", "trader:trader123", "comma-separated name:password pairs accepted by the static authenticator")
	wsAddr := flag.String("ws-addr", "127.0.0.1:9004", "address the price-feed WebSocket hub listens on")
	flag.Parse()

	cfg := config.DefaultConfig()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "gatewayd: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	log, err := logging.New(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "gatewayd: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	hub := bus.NewHub(streamRingSize)
	actx := appctx.New(hub, cfg, log)

	srv := newServer(actx, parseCredentials(*credentialsFlag), *wsAddr)
	if err := srv.Start(); err != nil {
		log.Fatal("gatewayd: start failed", zap.Error(err))
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
		log.Info("received shutdown signal")
	case <-srv.shutdownRequested:
		log.Info("console requested shutdown")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	srv.Shutdown(ctx)
	log.Info("gatewayd stopped")
}

func parseCredentials(s string) map[string]string {
	out := make(map[string]string)
	for _, pair := range strings.Split(s, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		parts := strings.SplitN(pair, ":", 2)
		if len(parts) != 2 {
			continue
		}
		out[parts[0]] = parts[1]
	}
	return out
}

// server owns every long-lived collaborator and the accept loops that
// feed them, per spec.md §2's dataflow.
type server struct {
	actx appctx.Context
	log  *zap.Logger
	hub  *bus.Hub

	sessionMgr  *session.Manager
	coordinator *shard.Coordinator
	worker      *lfqworker.Worker[gatewayMsg]
	inbox       chan gatewayMsg // many producers -> the worker's one producer goroutine

	feed   *priceclient.Feed
	udpBC  *priceclient.UDPBroadcaster
	wsHub  *priceclient.WSHub
	wsSrv  *http.Server
	wsAddr string

	consoleReader *console.Reader

	upListener   net.Listener
	downListener net.Listener
	udpSocket    *transport.Datagram

	nextConnID atomic.Uint64

	priceFeedMu sync.Mutex
	priceStop   chan struct{}

	telemetryOn   atomic.Bool
	telemetrySink *telemetry.DummySink

	stop              chan struct{}
	shutdownRequested chan struct{}
	wg                sync.WaitGroup
}

func newServer(actx appctx.Context, credentials map[string]string, wsAddr string) *server {
	s := &server{
		actx:              actx,
		log:               actx.Named("gatewayd"),
		hub:               actx.Hub,
		wsAddr:            wsAddr,
		stop:              make(chan struct{}),
		shutdownRequested: make(chan struct{}),
	}

	auth := session.NewStaticAuthenticator(credentials)
	s.sessionMgr = session.NewManager(auth, actx.Named("session"))
	s.telemetrySink = telemetry.NewDummySink()
	s.wireGateway()
	s.wirePriceFeed()
	s.wireConsole()
	return s
}

// wireGateway builds the gateway/coordinator/LFQ-worker pipeline
// described in SPEC_FULL.md §2 and §4.13/§4.14. It resolves a
// construction-order cycle (the worker's consumer needs the Gateway;
// the Gateway needs the Dispatcher; the shard's StatusSink needs the
// inbox that feeds the worker) by forward-declaring the Gateway pointer and closing over the
// variable rather than its value — safe here because the worker's
// goroutine is only started once gw has been assigned, in Start.
//
// internal/spsc.Queue (the worker's backing ring) is single-producer: its
// write cursor is unsynchronized, by design, matching spec.md's "SPSC LFQ
// worker." But inbound orders arrive from many upstream connection
// goroutines, and outbound statuses arrive from the shard's own
// goroutine — so inbox, an ordinary buffered channel, is the fan-in that
// absorbs those many producers; the one goroutine draining it (started
// in Start) is the queue's sole producer.
func (s *server) wireGateway() {
	var gw *gateway.Gateway

	s.worker = lfqworker.New(gatewayQueueCap, gatewayCodec{}, func(m gatewayMsg) {
		switch m.kind {
		case kindOrder:
			gw.HandleInbound(m.order)
		case kindStatus:
			gw.HandleOutbound(m.status)
		}
	})
	s.inbox = make(chan gatewayMsg, gatewayQueueCap)

	sink := gatewaySink{inbox: s.inbox, log: s.log}
	s.coordinator = shard.New(s.actx.Config.AppShardCount(), shardInboxSize, s.hub, sink, s.log.Named("shard"))

	statuses := statusPoster{mgr: s.sessionMgr}
	built, err := gateway.New(s.coordinator, statuses, risk.DefaultConfig(), s.log.Named("gateway"), nil)
	if err != nil {
		s.log.Fatal("failed to build gateway", zap.Error(err))
	}
	gw = built

	for _, dt := range demoTickers() {
		if err := s.coordinator.RegisterTicker(dt.ticker, orderbook.DefaultConfig()); err != nil {
			s.log.Fatal("failed to register ticker", zap.Stringer("ticker", dt.ticker), zap.Error(err))
		}
	}
}

func (s *server) wirePriceFeed() {
	seeds := make(map[wire.Ticker]uint32)
	for _, dt := range demoTickers() {
		seeds[dt.ticker] = dt.seed
	}

	s.wsHub = priceclient.NewWSHub(s.log.Named("wshub"))

	var broadcasters []priceclient.Broadcaster
	broadcasters = append(broadcasters, s.wsHub)
	if dg, err := transport.NewDatagram(fmt.Sprintf("%s:%d", s.actx.Config.Network.URL, s.actx.Config.Network.PortUDP), s.log); err != nil {
		s.log.Warn("udp broadcast socket unavailable, continuing without it", zap.Error(err))
	} else {
		s.udpSocket = dg
		s.udpBC = priceclient.NewUDPBroadcaster(dg, wire.BinaryCodec{})
		broadcasters = append(broadcasters, s.udpBC)
	}

	s.feed = priceclient.New(s.hub, seeds, s.log.Named("priceclient"), broadcasters...)
	bus.RegisterMarket(s.hub, func(tp wire.TickerPrice) {
		s.sessionMgr.Broadcast(tp)
	})

	mux := http.NewServeMux()
	mux.Handle("/ws", s.wsHub)
	s.wsSrv = &http.Server{Addr: s.wsAddr, Handler: mux}
}

func (s *server) wireConsole() {
	s.consoleReader = console.New(s.hub, console.ServerBindings(), s.log.Named("console"))

	s.hub.SubscribeSystemKeyed(domain.CommandPriceFeedStart, func(any) { s.startPriceFeed() })
	s.hub.SubscribeSystemKeyed(domain.CommandPriceFeedStop, func(any) { s.stopPriceFeed() })
	s.hub.SubscribeSystemKeyed(domain.CommandTelemetryStart, func(any) {
		s.telemetryOn.Store(true)
		s.log.Info("telemetry logging enabled")
	})
	s.hub.SubscribeSystemKeyed(domain.CommandTelemetryStop, func(any) {
		s.telemetryOn.Store(false)
		s.log.Info("telemetry logging disabled")
	})
	s.hub.SubscribeSystemKeyed(domain.CommandShutdown, func(any) {
		close(s.shutdownRequested)
	})

	bus.RegisterStream(s.hub, func(st shard.StatsEvent) {
		if !s.telemetryOn.Load() {
			return
		}
		s.log.Info("shard stats", zap.Uint64("rps_delta", st.RPSDelta), zap.Uint64("total_opened", st.TotalOpened))
		s.telemetrySink.Emit(telemetry.Record{RPSDelta: st.RPSDelta, TotalOpened: st.TotalOpened})
	})

	s.hub.SubscribeSystem(func(msg any) {
		switch e := msg.(type) {
		case shard.OperationalEvent:
			s.log.Info("all shards operational")
		case domain.InternalError:
			s.log.Error("internal error, shutting down", zap.String("code", e.Code), zap.String("what", e.What))
			select {
			case <-s.shutdownRequested:
			default:
				close(s.shutdownRequested)
			}
		}
	})
}

func (s *server) startPriceFeed() {
	s.priceFeedMu.Lock()
	defer s.priceFeedMu.Unlock()
	if s.priceStop != nil {
		return
	}
	s.priceStop = make(chan struct{})
	stop := s.priceStop
	period := time.Duration(s.actx.Config.Rates.PriceFeedRateUs) * time.Microsecond
	go s.feed.Run(period, stop)
	s.log.Info("price feed started")
}

func (s *server) stopPriceFeed() {
	s.priceFeedMu.Lock()
	defer s.priceFeedMu.Unlock()
	if s.priceStop == nil {
		return
	}
	close(s.priceStop)
	s.priceStop = nil
	s.log.Info("price feed stopped")
}

// Start brings up every background goroutine and both TCP acceptors.
func (s *server) Start() error {
	upAddr := fmt.Sprintf("%s:%d", s.actx.Config.Network.URL, s.actx.Config.Network.PortTCPUp)
	downAddr := fmt.Sprintf("%s:%d", s.actx.Config.Network.URL, s.actx.Config.Network.PortTCPDown)

	upLn, err := net.Listen("tcp", upAddr)
	if err != nil {
		return fmt.Errorf("gatewayd: listen upstream: %w", err)
	}
	downLn, err := net.Listen("tcp", downAddr)
	if err != nil {
		upLn.Close()
		return fmt.Errorf("gatewayd: listen downstream: %w", err)
	}
	s.upListener = upLn
	s.downListener = downLn

	go s.hub.RunSystemDispatcher()
	go func() {
		s.worker.Run(func() { s.log.Info("gateway worker ready") })
	}()
	go s.runInboxFunnel()

	s.coordinator.Start()
	go s.coordinator.RunStatsTimer(time.Duration(s.actx.Config.Rates.TelemetryMs)*time.Millisecond, s.stop)
	go func() {
		drain := time.NewTicker(time.Duration(s.actx.Config.Rates.TelemetryMs) * time.Millisecond)
		defer drain.Stop()
		for {
			select {
			case <-drain.C:
				s.hub.DrainStreams()
			case <-s.stop:
				return
			}
		}
	}()

	go func() {
		srv := s.wsSrv
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.log.Error("websocket server stopped", zap.Error(err))
		}
	}()

	s.consoleReader.PrintCommands(console.ServerBindings())
	go s.consoleReader.Run(os.Stdin)

	s.wg.Add(2)
	go s.runAcceptor(upLn, s.handleUpstream)
	go s.runAcceptor(downLn, s.handleDownstream)

	s.log.Info("gatewayd listening", zap.String("upstream", upAddr), zap.String("downstream", downAddr))
	return nil
}

// Shutdown stops accepting new connections and tears every background
// goroutine down, bounded by ctx — mirroring the teacher's
// context.WithTimeout(ctx, 10*time.Second) shutdown window.
func (s *server) Shutdown(ctx context.Context) {
	close(s.stop)
	s.upListener.Close()
	s.downListener.Close()
	s.stopPriceFeed()
	s.coordinator.Stop()
	s.worker.Stop()
	s.hub.StopSystemDispatcher()
	if s.udpSocket != nil {
		s.udpSocket.Close()
	}
	if s.wsSrv != nil {
		_ = s.wsSrv.Shutdown(ctx)
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.log.Warn("shutdown timed out waiting for acceptors to drain")
	}
}

// runInboxFunnel is the single goroutine that drains inbox and is, in
// turn, the one producer internal/spsc's queue requires. A message the
// worker's retry budget can't absorb is logged and reported as an
// InternalError rather than blocking this goroutine indefinitely.
func (s *server) runInboxFunnel() {
	for {
		select {
		case m := <-s.inbox:
			if !s.worker.Post(m) {
				s.log.Error("gateway worker queue full, dropping message", zap.Uint8("kind", m.kind))
				s.hub.PostSystem(domain.InternalError{Code: "GatewayQueueFull", What: "lfq worker queue exhausted its retry budget"})
			}
		case <-s.stop:
			return
		}
	}
}

func (s *server) runAcceptor(ln net.Listener, handle func(net.Conn)) {
	defer s.wg.Done()
	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-s.stop:
			default:
				s.log.Error("accept failed", zap.Error(err))
			}
			return
		}
		go handle(conn)
	}
}

// handleUpstream wires one accepted upstream connection with its own
// dedicated market-bus Hub, since internal/bus.RegisterMarket allows
// exactly one handler per type per Hub and internal/channel posts the
// bare decoded message with no connection-ID attached — the only way to
// disambiguate concurrent connections' LoginRequest/Order traffic is to
// give each its own routing table, closed over this connection's ID.
func (s *server) handleUpstream(conn net.Conn) {
	connID := s.nextConnID.Add(1)
	trace := uuid.New()
	s.hub.PostSystem(domain.ConnectionStatusEvent{ConnectionID: connID, TraceID: trace, Status: domain.StateConnected})

	connHub := bus.NewHub(1)
	view := bus.NewRestrictedView(connHub, wire.LoginRequest{}, wire.Order{}, domain.ChannelStatusEvent{})

	bus.RegisterMarket(connHub, func(req wire.LoginRequest) {
		s.sessionMgr.HandleLogin(connID, req)
	})
	bus.RegisterMarket(connHub, func(o wire.Order) {
		clientID, ok := s.sessionMgr.AttachClientID(connID)
		if !ok {
			s.log.Debug("order from unauthenticated connection", zap.Uint64("connection_id", connID))
			return
		}
		msg := gatewayMsg{kind: kindOrder, order: domain.ServerOrder{ClientID: clientID, Order: o}}
		select {
		case s.inbox <- msg:
		default:
			s.log.Error("gateway inbox full, dropping order", zap.Uint64("connection_id", connID))
		}
	})
	bus.RegisterMarket(connHub, func(e domain.ChannelStatusEvent) {
		if e.Status != domain.StateConnected {
			s.sessionMgr.HandleDisconnect(connID)
			s.hub.PostSystem(domain.ConnectionStatusEvent{ConnectionID: connID, TraceID: trace, Status: e.Status})
		}
	})

	sock := transport.NewSocket(conn, s.log)
	ch, err := channel.New(connID, sock, view, wire.BinaryCodec{}, channelRecvCapacity, s.log.Named("channel"))
	if err != nil {
		s.log.Error("failed to build upstream channel", zap.Error(err))
		sock.Close()
		return
	}

	s.sessionMgr.Connect(connID, ch)
	ch.StartReading()
}

// handleDownstream wires one accepted downstream connection. Unlike
// upstream, it never calls sessionMgr.Connect — it only becomes part of
// a session once its TokenBindRequest arrives.
func (s *server) handleDownstream(conn net.Conn) {
	connID := s.nextConnID.Add(1)

	connHub := bus.NewHub(1)
	view := bus.NewRestrictedView(connHub, wire.TokenBindRequest{}, domain.ChannelStatusEvent{})

	var ch *channel.Channel
	bus.RegisterMarket(connHub, func(req wire.TokenBindRequest) {
		if ch == nil {
			return
		}
		if !s.sessionMgr.HandleTokenBind(ch, req) {
			s.log.Debug("token bind failed", zap.Uint64("connection_id", connID))
		}
	})
	bus.RegisterMarket(connHub, func(e domain.ChannelStatusEvent) {
		if e.Status != domain.StateConnected {
			s.sessionMgr.HandleDisconnect(connID)
		}
	})

	sock := transport.NewSocket(conn, s.log)
	built, err := channel.New(connID, sock, view, wire.BinaryCodec{}, channelRecvCapacity, s.log.Named("channel"))
	if err != nil {
		s.log.Error("failed to build downstream channel", zap.Error(err))
		sock.Close()
		return
	}
	ch = built
	ch.StartReading()
}

// gatewayMsg is the tagged union the single LFQ worker carries between
// many producer goroutines (one per upstream connection, plus the
// shard's own goroutine) and the Gateway's single consumer goroutine —
// the cross-thread handoff spec.md §5/§9 names ("Cross-thread handoff
// uses the SPSC LFQ worker"). Gateway.HandleInbound/HandleOutbound are
// documented not safe for concurrent use, so exactly one goroutine (this
// worker's Run loop) may ever call into it.
type gatewayMsg struct {
	kind   uint8
	order  domain.ServerOrder
	status domain.InternalOrderStatus
}

const (
	kindOrder uint8 = iota
	kindStatus
)

// gatewayCodec implements lfqworker.Codec[gatewayMsg]. Both encodings
// fit comfortably under spsc.MaxInline (52 bytes): a ServerOrder encodes
// to 38 bytes, an InternalOrderStatus to 18.
type gatewayCodec struct{}

func (gatewayCodec) Encode(v gatewayMsg, out []byte) int {
	switch v.kind {
	case kindOrder:
		out[0] = kindOrder
		binary.LittleEndian.PutUint64(out[1:9], v.order.ClientID)
		binary.LittleEndian.PutUint64(out[9:17], v.order.Order.ID)
		binary.LittleEndian.PutUint64(out[17:25], v.order.Order.Created)
		copy(out[25:29], v.order.Order.Ticker[:])
		binary.LittleEndian.PutUint32(out[29:33], v.order.Order.Quantity)
		binary.LittleEndian.PutUint32(out[33:37], v.order.Order.Price)
		out[37] = byte(v.order.Order.Action)
		return 38
	default:
		out[0] = kindStatus
		binary.LittleEndian.PutUint32(out[1:5], v.status.SystemID)
		binary.LittleEndian.PutUint32(out[5:9], v.status.BookID)
		binary.LittleEndian.PutUint32(out[9:13], v.status.FillQty)
		binary.LittleEndian.PutUint32(out[13:17], v.status.FillPrice)
		out[17] = byte(v.status.State)
		return 18
	}
}

func (gatewayCodec) Decode(data []byte) gatewayMsg {
	switch data[0] {
	case kindOrder:
		var ticker wire.Ticker
		copy(ticker[:], data[25:29])
		return gatewayMsg{
			kind: kindOrder,
			order: domain.ServerOrder{
				ClientID: binary.LittleEndian.Uint64(data[1:9]),
				Order: wire.Order{
					ID:       binary.LittleEndian.Uint64(data[9:17]),
					Created:  binary.LittleEndian.Uint64(data[17:25]),
					Ticker:   ticker,
					Quantity: binary.LittleEndian.Uint32(data[29:33]),
					Price:    binary.LittleEndian.Uint32(data[33:37]),
					Action:   wire.Action(data[37]),
				},
			},
		}
	default:
		return gatewayMsg{
			kind: kindStatus,
			status: domain.InternalOrderStatus{
				SystemID:  binary.LittleEndian.Uint32(data[1:5]),
				BookID:    binary.LittleEndian.Uint32(data[5:9]),
				FillQty:   binary.LittleEndian.Uint32(data[9:13]),
				FillPrice: binary.LittleEndian.Uint32(data[13:17]),
				State:     wire.OrderState(data[17]),
			},
		}
	}
}

// statusPoster adapts session.Manager to gateway.StatusPoster.
type statusPoster struct {
	mgr *session.Manager
}

func (p statusPoster) PostStatus(s domain.ServerOrderStatus) {
	p.mgr.RouteStatus(s)
}

// gatewaySink adapts the gateway's inbox to orderbook.StatusSink, so
// shards report fills/rejects/cancels across to the gateway's single
// consumer goroutine (by way of the inbox funnel) instead of calling it
// directly from the shard's own goroutine.
type gatewaySink struct {
	inbox chan<- gatewayMsg
	log   *zap.Logger
}

func (s gatewaySink) Emit(status domain.InternalOrderStatus) {
	select {
	case s.inbox <- gatewayMsg{kind: kindStatus, status: status}:
	default:
		s.log.Error("gateway inbox full, dropping status", zap.Uint32("system_id", status.SystemID))
	}
}
