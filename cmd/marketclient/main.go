// Package main is the trading client process: it dials the gateway's
// upstream/downstream TCP ports, performs the login/token-bind
// handshake, then drives a synthetic order-generation engine under an
// interactive console — mirroring the teacher's cmd/client/main.go in
// role (a standalone process a trader or load-test operator runs
// against the server) while replacing its one-shot HTTP subcommands
// with the persistent binary-protocol session spec.md §4.12 and §6
// describe for a connected trading client.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/rishav/hft-engine/internal/bus"
	"github.com/rishav/hft-engine/internal/channel"
	"github.com/rishav/hft-engine/internal/cli"
	"github.com/rishav/hft-engine/internal/config"
	"github.com/rishav/hft-engine/internal/console"
	"github.com/rishav/hft-engine/internal/domain"
	"github.com/rishav/hft-engine/internal/logging"
	"github.com/rishav/hft-engine/internal/syntheticclient"
	"github.com/rishav/hft-engine/internal/transport"
	"github.com/rishav/hft-engine/internal/wire"
)

const (
	dialTimeout         = 5 * time.Second
	handshakeTimeout    = 5 * time.Second
	channelRecvCapacity = 1 << 16
	statsPeriod         = 5 * time.Second
)

// demoSeeds mirrors cmd/gatewayd's demoTickers: the client has no
// instrument-reference source of its own, so it seeds the same three
// tickers the gateway registers, as the synthetic engine's initial
// price-walk basis until the first real TickerPrice broadcast arrives.
func demoSeeds() map[wire.Ticker]uint32 {
	return map[wire.Ticker]uint32{
		wire.TickerFromString("AAPL"): 15000,
		wire.TickerFromString("MSFT"): 32000,
		wire.TickerFromString("GOOG"): 28000,
	}
}

func main() {
	configPath := flag.String("config", "", "path to an INI config file (see internal/config); defaults are used if empty")
	name := flag.String("name", "trader", "login name presented to the gateway")
	password := flag.String("password", "trader123", "login password presented to the gateway")
	flag.Parse()

	cfg := config.DefaultConfig()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "marketclient: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	log, err := logging.New(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "marketclient: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	c, err := newClient(cfg, log)
	if err != nil {
		log.Fatal("marketclient: connect failed", zap.Error(err))
	}
	if err := c.login(*name, *password); err != nil {
		log.Fatal("marketclient: login failed", zap.Error(err))
	}

	c.Start()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigCh:
		log.Info("received shutdown signal")
	case <-c.shutdownRequested:
		log.Info("console requested shutdown")
	}

	c.Stop()
	log.Info("marketclient stopped")
}

// client owns the upstream/downstream channels, the synthetic trading
// engine, and the console loop, per spec.md §4.12's client-side
// handshake (login on upstream, bind on downstream) and §6's
// client-side command set.
type client struct {
	log *zap.Logger

	hub           *bus.Hub
	upstreamHub   *bus.Hub
	downstreamHub *bus.Hub

	upstream   *channel.Channel
	downstream *channel.Channel

	engine *syntheticclient.Engine
	book   *cli.Book
	stats  *cli.Stats

	consoleReader *console.Reader

	statsStop         chan struct{}
	shutdownRequested chan struct{}
}

func newClient(cfg config.Config, log *zap.Logger) (*client, error) {
	upAddr := fmt.Sprintf("%s:%d", cfg.Network.URL, cfg.Network.PortTCPUp)
	downAddr := fmt.Sprintf("%s:%d", cfg.Network.URL, cfg.Network.PortTCPDown)

	upSock, err := transport.DialTCP(upAddr, dialTimeout, log.Named("upstream"))
	if err != nil {
		return nil, fmt.Errorf("dial upstream: %w", err)
	}
	downSock, err := transport.DialTCP(downAddr, dialTimeout, log.Named("downstream"))
	if err != nil {
		upSock.Close()
		return nil, fmt.Errorf("dial downstream: %w", err)
	}

	c := &client{
		log:               log,
		hub:               bus.NewHub(1),
		upstreamHub:       bus.NewHub(1),
		downstreamHub:     bus.NewHub(1),
		book:              cli.NewBook(),
		stats:             &cli.Stats{},
		statsStop:         make(chan struct{}),
		shutdownRequested: make(chan struct{}),
	}

	upView := bus.NewRestrictedView(c.upstreamHub, wire.LoginResponse{}, domain.ChannelStatusEvent{})
	downView := bus.NewRestrictedView(c.downstreamHub, wire.LoginResponse{}, wire.OrderStatus{}, wire.TickerPrice{}, domain.ChannelStatusEvent{})

	up, err := channel.New(1, upSock, upView, wire.BinaryCodec{}, channelRecvCapacity, log.Named("channel.up"))
	if err != nil {
		upSock.Close()
		downSock.Close()
		return nil, fmt.Errorf("build upstream channel: %w", err)
	}
	down, err := channel.New(2, downSock, downView, wire.BinaryCodec{}, channelRecvCapacity, log.Named("channel.down"))
	if err != nil {
		up.Close()
		downSock.Close()
		return nil, fmt.Errorf("build downstream channel: %w", err)
	}
	c.upstream = up
	c.downstream = down

	c.engine = syntheticclient.New(up, syntheticclient.DefaultConfig(demoSeeds()), log.Named("synthetic"))

	c.consoleReader = console.New(c.hub, console.ClientBindings(), log.Named("console"))
	c.hub.SubscribeSystemKeyed(domain.CommandSyntheticStart, func(any) { c.engine.TradeStart() })
	c.hub.SubscribeSystemKeyed(domain.CommandSyntheticStop, func(any) { c.engine.TradeStop() })
	c.hub.SubscribeSystemKeyed(domain.CommandTelemetryStart, func(any) {
		log.Info("client-side book/stats logging enabled")
	})
	c.hub.SubscribeSystemKeyed(domain.CommandShutdown, func(any) { c.requestShutdown() })

	bus.RegisterMarket(c.downstreamHub, func(s wire.OrderStatus) {
		c.engine.OnOrderStatus(s)
		c.stats.Record(s)
		log.Info("order status", zap.String("status", cli.FormatOrderStatus(s)))
	})
	bus.RegisterMarket(c.downstreamHub, func(tp wire.TickerPrice) {
		c.engine.OnTickerPrice(tp)
		c.book.Update(tp)
	})
	bus.RegisterMarket(c.upstreamHub, func(e domain.ChannelStatusEvent) {
		if e.Status != domain.StateConnected {
			log.Warn("upstream channel disconnected")
			c.requestShutdown()
		}
	})
	bus.RegisterMarket(c.downstreamHub, func(e domain.ChannelStatusEvent) {
		if e.Status != domain.StateConnected {
			log.Warn("downstream channel disconnected")
			c.requestShutdown()
		}
	})

	return c, nil
}

// requestShutdown closes shutdownRequested idempotently; both channel
// disconnect handlers and the console's "q" binding call this.
func (c *client) requestShutdown() {
	select {
	case <-c.shutdownRequested:
	default:
		close(c.shutdownRequested)
	}
}

// login performs spec.md §4.12's handshake: a LoginRequest on the
// upstream channel, then a TokenBindRequest on the downstream channel
// carrying the token the gateway minted. Both replies arrive as
// wire.LoginResponse, so each leg waits on its own one-shot channel
// fed by a market handler registered just for the handshake.
func (c *client) login(name, password string) error {
	loginReplies := make(chan wire.LoginResponse, 1)
	bus.RegisterMarket(c.upstreamHub, func(r wire.LoginResponse) {
		select {
		case loginReplies <- r:
		default:
		}
	})

	c.upstream.StartReading()
	if err := c.upstream.Send(wire.LoginRequest{Name: name, Password: password}); err != nil {
		return fmt.Errorf("send login request: %w", err)
	}

	var loginResp wire.LoginResponse
	select {
	case loginResp = <-loginReplies:
	case <-time.After(handshakeTimeout):
		return fmt.Errorf("login timed out waiting for response")
	}
	if !loginResp.Ok {
		return fmt.Errorf("login rejected: %s", loginResp.Error)
	}

	bindReplies := make(chan wire.LoginResponse, 1)
	bus.RegisterMarket(c.downstreamHub, func(r wire.LoginResponse) {
		select {
		case bindReplies <- r:
		default:
		}
	})

	c.downstream.StartReading()
	if err := c.downstream.Send(wire.TokenBindRequest{Token: loginResp.Token}); err != nil {
		return fmt.Errorf("send token bind request: %w", err)
	}

	select {
	case bindResp := <-bindReplies:
		if !bindResp.Ok {
			return fmt.Errorf("token bind rejected")
		}
	case <-time.After(handshakeTimeout):
		return fmt.Errorf("token bind timed out waiting for response")
	}

	c.log.Info("logged in", zap.String("name", name), zap.Uint64("token", loginResp.Token))
	return nil
}

// Start brings up the console loop, the synthetic engine, and a
// periodic book/stats log line. The handshake in login already started
// both channels reading.
func (c *client) Start() {
	go c.hub.RunSystemDispatcher()
	go c.engine.Run()
	go c.runStatsLoop()

	c.consoleReader.PrintCommands(console.ClientBindings())
	go c.consoleReader.Run(os.Stdin)
}

func (c *client) runStatsLoop() {
	ticker := time.NewTicker(statsPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			fmt.Print(c.book.Render())
			fmt.Print(c.stats.Render())
		case <-c.statsStop:
			return
		}
	}
}

func (c *client) Stop() {
	close(c.statsStop)
	c.engine.Stop()
	c.hub.StopSystemDispatcher()
	c.upstream.Close()
	c.downstream.Close()
}
