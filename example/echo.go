// Command echo runs a framed echo server, or a client that sends stdin lines
// to one and prints what comes back.
//
//	go run ./example --mode server --protocol text
//	go run ./example --mode client --protocol text < messages.txt
package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/Zereker/msgsock"
	"github.com/Zereker/msgsock/framing"
)

type config struct {
	addr         string
	mode         string
	protocol     string
	lengthPrefix string
	maxSize      int
	logLevel     string
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var cfg config
	flagSet := pflag.NewFlagSet("echo", pflag.ContinueOnError)
	flagSet.StringVar(&cfg.addr, "addr", "127.0.0.1:12345", "address to listen on or dial")
	flagSet.StringVar(&cfg.mode, "mode", "server", "server or client")
	flagSet.StringVar(&cfg.protocol, "protocol", "text", "framing protocol: text or binary")
	flagSet.StringVar(&cfg.lengthPrefix, "length-prefix", "varint", "binary length prefix: varint or fixed64")
	flagSet.IntVar(&cfg.maxSize, "max-size", 1024*1024, "largest accepted message in bytes")
	flagSet.StringVar(&cfg.logLevel, "log-level", "info", "debug, info, warn or error")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}

	level, err := msgsock.ParseLevel(cfg.logLevel)
	if err != nil {
		return errors.Wrap(err, "--log-level")
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	protocol, err := newProtocol(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch cfg.mode {
	case "server":
		return serve(ctx, cfg, protocol, logger)
	case "client":
		return dial(ctx, cfg, protocol, logger)
	}
	return errors.Errorf("unknown --mode %q", cfg.mode)
}

func newProtocol(cfg config) (msgsock.Protocol, error) {
	switch cfg.protocol {
	case "text":
		return msgsock.TextProtocol(), nil
	case "binary":
		prefix, err := framing.ParseLengthPrefix(cfg.lengthPrefix)
		if err != nil {
			return nil, errors.Wrap(err, "--length-prefix")
		}
		return msgsock.BinaryProtocol(prefix), nil
	}
	return nil, errors.Errorf("unknown --protocol %q", cfg.protocol)
}

func serve(ctx context.Context, cfg config, protocol msgsock.Protocol, logger *slog.Logger) error {
	addr, err := net.ResolveTCPAddr("tcp", cfg.addr)
	if err != nil {
		return errors.Wrapf(err, "resolve %s", cfg.addr)
	}

	server, err := msgsock.New(addr,
		msgsock.ServerLoggerOption(logger),
		msgsock.ServerShutdownTimeoutOption(5*time.Second),
		msgsock.ServerConnOption(
			msgsock.ProtocolOption(protocol),
			msgsock.MessageMaxSize(cfg.maxSize),
			msgsock.BufferSizeOption(64),
		),
	)
	if err != nil {
		return err
	}
	defer server.Close()

	echo := msgsock.HandlerFunc(func(conn *msgsock.Conn, m msgsock.Message) error {
		logger.Debug("echo", "addr", conn.Addr(), "size", len(m.Body()), "active", server.ActiveConns())
		return conn.WriteBlocking(context.Background(), m)
	})

	logger.Info("echo server listening", "addr", server.Addr(), "protocol", protocol.Name())
	if err := server.Serve(ctx, echo); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// dial sends each stdin line as a message and prints every echo. It returns
// once all lines are echoed or the connection fails.
func dial(ctx context.Context, cfg config, protocol msgsock.Protocol, logger *slog.Logger) error {
	var outstanding sync.WaitGroup
	conn, err := msgsock.Dial(ctx, cfg.addr,
		msgsock.ProtocolOption(protocol),
		msgsock.MessageMaxSize(cfg.maxSize),
		msgsock.LoggerOption(logger),
		msgsock.OnMessageOption(func(m msgsock.Message) error {
			fmt.Printf("%s\n", m.Body())
			outstanding.Done()
			return nil
		}),
	)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	group, child := errgroup.WithContext(ctx)

	group.Go(func() error {
		return conn.Run(child)
	})

	group.Go(func() error {
		defer cancel()
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			body := append([]byte(nil), scanner.Bytes()...)
			outstanding.Add(1)
			if err := conn.WriteBlocking(child, msgsock.NewMessage(body)); err != nil {
				return err
			}
		}
		if err := scanner.Err(); err != nil {
			return errors.Wrap(err, "read stdin")
		}

		echoed := make(chan struct{})
		go func() {
			outstanding.Wait()
			close(echoed)
		}()
		select {
		case <-echoed:
		case <-child.Done():
		}
		return nil
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
