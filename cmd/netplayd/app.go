package main

import (
    "context"
    "flag"
    "fmt"
    "os"
    "os/signal"
    "syscall"

    "go.uber.org/zap"

    "netplayd/pkg/config"
    "netplayd/pkg/observability"
    "netplayd/pkg/protocol/codec"
    "netplayd/pkg/server"
    "netplayd/pkg/session"
    "netplayd/pkg/transport"
    "netplayd/pkg/transport/mem"
    "netplayd/pkg/transport/quic"
    "netplayd/pkg/transport/tcp"
    "netplayd/pkg/transport/ws"
)

func run(args []string) int {
    fs := flag.NewFlagSet("netplayd", flag.ContinueOnError)
    cfgPath := fs.String("config", "", "path to config file (YAML)")
    if err := fs.Parse(args); err != nil { return 2 }

    cfg, err := config.Load(*cfgPath)
    if err != nil {
        fmt.Fprintf(os.Stderr, "config: %v\n", err)
        return 1
    }

    logger, flush, err := observability.InitLogger(cfg.Log)
    if err != nil {
        fmt.Fprintf(os.Stderr, "logger: %v\n", err)
        return 1
    }
    defer flush()

    ctx, cancel := context.WithCancel(context.Background())
    defer cancel()

    limit := 0
    if cfg.Server.TestMode { limit = cfg.Server.MaxSessions }
    reg := session.NewRegistry(limit)
    hub := session.NewHub(cfg.Server.Spectating)
    srv := server.New(reg, hub, codec.Default(), server.Options{
        TestMode: cfg.Server.TestMode,
        Shutdown: cancel,
    })
    tracker := transport.NewTracker()

    var listeners []transport.Listener
    for _, tc := range cfg.Transports {
        tr, err := transportFor(tc.Kind)
        if err != nil {
            logger.Error("transport", zap.String("kind", tc.Kind), zap.Error(err))
            return 1
        }
        l, err := tr.Listen(ctx, tc.Listen)
        if err != nil {
            logger.Error("listen", zap.String("kind", tc.Kind), zap.String("addr", tc.Listen), zap.Error(err))
            return 1
        }
        listeners = append(listeners, l)
        go func(l transport.Listener) {
            if err := srv.Serve(ctx, l, tracker); err != nil && ctx.Err() == nil {
                logger.Error("serve", zap.Error(err))
            }
        }(l)
    }
    if len(listeners) == 0 {
        logger.Error("no transports configured")
        return 1
    }
    logger.Info("netplayd up",
        zap.Int("listeners", len(listeners)),
        zap.Bool("test_mode", cfg.Server.TestMode),
        zap.Bool("spectating", cfg.Server.Spectating))

    sigc := make(chan os.Signal, 1)
    signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
    select {
    case sig := <-sigc:
        logger.Info("signal received", zap.String("signal", sig.String()))
    case <-ctx.Done():
        logger.Info("shutdown requested")
    }

    cancel()
    for _, l := range listeners { l.Close() }
    tracker.CloseAll()
    logger.Info("netplayd down")
    return 0
}

func transportFor(kind string) (transport.Transport, error) {
    switch kind {
    case "tcp":
        return tcp.New(), nil
    case "quic":
        return quic.New(), nil
    case "ws":
        return ws.New(), nil
    case "mem":
        return mem.New(), nil
    default:
        return nil, fmt.Errorf("unknown transport kind %q", kind)
    }
}
