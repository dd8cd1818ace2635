// Command raleighsl-server is a thin, illustrative front-end: flag parsing
// and signal handling around Server.ListenAndServe. Binding wire messages
// to a concrete typed client API (the "generated stub layer") is out of
// this core's scope, so this binary exists only to prove the engine runs,
// not as the project's proxy front-end.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/raleighsl/raleighsl"
	"github.com/raleighsl/raleighsl/internal/logging"
)

func main() {
	var (
		tcpAddr  = flag.String("tcp", "127.0.0.1:7400", "TCP listen address (empty disables)")
		unixPath = flag.String("unix", "", "unix-domain socket path (empty disables)")
		udpAddr  = flag.String("udp", "", "UDP listen address (empty disables)")
		engines  = flag.Int("engines", 0, "poll engine count (0 = auto, ceil(cores,2))")
		cacheCap = flag.Int("cache", 4096, "result cache capacity (0 disables)")
		policy   = flag.String("cache-policy", "2q", "cache eviction policy: lru or 2q")
		verbose  = flag.Bool("v", false, "verbose logging")
	)
	flag.Parse()

	logConfig := logging.DefaultConfig()
	if *verbose {
		logConfig.Level = logging.LevelDebug
	}
	logger := logging.NewLogger(logConfig)
	logging.SetDefault(logger)

	params := raleighsl.DefaultServerParams()
	params.TCPAddr = *tcpAddr
	params.UnixSocketPath = *unixPath
	params.DatagramAddr = *udpAddr
	params.CacheCapacity = *cacheCap
	params.CachePolicy = *policy
	params.Logger = logger
	if *engines > 0 {
		params.PollEngines = *engines
	}

	srv, err := raleighsl.NewServer(params)
	if err != nil {
		logger.Error("failed to create server", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal")
		cancel()
	}()

	if *tcpAddr != "" {
		fmt.Printf("listening tcp=%s\n", *tcpAddr)
	}
	if *unixPath != "" {
		fmt.Printf("listening unix=%s\n", *unixPath)
	}
	if *udpAddr != "" {
		fmt.Printf("listening udp=%s\n", *udpAddr)
	}

	if err := srv.ListenAndServe(ctx); err != nil {
		logger.Error("server exited with error", "error", err)
		os.Exit(1)
	}
}
