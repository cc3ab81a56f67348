// Command sink listens on TCP and UDP at once so both protocols of gn write
// can be exercised against a single port during local benchmarks.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/torosent/gn/internal/logger"
	"github.com/torosent/gn/internal/server"
	"github.com/torosent/gn/internal/transport"
)

func main() {
	addr := flag.String("addr", "127.0.0.1:5000", "address to listen on for both tcp and udp")
	mode := flag.String("mode", string(server.ModeDiscard), "server mode: print, echo or discard")
	interval := flag.Duration("stats-interval", 5*time.Second, "how often to log received totals (0 disables)")
	flag.Parse()

	log := logger.GetLogger()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var servers []*server.Server
	for _, protocol := range []transport.Protocol{transport.ProtocolTCP, transport.ProtocolUDP} {
		srv, err := server.New(server.Options{
			Address:  *addr,
			Protocol: protocol,
			Mode:     server.Mode(*mode),
		})
		if err != nil {
			log.WithError(err).Fatal("Invalid server options")
		}
		if err := srv.Listen(ctx); err != nil {
			log.WithError(err).Fatal("Unable to listen")
		}
		servers = append(servers, srv)
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, srv := range servers {
		g.Go(func() error { return srv.Serve(gctx) })
	}
	if *interval > 0 {
		g.Go(func() error {
			ticker := time.NewTicker(*interval)
			defer ticker.Stop()
			for {
				select {
				case <-gctx.Done():
					return nil
				case <-ticker.C:
					tcp, udp := servers[0].Stats(), servers[1].Stats()
					log.WithFields(logrus.Fields{
						"tcp_connections": tcp.Connections,
						"tcp_bytes":       tcp.Bytes,
						"udp_datagrams":   udp.Datagrams,
						"udp_bytes":       udp.Bytes,
					}).Info("Received")
				}
			}
		})
	}
	if err := g.Wait(); err != nil {
		log.WithError(err).Fatal("Sink stopped")
	}
}
