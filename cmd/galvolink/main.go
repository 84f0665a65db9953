package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/galvonium/galvolink/internal/server"
	"github.com/galvonium/galvolink/web"
)

func main() {
	configPath := flag.String("config", "/etc/galvolink/config.yaml", "Path to config file")
	demo := flag.Bool("demo", false, "Run against the emulated device instead of a serial port")
	listenAddr := flag.String("listen", "", "Override listen address (e.g. :8080)")
	port := flag.String("port", "", "Override serial port path (e.g. /dev/ttyUSB0)")
	flag.Parse()

	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
	log.Println("[main] galvolink starting")

	// Load config
	cfg := server.LoadConfig(*configPath)

	if *demo {
		cfg.Device.Type = "demo"
		cfg.Device.AutoConnect = true
	}
	if *listenAddr != "" {
		cfg.Server.ListenAddr = *listenAddr
	}
	if *port != "" {
		cfg.Device.Type = "serial"
		cfg.Device.PortPath = *port
		cfg.Device.AutoConnect = true
	}

	// Create context with signal handling
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Printf("[main] received %v, shutting down", sig)
		cancel()
	}()

	srv := server.New(cfg, web.FS)

	// Connect in the background with exponential backoff. The dashboard
	// starts regardless and the user can connect manually from the UI.
	if cfg.Device.AutoConnect {
		go connectWithRetry(ctx, srv, 10)
	}

	if err := srv.Run(ctx); err != nil {
		log.Printf("[main] server exited: %v", err)
	}
}

// connectWithRetry attempts to connect with exponential backoff.
// Starts at 1s, doubles each attempt up to 60s, retries up to maxAttempts
// then continues at max interval indefinitely.
func connectWithRetry(ctx context.Context, srv *server.Server, maxAttempts int) {
	delay := 1 * time.Second
	maxDelay := 60 * time.Second
	attempt := 0

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := srv.ConnectDevice("", 0); err != nil {
			attempt++
			if attempt <= maxAttempts {
				log.Printf("[device] connect attempt %d/%d failed: %v (retry in %v)",
					attempt, maxAttempts, err, delay)
			} else {
				log.Printf("[device] connect attempt %d failed: %v (retry in %v)",
					attempt, err, delay)
			}

			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
			}

			delay *= 2
			if delay > maxDelay {
				delay = maxDelay
			}
		} else {
			log.Printf("[device] connected successfully (attempt %d)", attempt+1)
			return
		}
	}
}
