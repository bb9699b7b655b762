package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/kschost/chatrelay/internal/chat"
	"github.com/kschost/chatrelay/internal/server"
	"github.com/kschost/chatrelay/internal/store"
)

const shutdownTimeout = 10 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file loaded: %v", err)
	}

	cfg := server.NewConfigFromEnv().Sanitize()

	var roomStore chat.RoomStore
	if cfg.RoomServiceURL != "" {
		roomStore = store.NewHTTPRoomStore(cfg.RoomServiceURL, cfg.RoomServiceTimeout)
		log.Printf("room persistence enabled via %s", cfg.RoomServiceURL)
	}

	coordinator := chat.New(roomStore)
	gateway := server.NewGateway(coordinator, cfg)
	api := server.NewAPI(coordinator)
	router := server.NewRouter(gateway, api)

	httpServer := server.CreateServer(cfg.Port, router)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.StartServer(httpServer)
	}()

	select {
	case <-ctx.Done():
		log.Println("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
		return
	}

	if err := server.ShutdownServer(httpServer, shutdownTimeout); err != nil {
		log.Printf("forcing shutdown: %v", err)
	}
	if err := gateway.Shutdown(shutdownTimeout); err != nil {
		log.Printf("gateway shutdown incomplete: %v", err)
	}
}
