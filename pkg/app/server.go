package app

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"patrolchat/config"
	"patrolchat/pkg/api"
)

type Server struct {
	router      *chi.Mux
	userService api.UserService
	chatService api.ChatService
	hub         *api.Hub
	fanout      *api.Fanout
	verifier    api.TokenVerifier
	cfg         *config.Config
	log         *zap.Logger
}

func NewServer(
	router *chi.Mux,
	userService api.UserService,
	chatService api.ChatService,
	hub *api.Hub,
	fanout *api.Fanout,
	verifier api.TokenVerifier,
	cfg *config.Config,
	log *zap.Logger,
) *Server {
	return &Server{
		router:      router,
		userService: userService,
		chatService: chatService,
		hub:         hub,
		fanout:      fanout,
		verifier:    verifier,
		cfg:         cfg,
		log:         log,
	}
}

func (s *Server) Run() error {
	if err := s.fanout.Start(); err != nil {
		return err
	}

	server := &http.Server{Addr: s.cfg.ServerAddr, Handler: s.Routes()}

	// Server run context
	serverCtx, serverStopCtx := context.WithCancel(context.Background())

	// Listen for syscall signals for process to interrupt/quit
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	go func() {
		<-sig

		// Shutdown signal with grace period
		shutdownCtx, cancelFunc := context.WithTimeout(serverCtx, s.cfg.ShutdownTimeout)
		defer cancelFunc()

		go func() {
			<-shutdownCtx.Done()
			if shutdownCtx.Err() == context.DeadlineExceeded {
				s.log.Fatal("graceful shutdown timed out, forcing exit")
			}
		}()

		// Stop accepting requests, then tear down the live channel.
		if err := server.Shutdown(shutdownCtx); err != nil {
			s.log.Fatal("server shutdown failed", zap.Error(err))
		}
		s.fanout.Shutdown()
		serverStopCtx()
	}()

	s.log.Info("chat service listening", zap.String("addr", s.cfg.ServerAddr))
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}

	<-serverCtx.Done()
	return nil
}
