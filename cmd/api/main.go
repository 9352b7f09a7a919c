package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/malekai-gauntlet/gymdesk/internal/assist"
	"github.com/malekai-gauntlet/gymdesk/internal/config"
	"github.com/malekai-gauntlet/gymdesk/internal/database"
	"github.com/malekai-gauntlet/gymdesk/internal/events"
	"github.com/malekai-gauntlet/gymdesk/internal/handlers"
	"github.com/malekai-gauntlet/gymdesk/internal/mailer"
	"github.com/malekai-gauntlet/gymdesk/internal/repository/postgres"
	"github.com/malekai-gauntlet/gymdesk/internal/router"
	"github.com/malekai-gauntlet/gymdesk/internal/service"
	"github.com/malekai-gauntlet/gymdesk/internal/ticketlist"
	"github.com/malekai-gauntlet/gymdesk/pkg/logger"
)

func main() {
	// config + logger
	cfg := config.Load()
	l := logger.New(cfg.Env)

	// db
	pool, err := database.Open(context.Background(), cfg)
	if err != nil {
		l.Fatal().Err(err).Msg("db connect failed")
	}
	defer pool.Close()
	if err := database.CreateSchema(context.Background(), pool); err != nil {
		l.Fatal().Err(err).Msg("schema setup failed")
	}

	// stores + collaborators
	tickets := postgres.NewTicketRepo(pool, l)
	users := postgres.NewUserRepo(pool)
	mail := mailer.New(cfg.MailerURL, cfg.MailerKey)
	draft := assist.New(cfg.AssistURL, cfg.AssistKey)

	// session-scoped event bus + the dashboard's shared list view
	bus := events.NewBus()
	list := ticketlist.New(tickets, bus, l)
	listCtx, stopList := context.WithCancel(context.Background())
	if err := list.Start(listCtx); err != nil {
		l.Error().Err(err).Msg("change feed unavailable, list will refresh on demand")
	}

	auth := service.NewAuthService(users, cfg.SessionSecret)
	deps := router.Deps{
		Tickets: handlers.NewTicketHTTP(tickets, users, mail, draft, list, l),
		Auth:    handlers.NewAuthHTTP(auth, users),
	}
	r := router.New(l, cfg, deps)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       15 * time.Second,
		// No write timeout: /api/tickets/stream holds the response open.
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		l.Info().Str("addr", srv.Addr).Msg("api listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			l.Fatal().Err(err).Msg("server error")
		}
	}()

	// graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
	stopList()
	list.Close()
	l.Info().Msg("shutdown complete")
}
