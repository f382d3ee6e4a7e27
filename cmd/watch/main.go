package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/qs3c/betfaro_server/config"
	"github.com/qs3c/betfaro_server/internal/client"
	"github.com/qs3c/betfaro_server/internal/pkg/logger"
)

var (
	baseURL  = flag.String("url", "http://localhost:8080", "API base URL")
	mode     = flag.String("mode", "account", "account: follow the session's subscription; admin: follow the user list")
	search   = flag.String("search", "", "Admin mode: email or name filter")
	interval = flag.Duration("interval", 30*time.Second, "Admin mode: polling interval")
)

func main() {
	flag.Parse()

	zl, err := logger.New(config.LogConfig{Level: "info", Development: true})
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer zl.Sync()

	// 令牌来自托管身份服务，只从环境变量读取
	token := os.Getenv("BETFARO_TOKEN")
	if token == "" {
		zl.Fatal("BETFARO_TOKEN is required")
	}
	api := client.New(*baseURL, client.WithToken(token))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch *mode {
	case "account":
		err = watchAccount(ctx, api, zl, os.Stdout)
	case "admin":
		err = watchAdmin(ctx, api, zl, os.Stdout)
	default:
		err = fmt.Errorf("unknown mode %q", *mode)
	}
	if err != nil {
		zl.Fatal("watch failed", zap.Error(err))
	}
}

func watchAccount(ctx context.Context, api *client.Client, zl *zap.Logger, out io.Writer) error {
	w := client.NewSubscriptionWatcher(api,
		client.WithWatcherLogger(zl.Named("watcher")),
		client.WithOnChange(func(s client.State) { printState(out, s) }),
	)
	w.Start(ctx)
	defer w.Stop()

	if err := w.State().Err; err != nil {
		return err
	}
	<-ctx.Done()
	return nil
}

func printState(out io.Writer, s client.State) {
	if s.Loading {
		return
	}
	if s.Err != nil {
		fmt.Fprintf(out, "error: %v\n", s.Err)
		return
	}
	email := "-"
	if s.Profile != nil {
		email = s.Profile.Email
	}
	fmt.Fprintf(out, "%s plan=%s daily_limit=%d\n", email, s.EffectivePlan, s.DailyLimit)
}

func watchAdmin(ctx context.Context, api *client.Client, zl *zap.Logger, out io.Writer) error {
	p := client.NewAdminPanel(api, *interval, zl.Named("admin"))
	if err := p.Start(ctx); err != nil {
		return err
	}
	defer p.Stop()
	if *search != "" {
		p.SetSearch(*search)
	}

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	seen := 0
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if n := p.Refreshes(); n != seen {
				seen = n
				printUsers(out, p)
			}
		}
	}
}

func printUsers(out io.Writer, p *client.AdminPanel) {
	if err := p.Err(); err != nil {
		fmt.Fprintf(out, "error: %v\n", err)
		return
	}
	users := p.Users()
	if len(users) == 0 {
		fmt.Fprintln(out, "no users")
		return
	}
	fmt.Fprintf(out, "%d users\n", p.Total())
	for _, u := range users {
		fmt.Fprintf(out, "  %s %s plan=%s\n", u.ID, u.Email, u.EffectivePlan)
	}
}
