package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cast"

	"github.com/OmerCohen55/VideoProject/internal/adapter/driven/callctl"
	"github.com/OmerCohen55/VideoProject/internal/adapter/driven/gateway/ws"
	"github.com/OmerCohen55/VideoProject/internal/adapter/driven/media/pion"
	"github.com/OmerCohen55/VideoProject/internal/core/domain"
	"github.com/OmerCohen55/VideoProject/internal/core/service"
)

type config struct {
	self      domain.UserHandle
	serverURL string
	wsURL     string
	stun      []string
	verbose   bool
}

func loadConfig() (config, error) {
	_ = godotenv.Load()

	cfg := config{
		self:      domain.NewUserHandle(os.Getenv("USER_EMAIL")),
		serverURL: os.Getenv("SERVER_URL"),
		wsURL:     os.Getenv("WS_URL"),
		verbose:   cast.ToBool(os.Getenv("VERBOSE")),
	}
	if cfg.self.IsZero() {
		return cfg, fmt.Errorf("USER_EMAIL is required")
	}
	if cfg.serverURL == "" {
		cfg.serverURL = "http://localhost:8080"
	}
	if cfg.wsURL == "" {
		cfg.wsURL = "ws" + strings.TrimPrefix(cfg.serverURL, "http") + "/ws"
	}
	if stun := os.Getenv("STUN_URL"); stun != "" {
		cfg.stun = strings.Split(stun, ",")
	}
	return cfg, nil
}

func main() {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	w := zerolog.ConsoleWriter{Out: os.Stderr}
	l := zerolog.New(w).With().Timestamp().Logger()
	if !cfg.verbose {
		l = l.Level(zerolog.WarnLevel)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := callctl.New(cfg.serverURL)

	keeper := service.NewKeeper(cfg.self, client, l)
	go keeper.Run(ctx)

	engine, err := pion.NewEngine(cfg.stun, l)
	if err != nil {
		l.Fatal().Err(err).Msg("media engine init failed")
	}

	gw, err := ws.Dial(ctx, cfg.wsURL, cfg.self, l)
	if err != nil {
		l.Fatal().Err(err).Msg("could not reach signaling server")
	}
	defer gw.Close()

	events := service.Events{
		PhaseChanged: func(p domain.Phase) {
			fmt.Printf("\n[%s]\n> ", p)
		},
		Ringing: func(peer domain.UserHandle) {
			fmt.Printf("\nincoming call from %s — accept/reject?\n> ", peer)
		},
		RemoteToggle: func(videoOff, audioOff bool) {
			fmt.Printf("\npeer camera off=%v muted=%v\n> ", videoOff, audioOff)
		},
		Notice: func(text string) {
			fmt.Printf("\n%s\n> ", text)
		},
	}

	orch := service.NewOrchestrator(cfg.self, gw, client, engine, keeper, events, l)

	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		if err := gw.Run(ctx, orch.HandleEnvelope); err != nil && ctx.Err() == nil {
			l.Error().Err(err).Msg("signaling connection lost")
		}
	}()

	fmt.Printf("signed in as %s — commands: call <email>, accept, reject, end, mute, video, online, quit\n", cfg.self)

	go prompt(ctx, orch, keeper, stop)

	select {
	case <-ctx.Done():
	case <-readDone:
	}

	// leave cleanly so the peer is not stuck ringing
	endCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	orch.End(endCtx)
}

func prompt(ctx context.Context, orch *service.Orchestrator, keeper *service.Keeper, quit func()) {
	scanner := bufio.NewScanner(os.Stdin)
	fmt.Print("> ")
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			fmt.Print("> ")
			continue
		}

		switch fields[0] {
		case "call":
			if len(fields) < 2 {
				fmt.Println("usage: call <email>")
				break
			}
			if err := orch.Dial(ctx, domain.NewUserHandle(fields[1])); err != nil {
				fmt.Println(err)
			}
		case "accept":
			if err := orch.Accept(ctx); err != nil {
				fmt.Println(err)
			}
		case "reject":
			if err := orch.Reject(ctx); err != nil {
				fmt.Println(err)
			}
		case "end":
			orch.End(ctx)
		case "mute":
			fmt.Printf("muted=%v\n", orch.ToggleAudio())
		case "video":
			fmt.Printf("camera off=%v\n", orch.ToggleVideo())
		case "online":
			for _, h := range keeper.Online() {
				fmt.Println(h)
			}
		case "quit":
			quit()
			return
		default:
			fmt.Println("commands: call <email>, accept, reject, end, mute, video, online, quit")
		}
		fmt.Print("> ")
	}
}
