package run

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/bwmarrin/discordgo"

	"github.com/prismbot/prism/cmd/prism/internal"
	"github.com/prismbot/prism/pkg/bot"
	"github.com/prismbot/prism/pkg/bridge"
	"github.com/prismbot/prism/pkg/discord"
	"github.com/prismbot/prism/pkg/keys"
	"github.com/prismbot/prism/pkg/logger"
	"github.com/prismbot/prism/pkg/notice"
	"github.com/prismbot/prism/pkg/providers/airkorea"
	"github.com/prismbot/prism/pkg/providers/kakao"
	"github.com/prismbot/prism/pkg/providers/pixiv"
	"github.com/prismbot/prism/pkg/providers/syosetu"
	"github.com/prismbot/prism/pkg/relay"
	"github.com/prismbot/prism/pkg/unfurl"
)

func runCmd(debug bool) error {
	cfg, err := internal.LoadConfig()
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if debug {
		logger.SetLevel(logger.DEBUG)
		fmt.Println("🔍 Debug mode enabled")
	} else {
		logger.SetLevel(logger.ParseLevel(cfg.Log.Level))
	}

	if err := os.MkdirAll(cfg.NoticeDir(), 0o755); err != nil {
		return fmt.Errorf("preparing data directory: %w", err)
	}

	privateKey, err := keys.EnsureKeyPair(cfg.PrivateKeyPath(), cfg.PublicKeyPath())
	if err != nil {
		return fmt.Errorf("error preparing key pair: %w", err)
	}
	publicPEM, err := keys.PublicKeyPEM(cfg.PublicKeyPath())
	if err != nil {
		return fmt.Errorf("error reading public key: %w", err)
	}

	store := bridge.NewStore(cfg.RegistryPath())
	state, err := store.Load()
	if err != nil {
		// A corrupt registry is fatal; replacing it silently would drop
		// every existing link.
		return err
	}

	session, err := discord.NewSession(cfg.Discord.Token)
	if err != nil {
		return err
	}

	provisioner := bridge.NewProvisioner(session, store, cfg.Discord.WebhookName)
	executor := relay.NewExecutor(session, provisioner)

	pixivSource := pixiv.FileSource{Path: cfg.PixivSessionPath()}
	illust := &unfurl.PixivIllustHandler{
		Client:  session,
		Source:  pixivSource,
		Ceiling: cfg.Relay.UploadCeilingBytes,
	}
	user := &unfurl.PixivUserHandler{Client: session, Source: pixivSource}
	novel := &unfurl.SyosetuHandler{Relay: executor, Source: syosetu.NewClient()}

	// Illustration routes must shadow profile routes on the shared pixiv
	// hosts; keep this registration order.
	dispatcher := unfurl.NewDispatcher()
	dispatcher.Register(illust)
	dispatcher.Register(user)
	dispatcher.Register(novel)

	var kakaoClient *kakao.Client
	var airClient *airkorea.Client
	if cfg.Providers.Kakao.RESTKey != "" {
		kakaoClient = kakao.NewClient(cfg.Providers.Kakao.RESTKey)
		airClient = airkorea.NewClient()
	} else {
		logger.InfoC("run", "No kakao key configured, air-quality command disabled")
	}

	b := bot.New(bot.Options{
		Config:       cfg,
		Client:       session,
		Store:        store,
		State:        state,
		Relay:        executor,
		Dispatcher:   dispatcher,
		Notices:      notice.NewRunner(session, cfg.NoticeDir()),
		PrivateKey:   privateKey,
		PublicKeyPEM: publicPEM,
		Illust:       illust,
		User:         user,
		Kakao:        kakaoClient,
		Air:          airClient,
		BotUserID:    session.BotUserID,
	})

	session.AddHandler(func(_ *discordgo.Session, _ *discordgo.Ready) {
		logger.InfoC("run", "Gateway session ready")
		b.HandleReady(context.Background())
	})
	session.AddHandler(func(_ *discordgo.Session, m *discordgo.MessageCreate) {
		b.HandleMessage(context.Background(), m.Message)
	})

	if err := session.Open(); err != nil {
		return fmt.Errorf("error connecting to Discord: %w", err)
	}
	defer session.Close()

	fmt.Println("Prism is running. Press Ctrl+C to exit.")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	logger.InfoC("run", "Shutting down")
	return nil
}
