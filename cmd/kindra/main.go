package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kindra-app/kindra-client/config"
	"github.com/kindra-app/kindra-client/internal/api"
	"github.com/kindra-app/kindra-client/internal/chat"
	"github.com/kindra-app/kindra-client/internal/guard"
	"github.com/kindra-app/kindra-client/internal/profile"
	"github.com/kindra-app/kindra-client/internal/session"
	"github.com/kindra-app/kindra-client/internal/tokenstore"
	"github.com/kindra-app/kindra-client/pkg/logger"
)

const usage = `kindra - Kindra client

Usage:
  kindra register  --email <email> [--phone <phone>] --password <pw>
  kindra login     --email <email> [--phone <phone>] --password <pw>
  kindra logout
  kindra refresh
  kindra whoami
  kindra profile
  kindra set-info  [--first ...] [--last ...] [--age N] [--location ...]
  kindra picture   (--file <path> | --url <url>)
  kindra peer      <user-id>
  kindra mode      [leisure|romantic|collaborative]
  kindra chat      <conversation-id> [--send <message>]
`

// app bundles the wired client core
type app struct {
	cfg      *config.Config
	client   *api.Client
	sessions *session.Manager
	profiles *profile.Cache
	peers    *profile.PeerCache
	modes    *profile.ModeState
	gate     *guard.Guard
}

func buildApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	if err := logger.Initialize(logger.Config{
		Level:       cfg.Logging.Level,
		LogDir:      cfg.Logging.Dir,
		Environment: cfg.AppEnv,
	}); err != nil {
		return nil, err
	}

	var store tokenstore.Store
	switch cfg.TokenStore.Backend {
	case config.TokenStoreKeyring:
		store, err = tokenstore.NewKeyring(cfg.TokenStore.Service)
	case config.TokenStoreMemory:
		store, err = tokenstore.NewMemory(), nil
	default:
		store, err = tokenstore.NewFile(cfg.TokenStore.StateDir)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open token store: %w", err)
	}

	client := api.New(cfg.API.BaseURL)
	sessions := session.NewManager(client, store)
	client.SetTokenSource(sessions)
	if cfg.API.AutoRefresh {
		client.SetUnauthorizedHook(sessions.UnauthorizedHook)
	}

	profiles := profile.NewCache(client, sessions)

	return &app{
		cfg:      cfg,
		client:   client,
		sessions: sessions,
		profiles: profiles,
		peers:    profile.NewPeerCache(client, 10*time.Minute),
		modes:    profile.NewModeState(),
		gate:     guard.New(sessions),
	}, nil
}

// requireAuth enforces the route guard for protected commands
func (a *app) requireAuth(route string) bool {
	decision := a.gate.Check(route)
	if !decision.Allowed {
		fmt.Fprintf(os.Stderr, "Not logged in. Run 'kindra login' first (redirect: %s)\n", decision.Redirect)
		return false
	}
	return true
}

func (a *app) printProfile(p profile.Profile) {
	fmt.Printf("%-14s %s\n", "Name:", p.DisplayName)
	fmt.Printf("%-14s %s\n", "Email:", p.Email)
	if p.Age > 0 {
		fmt.Printf("%-14s %d\n", "Age:", p.Age)
	}
	fmt.Printf("%-14s %s\n", "Location:", p.Location)
	fmt.Printf("%-14s %s\n", "Relationship:", p.Relationship)
	fmt.Printf("%-14s %s\n", "Gender:", p.Gender)
	fmt.Printf("%-14s %s\n", "About:", p.About)
	fmt.Printf("%-14s %s\n", "Picture:", p.ProfileImg)
}

func credentialFlags(fs *flag.FlagSet) (email, phone, password *string) {
	email = fs.String("email", "", "account email")
	phone = fs.String("phone", "", "account phone in E.164 format")
	password = fs.String("password", "", "account password")
	return
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	a, err := buildApp()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Startup failed: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx := context.Background()
	command := os.Args[1]
	args := os.Args[2:]

	switch command {
	case "register", "login":
		fs := flag.NewFlagSet(command, flag.ExitOnError)
		email, phone, password := credentialFlags(fs)
		_ = fs.Parse(args) //nolint:errcheck // ExitOnError

		creds := session.Credentials{Email: *email, Phone: *phone, Password: *password}
		if command == "register" {
			err = a.sessions.Register(ctx, creds)
		} else {
			err = a.sessions.Login(ctx, creds)
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s\n", a.sessions.Err())
			os.Exit(1)
		}
		fmt.Println("Logged in.")

	case "logout":
		a.sessions.Logout()
		fmt.Println("Logged out.")

	case "refresh":
		if !a.requireAuth("/") {
			os.Exit(1)
		}
		if err := a.sessions.RefreshAccessToken(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "%s\n", a.sessions.Err())
			os.Exit(1)
		}
		fmt.Println("Session refreshed.")

	case "whoami":
		if !a.requireAuth("/") {
			os.Exit(1)
		}
		a.profiles.Load(ctx)
		p := a.profiles.Current()
		fmt.Printf("%s <%s>\n", p.DisplayName, p.Email)
		if a.sessions.ExpiresSoon(5 * time.Minute) {
			fmt.Println("(access token expires soon; run 'kindra refresh')")
		}

	case "profile":
		if !a.requireAuth(a.modes.Current().Route()) {
			os.Exit(1)
		}
		a.profiles.Load(ctx)
		a.printProfile(a.profiles.Current())

	case "set-info":
		if !a.requireAuth("/settings") {
			os.Exit(1)
		}
		fs := flag.NewFlagSet("set-info", flag.ExitOnError)
		first := fs.String("first", "", "first name")
		middle := fs.String("middle", "", "middle name")
		last := fs.String("last", "", "last name")
		nickname := fs.String("nickname", "", "nickname")
		age := fs.Int("age", 0, "age")
		location := fs.String("location", "", "location")
		relationship := fs.String("relationship", "", "relationship status")
		gender := fs.String("gender", "", "gender")
		_ = fs.Parse(args) //nolint:errcheck // ExitOnError

		update := profile.PersonalInfoUpdate{
			FirstName:          *first,
			MiddleName:         *middle,
			LastName:           *last,
			Nickname:           *nickname,
			Age:                *age,
			Location:           *location,
			RelationshipStatus: *relationship,
			Gender:             *gender,
		}
		if err := a.profiles.UpdatePersonalInfo(ctx, update); err != nil {
			fmt.Fprintf(os.Stderr, "Update failed: %v\n", err)
			os.Exit(1)
		}
		a.profiles.Refresh(ctx)
		a.printProfile(a.profiles.Current())

	case "picture":
		if !a.requireAuth("/settings") {
			os.Exit(1)
		}
		fs := flag.NewFlagSet("picture", flag.ExitOnError)
		file := fs.String("file", "", "path of an image to upload")
		url := fs.String("url", "", "URL of an already-hosted image")
		_ = fs.Parse(args) //nolint:errcheck // ExitOnError

		switch {
		case *file != "":
			f, err := os.Open(*file)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Cannot open %s: %v\n", *file, err)
				os.Exit(1)
			}
			defer f.Close() //nolint:errcheck
			if err := a.profiles.UploadPicture(ctx, *file, f); err != nil {
				fmt.Fprintf(os.Stderr, "Upload failed: %v\n", err)
				os.Exit(1)
			}
		case *url != "":
			if err := a.profiles.AddPictureURL(ctx, *url); err != nil {
				fmt.Fprintf(os.Stderr, "Adding picture failed: %v\n", err)
				os.Exit(1)
			}
		default:
			fmt.Fprintln(os.Stderr, "picture requires --file or --url")
			os.Exit(2)
		}
		a.profiles.Refresh(ctx)
		fmt.Println("Picture updated.")

	case "peer":
		if !a.requireAuth("/browse") {
			os.Exit(1)
		}
		if len(args) < 1 {
			fmt.Fprintln(os.Stderr, "peer requires a user ID")
			os.Exit(2)
		}
		p, err := a.peers.Get(ctx, args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Could not load profile: %v\n", err)
			os.Exit(1)
		}
		a.printProfile(p)

	case "mode":
		if len(args) > 0 {
			a.modes.Set(profile.Mode(args[0]))
		}
		mode := a.modes.Current()
		fmt.Printf("%s (%s)\n", mode, mode.Route())

	case "chat":
		if !a.requireAuth("/chat") {
			os.Exit(1)
		}
		if len(args) < 1 {
			fmt.Fprintln(os.Stderr, "chat requires a conversation ID")
			os.Exit(2)
		}
		conversationID := args[0]
		fs := flag.NewFlagSet("chat", flag.ExitOnError)
		send := fs.String("send", "", "message to send before watching")
		_ = fs.Parse(args[1:]) //nolint:errcheck // ExitOnError

		runChat(ctx, a, conversationID, *send)

	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
}

// runChat watches a conversation until interrupted
func runChat(ctx context.Context, a *app, conversationID, send string) {
	poller := chat.NewPoller(a.client, time.Duration(a.cfg.Chat.PollIntervalSeconds)*time.Second)
	poller.OnUpdate(func(messages []chat.Message) {
		fmt.Print("\033[H\033[2J") // clear screen between polls
		for _, m := range messages {
			marker := ""
			if m.Pending {
				marker = " (sending...)"
			}
			fmt.Printf("[%s] %s: %s%s\n", m.SentAt.Format("15:04"), m.SenderID, m.Body, marker)
		}
	})

	watchCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	poller.Watch(watchCtx, conversationID)

	if send != "" {
		p := a.profiles.Current()
		if err := poller.Send(watchCtx, conversationID, p.ID, send); err != nil {
			fmt.Fprintf(os.Stderr, "Send failed: %v\n", err)
		}
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig
	poller.Stop()
}
