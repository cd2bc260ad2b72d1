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

	"github.com/Netflix/go-env"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"

	"homechat/auth"
	"homechat/client"
	"homechat/domain/event"
)

// Exit codes for the client application.
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

// Config defines the client-side environment variables.
type Config struct {
	ServerURL     string        `env:"CHAT_SERVER_URL,default=http://localhost:8080"`
	UserID        string        `env:"CHAT_USER_ID,required=true"`
	PeerID        string        `env:"CHAT_PEER_ID,required=true"`
	ListingID     string        `env:"CHAT_LISTING_ID"`
	ListingName   string        `env:"CHAT_LISTING_NAME"`
	Token         string        `env:"CHAT_TOKEN"`
	TokenDuration time.Duration `env:"CHAT_TOKEN_DURATION,default=24h"`
	LogLevel      string        `env:"LOG_LEVEL,required=true"`
}

func main() {
	// The main function manages the OS exit code based on run()'s return.
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Client error: %v\n", err)
	}
	os.Exit(code)
}

// run handles the session lifecycle, configuration loading, and the
// interactive send loop.
func run() (int, error) {
	// 1. Load configuration from environment variables.
	_ = godotenv.Load()
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}

	log := logs.GetLoggerFromString(config.LogLevel)

	// Dev convenience: mint a token locally when none was provided.
	// Outside the lab the identity provider issues it.
	token := config.Token
	if token == "" {
		minted, err := auth.GenerateToken(config.UserID, config.TokenDuration)
		if err != nil {
			return exitConfig, fmt.Errorf("token error: %w", err)
		}
		token = minted
	}

	// 2. Setup context to handle termination signals (Ctrl+C).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Establish the session against the relay.
	session := client.NewSession(client.Config{
		ServerURL:        config.ServerURL,
		Token:            token,
		UserID:           config.UserID,
		HandshakeRetries: 5,
		HandshakeBackoff: time.Second,
	}, log)
	session.OnEvent = func(e event.RelayEvent) {
		switch evt := e.(type) {
		case event.MessageReceive:
			fmt.Printf("[%s] %s\n", evt.From, evt.Body)
		case event.TypingIndicator:
			if evt.IsTyping {
				fmt.Printf("%s is typing...\n", evt.From)
			}
		case event.MessageRead:
			fmt.Printf("(read by %s)\n", evt.By)
		case event.PresenceDelta:
			state := "offline"
			if evt.Online {
				state = "online"
			}
			fmt.Printf("%s is now %s\n", evt.UserID, state)
		}
	}

	if err := session.Connect(ctx); err != nil {
		return exitRuntime, fmt.Errorf("could not connect to relay at %s: %w", config.ServerURL, err)
	}
	defer session.Close()

	if err := session.Open(ctx, config.PeerID, config.ListingID, config.ListingName); err != nil {
		return exitRuntime, fmt.Errorf("failed to open conversation: %w", err)
	}

	for _, m := range session.Messages() {
		fmt.Printf("[%s] %s\n", m.From, m.Body)
	}
	fmt.Printf(">>> Chatting with %s (Ctrl+C to quit)\n", config.PeerID)

	// 4. Interactive send loop; every line is one message.
	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	for {
		select {
		case <-ctx.Done():
			log.Info("Closing session...")
			return exitOK, nil
		case line, ok := <-lines:
			if !ok {
				return exitOK, nil
			}
			body := strings.TrimSpace(line)
			if body == "" {
				continue
			}
			session.Typing()
			if err := session.Send(ctx, body); err != nil {
				log.Warn("Send failed", "error", err)
			}
		}
	}
}
