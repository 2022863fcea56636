package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/bassamadnan/mailsight/analyze"
	"github.com/bassamadnan/mailsight/auth"
	"github.com/bassamadnan/mailsight/config"
	"github.com/bassamadnan/mailsight/controller"
	"github.com/bassamadnan/mailsight/gmail"
	"github.com/bassamadnan/mailsight/imapbox"
	"github.com/bassamadnan/mailsight/lazy"
	"github.com/bassamadnan/mailsight/mail"
	"github.com/bassamadnan/mailsight/preview"
	"github.com/bassamadnan/mailsight/textnorm"
	"github.com/bassamadnan/mailsight/tui"
	"github.com/bassamadnan/mailsight/wordcloud"
)

func main() {
	// A missing .env is fine; variables may come from the shell.
	_ = godotenv.Load()

	configPath := config.DefaultPath
	if p := os.Getenv("MAILSIGHT_CONFIG"); p != "" {
		configPath = p
	}
	cfgManager, err := config.NewManager(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	cfg := cfgManager.Get()

	logFile, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0660)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open log file: %v\n", err)
		os.Exit(1)
	}
	defer logFile.Close()
	logger := zerolog.New(logFile).With().Timestamp().Logger()
	logger.Info().Str("config", cfgManager.Path()).Msg("application starting")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info().Msg("shutdown signal received, cancelling context")
		cancel()
	}()

	// The consent flow runs inside a command of the program, so the program
	// exists by the time the URL is published.
	var program *tea.Program
	prompt := func(authURL string) {
		if program != nil {
			program.Send(tui.AuthURLMsg{URL: authURL})
		}
	}

	session, reject, providerName, err := newSession(cfg, prompt, logger)
	if err != nil {
		logger.Error().Err(err).Msg("mail session setup failed")
		fmt.Fprintf(os.Stderr, "Failed to set up %s: %v\n", cfg.Mail.Provider, err)
		os.Exit(1)
	}

	normalizer := textnorm.New(textnorm.English())
	renderer := wordcloud.New(normalizer, wordcloud.Options{
		Width:    cfg.WordCloud.Width,
		Height:   cfg.WordCloud.Height,
		MaxWords: cfg.WordCloud.MaxWords,
	}, logger)

	analyzer := analyze.New(newCompleter(cfg.LLM, logger), analyze.Options{
		MaxTokens:            cfg.LLM.MaxTokens,
		SummaryTemperature:   cfg.LLM.SummaryTemperature,
		SentimentTemperature: cfg.LLM.SentimentTemperature,
	}, logger)

	ctrl := controller.New(controller.Deps{
		Session:  session,
		Renderer: renderer,
		Analyzer: analyzer,
		Limits: controller.Limits{
			SpamLabel:  cfg.Mail.SpamLabel,
			SpamMax:    cfg.Mail.SpamMax,
			InboxLabel: cfg.Mail.InboxLabel,
			InboxMax:   cfg.Mail.InboxMax,
		},
		CloudOutput:  cfg.WordCloud.Output,
		OnInvalidate: reject,
		Log:          logger,
	})

	program = tea.NewProgram(
		tui.NewModel(ctx, ctrl, providerName, logger),
		tea.WithAltScreen(),
		tea.WithContext(ctx),
	)
	if _, err := program.Run(); err != nil {
		logger.Error().Err(err).Msg("program stopped with error")
		fmt.Fprintf(os.Stderr, "Error running mailsight: %v\n", err)
		os.Exit(1)
	}
	logger.Info().Msg("program stopped, exiting")
}

// newSession wires the configured mail backend behind a lazily built,
// invalidatable handle. reject discards a credential the server refused.
func newSession(cfg config.Config, prompt func(string), logger zerolog.Logger) (*lazy.Value[mail.Provider], func(), string, error) {
	switch cfg.Mail.Provider {
	case "imap":
		ring, err := auth.OpenKeyring(cfg.Auth.KeyringService)
		if err != nil {
			logger.Warn().Err(err).Msg("keyring unavailable, IMAP password must come from the environment")
		}
		session := lazy.New(func(ctx context.Context) (mail.Provider, error) {
			password, err := imapbox.LookupPassword(cfg.IMAP.PasswordEnv, ring)
			if err != nil {
				return nil, err
			}
			client, err := imapbox.Dial(ctx, imapbox.Options{
				Host:      cfg.IMAP.Host,
				Port:      cfg.IMAP.Port,
				Username:  cfg.IMAP.Username,
				Password:  password,
				TLS:       cfg.IMAP.TLS,
				Mailboxes: cfg.IMAP.Mailboxes,
			}, logger)
			if err != nil {
				return nil, err
			}
			return client, nil
		})
		return session, func() {}, "IMAP (" + cfg.IMAP.Host + ")", nil

	default:
		storage, err := tokenStorage(cfg.Auth)
		if err != nil {
			return nil, nil, "", err
		}
		flow := auth.NewGoogleFlow(auth.FlowOptions{
			CredentialsFile: cfg.Auth.CredentialsFile,
			CallbackPort:    cfg.Auth.CallbackPort,
			Timeout:         cfg.Auth.ConsentTimeout,
			Prompt:          prompt,
			OpenURL:         preview.Open,
			Log:             logger,
		})
		store := auth.NewStore(storage, flow, logger)
		session := lazy.New(func(ctx context.Context) (mail.Provider, error) {
			httpClient, err := store.Client(ctx)
			if err != nil {
				return nil, err
			}
			client, err := gmail.NewClient(ctx, httpClient, logger)
			if err != nil {
				return nil, err
			}
			return client, nil
		})
		return session, store.Reject, "Gmail", nil
	}
}

func tokenStorage(cfg config.AuthConfig) (auth.TokenStorage, error) {
	if cfg.TokenStore == "keyring" {
		ring, err := auth.OpenKeyring(cfg.KeyringService)
		if err != nil {
			return nil, err
		}
		return auth.NewKeyringStorage(ring), nil
	}
	return auth.FileStorage{Path: cfg.TokenFile}, nil
}

// newCompleter builds the configured language-model backend. A backend that
// cannot be built only disables the analysis.
func newCompleter(cfg config.LLMConfig, logger zerolog.Logger) analyze.Completer {
	var (
		completer analyze.Completer
		err       error
	)
	switch cfg.Provider {
	case "ollama":
		completer, err = analyze.NewOllama(cfg.Model, cfg.BaseURL)
	default:
		completer, err = analyze.NewOpenAI(os.Getenv("OPENAI_API_KEY"), cfg.Model, cfg.BaseURL)
	}
	if err != nil {
		logger.Warn().Err(err).Str("provider", cfg.Provider).Msg("language model unavailable")
		return analyze.Unavailable(err)
	}
	return completer
}
