package main

import (
	"context"
	_ "embed"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/google/uuid"
	"github.com/tinywideclouds/go-fcm-sender/pkg/fcm"
	"github.com/tinywideclouds/go-fcm-sender/pkg/message"
	"github.com/tinywideclouds/go-fcm-sender/sender"
	"github.com/tinywideclouds/go-fcm-sender/sender/config"
	"gopkg.in/yaml.v3"
)

//go:embed local.yaml
var configFile []byte

type cliArgs struct {
	deviceToken    string
	topic          string
	condition      string
	keyPath        string
	configPath     string
	title          string
	body           string
	analyticsLabel string
	dryRun         bool
}

func parseArgs(args []string) (*cliArgs, error) {
	fs := flag.NewFlagSet("fcmsend", flag.ContinueOnError)
	a := &cliArgs{}
	fs.StringVar(&a.deviceToken, "device-token", "", "registration token of the target device")
	fs.StringVar(&a.topic, "topic", "", "topic to publish to")
	fs.StringVar(&a.condition, "condition", "", "topic condition, e.g. \"'a' in topics\"")
	fs.StringVar(&a.keyPath, "service-account-key-path", "", "service account key file")
	fs.StringVar(&a.configPath, "config", "", "YAML config file (defaults to the embedded local.yaml)")
	fs.StringVar(&a.title, "title", "I'm high", "notification title")
	fs.StringVar(&a.body, "body", "", "notification body (defaults to the current time)")
	fs.StringVar(&a.analyticsLabel, "analytics-label", "analytics_label", "FCM analytics label")
	fs.BoolVar(&a.dryRun, "dry-run", false, "validate only, do not deliver")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	set := 0
	for _, v := range []string{a.deviceToken, a.topic, a.condition} {
		if v != "" {
			set++
		}
	}
	if set != 1 {
		return nil, errors.New("exactly one of -device-token, -topic or -condition is required")
	}
	return a, nil
}

func (a *cliArgs) target() message.Target {
	switch {
	case a.topic != "":
		return message.Topic(a.topic)
	case a.condition != "":
		return message.Condition(a.condition)
	default:
		return message.Token(a.deviceToken)
	}
}

func buildMessage(a *cliArgs, sendID string, now time.Time) (*message.Message, error) {
	body := a.body
	if body == "" {
		body = fmt.Sprintf("it's %s", now.UTC().Format(time.RFC3339))
	}

	data, err := message.DataFrom(struct {
		Key    string `json:"key"`
		SendID string `json:"send_id"`
	}{Key: "value", SendID: sendID})
	if err != nil {
		return nil, err
	}

	return &message.Message{
		Target: a.target(),
		Data:   data,
		Notification: &message.Notification{
			Title: a.title,
			Body:  body,
		},
		FCMOptions: &message.FCMOptions{AnalyticsLabel: a.analyticsLabel},
		Android: &message.AndroidConfig{
			Priority: message.AndroidPriorityHigh,
			Notification: &message.AndroidNotification{
				Title: "I'm Android high",
				Body:  "Hi Android, " + body,
			},
		},
	}, nil
}

func loadConfig(a *cliArgs, logger *slog.Logger) (*config.Config, error) {
	raw := configFile
	if a.configPath != "" {
		var err error
		raw, err = os.ReadFile(a.configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var yamlCfg config.YamlConfig
	if err := yaml.Unmarshal(raw, &yamlCfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal yaml config: %w", err)
	}
	baseCfg, err := config.NewConfigFromYaml(&yamlCfg, logger)
	if err != nil {
		return nil, err
	}

	// Flags beat the file; env overrides apply last.
	if a.keyPath != "" {
		baseCfg.CredentialsFile = a.keyPath
	}
	if a.dryRun {
		baseCfg.DryRun = true
	}
	return config.UpdateConfigWithEnvOverrides(baseCfg, logger)
}

func main() {
	var logLevel slog.Level
	switch os.Getenv("LOG_LEVEL") {
	case "debug", "DEBUG":
		logLevel = slog.LevelDebug
	case "info", "INFO":
		logLevel = slog.LevelInfo
	case "warn", "WARN":
		logLevel = slog.LevelWarn
	case "error", "ERROR":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})).With("service", "fcmsend")
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	args, err := parseArgs(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		logger.Error("Invalid arguments", "err", err)
		os.Exit(2)
	}

	// --- Config Loading ---
	cfg, err := loadConfig(args, logger)
	if err != nil {
		logger.Error("Config failed", "err", err)
		os.Exit(1)
	}

	// --- Sender ---
	s, err := sender.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("Sender creation failed", "err", err)
		os.Exit(1)
	}

	err = run(ctx, s, args, cfg.DryRun, logger)
	_ = s.Close()
	if err != nil {
		os.Exit(1)
	}
}

// run builds and sends one message, logging the outcome.
func run(ctx context.Context, s fcm.Sender, a *cliArgs, dryRun bool, logger *slog.Logger) error {
	sendID := uuid.NewString()
	msg, err := buildMessage(a, sendID, time.Now())
	if err != nil {
		logger.Error("Failed to build message", "err", err)
		return err
	}

	resp, err := s.Send(ctx, msg)
	if err != nil {
		var fe *fcm.Error
		if errors.As(err, &fe) {
			logger.Error("Send failed",
				"send_id", sendID,
				"kind", fe.Kind.String(),
				"status", fe.Status,
				"error_code", fe.ErrorCode,
				"retryable", fe.Retryable(),
				"retry_after", fe.RetryAfter,
				"err", err,
			)
		} else {
			logger.Error("Send failed", "send_id", sendID, "err", err)
		}
		return err
	}

	logger.Info("Sent", "send_id", sendID, "name", resp.Name, "dry_run", dryRun)
	return nil
}
