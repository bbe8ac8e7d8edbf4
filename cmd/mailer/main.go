// Command mailer relays OTP emails published on the Kafka email topic to SMTP.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"identity-service/internal/client"
	"identity-service/internal/config"
	"identity-service/internal/notify"
	"identity-service/internal/util"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadMailerConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	util.Init(cfg.Environment, cfg.Logging.Level, cfg.Logging.Format)
	defer util.Sync()

	consumer := client.NewKafkaConsumer(cfg, cfg.Kafka.EmailTopic, cfg.Kafka.GroupID)
	defer func() {
		if err := consumer.Close(); err != nil {
			util.Error("Failed to close Kafka consumer", util.ErrorField(err))
		}
	}()

	relay := notify.NewRelay(consumer.Reader, notify.NewSMTPNotifier(cfg.SMTP), cfg.Notifier.SendTimeout)

	util.Info("Mailer started",
		util.String("topic", cfg.Kafka.EmailTopic),
		util.String("group_id", cfg.Kafka.GroupID))

	if err := relay.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		util.Error("Mailer stopped with error", util.ErrorField(err))
		os.Exit(1)
	}
	util.Info("Mailer stopped")
}
