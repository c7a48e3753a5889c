// notification-worker runs the outbox dispatcher on its own, for deployments
// where the API instances should not publish.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mmdatafocus/shop_backend/config"
	"github.com/mmdatafocus/shop_backend/workflow"
	"github.com/sirupsen/logrus"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized")
		os.Exit(1)
	}
	logger := config.GetLogger()

	var publisher workflow.NotificationPublisher = workflow.LogNotificationPublisher{Logger: logger}
	if config.PubSubConfigured() {
		publisher = config.NewPubSubNotificationPublisher()
	}
	dispatcher := workflow.NewOutboxDispatcher(db, logger, publisher)
	logger.WithFields(logrus.Fields{
		"field":         "notification-worker",
		"dispatcher_id": dispatcher.DispatcherID,
	}).Info("dispatcher started")
	dispatcher.Run(ctx)
}
