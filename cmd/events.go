/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/portfolio-cms/apiserver/config"
	"github.com/portfolio-cms/apiserver/internal/logutil"
	"github.com/portfolio-cms/apiserver/internal/mq"
	"github.com/portfolio-cms/apiserver/types"
	"github.com/spf13/cobra"
)

// eventsCmd groups commands for content change events.
var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Inspect content change events",
}

var eventsTailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Print content events from the configured broker until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()
		logger := logutil.New(cfg.Log, os.Stderr)

		only := make([]types.EventType, 0, len(tailTypes))
		for _, t := range tailTypes {
			only = append(only, types.EventType(t))
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		ctx = logutil.WithLogger(ctx, logger)

		events, err := mq.Open(ctx, cfg.MQ)
		if err != nil {
			return err
		}
		if events == nil {
			return errors.New("MQ_BACKEND is not configured")
		}
		defer func() {
			_ = events.Close()
		}()

		logger.Info().Str("channel", events.Channel()).Strs("types", tailTypes).Msg("tailing content events")
		return events.Tail(ctx, func(_ context.Context, d mq.Delivery) {
			logger.Info().
				Str("message_id", d.MessageID).
				Str("type", string(d.Event.Type)).
				Int("resource_id", d.Event.ResourceID).
				Time("occurred_at", d.Event.OccurredAt).
				Msg("content event")
		}, only...)
	},
}

var tailTypes []string

func init() {
	rootCmd.AddCommand(eventsCmd)
	eventsCmd.AddCommand(eventsTailCmd)

	eventsTailCmd.Flags().StringSliceVar(&tailTypes, "type", nil, "only print these event types, e.g. blog.created,photo.deleted")
}
