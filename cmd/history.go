package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	historyrender "github.com/bnema/pttsync/internal/adapters/render/history"
	"github.com/bnema/pttsync/internal/application"
	"github.com/bnema/pttsync/internal/domain"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func newHistoryCmd(app *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect and reconcile the cached request history",
	}

	cmd.AddCommand(
		newHistoryListCmd(app),
		newHistoryAddCmd(app),
		newHistoryUpdateCmd(app),
		newHistorySyncCmd(app),
		newHistoryClearCmd(app),
	)

	return cmd
}

func newHistoryListCmd(app *app) *cobra.Command {
	var output historyOutput

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Show cached history, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cache, release, err := app.openHistoryCache(cmd.Context())
			if err != nil {
				return err
			}
			defer release()

			return writeHistoryOutput(cmd, app, cache, output)
		},
	}

	output.bindFlags(cmd)

	return cmd
}

func newHistoryAddCmd(app *app) *cobra.Command {
	var id string
	var status string
	var serviceGroup string
	var requester string
	var handler string

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Record a local request before the backend knows about it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			parsed, err := domain.ParseHistoryStatus(status)
			if err != nil {
				return err
			}
			if strings.TrimSpace(id) == "" {
				id = uuid.NewString()
			}

			cache, release, err := app.openHistoryCache(cmd.Context())
			if err != nil {
				return err
			}
			defer release()

			err = cache.AddLocalRequest(id, parsed,
				application.WithServiceGroup(serviceGroup),
				application.WithRequester(requester),
				application.WithHandler(handler),
			)
			if err != nil {
				return err
			}

			_, err = fmt.Fprintln(cmd.OutOrStdout(), id)
			return err
		},
	}

	cmd.Flags().StringVar(&id, "id", "", "Request ID (default: random UUID)")
	cmd.Flags().StringVar(&status, "status", string(domain.HistoryStatusPending), "Initial status (pending|in_progress|completed|cancelled)")
	cmd.Flags().StringVar(&serviceGroup, "group", "", "Service group display name")
	cmd.Flags().StringVar(&requester, "requester", "", "Requester display name")
	cmd.Flags().StringVar(&handler, "handler", "", "Handler display name")

	return cmd
}

func newHistoryUpdateCmd(app *app) *cobra.Command {
	var status string

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Change the status of a cached request locally",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			parsed, err := domain.ParseHistoryStatus(status)
			if err != nil {
				return err
			}

			cache, release, err := app.openHistoryCache(cmd.Context())
			if err != nil {
				return err
			}
			defer release()

			id := strings.TrimSpace(args[0])
			if err := requireCached(cmd.Context(), cache, id); err != nil {
				return err
			}

			return cache.UpdateLocalStatus(id, parsed)
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "New status (pending|in_progress|completed|cancelled)")
	_ = cmd.MarkFlagRequired("status")

	return cmd
}

func newHistorySyncCmd(app *app) *cobra.Command {
	var output historyOutput

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Fetch the backend history and merge it into the cache",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := app.backendClient(cmd.Context())
			if err != nil {
				return err
			}

			cache, release, err := app.openHistoryCache(cmd.Context())
			if err != nil {
				return err
			}
			defer release()

			fetch := func(ctx context.Context) (string, error) {
				items, err := client.FetchHistory(ctx)
				if err != nil {
					return "", fmt.Errorf("fetch backend history: %w", err)
				}
				if err := cache.SyncWithBackend(items); err != nil {
					return "", err
				}
				return fmt.Sprintf("merged %d backend entries", len(items)), nil
			}

			if output.json {
				_, err = fetch(cmd.Context())
			} else {
				err = runWithSpinner(cmd.Context(), cmd.ErrOrStderr(), "Fetching history...", fetch)
			}
			if err != nil {
				return err
			}

			return writeHistoryOutput(cmd, app, cache, output)
		},
	}

	output.bindFlags(cmd)

	return cmd
}

func newHistoryClearCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Drop every cached history record",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cache, release, err := app.openHistoryCache(cmd.Context())
			if err != nil {
				return err
			}
			defer release()

			return cache.Clear()
		},
	}
}

func requireCached(ctx context.Context, cache *application.HistoryCache, id string) error {
	items, err := cache.Items(ctx)
	if err != nil {
		return err
	}
	for _, item := range items {
		if item.ID == id {
			return nil
		}
	}
	return fmt.Errorf("%w: %s", domain.ErrHistoryRecordNotFound, id)
}

type historyOutput struct {
	json bool
	// raw includes the reconciliation bookkeeping in JSON output.
	raw      bool
	statuses []string
	unsynced bool
}

func (o *historyOutput) bindFlags(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&o.json, "json", false, "Render JSON output")
	cmd.Flags().BoolVar(&o.raw, "raw", false, "With --json, include needs_sync and locally_modified_at")
	cmd.Flags().StringSliceVar(&o.statuses, "status", nil, "Only show these statuses (pending|in_progress|completed|cancelled)")
	cmd.Flags().BoolVar(&o.unsynced, "unsynced", false, "Only show records with local changes the backend has not confirmed")
}

func (o historyOutput) renderOptions(app *app) (historyrender.RenderOptions, error) {
	opts := historyrender.RenderOptions{Now: app.clock.Now(), UnsyncedOnly: o.unsynced}
	for _, raw := range o.statuses {
		status, err := domain.ParseHistoryStatus(raw)
		if err != nil {
			return historyrender.RenderOptions{}, err
		}
		opts.Statuses = append(opts.Statuses, status)
	}
	return opts, nil
}

func writeHistoryOutput(cmd *cobra.Command, app *app, cache *application.HistoryCache, out historyOutput) error {
	opts, err := out.renderOptions(app)
	if err != nil {
		return err
	}

	records, err := cache.Records(cmd.Context())
	if err != nil {
		return err
	}

	if out.json {
		kept := make([]domain.HistoryRecord, 0, len(records))
		for _, record := range records {
			if opts.Keep(record) {
				kept = append(kept, record)
			}
		}

		var payload any = kept
		if !out.raw {
			items := make([]domain.HistoryItem, 0, len(kept))
			for _, record := range kept {
				items = append(items, record.Item())
			}
			payload = items
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(payload)
	}

	rendered, err := app.historyRenderer(records, opts)
	if err != nil {
		return fmt.Errorf("render history: %w", err)
	}

	_, err = fmt.Fprintln(cmd.OutOrStdout(), rendered)
	return err
}
