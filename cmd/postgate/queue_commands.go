package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"postgate/internal/api"
	"postgate/internal/decision"
	"postgate/internal/logging"
	"postgate/internal/producer"
	"postgate/internal/queue"
	"postgate/internal/services/freepik"
	"postgate/internal/services/textgen"
)

const descriptionWidth = 48

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and manage the approval queue",
	}

	queueCmd.AddCommand(newQueueListCommand(ctx))
	queueCmd.AddCommand(newQueueStatsCommand(ctx))
	queueCmd.AddCommand(newQueueShowCommand(ctx))
	queueCmd.AddCommand(newQueueDecideCommand(ctx, queue.DecisionApprove))
	queueCmd.AddCommand(newQueueDecideCommand(ctx, queue.DecisionReject))
	queueCmd.AddCommand(newQueueCreateCommand(ctx))
	queueCmd.AddCommand(newQueueReconcileCommand(ctx))

	return queueCmd
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	var listStatuses []string
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List queue items, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			statuses := make([]queue.Status, 0, len(listStatuses))
			for _, raw := range listStatuses {
				status, err := parseStatus(raw)
				if err != nil {
					return err
				}
				statuses = append(statuses, status)
			}
			return ctx.withStore(cmd, func(store queue.Store) error {
				items, err := api.NewQueueService(store).List(cmd.Context(), statuses...)
				if err != nil {
					return err
				}
				items = api.Limit(items, limit)
				if len(items) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty")
					return nil
				}
				out := cmd.OutOrStdout()
				fmt.Fprint(out, renderTable(out, queueListColumns, buildQueueListRows(items)))
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVarP(&listStatuses, "status", "s", nil, "Filter by status (pending, approved, rejected)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum number of items to show (0 for all)")
	return cmd
}

func newQueueStatsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show item counts by status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(cmd, func(store queue.Store) error {
				stats, err := api.NewQueueService(store).Stats(cmd.Context())
				if err != nil {
					return err
				}
				rows := [][]string{
					{"Pending", strconv.Itoa(stats.Pending)},
					{"Approved", strconv.Itoa(stats.Approved)},
					{"Rejected", strconv.Itoa(stats.Rejected)},
					{"Total", strconv.Itoa(stats.Total())},
				}
				out := cmd.OutOrStdout()
				fmt.Fprint(out, renderTable(out, queueStatsColumns, rows))
				return nil
			})
		},
	}
}

func newQueueShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one queue item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(cmd, func(store queue.Store) error {
				item, err := api.NewQueueService(store).Describe(cmd.Context(), strings.TrimSpace(args[0]))
				if err != nil {
					if queue.IsNotFound(err) {
						return fmt.Errorf("item %s not found", args[0])
					}
					return err
				}
				renderItem(cmd, item)
				return nil
			})
		},
	}
}

func newQueueDecideCommand(ctx *commandContext, d queue.Decision) *cobra.Command {
	verb := string(d)
	return &cobra.Command{
		Use:   verb + " <id>",
		Short: fmt.Sprintf("Mark a pending item as %s", d.Status()),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(cmd, func(store queue.Store) error {
				decider := decision.New(store, logging.NewNop())
				id := strings.TrimSpace(args[0])
				item, err := decider.Decide(cmd.Context(), id, d)
				if err != nil {
					return errors.New(decider.Explain(cmd.Context(), id, err).Message)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Item %s %s\n", item.ID, item.Status)
				return nil
			})
		},
	}
}

func newQueueCreateCommand(ctx *commandContext) *cobra.Command {
	var contentType string
	var content string
	var imageURL string
	var requestedBy string
	var generate bool

	cmd := &cobra.Command{
		Use:   "create <description>",
		Short: "Add an item to the pending queue",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := queue.ParseContentType(contentType)
			if err != nil {
				return err
			}
			req := producer.Request{
				Type:        kind,
				Description: strings.Join(args, " "),
				RequestedBy: requestedBy,
				Content:     content,
				ImagePath:   imageURL,
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return ctx.withStore(cmd, func(store queue.Store) error {
				opts := []producer.Option{}
				if generate {
					text, err := textgen.New(cmd.Context(), cfg)
					if err != nil {
						return err
					}
					images := freepik.New(freepik.Config{
						APIKey:         cfg.Image.APIKey,
						BaseURL:        cfg.Image.BaseURL,
						Size:           cfg.Image.Size,
						TimeoutSeconds: cfg.Image.TimeoutSeconds,
					})
					opts = append(opts,
						producer.WithGenerators(text, images),
						producer.WithCaptionTokens(cfg.Text.CaptionMaxTokens),
						producer.WithImageShape(cfg.Image.Size),
					)
				}
				prod := producer.New(store, logging.NewNop(), opts...)

				var item queue.Item
				if generate {
					item, err = prod.Generate(cmd.Context(), req)
				} else {
					item, err = prod.Submit(cmd.Context(), req)
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created %s item %s\n", item.Type, item.ID)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&contentType, "type", "t", string(queue.TypePost), "Content type (post or image)")
	cmd.Flags().StringVar(&content, "content", "", "Caption text")
	cmd.Flags().StringVar(&imageURL, "image-url", "", "Public image URL to publish")
	cmd.Flags().StringVar(&requestedBy, "requested-by", "cli", "Requester recorded on the item")
	cmd.Flags().BoolVar(&generate, "generate", false, "Generate missing caption and image with the configured providers")
	return cmd
}

func newQueueReconcileCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Remove pending copies of items that were already decided",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(cmd, func(store queue.Store) error {
				removed, err := store.Reconcile(cmd.Context())
				if err != nil {
					return err
				}
				if len(removed) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Queue is consistent")
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d stale pending record(s): %s\n", len(removed), strings.Join(removed, ", "))
				return nil
			})
		},
	}
}

func parseStatus(raw string) (queue.Status, error) {
	status := queue.Status(strings.ToLower(strings.TrimSpace(raw)))
	switch status {
	case queue.StatusPending, queue.StatusApproved, queue.StatusRejected:
		return status, nil
	default:
		return "", fmt.Errorf("unknown status %q (want pending, approved or rejected)", raw)
	}
}

func buildQueueListRows(items []queue.Item) [][]string {
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		rows = append(rows, []string{
			item.ID,
			string(item.Type),
			string(item.Status),
			api.PostState(item),
			formatTime(&item.CreatedAt),
			clip(item.Description, descriptionWidth),
		})
	}
	return rows
}

func renderItem(cmd *cobra.Command, item queue.Item) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "ID:           %s\n", item.ID)
	fmt.Fprintf(out, "Type:         %s\n", item.Type)
	fmt.Fprintf(out, "Status:       %s\n", item.Status)
	fmt.Fprintf(out, "Requested by: %s\n", item.RequestedBy)
	fmt.Fprintf(out, "Created:      %s\n", formatTime(&item.CreatedAt))
	fmt.Fprintf(out, "Processed:    %s\n", formatTime(item.ProcessedAt))
	fmt.Fprintf(out, "Has image:    %s\n", yesNo(item.HasImage()))
	fmt.Fprintf(out, "Posted:       %s\n", yesNo(item.Posted))
	if item.PostedAt != nil {
		fmt.Fprintf(out, "Posted at:    %s\n", formatTime(item.PostedAt))
	}
	if item.PostID != "" {
		fmt.Fprintf(out, "Post ID:      %s\n", item.PostID)
	}
	if item.PostError != "" {
		fmt.Fprintf(out, "Post error:   %s\n", item.PostError)
	}
	fmt.Fprintf(out, "Description:  %s\n", item.Description)
	if item.Content != "" {
		fmt.Fprintf(out, "\n%s\n", item.Content)
	}
}

func formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}

func clip(value string, width int) string {
	value = strings.Join(strings.Fields(value), " ")
	runes := []rune(value)
	if len(runes) <= width {
		return value
	}
	return string(runes[:width-1]) + "…"
}
