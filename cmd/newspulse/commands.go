package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/newspulse/newspulse/internal/config"
)

var aggregateCmd = &cobra.Command{
	Use:   "aggregate",
	Short: "Trigger a fetch round on the running server",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/api/admin/aggregate", nil)
		if err != nil {
			return err
		}

		var result struct {
			Jobs int `json:"jobs"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Enqueued %d fetch jobs", result.Jobs)
		return nil
	},
}

var retryFailedCmd = &cobra.Command{
	Use:   "retry-failed",
	Short: "Requeue classification for articles marked FAILED",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/api/admin/retry-failed", nil)
		if err != nil {
			return err
		}

		var result struct {
			Requeued int `json:"requeued"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Requeued %d failed articles", result.Requeued)
		return nil
	},
}

var fixPendingCmd = &cobra.Command{
	Use:   "fix-pending",
	Short: "Promote PENDING articles that already carry a category",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/api/admin/fix-pending", nil)
		if err != nil {
			return err
		}

		var result struct {
			Fixed int64 `json:"fixed"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Fixed %d articles", result.Fixed)
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show newspulse system status",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			printError("config error: %v", err)
			return nil
		}

		baseURL := serverBaseURL(cfg.Server.BindAddr)
		healthClient := &http.Client{Timeout: 2 * time.Second}

		serverUp := false
		resp, err := healthClient.Get(baseURL + "/health")
		if err != nil {
			printStatus("Server", "stopped")
		} else {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				serverUp = true
				printStatus("Server", "running at %s", baseURL)
			} else {
				printStatus("Server", "error (HTTP %d)", resp.StatusCode)
			}
		}

		printStatus("Model", "%s", cfg.LLM.Model)
		printStatus("Embed model", "%s", cfg.LLM.EmbedModel)
		printStatus("Feeds", "%d RSS, %d subreddits", len(cfg.Fetch.RSSFeeds), len(cfg.Fetch.Subreddits))
		printStatus("Data dir", "%s", cfg.Storage.DataDir)

		if serverUp {
			client, err := newAPIClient()
			if err != nil {
				return nil
			}
			queueResp, err := client.get(cmd.Context(), "/api/stats/queue")
			if err == nil {
				var queue struct {
					Jobs map[string]int `json:"jobs"`
				}
				if decodeJSON(queueResp, &queue) == nil {
					printStatus("Queue", "%d pending, %d running, %d failed",
						queue.Jobs["pending"], queue.Jobs["running"], queue.Jobs["failed"])
				}
			}

			statsResp, err := client.get(cmd.Context(), "/api/stats/categories")
			if err == nil {
				var stats struct {
					Categories []struct {
						Category string `json:"category"`
						Count    int    `json:"count"`
					} `json:"categories"`
				}
				if decodeJSON(statsResp, &stats) == nil {
					total := 0
					for _, c := range stats.Categories {
						total += c.Count
					}
					printStatus("Articles", "%d classified", total)
					for _, c := range stats.Categories {
						if c.Count > 0 {
							fmt.Fprintf(cmd.ErrOrStderr(), "    %s: %d\n", c.Category, c.Count)
						}
					}
				}
			}
		}
		return nil
	},
}
