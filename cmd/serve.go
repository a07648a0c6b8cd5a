package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/shyim/kvprobe/internal/fakestore"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Runs an in-memory store to try suites against",
	RunE: func(cmd *cobra.Command, args []string) error {
		listen, _ := cmd.Flags().GetString("listen")
		node, _ := cmd.Flags().GetString("node")
		shards, _ := cmd.Flags().GetInt("shards")
		shard, _ := cmd.Flags().GetInt("shard")
		redirect, _ := cmd.Flags().GetString("redirect")

		opts := []fakestore.Option{fakestore.WithNode(node)}

		if shards > 1 {
			if shard < 0 || shard >= shards {
				return fmt.Errorf("shard must be between 0 and %d", shards-1)
			}

			opts = append(opts, fakestore.WithOwnership(func(hashKey int) bool {
				return hashKey%shards == shard
			}, redirect))
		}

		server := &http.Server{
			Addr:              listen,
			Handler:           fakestore.New(opts...).Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		go func() {
			<-cmd.Context().Done()

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			if err := server.Shutdown(shutdownCtx); err != nil {
				log.Warnf("Failed to shut down store: %s", err)
			}
		}()

		log.Infof("Serving in-memory store %s on %s", node, listen)

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("listen", "127.0.0.1:8080", "Address to listen on")
	serveCmd.Flags().String("node", "node-0", "Node name used in vector clocks")
	serveCmd.Flags().Int("shards", 1, "Number of shards the hash space is split into")
	serveCmd.Flags().Int("shard", 0, "Shard owned by this store, other hash keys are redirected")
	serveCmd.Flags().String("redirect", "", "Address returned for hash keys of other shards")
}
