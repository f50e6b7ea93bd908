package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/hyperengineering/voyager/internal/config"
	"github.com/hyperengineering/voyager/internal/provider"
	"github.com/hyperengineering/voyager/internal/recommend"
	"github.com/hyperengineering/voyager/internal/store"
	"github.com/hyperengineering/voyager/internal/types"
)

var (
	recommendUser     string
	recommendKind     string
	recommendProvider string
)

var errNoRecommendation = errors.New("no recommendation available")

var recommendCmd = &cobra.Command{
	Use:   "recommend",
	Short: "Run the recommendation pipeline once and print the result",
	Long: "Resolve one recommendation for a stored taste profile without starting the server.\n" +
		"Provider calls are throttled and counted exactly as in the service.",
	Args: cobra.NoArgs,
	RunE: runRecommend,
}

func init() {
	recommendCmd.Flags().StringVar(&recommendUser, "user", "", "User ID whose profile to use (required)")
	recommendCmd.Flags().StringVar(&recommendKind, "kind", "movie", "Media kind: movie or tv")
	recommendCmd.Flags().StringVar(&recommendProvider, "provider", "", "Provider override: gemini or groq")
	recommendCmd.MarkFlagRequired("user")
}

func runRecommend(cmd *cobra.Command, args []string) error {
	kind, err := types.ParseMediaKind(recommendKind)
	if err != nil {
		return err
	}
	if recommendProvider != "" {
		if _, err := provider.ParseName(recommendProvider); err != nil {
			return err
		}
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	slog.SetDefault(newLogger(os.Stderr, cfg.Log))

	db, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer db.Close()

	p, err := newPipeline(cfg, db)
	if err != nil {
		return err
	}

	rec, err := p.recommender.Recommend(ctx, recommend.Request{
		UserID:   recommendUser,
		Kind:     kind,
		Provider: recommendProvider,
	})
	if err != nil {
		return err
	}
	if rec == nil {
		return errNoRecommendation
	}
	return printJSON(cmd.OutOrStdout(), rec)
}

// printJSON writes v as indented JSON.
func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
