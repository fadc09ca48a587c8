package cli

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/okian/plusolver/internal/domain/model"
)

const defaultListLimit = 20

func newCacheCommand(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or seed the answer cache",
	}
	cmd.AddCommand(newCacheStatusCommand(e), newCachePopulateCommand(e), newCacheListCommand(e))
	return cmd
}

func newCacheStatusCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show whether the cache is populated and how many entries it holds",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cache, err := e.openCache(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = cache.Close() }()

			populated, err := cache.IsPopulated(ctx)
			if err != nil {
				return err
			}
			n, err := cache.Count(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(e.out, "driver:    %s\n", e.cfg.CacheDriver)
			fmt.Fprintf(e.out, "dsn:       %s\n", e.cfg.CacheDSN)
			fmt.Fprintf(e.out, "populated: %t\n", populated)
			fmt.Fprintf(e.out, "entries:   %d\n", n)
			return nil
		},
	}
}

func newCachePopulateCommand(e *env) *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   "populate",
		Short: "Log in and fill the cache from a browse session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			auth, err := e.authenticator(ctx, false, email)
			if err != nil {
				return err
			}
			svc, err := e.openService(ctx, 0)
			if err != nil {
				return err
			}
			defer svc.Stop()

			sess, err := auth.Authenticate(ctx)
			if err != nil {
				return err
			}
			if err := svc.EnsureCatalog(ctx, sess); err != nil {
				return err
			}
			n, err := svc.Cache().Count(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(e.out, "cache holds %d entries\n", n)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "operator email (prompted when empty)")
	return cmd
}

func newCacheListCommand(e *env) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List cached entries ordered by catalog id",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cache, err := e.openCache(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = cache.Close() }()

			items, err := cache.List(ctx, limit)
			if err != nil {
				return err
			}
			fmt.Fprintln(e.out, catalogTable(items))
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", defaultListLimit, "number of entries to show")
	return cmd
}

func catalogTable(items []model.CatalogItem) string {
	ids := []string{keyStyle.Render("ID")}
	answers := []string{keyStyle.Render("ANSWER")}
	titles := []string{keyStyle.Render("TITLE")}
	for _, it := range items {
		ids = append(ids, it.CatalogID.String())
		answers = append(answers, it.Answer)
		titles = append(titles, it.Title)
	}
	col := lipgloss.NewStyle().PaddingRight(3)
	return lipgloss.JoinHorizontal(lipgloss.Top,
		col.Render(lipgloss.JoinVertical(lipgloss.Left, ids...)),
		col.Render(lipgloss.JoinVertical(lipgloss.Left, answers...)),
		lipgloss.JoinVertical(lipgloss.Left, titles...),
	)
}
