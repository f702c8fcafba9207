package main

import (
	"fmt"
	"strings"

	"civicsync/apperr"
	"civicsync/client"
	"civicsync/models"

	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var issuesCmd = &cobra.Command{
	Use:     "issues",
	Short:   "Browse and manage issues",
	Aliases: []string{"issue", "i"},
}

var issuesListCmd = &cobra.Command{
	Use:     "list",
	Short:   "List issues, newest first",
	Aliases: []string{"ls"},
	RunE: func(cmd *cobra.Command, args []string) error {
		a := getApp(cmd)
		filter, err := filterFlags(cmd)
		if err != nil {
			return cmdErr(err)
		}
		pages, _ := cmd.Flags().GetInt("pages")
		limit, _ := cmd.Flags().GetInt("limit")

		feed := client.NewFeed(a.api, a.session, client.WithPageSize(limit), client.WithFeedLogger(a.logger))
		if err := feed.Reset(cmd.Context(), filter); err != nil {
			return cmdErr(err)
		}
		for i := 1; i < pages && feed.CanLoadMore(); i++ {
			if err := feed.LoadMore(cmd.Context()); err != nil {
				return cmdErr(err)
			}
		}

		state := feed.Snapshot()
		actor := a.session.Actor()
		fmt.Fprintln(a.stdout, renderIssueTable(state.Items, func(it models.Issue) bool {
			return it.HasVoted(actor)
		}))
		footer := fmt.Sprintf("Showing %d of %d", len(state.Items), state.Total)
		if state.HasMore {
			footer += fmt.Sprintf(". More with --pages %d", pages+1)
		}
		fmt.Fprintln(a.stdout, dim(footer))
		return nil
	},
}

var issuesShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one issue",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a := getApp(cmd)
		id, err := parseID(args[0])
		if err != nil {
			return cmdErr(err)
		}
		it, err := a.detail.Load(cmd.Context(), id)
		if err != nil {
			return cmdErr(err)
		}
		fmt.Fprintln(a.stdout, renderIssue(it))
		if it.HasVoted(a.session.Actor()) {
			fmt.Fprintln(a.stdout, dim("You voted for this issue."))
		}
		return nil
	},
}

var issuesReportCmd = &cobra.Command{
	Use:     "report",
	Short:   "Report a new issue",
	Aliases: []string{"create", "new"},
	RunE: func(cmd *cobra.Command, args []string) error {
		a := getApp(cmd)
		if err := a.requireLogin(); err != nil {
			return err
		}
		title, _ := cmd.Flags().GetString("title")
		description, _ := cmd.Flags().GetString("description")
		categoryName, _ := cmd.Flags().GetString("category")
		lat, _ := cmd.Flags().GetFloat64("lat")
		lng, _ := cmd.Flags().GetFloat64("lng")
		address, _ := cmd.Flags().GetString("address")

		category, err := parseCategory(categoryName)
		if err != nil {
			return cmdErr(err)
		}
		in := models.NewIssue{
			Title:       title,
			Description: description,
			Category:    category,
		}
		if cmd.Flags().Changed("lat") && cmd.Flags().Changed("lng") {
			in.Location = &models.Location{Lat: lat, Lng: lng, Address: address}
		}
		if image, _ := cmd.Flags().GetString("image"); image != "" {
			in.ImageURL = &image
		}

		created, err := a.rec.Create(cmd.Context(), in)
		if err != nil {
			return cmdErr(err)
		}
		success(a.stdout, "Reported %s", created.ID.Hex())
		return nil
	},
}

var issuesEditCmd = &cobra.Command{
	Use:   "edit <id>",
	Short: "Edit an issue you reported while it is still pending",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a := getApp(cmd)
		id, err := a.prime(cmd, args[0])
		if err != nil {
			return err
		}

		var patch models.IssuePatch
		flags := cmd.Flags()
		if flags.Changed("title") {
			v, _ := flags.GetString("title")
			patch.Title = &v
		}
		if flags.Changed("description") {
			v, _ := flags.GetString("description")
			patch.Description = &v
		}
		if flags.Changed("category") {
			v, _ := flags.GetString("category")
			category, err := parseCategory(v)
			if err != nil {
				return cmdErr(err)
			}
			patch.Category = &category
		}
		if flags.Changed("lat") || flags.Changed("lng") || flags.Changed("address") {
			current, _ := a.detail.Get(id)
			loc := current.Location
			if flags.Changed("lat") {
				loc.Lat, _ = flags.GetFloat64("lat")
			}
			if flags.Changed("lng") {
				loc.Lng, _ = flags.GetFloat64("lng")
			}
			if flags.Changed("address") {
				loc.Address, _ = flags.GetString("address")
			}
			patch.Location = &loc
		}
		if flags.Changed("image") {
			v, _ := flags.GetString("image")
			patch.ImageURL = &v
		}

		updated, err := a.rec.Edit(cmd.Context(), id, patch)
		if err != nil {
			return cmdErr(err)
		}
		fmt.Fprintln(a.stdout, renderIssue(*updated))
		return nil
	},
}

var issuesDeleteCmd = &cobra.Command{
	Use:     "delete <id>",
	Short:   "Delete an issue you reported while it is still pending",
	Aliases: []string{"rm"},
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a := getApp(cmd)
		id, err := a.prime(cmd, args[0])
		if err != nil {
			return err
		}
		if err := a.rec.Delete(cmd.Context(), id); err != nil {
			return cmdErr(err)
		}
		success(a.stdout, "Deleted %s", id.Hex())
		return nil
	},
}

var issuesVoteCmd = &cobra.Command{
	Use:   "vote <id>",
	Short: "Vote for an issue",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a := getApp(cmd)
		id, err := a.prime(cmd, args[0])
		if err != nil {
			return err
		}
		updated, err := a.rec.Vote(cmd.Context(), id)
		if err != nil {
			return cmdErr(err)
		}
		success(a.stdout, "Voted. %q now has %d votes", updated.Title, updated.Votes)
		return nil
	},
}

var issuesStatusCmd = &cobra.Command{
	Use:   "status <id> <pending|in-progress|resolved>",
	Short: "Move an issue you reported forward",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a := getApp(cmd)
		target, err := parseStatus(args[1])
		if err != nil {
			return cmdErr(err)
		}
		id, err := a.prime(cmd, args[0])
		if err != nil {
			return err
		}
		updated, err := a.rec.UpdateStatus(cmd.Context(), id, target)
		if err != nil {
			return cmdErr(err)
		}
		success(a.stdout, "%s is now %s", updated.ID.Hex(), statusBadge(updated.Status))
		return nil
	},
}

var issuesMineCmd = &cobra.Command{
	Use:   "mine",
	Short: "List the issues you reported",
	RunE: func(cmd *cobra.Command, args []string) error {
		a := getApp(cmd)
		if err := a.requireLogin(); err != nil {
			return err
		}
		items, err := a.mine.Load(cmd.Context())
		if err != nil {
			return cmdErr(err)
		}
		fmt.Fprintln(a.stdout, renderIssueTable(items, nil))
		return nil
	},
}

var issuesRecentCmd = &cobra.Command{
	Use:   "recent",
	Short: "List recently reported issues with a location",
	RunE: func(cmd *cobra.Command, args []string) error {
		a := getApp(cmd)
		items, err := a.api.Recent(cmd.Context())
		if err != nil {
			return cmdErr(err)
		}
		fmt.Fprintln(a.stdout, renderIssueTable(items, nil))
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show issue analytics",
	RunE: func(cmd *cobra.Command, args []string) error {
		a := getApp(cmd)
		analytics, err := a.api.Analytics(cmd.Context())
		if err != nil {
			return cmdErr(err)
		}
		fmt.Fprintln(a.stdout, renderAnalytics(analytics))
		return nil
	},
}

// prime loads the issue into the detail cache so the reconciler can run
// its local checks against a fresh copy.
func (a *app) prime(cmd *cobra.Command, raw string) (primitive.ObjectID, error) {
	if err := a.requireLogin(); err != nil {
		return primitive.NilObjectID, err
	}
	id, err := parseID(raw)
	if err != nil {
		return primitive.NilObjectID, cmdErr(err)
	}
	if _, err := a.detail.Load(cmd.Context(), id); err != nil {
		return primitive.NilObjectID, cmdErr(err)
	}
	return id, nil
}

func parseID(raw string) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(strings.TrimSpace(raw))
	if err != nil {
		return primitive.NilObjectID, apperr.Validationf("Invalid issue ID")
	}
	return id, nil
}

func parseCategory(raw string) (models.IssueCategory, error) {
	raw = strings.TrimSpace(raw)
	for _, c := range models.Categories {
		if strings.EqualFold(raw, string(c)) || strings.EqualFold(raw, strings.ReplaceAll(string(c), " ", "-")) {
			return c, nil
		}
	}
	return "", apperr.Validationf("Unknown category %q", raw)
}

func parseStatus(raw string) (models.IssueStatus, error) {
	norm := strings.NewReplacer("-", " ", "_", " ").Replace(strings.TrimSpace(raw))
	for _, s := range models.Statuses {
		if strings.EqualFold(norm, string(s)) {
			return s, nil
		}
	}
	return "", apperr.Validationf("Invalid status")
}

func filterFlags(cmd *cobra.Command) (models.IssueFilter, error) {
	var f models.IssueFilter
	if v, _ := cmd.Flags().GetString("category"); v != "" && !strings.EqualFold(v, "all") {
		c, err := parseCategory(v)
		if err != nil {
			return f, err
		}
		f.Category = c
	}
	if v, _ := cmd.Flags().GetString("status"); v != "" && !strings.EqualFold(v, "all") {
		s, err := parseStatus(v)
		if err != nil {
			return f, err
		}
		f.Status = s
	}
	return f, nil
}

func init() {
	issuesListCmd.Flags().String("category", "", "Only this category")
	issuesListCmd.Flags().String("status", "", "Only this status")
	issuesListCmd.Flags().Int("pages", 1, "Number of pages to load")
	issuesListCmd.Flags().Int("limit", client.DefaultPageSize, "Issues per page")

	for _, c := range []*cobra.Command{issuesReportCmd, issuesEditCmd} {
		c.Flags().String("title", "", "Short summary")
		c.Flags().String("description", "", "What is wrong and where")
		c.Flags().String("category", "", "Infrastructure, Safety, Environment, Public Services or Other")
		c.Flags().Float64("lat", 0, "Latitude")
		c.Flags().Float64("lng", 0, "Longitude")
		c.Flags().String("address", "", "Street address")
		c.Flags().String("image", "", "Image URL")
	}
	_ = issuesReportCmd.MarkFlagRequired("title")
	_ = issuesReportCmd.MarkFlagRequired("category")

	issuesCmd.AddCommand(issuesListCmd, issuesShowCmd, issuesReportCmd, issuesEditCmd,
		issuesDeleteCmd, issuesVoteCmd, issuesStatusCmd, issuesMineCmd, issuesRecentCmd)
	rootCmd.AddCommand(issuesCmd, statsCmd)
}
