package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/CondeArmand/gamemate-backend/internal/app"
	"github.com/CondeArmand/gamemate-backend/internal/enrichment"
	"github.com/CondeArmand/gamemate-backend/internal/models"
	"github.com/CondeArmand/gamemate-backend/internal/scheduler"
	"github.com/CondeArmand/gamemate-backend/internal/users"
)

func newSyncCommand(ctx *commandContext) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "sync [user-id]",
		Short: "Queue a Steam library sync for a user",
		Args: func(cmd *cobra.Command, args []string) error {
			if all && len(args) > 0 {
				return errors.New("--all does not take a user id")
			}
			if !all && len(args) != 1 {
				return errors.New("sync requires exactly one user id, or --all")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd.Context(), func(a *app.App) error {
				if all {
					sched, err := scheduler.New(a.Users, a.Queue, "", a.Logger)
					if err != nil {
						return err
					}
					n, err := sched.RunOnce(cmd.Context())
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Queued sync for %d linked accounts\n", n)
					return nil
				}

				userID := args[0]
				account, err := a.Users.GetLinkedAccount(cmd.Context(), userID, models.ProviderSteam)
				if errors.Is(err, users.ErrAccountMissing) {
					return fmt.Errorf("user %s has no linked Steam account; run `gamematectl link` first", userID)
				}
				if err != nil {
					return err
				}
				taskID, err := a.Queue.EnqueueSync(cmd.Context(), userID, account.ProviderAccountID)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Queued sync %s for steam id %s\n", taskID, account.ProviderAccountID)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "Queue a sync for every linked Steam account")
	return cmd
}

func newEnrichCommand(ctx *commandContext) *cobra.Command {
	var name string
	var playtime int

	cmd := &cobra.Command{
		Use:   "enrich <user-id> <steam-app-id>",
		Short: "Queue enrichment of one owned game",
		Args: func(cmd *cobra.Command, args []string) error {
			if err := cobra.ExactArgs(2)(cmd, args); err != nil {
				return err
			}
			if id, err := strconv.Atoi(args[1]); err != nil || id <= 0 {
				return fmt.Errorf("invalid steam app id %q", args[1])
			}
			if strings.TrimSpace(name) == "" {
				return errors.New("--name is required")
			}
			if playtime < 0 {
				return errors.New("--playtime cannot be negative")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			task := enrichment.Task{
				UserID:     args[0],
				SteamAppID: args[1],
				Name:       strings.TrimSpace(name),
				Playtime:   playtime,
			}
			return ctx.withApp(cmd.Context(), func(a *app.App) error {
				if _, err := a.Users.GetByID(cmd.Context(), task.UserID); err != nil {
					if errors.Is(err, users.ErrNotFound) {
						return fmt.Errorf("unknown user %s", task.UserID)
					}
					return err
				}
				if err := a.Queue.EnqueueEnrich(cmd.Context(), task); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Queued enrichment of %s (%s) for %s\n", task.Name, task.SteamAppID, task.UserID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Steam display name of the game")
	cmd.Flags().IntVar(&playtime, "playtime", 0, "Playtime in minutes")
	return cmd
}

func newLinkCommand(ctx *commandContext) *cobra.Command {
	var username string

	cmd := &cobra.Command{
		Use:   "link <user-id> <steam-id>",
		Short: "Link a Steam account to a user, creating the user if needed",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, steamID := args[0], strings.TrimSpace(args[1])
			if steamID == "" {
				return errors.New("steam id cannot be empty")
			}
			return ctx.withApp(cmd.Context(), func(a *app.App) error {
				if err := a.Users.Ensure(cmd.Context(), userID, nil); err != nil {
					return err
				}
				account := &models.LinkedAccount{
					UserID:            userID,
					Provider:          models.ProviderSteam,
					ProviderAccountID: steamID,
				}
				if username != "" {
					account.Username = &username
				}
				if err := a.Users.LinkAccount(cmd.Context(), account); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Linked steam id %s to %s\n", steamID, userID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&username, "username", "", "Steam persona name")
	return cmd
}
