package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"dripper/internal/cooldown"
	"dripper/internal/sheet"
)

// profilesCmd shows the queue without touching it
var profilesCmd = &cobra.Command{
	Use:   "profiles",
	Short: "List the sheet profiles and their eligibility",
	RunE:  listProfiles,
}

// refreshCmd recomputes the yes/no labels
var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Recompute the sheet's yes/no eligibility labels",
	RunE:  refreshLabels,
}

func listProfiles(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	store, err := sheet.NewStore(ctx, cfg.Sheet, cfg.CooldownWindow(), logger.Named("sheet"))
	if err != nil {
		return err
	}

	profiles, err := store.Profiles(ctx)
	if err != nil {
		return err
	}
	if len(profiles) == 0 {
		fmt.Println("No profiles found.")
		return nil
	}

	now := time.Now()
	fmt.Printf("%-8s  %-44s  %-17s  %-12s  %s\n", "PROFILE", "ADDRESS", "LAST CLAIM", "READY", "STATUS")
	for _, p := range profiles {
		ready := "yes"
		if t, ok := cooldown.Parse(p.LastClaimAt); ok {
			if next := t.Add(cfg.CooldownWindow()); now.Before(next) {
				ready = "in " + next.Sub(now).Round(time.Minute).String()
			}
		}
		fmt.Printf("%-8s  %-44s  %-17s  %-12s  %s\n", p.Serial, p.Address, p.LastClaimAt, ready, p.Status)
	}
	return nil
}

func refreshLabels(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	store, err := sheet.NewStore(ctx, cfg.Sheet, cfg.CooldownWindow(), logger.Named("sheet"))
	if err != nil {
		return err
	}

	n, err := store.RefreshEligibility(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Updated %d label(s).\n", n)
	return nil
}
