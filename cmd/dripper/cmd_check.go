package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"dripper/internal/browser"
	"dripper/internal/sheet"
)

// checkCmd verifies the moving parts before a real run
var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Verify AdsPower and the sheet are reachable",
	Long: `Runs the preflight checks a pass depends on: the AdsPower local API
answers, its profile list is readable, the worksheet is readable, every
sheet row points at a profile AdsPower actually knows, and no profile
browser was left running by an earlier run.`,
	RunE: runCheck,
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	ok := true

	client := browser.NewClient(cfg.Browser.BaseURL, cfg.RequestTimeout(), logger.Named("adspower"))

	known := map[string]bool{}
	if err := client.Status(ctx); err != nil {
		fmt.Printf("✗ AdsPower API: %v\n", err)
		ok = false
	} else {
		fmt.Println("✓ AdsPower API reachable")

		profiles, err := client.Profiles(ctx)
		if err != nil {
			fmt.Printf("✗ AdsPower profile list: %v\n", err)
			ok = false
		} else {
			fmt.Printf("✓ AdsPower profiles: %d\n", len(profiles))
			for _, p := range profiles {
				known[p.SerialNumber.String()] = true
			}
		}
	}

	store, err := sheet.NewStore(ctx, cfg.Sheet, cfg.CooldownWindow(), logger.Named("sheet"))
	if err != nil {
		fmt.Printf("✗ Google Sheets: %v\n", err)
		ok = false
	} else if rows, err := store.Profiles(ctx); err != nil {
		fmt.Printf("✗ Google Sheets: %v\n", err)
		ok = false
	} else {
		fmt.Printf("✓ Google Sheets: %d profile row(s)\n", len(rows))

		if len(known) > 0 {
			missing := 0
			for _, r := range rows {
				if !known[r.Serial] {
					fmt.Printf("✗ Row %d: profile %s not found in AdsPower\n", r.Row, r.Serial)
					missing++
				}
			}
			if missing == 0 {
				fmt.Println("✓ Every sheet row matches an AdsPower profile")
			} else {
				ok = false
			}

			// A browser left running means the previous run did not
			// release cleanly.
			running := 0
			for _, r := range rows {
				if !known[r.Serial] {
					continue
				}
				if active, err := client.IsActive(ctx, r.Serial); err == nil && active {
					fmt.Printf("✗ Profile %s: browser already running\n", r.Serial)
					running++
				}
			}
			if running == 0 {
				fmt.Println("✓ No profile browsers left running")
			} else {
				ok = false
			}
		}
	}

	if !ok {
		return fmt.Errorf("preflight failed")
	}
	fmt.Println("\nAll checks passed.")
	return nil
}
