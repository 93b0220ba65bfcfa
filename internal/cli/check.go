package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/thearpankumar/Project-BlackIceOS-sub002/internal/config"
	"github.com/thearpankumar/Project-BlackIceOS-sub002/internal/denylist"
	"github.com/thearpankumar/Project-BlackIceOS-sub002/internal/model"
)

var (
	checkKind string
	checkText string
)

func init() {
	rootCmd.AddCommand(checkCmd)
	checkCmd.Flags().StringVar(&checkKind, "kind", "", "Action kind (click|type|screenshot|find_element|emergency_stop)")
	checkCmd.Flags().StringVar(&checkText, "text", "", "Text to scan against the denylist (with --kind type)")
	checkCmd.MarkFlagRequired("kind")
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Evaluate how an action would be gated, without executing it",
	Long: "Resolves the risk tier and approval path for an action kind under the\n" +
		"current config, and scans text against the denylist. Nothing is injected.\n\n" +
		"Exit code 0 if the action would be allowed to proceed, 1 if blocked.",
	RunE: runCheck,
}

type checkReport struct {
	Kind                 string `json:"kind"`
	Tier                 string `json:"tier"`
	AutoApproved         bool   `json:"auto_approved"`
	RequiresConfirmation bool   `json:"requires_confirmation"`
	TextBlocked          bool   `json:"text_blocked,omitempty"`
	BlockedPattern       string `json:"blocked_pattern,omitempty"`
	Verdict              string `json:"verdict"`
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	kind, err := model.ParseKind(checkKind)
	if err != nil {
		return err
	}

	tier := cfg.TierForKind(kind)
	ceiling, _ := config.ParseTier(cfg.Permissions.AutoApproveCeiling)
	autoApproved := kind == model.KindEmergencyStop ||
		(!cfg.Permissions.RequireConfirmation && tier <= ceiling)

	report := checkReport{
		Kind:                 string(kind),
		Tier:                 model.TierLabel(tier),
		AutoApproved:         autoApproved,
		RequiresConfirmation: !autoApproved,
		Verdict:              "proceed",
	}
	if !autoApproved {
		report.Verdict = "needs_confirmation"
	}

	if kind == model.KindType && checkText != "" {
		dl := denylist.NewDefault()
		if len(cfg.Denylist.Substrings) > 0 || len(cfg.Denylist.Regex) > 0 {
			dl = denylist.New(cfg.Denylist)
		}
		if matched, pattern := dl.Match(checkText); matched {
			report.TextBlocked = true
			report.BlockedPattern = pattern
			report.Verdict = "blocked"
		}
	}

	out, _ := json.MarshalIndent(report, "", "  ")
	fmt.Println(string(out))

	if report.Verdict == "blocked" {
		return fmt.Errorf("action would be blocked")
	}
	return nil
}
