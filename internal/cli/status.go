package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/thearpankumar/Project-BlackIceOS-sub002/internal/activity"
	"github.com/thearpankumar/Project-BlackIceOS-sub002/internal/config"
)

func init() {
	rootCmd.AddCommand(statusCmd)
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Probe current activity and report whether automation would run",
	RunE:  runStatus,
}

type statusReport struct {
	ActivityLevel     string                    `json:"activity_level"`
	SafeForAutomation bool                      `json:"safe_for_automation"`
	Resources         activity.ResourceSnapshot `json:"resources"`
	Thresholds        config.Thresholds         `json:"thresholds"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	monitor := activity.New(activity.NewProcProber(), cfg.Activity, nil)
	// Two samples so the cpu delta has a baseline.
	monitor.Sample()
	monitor.Sample()

	report := statusReport{
		ActivityLevel:     string(monitor.CurrentLevel()),
		SafeForAutomation: monitor.IsSafeForAutomation(),
		Resources:         monitor.CheckResources(),
		Thresholds:        monitor.Thresholds(),
	}
	out, _ := json.MarshalIndent(report, "", "  ")
	fmt.Println(string(out))
	return nil
}
