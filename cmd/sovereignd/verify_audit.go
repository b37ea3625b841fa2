package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/templetwo/sovereign-stack/internal/governance"
)

var verifyAuditCmd = &cobra.Command{
	Use:   "verify-audit",
	Short: "Verify the governance audit log's hash chain without starting the server",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, root, err := loadConfig()
		if err != nil {
			return err
		}

		audit, err := governance.NewAuditLog(root)
		if err != nil {
			return fmt.Errorf("open audit log: %w", err)
		}

		result, err := audit.Verify()
		if err != nil {
			return fmt.Errorf("verify audit log: %w", err)
		}
		if !result.Valid {
			return fmt.Errorf("audit chain broken at line %d", result.MismatchLine)
		}
		fmt.Println("audit chain intact")
		return nil
	},
}
