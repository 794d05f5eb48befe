package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/WKowalczykDev/EntranceControl/internal/verification"
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Run one verification attempt from the command line",
	Long: `Submit a single attempt as if it came from a gate and print the decision.
The attempt is recorded in the audit trail like any other.`,
	Args: cobra.NoArgs,
	RunE: runVerify,
}

func init() {
	rootCmd.AddCommand(verifyCmd)

	verifyCmd.Flags().String("gate", "", "Gate ID (required)")
	verifyCmd.Flags().String("token", "", "Scanned token value")
	verifyCmd.Flags().String("image", "", "Path to the face image (required)")
	_ = verifyCmd.MarkFlagRequired("gate")
	_ = verifyCmd.MarkFlagRequired("image")
}

func runVerify(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	imagePath := mustGetString(cmd, "image")
	image, err := os.ReadFile(imagePath)
	if err != nil {
		return fmt.Errorf("reading image: %w", err)
	}

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	if err := a.startAudit(ctx); err != nil {
		a.close(ctx)
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		a.close(closeCtx)
	}()

	resp, err := a.engine().Verify(ctx, verification.Request{
		GateID:     mustGetString(cmd, "gate"),
		TokenValue: mustGetString(cmd, "token"),
		Image:      image,
	})
	if err != nil {
		return err
	}

	fmt.Printf("Decision:   %s\n", resp.Decision)
	fmt.Printf("Message:    %s\n", resp.Message)
	fmt.Printf("Confidence: %.2f\n", resp.Confidence)
	if resp.Reason != "" {
		fmt.Printf("Reason:     %s\n", resp.Reason)
	}
	if resp.FlaggedSuspicious {
		fmt.Println("Flagged as suspicious")
	}
	fmt.Printf("Attempt:    %s\n", resp.AttemptID)
	return nil
}
