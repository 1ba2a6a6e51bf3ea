package cli

import (
	"errors"
	"fmt"

	"dialer-platform/internal/phone"

	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate <number>",
	Short: "Check whether a number is dialable",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		res := phone.Validate(args[0])
		if !res.IsValid {
			return errors.New(res.ErrorMessage)
		}
		fmt.Printf("%s (%s)\n", phone.FormatForDisplay(res.NormalizedNumber), res.NormalizedNumber)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
