package main

import (
	"encoding/json"
	"errors"

	"github.com/spf13/cobra"
)

var creditCmd = &cobra.Command{
	Use:   "credit",
	Short: "Query the remaining vendor credit",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c := newCreditClient()
		if !c.Available() {
			return errors.New("credit query requires vendor mode with a TSA URL, customer id and password")
		}
		res, err := c.CheckCredit(cmd.Context())
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	},
}
