package main

import (
	"encoding/json"
	"errors"

	"github.com/spf13/cobra"
)

var validateData string

var validateCmd = &cobra.Command{
	Use:   "validate <token>",
	Short: "Validate a timestamp token",
	Long: `Parse a timestamp token (or a full time-stamp response), check that the
TSA certificate is valid now and, with --data, compare the message imprint
against the original document. The report is printed as JSON.`,
	Args: cobra.ExactArgs(1),
	RunE: runValidate,
}

func init() {
	validateCmd.Flags().StringVar(&validateData, "data", "", "Original document to verify the imprint against")
}

func runValidate(cmd *cobra.Command, args []string) error {
	token, err := readInput(cmd, args[0])
	if err != nil {
		return err
	}
	var original []byte
	if validateData != "" {
		if original, err = readInput(cmd, validateData); err != nil {
			return err
		}
	}

	report := newService().Validate(token, original)

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return err
	}
	if !report.Valid {
		return errors.New(report.Message)
	}
	return nil
}
