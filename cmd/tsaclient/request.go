package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

var (
	requestHash string
	requestOut  string
)

var requestCmd = &cobra.Command{
	Use:   "request <file|->",
	Short: "Request a timestamp token for a file",
	Long: `Hash the file, send a time-stamp query to the configured TSA and write the
returned token. Use "-" to read the document from standard input.`,
	Args: cobra.ExactArgs(1),
	RunE: runRequest,
}

func init() {
	requestCmd.Flags().StringVar(&requestHash, "hash", "SHA256",
		"Digest algorithm (SHA1, SHA224, SHA256, SHA384, SHA512)")
	requestCmd.Flags().StringVarP(&requestOut, "out", "o", "",
		"Output token file (default: <file>.tst, or stdout when reading stdin)")
}

func runRequest(cmd *cobra.Command, args []string) error {
	doc, err := readInput(cmd, args[0])
	if err != nil {
		return err
	}

	res, err := newService().RequestTimestamp(cmd.Context(), doc, requestHash)
	if err != nil {
		return err
	}

	out := requestOut
	if out == "" && args[0] != "-" {
		out = args[0] + ".tst"
	}
	if out == "" || out == "-" {
		_, err = cmd.OutOrStdout().Write(res.Token)
		return err
	}
	if err := os.WriteFile(out, res.Token, 0644); err != nil {
		return fmt.Errorf("failed to write token: %w", err)
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Token:          %s\n", out)
	fmt.Fprintf(w, "Time:           %s\n", res.GenerationTime.UTC().Format("2006-01-02T15:04:05Z"))
	fmt.Fprintf(w, "TSA:            %s\n", res.TSAName)
	fmt.Fprintf(w, "Serial:         %s\n", res.SerialNumber)
	fmt.Fprintf(w, "Hash algorithm: %s\n", res.HashAlgorithm)
	if res.Nonce != "" {
		fmt.Fprintf(w, "Nonce:          %s\n", res.Nonce)
	}
	return nil
}

func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return b, nil
}
