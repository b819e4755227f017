// Command boleto decodes linhas digitáveis and classifies payment slip PDFs
// offline, without a database.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "boleto",
		Short:         "boleto decodes FEBRABAN payment slips",
		Long:          `boleto decodes 47-digit linhas digitáveis and reads boleto and PIX slips from PDF files.`,
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	rootCmd.AddCommand(NewDecodeCmd())
	rootCmd.AddCommand(NewExtractCmd())

	return rootCmd
}
