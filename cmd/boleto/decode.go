package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/gocarina/gocsv"
	"github.com/spf13/cobra"

	"github.com/FACorreiaa/boleto-drafts/internal/domain/boleto/codec"
	"github.com/FACorreiaa/boleto-drafts/internal/domain/boleto/sniffer"
	"github.com/FACorreiaa/boleto-drafts/pkg/money"
)

type DecodeCommandRunner struct {
	csvPath string
	out     io.Writer
	in      io.Reader
}

func NewDecodeCmd() *cobra.Command {
	runner := &DecodeCommandRunner{}

	cmd := &cobra.Command{
		Use:   "decode [linha-digitavel]",
		Short: "Decode a linha digitável, or a CSV column of them",
		Long: `Decode prints the barcode, bank, due date and amount of a linha digitável as JSON.
With --csv it reads a CSV with a linha digitável column ("-" for stdin) and writes one decoded row per input row.`,
		Args: func(cmd *cobra.Command, args []string) error {
			if runner.csvPath == "" && len(args) == 0 {
				return errors.New("a linha digitável or --csv is required")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			runner.out = cmd.OutOrStdout()
			runner.in = cmd.InOrStdin()
			if runner.csvPath != "" {
				return runner.RunCSV()
			}
			return runner.Run(strings.Join(args, ""))
		},
	}

	cmd.Flags().StringVar(&runner.csvPath, "csv", "", "CSV file with a linha_digitavel column")
	return cmd
}

type decodeOutput struct {
	*codec.BoletoMeta
	ValorFormatado   string                  `json:"valor_formatado"`
	ChecksumWarnings []codec.ChecksumWarning `json:"checksum_warnings"`
}

func (r *DecodeCommandRunner) Run(raw string) error {
	meta, err := codec.Decode(raw)
	if err != nil {
		return fmt.Errorf("failed to decode %q: %w", raw, err)
	}

	warnings := codec.Verify(meta)
	if warnings == nil {
		warnings = []codec.ChecksumWarning{}
	}

	enc := json.NewEncoder(r.out)
	enc.SetIndent("", "  ")
	return enc.Encode(decodeOutput{
		BoletoMeta:       meta,
		ValorFormatado:   money.NewFromDecimal(meta.Valor, "BRL").Display(),
		ChecksumWarnings: warnings,
	})
}

type csvOutputRow struct {
	LinhaDigitavel string `csv:"linha_digitavel"`
	Barcode        string `csv:"barcode"`
	BankCode       string `csv:"bank_code"`
	DataVencimento string `csv:"data_vencimento"`
	Valor          string `csv:"valor"`
	Warnings       string `csv:"checksum_warnings"`
	Error          string `csv:"error"`
}

// RunCSV accepts bank exports as they come: any of the usual delimiters and
// metadata lines above the header. It keeps going past rows that fail to
// decode; the failure goes into the error column.
func (r *DecodeCommandRunner) RunCSV() error {
	in := r.in
	if r.csvPath != "-" {
		f, err := os.Open(r.csvPath)
		if err != nil {
			return fmt.Errorf("failed to open csv: %w", err)
		}
		defer f.Close()
		in = f
	}

	data, err := io.ReadAll(in)
	if err != nil {
		return fmt.Errorf("failed to read csv: %w", err)
	}

	layout, err := sniffer.DetectConfig(data)
	if err != nil {
		return fmt.Errorf("failed to detect csv layout: %w", err)
	}
	codes, err := layout.Codes(data)
	if err != nil {
		return fmt.Errorf("failed to parse csv: %w", err)
	}

	out := make([]csvOutputRow, 0, len(codes))
	for _, code := range codes {
		out = append(out, decodeRow(code))
	}

	return gocsv.Marshal(out, r.out)
}

func decodeRow(raw string) csvOutputRow {
	row := csvOutputRow{LinhaDigitavel: raw}
	meta, err := codec.Decode(raw)
	if err != nil {
		row.Error = err.Error()
		return row
	}

	row.LinhaDigitavel = meta.LinhaDigitavel
	row.Barcode = meta.Barcode
	row.BankCode = meta.BankCode
	row.Valor = meta.Valor.StringFixed(2)
	if meta.DataVencimento != nil {
		row.DataVencimento = meta.DataVencimento.String()
	}

	warnings := codec.Verify(meta)
	names := make([]string, 0, len(warnings))
	for _, w := range warnings {
		names = append(names, w.Field)
	}
	row.Warnings = strings.Join(names, ";")
	return row
}
