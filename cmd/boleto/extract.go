package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/FACorreiaa/boleto-drafts/internal/domain/boleto/codec"
	"github.com/FACorreiaa/boleto-drafts/internal/domain/boleto/extractor"
	"github.com/FACorreiaa/boleto-drafts/pkg/pdftext"
)

type ExtractCommandRunner struct {
	pdf       pdftext.Extractor
	extractor *extractor.Extractor
	out       io.Writer
	showText  bool
}

func NewExtractCmd() *cobra.Command {
	runner := &ExtractCommandRunner{extractor: extractor.New()}

	cmd := &cobra.Command{
		Use:   "extract <file.pdf>",
		Short: "Classify a boleto or PIX slip PDF",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			runner.out = cmd.OutOrStdout()
			if runner.pdf == nil {
				runner.pdf = pdftext.New(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: slog.LevelWarn})))
			}
			return runner.Run(cmd.Context(), args[0])
		},
	}

	cmd.Flags().BoolVar(&runner.showText, "text", false, "include the extracted text in the output")
	return cmd
}

type extractOutput struct {
	Kind           extractor.Kind                 `json:"kind"`
	LinhaDigitavel string                         `json:"linha_digitavel,omitempty"`
	BoletoMeta     *codec.BoletoMeta              `json:"boleto_meta,omitempty"`
	Heuristic      *extractor.HeuristicBoletoData `json:"heuristic,omitempty"`
	Text           string                         `json:"text,omitempty"`
}

func (r *ExtractCommandRunner) Run(ctx context.Context, path string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	text, err := r.pdf.Text(ctx, data)
	if err != nil {
		return fmt.Errorf("failed to read pdf text: %w", err)
	}

	res := r.extractor.Extract(text)
	out := extractOutput{
		Kind:           res.Kind,
		LinhaDigitavel: res.LinhaDigitavel,
		Heuristic:      res.Heuristic,
	}
	if res.Kind == extractor.KindLinhaDigitavel {
		if out.BoletoMeta, err = codec.Decode(res.LinhaDigitavel); err != nil {
			return err
		}
	}
	if r.showText {
		out.Text = text
	}

	enc := json.NewEncoder(r.out)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
