// Package sniffer detects the layout of CSV exports that carry a column of
// linhas digitáveis: delimiter, metadata lines above the header, and which
// column holds the codes.
package sniffer

import (
	"encoding/csv"
	"errors"
	"io"
	"strings"

	"github.com/FACorreiaa/boleto-drafts/internal/domain/boleto/extractor"
)

var (
	ErrEmptyFile      = errors.New("file is empty")
	ErrNoHeadersFound = errors.New("no linha digitável column found")
)

// maxHeaderSearch bounds how far down metadata lines may push the header.
const maxHeaderSearch = 20

// linhaHeaders are folded header names accepted for the code column.
var linhaHeaders = map[string]bool{
	"linha digitavel":  true,
	"linha_digitavel":  true,
	"linhadigitavel":   true,
	"codigo de barras": true,
	"codigo_barras":    true,
	"codigo":           true,
	"boleto":           true,
}

// FileConfig holds the detected configuration for a CSV file
type FileConfig struct {
	Delimiter rune     // ';', ',', '\t' or '|'
	SkipLines int      // metadata lines before the header
	Headers   []string // header cells, trimmed
	Column    int      // index of the linha digitável column
}

// DetectConfig finds the header row naming the code column.
func DetectConfig(data []byte) (*FileConfig, error) {
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, ErrEmptyFile
	}

	lines := strings.Split(string(data), "\n")
	for i, line := range lines {
		if i >= maxHeaderSearch {
			break
		}
		line = cleanLine(line, i == 0)
		if line == "" {
			continue
		}

		delimiter, _ := detectDelimiter(line)
		if delimiter == 0 {
			delimiter = ','
		}
		headers, err := splitLine(line, delimiter)
		if err != nil {
			continue
		}
		for col, h := range headers {
			if linhaHeaders[extractor.Fold(h)] {
				return &FileConfig{
					Delimiter: delimiter,
					SkipLines: i,
					Headers:   headers,
					Column:    col,
				}, nil
			}
		}
	}
	return nil, ErrNoHeadersFound
}

// Codes returns the code column of every data row below the header. Rows too
// short to have the column yield an empty string so row numbers stay aligned.
func (c *FileConfig) Codes(data []byte) ([]string, error) {
	lines := strings.Split(string(data), "\n")
	if c.SkipLines+1 > len(lines) {
		return nil, nil
	}

	reader := csv.NewReader(strings.NewReader(strings.Join(lines[c.SkipLines+1:], "\n")))
	reader.Comma = c.Delimiter
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var codes []string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if c.Column < len(record) {
			codes = append(codes, strings.TrimSpace(record[c.Column]))
		} else {
			codes = append(codes, "")
		}
	}
	return codes, nil
}

func splitLine(line string, delimiter rune) ([]string, error) {
	reader := csv.NewReader(strings.NewReader(line))
	reader.Comma = delimiter
	reader.LazyQuotes = true

	cells, err := reader.Read()
	if err != nil {
		return nil, err
	}
	for i, cell := range cells {
		cells[i] = strings.TrimSpace(cell)
	}
	return cells, nil
}

func cleanLine(line string, firstLine bool) string {
	line = strings.TrimRight(line, "\r")
	if firstLine {
		line = strings.TrimPrefix(line, "\uFEFF")
	}
	return strings.TrimSpace(line)
}

func detectDelimiter(line string) (rune, int) {
	delimiters := []rune{';', '\t', ',', '|'}
	bestDelimiter := rune(0)
	bestCount := 0
	for _, d := range delimiters {
		count := strings.Count(line, string(d))
		if count > bestCount {
			bestCount = count
			bestDelimiter = d
		}
	}
	return bestDelimiter, bestCount
}
