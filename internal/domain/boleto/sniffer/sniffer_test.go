package sniffer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectConfig(t *testing.T) {
	tests := []struct {
		name          string
		data          string
		wantDelimiter rune
		wantSkip      int
		wantColumn    int
		wantCodes     []string
	}{
		{
			name:          "single column",
			data:          "linha_digitavel\n111\n222\n",
			wantDelimiter: ',',
			wantColumn:    0,
			wantCodes:     []string{"111", "222"},
		},
		{
			name:          "semicolon export with metadata and accents",
			data:          "\uFEFFExtrato de boletos;;\nGerado em 19/10/2026;;\nVencimento;Linha Digitável;Valor\r\n08/05/2007;23790.12343 56789.012343;100,50\r\n;333;\r\n",
			wantDelimiter: ';',
			wantSkip:      2,
			wantColumn:    1,
			wantCodes:     []string{"23790.12343 56789.012343", "333"},
		},
		{
			name:          "short rows stay aligned",
			data:          "id\tcodigo de barras\n1\t444\n2\n",
			wantDelimiter: '\t',
			wantColumn:    1,
			wantCodes:     []string{"444", ""},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := DetectConfig([]byte(tt.data))
			require.NoError(t, err)
			assert.Equal(t, tt.wantDelimiter, cfg.Delimiter)
			assert.Equal(t, tt.wantSkip, cfg.SkipLines)
			assert.Equal(t, tt.wantColumn, cfg.Column)

			codes, err := cfg.Codes([]byte(tt.data))
			require.NoError(t, err)
			assert.Equal(t, tt.wantCodes, codes)
		})
	}
}

func TestDetectConfig_Errors(t *testing.T) {
	_, err := DetectConfig(nil)
	assert.ErrorIs(t, err, ErrEmptyFile)

	_, err = DetectConfig([]byte("  \n"))
	assert.ErrorIs(t, err, ErrEmptyFile)

	_, err = DetectConfig([]byte("nome,valor\nAna,10\n"))
	assert.ErrorIs(t, err, ErrNoHeadersFound)
}
