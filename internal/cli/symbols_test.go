package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadSymbolsFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "symbols.txt")
	require.NoError(t, os.WriteFile(path, []byte("aapl\n\n# tech\n msft \nBRK.B\n"), 0o644))

	symbols, err := LoadSymbolsFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"AAPL", "MSFT", "BRK.B"}, symbols)
}

func TestLoadSymbolsFromFileEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "symbols.txt")
	require.NoError(t, os.WriteFile(path, []byte("# nothing here\n\n"), 0o644))

	_, err := LoadSymbolsFromFile(path)
	assert.ErrorContains(t, err, "no valid symbols")

	_, err = LoadSymbolsFromFile(filepath.Join(t.TempDir(), "missing.txt"))
	assert.ErrorContains(t, err, "failed to read symbols file")
}

func TestValidateSymbols(t *testing.T) {
	valid, invalid := ValidateSymbols([]string{"aapl", "AAPL", "msft", "bad ticker", "TOOLONGTICKER1", "0700.HK"})
	assert.Equal(t, []string{"AAPL", "MSFT", "0700.HK"}, valid)
	assert.Equal(t, []string{"BAD TICKER", "TOOLONGTICKER1"}, invalid)
}
