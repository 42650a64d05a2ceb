package cli

import (
	"fmt"
	"os"
	"regexp"
	"strings"
)

var tickerPattern = regexp.MustCompile(`^[A-Z0-9.\-]{1,12}$`)

// LoadSymbolsFromFile reads one ticker per line; blank lines and # comments are skipped.
func LoadSymbolsFromFile(filename string) ([]string, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read symbols file: %w", err)
	}

	var symbols []string
	for _, line := range strings.Split(string(data), "\n") {
		symbol := strings.TrimSpace(strings.ToUpper(line))
		if symbol != "" && !strings.HasPrefix(symbol, "#") {
			symbols = append(symbols, symbol)
		}
	}

	if len(symbols) == 0 {
		return nil, fmt.Errorf("no valid symbols found in file: %s", filename)
	}
	return symbols, nil
}

// ValidateSymbols upper-cases and de-duplicates symbols, splitting them into valid and
// invalid ones in input order.
func ValidateSymbols(symbols []string) (valid, invalid []string) {
	seen := make(map[string]bool, len(symbols))
	for _, symbol := range symbols {
		symbol = strings.TrimSpace(strings.ToUpper(symbol))
		if seen[symbol] {
			continue
		}
		seen[symbol] = true
		if tickerPattern.MatchString(symbol) {
			valid = append(valid, symbol)
		} else {
			invalid = append(invalid, symbol)
		}
	}
	return valid, invalid
}
