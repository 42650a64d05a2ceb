package cli

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/dyike/CortexTrader/models"
)

// portfolioFile is the YAML layout of --portfolio:
//
//	positions:
//	  - ticker: AAPL
//	    quantity: 50
//	    avg_price: 150
//	    current_price: 180
type portfolioFile struct {
	Positions []models.Position `yaml:"positions"`
}

func LoadPortfolio(path string) (models.Portfolio, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read portfolio: %w", err)
	}

	var file portfolioFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse portfolio %s: %w", path, err)
	}

	portfolio := make(models.Portfolio, 0, len(file.Positions))
	for i, pos := range file.Positions {
		pos.Ticker = strings.ToUpper(strings.TrimSpace(pos.Ticker))
		if pos.Ticker == "" {
			return nil, fmt.Errorf("position %d: ticker is required", i+1)
		}
		if pos.Quantity < 0 || pos.AvgPrice < 0 || pos.CurrentPrice < 0 {
			return nil, fmt.Errorf("position %s: quantity and prices cannot be negative", pos.Ticker)
		}
		if pos.CurrentPrice == 0 {
			pos.CurrentPrice = pos.AvgPrice
		}
		portfolio = append(portfolio, pos)
	}
	return portfolio, nil
}
