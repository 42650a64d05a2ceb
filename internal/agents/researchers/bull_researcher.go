package researchers

import (
	"github.com/dyike/CortexTrader/consts"
	"github.com/dyike/CortexTrader/internal/agents"
	"github.com/dyike/CortexTrader/models"
)

// NewBullishResearcher builds the researcher arguing for the position. From the second
// round on it is asked to rebut the previous bearish argument.
func NewBullishResearcher(inv agents.Invoker) *Researcher {
	return &Researcher{side: models.SideBullish, template: consts.TemplateBullishResearcher, invoker: inv}
}
