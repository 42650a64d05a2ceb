package researchers

import (
	"github.com/dyike/CortexTrader/consts"
	"github.com/dyike/CortexTrader/internal/agents"
	"github.com/dyike/CortexTrader/models"
)

// NewBearishResearcher builds the researcher arguing against the position. It always
// answers the bullish argument of the same round.
func NewBearishResearcher(inv agents.Invoker) *Researcher {
	return &Researcher{side: models.SideBearish, template: consts.TemplateBearishResearcher, invoker: inv}
}
