package risk

import "vigil/internal/logging"

// CombinedResult is the output of the floor/model merge. Source records
// which input won for audit purposes.
type CombinedResult struct {
	Final       Tier
	Source      string // "questionnaire" or "model"
	Explanation string
}

const (
	// SourceQuestionnaire marks a final tier set by the deterministic floor.
	SourceQuestionnaire = "questionnaire"
	// SourceModel marks a final tier raised above the floor by the model.
	SourceModel = "model"

	floorExplanation   = "Risk level determined by structured clinical screening responses."
	genericExplanation = "Elevated risk factors identified across session signals."
)

// Combine merges the questionnaire floor with the model's probabilistic
// tier. The floor is a hard lower bound: the model can raise the final
// tier but is structurally incapable of lowering it. This is the single
// safety-critical chokepoint of the engine.
func Combine(floor, model Tier, modelRationale string) CombinedResult {
	if floor >= model {
		logging.Get(logging.CategorySession).Debugw("floor tier holds",
			"floor", floor.Label(), "model", model.Label())
		return CombinedResult{
			Final:       floor,
			Source:      SourceQuestionnaire,
			Explanation: floorExplanation,
		}
	}
	explanation := modelRationale
	if explanation == "" {
		explanation = genericExplanation
	}
	logging.Get(logging.CategorySession).Debugw("model tier raises floor",
		"floor", floor.Label(), "model", model.Label())
	return CombinedResult{
		Final:       model,
		Source:      SourceModel,
		Explanation: explanation,
	}
}
