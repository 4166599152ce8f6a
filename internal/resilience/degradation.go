package resilience

// Strategy is a service's degradation mode when its breaker is OPEN
// (§4.4 degradation mapping).
type Strategy string

const (
	StrategyQueue      Strategy = "queue"
	StrategySkipRAG    Strategy = "skip_rag"
	StrategyAltStore   Strategy = "alt_store_fallback"
	StrategyDisabled   Strategy = "disabled"
)

// Service names the well-known services §4.4's degradation table maps.
const (
	ServiceTextModel    = "text-model"
	ServiceVisionModel  = "vision-model"
	ServiceVectorIndex  = "vector-index-equivalent"
	ServiceObjectStore  = "object-store"
)

// degradationMap is §4.4's fixed service→strategy table.
var degradationMap = map[string]Strategy{
	ServiceTextModel:   StrategyQueue,
	ServiceVisionModel: StrategyQueue,
	ServiceVectorIndex: StrategySkipRAG,
	ServiceObjectStore: StrategyAltStore,
}

// StrategyFor returns the mapped strategy for service, defaulting to
// StrategyDisabled for anything not in the table ("others → disabled").
func StrategyFor(service string) Strategy {
	if s, ok := degradationMap[service]; ok {
		return s
	}
	return StrategyDisabled
}

// WithDegradation selects primary/fallback/skip behavior for service
// based on its mapped strategy (§4.4 withDegradation). queue callers are
// expected to have already queued fn themselves upstream (this layer
// has no durable queue of its own); skipValue is returned verbatim for
// skip-rag; altStore is invoked in place of primary for alt-store
// fallback services.
func WithDegradation[T any](service string, primary func() (T, error), altStore func() (T, error), skipValue T) (T, error) {
	switch StrategyFor(service) {
	case StrategySkipRAG:
		return skipValue, nil
	case StrategyAltStore:
		if altStore != nil {
			return altStore()
		}
		return primary()
	case StrategyQueue, StrategyDisabled:
		return primary()
	default:
		return primary()
	}
}
