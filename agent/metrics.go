package agent

// EvolutionMetrics carries the rolling performance signals the evolution
// engine consumes. All fields are conceptually 0.0-1.0 except
// TaskCompletionTime, which is an unbounded duration in minutes.
// The metrics are written by whatever executes tasks and are read-only to
// the evolution engine.
type EvolutionMetrics struct {
	SuccessRate        float64 `json:"success_rate"`
	TaskCompletionTime float64 `json:"task_completion_time"`
	CollaborationScore float64 `json:"collaboration_score"`
	LearningVelocity   float64 `json:"learning_velocity"`
	AdaptabilityIndex  float64 `json:"adaptability_index"`
}

// PerformanceScore folds the metrics into a single [0,1] score:
//
//	0.4*success + 0.2*(1 - min(completion/100, 1)) + 0.3*collaboration + 0.1*adaptability
//
// The score is a pure function of the metrics.
func (m EvolutionMetrics) PerformanceScore() float64 {
	timeFactor := m.TaskCompletionTime / 100
	if timeFactor > 1 {
		timeFactor = 1
	}
	score := 0.4*m.SuccessRate + 0.2*(1-timeFactor) + 0.3*m.CollaborationScore + 0.1*m.AdaptabilityIndex
	return clamp01(score)
}
