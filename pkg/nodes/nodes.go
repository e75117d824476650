// Package nodes provides the concrete graph nodes of the perspective
// pipeline and the routing table that connects them.
package nodes

import "github.com/perspectivelab/perspective/pkg/graph"

// Node ids of the pipeline graph.
const (
	// NodeAnalyze runs sentiment and fact-checking in parallel.
	NodeAnalyze graph.NodeID = "parallel_analysis"

	// NodeGenerate produces a counter-perspective from the analysis.
	NodeGenerate graph.NodeID = "generate_perspective"

	// NodeJudge scores the generated perspective.
	NodeJudge graph.NodeID = "judge_perspective"

	// NodeStore persists the final state and notifies consumers.
	NodeStore graph.NodeID = "store_and_send"

	// NodeErrorHandler is the terminal failure node.
	NodeErrorHandler graph.NodeID = "error_handler"
)

const (
	// scoreThreshold is the minimum judge score that accepts a perspective.
	scoreThreshold = 70

	// maxRetries caps how many times generation may be entered before the
	// perspective is accepted regardless of score.
	maxRetries = 3
)
