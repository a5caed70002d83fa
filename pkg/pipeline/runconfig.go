package pipeline

// RunConfig keys carry per-run settings through the context to the operators.
type RunConfig string

const (
	RunConfigStartDate        = RunConfig("start-date")
	RunConfigEndDate          = RunConfig("end-date")
	RunConfigRunID            = RunConfig("run-id")
	RunConfigQueryAnnotations = RunConfig("query-annotations")
)
