package featureflag

type Flag string

const (
	FlagDisableTreeStream   Flag = "DISABLE_TREE_STREAM"
	FlagDisableQuerySummary Flag = "DISABLE_QUERY_SUMMARY"
)
