package enums

// ImportAction describes what an import did for one month cell.
type ImportAction string

const (
	ImportActionCreate ImportAction = "create"
	ImportActionDelete ImportAction = "delete"
	ImportActionSkip   ImportAction = "skip"
)
