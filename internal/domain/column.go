package domain

// ColumnKind tells the store how to scan and stringify a column value.
type ColumnKind int

const (
	ColumnString ColumnKind = iota
	ColumnStringArray
	ColumnStringMap
)

// ColumnDef maps a user-facing column id to its internal store column.
// Only whitelisted definitions ever reach query construction.
type ColumnDef struct {
	ID       string
	Internal string
	Kind     ColumnKind
}

var traceColumns = map[string]ColumnDef{
	"id":        {ID: "id", Internal: "id", Kind: ColumnString},
	"name":      {ID: "name", Internal: "name", Kind: ColumnString},
	"userId":    {ID: "userId", Internal: "user_id", Kind: ColumnString},
	"sessionId": {ID: "sessionId", Internal: "session_id", Kind: ColumnString},
	"release":   {ID: "release", Internal: "release", Kind: ColumnString},
	"version":   {ID: "version", Internal: "version", Kind: ColumnString},
	"input":     {ID: "input", Internal: "input", Kind: ColumnString},
	"output":    {ID: "output", Internal: "output", Kind: ColumnString},
	"tags":      {ID: "tags", Internal: "tags", Kind: ColumnStringArray},
	"metadata":  {ID: "metadata", Internal: "metadata", Kind: ColumnStringMap},
}

var observationColumns = map[string]ColumnDef{
	"id":            {ID: "id", Internal: "id", Kind: ColumnString},
	"name":          {ID: "name", Internal: "name", Kind: ColumnString},
	"input":         {ID: "input", Internal: "input", Kind: ColumnString},
	"output":        {ID: "output", Internal: "output", Kind: ColumnString},
	"model":         {ID: "model", Internal: "model", Kind: ColumnString},
	"level":         {ID: "level", Internal: "level", Kind: ColumnString},
	"statusMessage": {ID: "statusMessage", Internal: "status_message", Kind: ColumnString},
	"metadata":      {ID: "metadata", Internal: "metadata", Kind: ColumnStringMap},
}

// TraceColumn resolves a user-facing trace column id against the whitelist.
func TraceColumn(id string) (ColumnDef, bool) {
	def, ok := traceColumns[id]
	return def, ok
}

// ObservationColumn resolves a user-facing observation column id against
// the whitelist.
func ObservationColumn(id string) (ColumnDef, bool) {
	def, ok := observationColumns[id]
	return def, ok
}
