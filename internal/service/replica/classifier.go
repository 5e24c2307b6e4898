package replica

import "strings"

// Read/write classification for operation descriptors. Descriptors are
// either SQL-shaped ("SELECT * FROM agents") or HTTP-shaped
// ("GET /api/v1/agents"); the leading token decides.
var readVerbs = map[string]bool{
	// SQL
	"SELECT": true, "SHOW": true, "EXPLAIN": true,
	// HTTP
	"GET": true, "HEAD": true, "OPTIONS": true,
}

// IsReadOnlyOperation reports whether op can safely be served by a read
// replica.
func IsReadOnlyOperation(op string) bool {
	return readVerbs[leadingVerb(op)]
}

// IsWriteOperation reports whether op must go to a primary. Anything not
// positively classified as read-only counts as a write, so an ambiguous
// descriptor never lands on a replica.
func IsWriteOperation(op string) bool {
	return !IsReadOnlyOperation(op)
}

func leadingVerb(op string) string {
	fields := strings.Fields(op)
	if len(fields) == 0 {
		return ""
	}
	return strings.ToUpper(fields[0])
}
