package replica_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jwalitptl/mesh-api/internal/service/replica"
)

func TestReadOnlyOperations(t *testing.T) {
	reads := []string{
		"SELECT * FROM agents",
		"select id from agents where org_id = $1",
		"SHOW TABLES",
		"EXPLAIN SELECT 1",
		"GET /api/v1/agents",
		"HEAD /api/v1/agents/123",
		"OPTIONS /api/v1/agents",
		"  SELECT 1", // leading whitespace is ignored
	}
	for _, op := range reads {
		assert.True(t, replica.IsReadOnlyOperation(op), "expected read-only: %q", op)
		assert.False(t, replica.IsWriteOperation(op), "expected not write: %q", op)
	}
}

func TestWriteOperations(t *testing.T) {
	writes := []string{
		"INSERT INTO agents VALUES (...)",
		"UPDATE agents SET name = $1",
		"DELETE FROM agents WHERE id = $1",
		"POST /api/v1/agents",
		"PUT /api/v1/agents/123",
		"PATCH /api/v1/agents/123",
		"DELETE /api/v1/agents/123",
		"TRUNCATE agents",
	}
	for _, op := range writes {
		assert.True(t, replica.IsWriteOperation(op), "expected write: %q", op)
		assert.False(t, replica.IsReadOnlyOperation(op), "expected not read-only: %q", op)
	}
}

func TestAmbiguousOperationsCountAsWrites(t *testing.T) {
	ambiguous := []string{
		"",
		"   ",
		"FROBNICATE the database",
		"SELECTX * FROM agents",
	}
	for _, op := range ambiguous {
		assert.True(t, replica.IsWriteOperation(op), "expected write: %q", op)
	}
}
