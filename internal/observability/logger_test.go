package observability

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger("test", LevelWarn)
	logger.SetOutput(&buf)

	logger.Info("hidden")
	logger.Warn("shown")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "[WARN]")
	assert.Contains(t, out, "shown")
}

func TestLogger_FieldsAreSorted(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger("test", LevelDebug)
	logger.SetOutput(&buf)

	logger.WithFields(map[string]interface{}{
		"property_id": "prop-1",
		"detector":    "sync",
	}).WithField("conflicts", 3).Debugf("detected %d", 3)

	assert.Contains(t, buf.String(), "detected 3 conflicts=3 detector=sync property_id=prop-1")
}

func TestLogger_WithFieldDoesNotMutateParent(t *testing.T) {
	var buf bytes.Buffer
	parent := NewLogger("test", LevelInfo)
	parent.SetOutput(&buf)

	_ = parent.WithField("conflict_id", "x")
	parent.Info("plain")

	assert.NotContains(t, buf.String(), "conflict_id")
}

func TestLogger_WithContextWithoutSpan(t *testing.T) {
	logger := NewLogger("test", LevelInfo)
	assert.Same(t, logger, logger.WithContext(context.Background()))
}

func TestAttributeHelpers(t *testing.T) {
	assert.Equal(t, "prop-1", PropertyID("prop-1").Value.AsString())
	assert.Equal(t, "conflict_id", string(ConflictID("x").Key))
	assert.Equal(t, "detector", string(Detector("pricing").Key))
}

func TestSQLOperation(t *testing.T) {
	assert.Equal(t, "SELECT", sqlOperation("  select * from bookings"))
	assert.Equal(t, "INSERT", sqlOperation("\n\t\tINSERT INTO booking_conflicts"))
	assert.Equal(t, "UNKNOWN", sqlOperation(""))
}
