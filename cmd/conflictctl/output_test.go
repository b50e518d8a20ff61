package main

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/hotelpms/server/internal/models"
)

func sampleConflict() *models.Conflict {
	c := models.NewConflict("hotel-1", models.ConflictTypeDoubleBooking, models.SeverityHigh,
		time.Date(2024, 1, 14, 0, 0, 0, 0, time.UTC), time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), "bk-2", "bk-1")
	c.Description = "Room 101 double booked"
	c.SuggestedResolution = &models.SuggestedResolution{Action: models.ActionHonorFirst}
	return c
}

func TestRenderConflict(t *testing.T) {
	c := sampleConflict()

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, renderConflict(&buf, "json", c))

		var decoded models.Conflict
		require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
		assert.Equal(t, "double_booking:bk-1:bk-2", decoded.ID)
	})

	t.Run("yaml", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, renderConflict(&buf, "yaml", c))

		var decoded map[string]interface{}
		require.NoError(t, yaml.Unmarshal(buf.Bytes(), &decoded))
		assert.Equal(t, "double_booking:bk-1:bk-2", decoded["id"])
	})

	t.Run("text", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, renderConflict(&buf, "text", c))
		assert.Contains(t, buf.String(), "double_booking:bk-1:bk-2  high  detected")
		assert.Contains(t, buf.String(), "Room 101 double booked")
	})
}

func TestRenderListAndStats(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, renderList(&buf, "text", models.ConflictListResponse{
		Conflicts:  []*models.Conflict{sampleConflict()},
		TotalCount: 3,
	}))
	out := buf.String()
	assert.Contains(t, out, "SUGGESTION")
	assert.Contains(t, out, "2024-01-14..2024-01-15")
	assert.Contains(t, out, "honor_first")
	assert.Contains(t, out, "Showing 1 of 3")

	buf.Reset()
	require.NoError(t, renderList(&buf, "text", models.ConflictListResponse{}))
	assert.Equal(t, "No conflicts\n", buf.String())

	buf.Reset()
	stats := models.NewConflictStats("hotel-1")
	stats.Total = 1
	stats.ByType[models.ConflictTypeDoubleBooking] = 1
	require.NoError(t, renderStats(&buf, "text", stats))
	assert.Contains(t, buf.String(), "double_booking=1")
}

func TestRootCmd_RejectsUnknownFormat(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetArgs([]string{"stats", "--property", "hotel-1", "--format", "xml"})
	cmd.SetOut(&bytes.Buffer{})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown format")
}

func TestRootCmd_RequiresProperty(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetArgs([]string{"detect"})
	cmd.SetOut(&bytes.Buffer{})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--property is required")
}
