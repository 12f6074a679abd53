package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTableNames(t *testing.T) {
	tests := []struct {
		name     string
		model    interface{ TableName() string }
		expected string
	}{
		{"RacecoreInfo", &RacecoreInfo{}, "racecore_infos"},
		{"Track", &Track{}, "tracks"},
		{"Episode", &Episode{}, "episodes"},
		{"Step", &Step{}, "steps"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.model.TableName())
		})
	}
}

func TestDatabaseModelsCoversEveryTable(t *testing.T) {
	assert.Len(t, DatabaseModels, 4)
}
