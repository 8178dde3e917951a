package main

import (
	"os"
	"path/filepath"
	"testing"

	"streetclip/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "addresses.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestParseCSV(t *testing.T) {
	path := writeCSV(t, "\uFEFFHOUSENUM,Street_Name,Boro,ZIPCODE,Latitude,Longitude\n"+
		"350,5 AVENUE,Manhattan,10118,40.748441,-73.985664\n"+
		"1,PROSPECT PARK WEST,Brooklyn,11215,40.6712,-73.9712\n")

	got, err := parseCSV(path)
	require.NoError(t, err)
	assert.Equal(t, []models.Location{
		{HouseNumber: "350", Street: "5 AVENUE", Borough: "Manhattan", Postcode: "10118", Latitude: 40.748441, Longitude: -73.985664},
		{HouseNumber: "1", Street: "PROSPECT PARK WEST", Borough: "Brooklyn", Postcode: "11215", Latitude: 40.6712, Longitude: -73.9712},
	}, got)
}

func TestParseCSV_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{name: "empty file", content: "", wantErr: "failed to read header"},
		{name: "no coordinates", content: "street,borough\n5 AVENUE,Manhattan\n", wantErr: "missing latitude column"},
		{name: "bad latitude", content: "street,lat,lon\n5 AVENUE,north,-73.98\n", wantErr: "line 2: invalid latitude"},
		{name: "out of range longitude", content: "street,lat,lon\n5 AVENUE,40.7,-273.98\n", wantErr: "line 2: invalid longitude"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseCSV(writeCSV(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	t.Run("missing file", func(t *testing.T) {
		_, err := parseCSV(filepath.Join(t.TempDir(), "none.csv"))
		assert.ErrorContains(t, err, "failed to open file")
	})
}
