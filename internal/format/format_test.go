package format

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutputFormat_IsValid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		format OutputFormat
		want   bool
	}{
		{
			name:   "text format",
			format: TextFormat,
			want:   true,
		},
		{
			name:   "json format",
			format: JSONFormat,
			want:   true,
		},
		{
			name:   "invalid format",
			format: "invalid",
			want:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.format.IsValid())
		})
	}
}

func TestParse(t *testing.T) {
	t.Parallel()

	f, err := Parse(" JSON ")
	require.NoError(t, err)
	assert.Equal(t, JSONFormat, f)

	_, err = Parse("yaml")
	assert.Error(t, err)
}

func TestFormatOutput(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		output  Output
		format  OutputFormat
		want    string
		wantErr bool
	}{
		{
			name:   "answer text",
			output: Answer{Question: "dosis", Response: "500mg cada 6 horas"},
			format: TextFormat,
			want:   "500mg cada 6 horas",
		},
		{
			name:   "answer json",
			output: Answer{Question: "dosis", Response: "500mg cada 6 horas"},
			format: JSONFormat,
			want:   "{\n  \"question\": \"dosis\",\n  \"response\": \"500mg cada 6 horas\"\n}",
		},
		{
			name:   "failed ingestion json",
			output: Ingestion{Files: []string{"a.pdf"}, Message: "Error uploading files.", Failed: true},
			format: JSONFormat,
			want:   "{\n  \"files\": [\n    \"a.pdf\"\n  ],\n  \"message\": \"Error uploading files.\",\n  \"failed\": true\n}",
		},
		{
			name:   "readiness text with details",
			output: Readiness{State: "installing", Details: "Descargando modelos"},
			format: TextFormat,
			want:   "installing: Descargando modelos",
		},
		{
			name:   "readiness text without details",
			output: Readiness{State: "ready"},
			format: TextFormat,
			want:   "ready",
		},
		{
			name:    "invalid format",
			output:  Answer{Response: "x"},
			format:  "invalid",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := FormatOutput(tt.output, tt.format)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
