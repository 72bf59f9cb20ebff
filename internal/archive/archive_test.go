package archive

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"narrative-safety/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileName(t *testing.T) {
	ts := time.Date(2025, 11, 3, 14, 5, 9, 0, time.UTC)
	assert.Equal(t, "constitutional_receipts_20251103_140509.json", FileName(ts))
}

func TestEncodeEmptyExport(t *testing.T) {
	data, err := Encode(models.ReceiptExport{ExportedAt: time.Unix(0, 0).UTC()})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"receipts": []`)
	assert.Contains(t, string(data), "\n  \"count\": 0")
}

func TestFileSinkWrite(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "exports")
	sink, err := NewFileSink(dir)
	require.NoError(t, err)
	assert.Equal(t, "file", sink.Name())

	export := models.ReceiptExport{
		Count:    1,
		Receipts: []models.Receipt{{ReceiptID: "CONST_ABCDEF123456", ValidationResult: models.ValidationPassed}},
	}
	data, err := Encode(export)
	require.NoError(t, err)

	location, err := sink.Write(context.Background(), "constitutional_receipts_x.json", data)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "constitutional_receipts_x.json"), location)

	raw, err := os.ReadFile(location)
	require.NoError(t, err)

	var decoded models.ReceiptExport
	require.NoError(t, json.Unmarshal(raw, &decoded))
	require.Len(t, decoded.Receipts, 1)
	assert.Equal(t, "CONST_ABCDEF123456", decoded.Receipts[0].ReceiptID)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
}

func TestFileSinkStripsDirectories(t *testing.T) {
	dir := t.TempDir()
	sink, err := NewFileSink(dir)
	require.NoError(t, err)

	location, err := sink.Write(context.Background(), "../../escape.json", []byte("{}"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "escape.json"), location)
}

func TestNewFileSinkRequiresDir(t *testing.T) {
	_, err := NewFileSink("")
	assert.Error(t, err)
}

func TestNewGCSSinkMissingKey(t *testing.T) {
	_, err := NewGCSSink(context.Background(), "audit-bucket", "receipts", "/nonexistent/key.json")
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "service account key not found"))

	_, err = NewGCSSink(context.Background(), "", "receipts", "/nonexistent/key.json")
	assert.Error(t, err)
}
