package ingest

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/consorcioops/boleto-batch/internal/config"
	"github.com/consorcioops/boleto-batch/internal/models"
)

func TestSanitizeGroup(t *testing.T) {
	assert.Equal(t, "1234", SanitizeGroup("1234"))
	assert.Equal(t, "1234", SanitizeGroup(" G-12.34 "))
	assert.Equal(t, "", SanitizeGroup("abc"))
	assert.Equal(t, "", SanitizeGroup(""))
}

func TestSanitizeQuota(t *testing.T) {
	assert.Equal(t, "1234", SanitizeQuota("1234-01"))
	assert.Equal(t, "1234", SanitizeQuota("1234"))
	assert.Equal(t, "987", SanitizeQuota("C987-XX"))
	// No digits before the hyphen: fall back to all digits.
	assert.Equal(t, "42", SanitizeQuota("abc-42"))
	assert.Equal(t, "", SanitizeQuota("-"))
}

func TestNormalizePhone(t *testing.T) {
	assert.Equal(t, "5511987654321", NormalizePhone("+55 (11) 98765-4321"))
	assert.Equal(t, "441234567890", NormalizePhone("44 1234 567 890"))
	// Too short to carry a country code.
	assert.Equal(t, "", NormalizePhone("11987654321"))
	assert.Equal(t, "", NormalizePhone(""))
}

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "records.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func newTestSource(t *testing.T, path string) *CSVSource {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return NewCSVSource(config.DataSourceConfig{CSVPath: path, CSVDelimiter: ","}, logger)
}

func TestCSVSourceLoad(t *testing.T) {
	path := writeCSV(t, "GRUPO,COTA,NOME,WHATS\n1001,234-01,MARIA SILVA,+55 11 98765-4321\n2002,567,JOSE SANTOS,\n")

	records, err := newTestSource(t, path).Load(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, "1001", records[0].GroupID)
	assert.Equal(t, "234", records[0].QuotaID)
	assert.Equal(t, "MARIA SILVA", records[0].Name)
	assert.Equal(t, "5511987654321", records[0].Phone)
	assert.True(t, records[0].Actionable())

	assert.Equal(t, "2002", records[1].GroupID)
	assert.Empty(t, records[1].Phone)
}

func TestCSVSourceHeaderAliases(t *testing.T) {
	path := writeCSV(t, "grupo,cota,nome,TELEFONE\n1001,234,ANA,5511987654321\n")

	records, err := newTestSource(t, path).Load(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "5511987654321", records[0].Phone)
}

func TestCSVSourceNumericCellSuffix(t *testing.T) {
	// Spreadsheet exports often serialize numeric cells as "1001.0".
	path := writeCSV(t, "GRUPO,COTA,NOME\n1001.0,234.0,ANA\n")

	records, err := newTestSource(t, path).Load(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "1001", records[0].GroupID)
	assert.Equal(t, "234", records[0].QuotaID)
}

func TestCSVSourceMissingConfig(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	src := NewCSVSource(config.DataSourceConfig{CSVDelimiter: ","}, logger)
	_, err := src.Load(context.Background())
	assert.Error(t, err)
}

func TestWindow(t *testing.T) {
	records := []models.Record{
		{GroupID: "1"}, {GroupID: "2"}, {GroupID: "3"}, {GroupID: "4"},
	}

	assert.Len(t, Window(records, 0, 0), 4)
	assert.Len(t, Window(records, 1, 0), 4)

	fromThird := Window(records, 3, 0)
	require.Len(t, fromThird, 2)
	assert.Equal(t, "3", fromThird[0].GroupID)

	limited := Window(records, 0, 2)
	require.Len(t, limited, 2)
	assert.Equal(t, "1", limited[0].GroupID)

	assert.Nil(t, Window(records, 10, 0))
}
