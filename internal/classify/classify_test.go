package classify

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/consorcioops/boleto-batch/internal/config"
	"github.com/consorcioops/boleto-batch/internal/models"
)

func testClassifier() *Classifier {
	return New(config.ClassifyConfig{
		ErrorMarkers:            []string{"ADODB.Command"},
		ContemplatedKeywords:    []string{"CONTEMPLADO", "CONTEMPLADA"},
		NotContemplatedKeywords: []string{"NÃO CONTEMPLADO", "NAO CONTEMPLADO"},
	})
}

func TestClassifyDocumentValid(t *testing.T) {
	body := bytes.Repeat([]byte("%PDF-1.4 boleto "), 1000)
	assert.Equal(t, models.DocumentValid, testClassifier().ClassifyDocument(body, 10000))
}

func TestClassifyDocumentTooSmall(t *testing.T) {
	assert.Equal(t, models.DocumentTooSmall, testClassifier().ClassifyDocument([]byte("<html></html>"), 10000))
}

func TestClassifyDocumentServerErrorMarker(t *testing.T) {
	body := []byte("<html>erro ADODB.Command 0x80040e14</html>")
	assert.Equal(t, models.DocumentServerError, testClassifier().ClassifyDocument(body, 10000))
}

func TestClassifyDocumentMarkerWinsOverSize(t *testing.T) {
	// A large page carrying the marker is still an error page.
	body := append(bytes.Repeat([]byte("x"), 20000), []byte("ADODB.Command")...)
	assert.Equal(t, models.DocumentServerError, testClassifier().ClassifyDocument(body, 10000))
}

func TestClassifyDocumentLegacyEncodedMarker(t *testing.T) {
	// Marker text surrounded by ISO-8859-1 accented bytes must still match.
	body := []byte{0xc9, 0x20} // "É "
	body = append(body, []byte("ADODB.Command")...)
	assert.Equal(t, models.DocumentServerError, testClassifier().ClassifyDocument(body, 1))
}

func TestClassifyEligibilityContemplated(t *testing.T) {
	status := testClassifier().ClassifyEligibility("Cliente CONTEMPLADO em assembleia")
	assert.Equal(t, models.Contemplated, status)
}

func TestClassifyEligibilityNotContemplatedPrecedence(t *testing.T) {
	// Contains the substring "CONTEMPLADO" twice; the negative phrase must win.
	status := testClassifier().ClassifyEligibility("Situação: NÃO CONTEMPLADO")
	assert.Equal(t, models.NotContemplated, status)

	status = testClassifier().ClassifyEligibility("nao contemplado")
	assert.Equal(t, models.NotContemplated, status)
}

func TestClassifyEligibilityCaseInsensitive(t *testing.T) {
	status := testClassifier().ClassifyEligibility("cliente contemplado")
	assert.Equal(t, models.Contemplated, status)
}

func TestClassifyEligibilityUnknown(t *testing.T) {
	status := testClassifier().ClassifyEligibility("nenhuma informação de status")
	assert.Equal(t, models.UnknownStatus, status)
}

func TestDecodeLegacy(t *testing.T) {
	// 0xE3 is "ã" in ISO-8859-1.
	decoded := DecodeLegacy([]byte{'N', 0xE3, 'o'})
	assert.Equal(t, "Não", decoded)
	assert.True(t, strings.Contains(strings.ToUpper(decoded), "NÃO"))
}
