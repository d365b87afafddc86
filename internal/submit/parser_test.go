package submit

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleAttr = "javascript:submitFunction('A1','N100','15/12/2025','Desc','G1','Q1','M1','1.234,56','Pay','N','Msg','N','S','S')"

func TestParseCallOrderedArguments(t *testing.T) {
	args, err := ParseCall(sampleAttr, TriggerFunction)
	require.NoError(t, err)
	require.Len(t, args, 14)
	assert.Equal(t, "A1", args[0])
	assert.Equal(t, "15/12/2025", args[2])
	assert.Equal(t, "1.234,56", args[7])
	assert.Equal(t, "S", args[13])
}

func TestParseCallCommaInsideQuotedArgument(t *testing.T) {
	attr := "submitFunction('A1','AVISO, VIA 2','15/12/2025','PARCELA 1, 2 E 3','G1','Q1','M1','10,50','Pay','N','Msg','N','S','S')"
	args, err := ParseCall(attr, TriggerFunction)
	require.NoError(t, err)
	require.Len(t, args, 14)
	assert.Equal(t, "AVISO, VIA 2", args[1])
	assert.Equal(t, "PARCELA 1, 2 E 3", args[3])
}

func TestParseCallMultilineBody(t *testing.T) {
	attr := "submitFunction('A1',\n  'N100',\n  '15/12/2025','Desc','G1','Q1','M1','10,50','Pay','N','Msg','N','S','S')"
	args, err := ParseCall(attr, TriggerFunction)
	require.NoError(t, err)
	require.Len(t, args, 14)
	assert.Equal(t, "N100", args[1])
}

func TestParseCallNullNormalizedToEmpty(t *testing.T) {
	attr := "submitFunction('A1',null,'15/12/2025','Desc','G1','Q1','M1','10,50','Pay','N',null,'N','S','S')"
	args, err := ParseCall(attr, TriggerFunction)
	require.NoError(t, err)
	require.Len(t, args, 14)
	assert.Empty(t, args[1])
	assert.Empty(t, args[10])
}

func TestParseCallNoPattern(t *testing.T) {
	_, err := ParseCall("javascript:otherFunction('a')", TriggerFunction)
	assert.ErrorIs(t, err, ErrNoCallPattern)

	_, err = ParseCall("", TriggerFunction)
	assert.ErrorIs(t, err, ErrNoCallPattern)
}

func TestParseCallUnbalancedQuote(t *testing.T) {
	_, err := ParseCall("submitFunction('A1','broken)", TriggerFunction)
	assert.ErrorIs(t, err, ErrUnbalancedQuote)
}

func TestParseCallUnquotedNumericLiteral(t *testing.T) {
	args, err := ParseCall("submitFunction(12, 'x', 34)", TriggerFunction)
	require.NoError(t, err)
	assert.Equal(t, []string{"12", "x", "34"}, args)
}

func TestFromArgsInsufficientArguments(t *testing.T) {
	_, err := FromArgs([]string{"a", "b", "c"})
	var insufficient *InsufficientArgumentsError
	require.True(t, errors.As(err, &insufficient))
	assert.Equal(t, MinArguments, insufficient.Expected)
	assert.Equal(t, 3, insufficient.Actual)
	assert.Contains(t, insufficient.Error(), "expected at least 14")
	assert.Contains(t, insufficient.Error(), "got 3")
}

func TestParseBindsFixedPositions(t *testing.T) {
	args, err := Parse(sampleAttr)
	require.NoError(t, err)
	assert.Equal(t, "A1", args.AgentCode)
	assert.Equal(t, "N100", args.NoticeNumber)
	assert.Equal(t, "15/12/2025", args.DueDate)
	assert.Equal(t, "G1", args.GroupCode)
	assert.Equal(t, "Q1", args.QuotaCode)
	assert.Equal(t, "1.234,56", args.TotalValue)
	assert.Equal(t, "S", args.EmitBoletoPixFlag)
}

func TestParseExtraArgumentsIgnored(t *testing.T) {
	attr := "submitFunction('A1','N100','15/12/2025','Desc','G1','Q1','M1','10,50','Pay','N','Msg','N','S','S','EXTRA','MORE')"
	args, err := Parse(attr)
	require.NoError(t, err)
	assert.Equal(t, "S", args.EmitBoletoPixFlag)
}
