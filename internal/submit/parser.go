package submit

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// TriggerFunction is the client-side function name embedded in the listing
// page's onclick attributes.
const TriggerFunction = "submitFunction"

// MinArguments is the fixed arity the payload builder depends on.
const MinArguments = 14

// ErrNoCallPattern indicates the attribute contains no recognizable call.
var ErrNoCallPattern = errors.New("submit: no call pattern found in attribute")

// ErrUnbalancedQuote indicates a quoted argument was never closed.
var ErrUnbalancedQuote = errors.New("submit: unbalanced quote in argument list")

// InsufficientArgumentsError reports a parsed argument list shorter than the
// fixed arity.
type InsufficientArgumentsError struct {
	Expected int
	Actual   int
}

func (e *InsufficientArgumentsError) Error() string {
	return fmt.Sprintf("submit: insufficient arguments: expected at least %d, got %d", e.Expected, e.Actual)
}

// SubmitArguments holds the positional parameters of one trigger attribute.
// Positions are fixed by the target application's generated markup.
type SubmitArguments struct {
	AgentCode                 string
	NoticeNumber              string
	DueDate                   string
	Description               string
	GroupCode                 string
	QuotaCode                 string
	MovementCode              string
	TotalValue                string
	PaymentDescription        string
	AccountDebitFlag          string
	MessageText               string
	IdentificationMessageFlag string
	EmitBoletoFlag            string
	EmitBoletoPixFlag         string
}

// Parse extracts and tokenizes the trigger attribute's argument list and
// binds it to the fixed argument positions.
func Parse(attr string) (*SubmitArguments, error) {
	args, err := ParseCall(attr, TriggerFunction)
	if err != nil {
		return nil, err
	}
	return FromArgs(args)
}

// FromArgs binds an ordered argument list to the fixed positions. Arguments
// beyond position 14 are ignored.
func FromArgs(args []string) (*SubmitArguments, error) {
	if len(args) < MinArguments {
		return nil, &InsufficientArgumentsError{Expected: MinArguments, Actual: len(args)}
	}
	return &SubmitArguments{
		AgentCode:                 args[0],
		NoticeNumber:              args[1],
		DueDate:                   args[2],
		Description:               args[3],
		GroupCode:                 args[4],
		QuotaCode:                 args[5],
		MovementCode:              args[6],
		TotalValue:                args[7],
		PaymentDescription:        args[8],
		AccountDebitFlag:          args[9],
		MessageText:               args[10],
		IdentificationMessageFlag: args[11],
		EmitBoletoFlag:            args[12],
		EmitBoletoPixFlag:         args[13],
	}, nil
}

// ParseCall finds `name(...)` inside attr and tokenizes the parenthesized
// argument list. Arguments are single-quoted strings, unquoted literals or
// the literal null; null and empty literals normalize to the empty string.
// Quoted arguments may span lines and contain commas.
func ParseCall(attr, name string) ([]string, error) {
	idx := strings.Index(attr, name+"(")
	if idx < 0 {
		return nil, ErrNoCallPattern
	}

	body, err := callBody(attr[idx+len(name)+1:])
	if err != nil {
		return nil, err
	}
	return tokenizeArguments(body)
}

// callBody returns the text up to the matching close paren, ignoring parens
// inside quoted segments.
func callBody(s string) (string, error) {
	inQuote := false
	for i, r := range s {
		switch {
		case r == '\'':
			inQuote = !inQuote
		case r == ')' && !inQuote:
			return s[:i], nil
		}
	}
	if inQuote {
		return "", ErrUnbalancedQuote
	}
	return "", ErrNoCallPattern
}

func tokenizeArguments(body string) ([]string, error) {
	var args []string
	rest := body
	for {
		arg, remainder, err := nextArgument(rest)
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
		if remainder == "" {
			return args, nil
		}
		rest = remainder
	}
}

// nextArgument consumes one argument and the trailing comma, if any. The
// returned remainder is empty once the list is exhausted.
func nextArgument(s string) (string, string, error) {
	s = strings.TrimLeftFunc(s, unicode.IsSpace)
	if s == "" {
		// trailing comma or empty list position
		return "", "", nil
	}

	if s[0] == '\'' {
		end := strings.IndexByte(s[1:], '\'')
		if end < 0 {
			return "", "", ErrUnbalancedQuote
		}
		value := s[1 : 1+end]
		rest := strings.TrimLeftFunc(s[2+end:], unicode.IsSpace)
		switch {
		case rest == "":
			return value, "", nil
		case rest[0] == ',':
			return value, rest[1:], nil
		default:
			return "", "", fmt.Errorf("submit: unexpected text %q after quoted argument", rest)
		}
	}

	// Unquoted literal: everything up to the next top-level comma.
	cut := strings.IndexByte(s, ',')
	var value, rest string
	if cut < 0 {
		value, rest = s, ""
	} else {
		value, rest = s[:cut], s[cut+1:]
	}
	value = strings.TrimSpace(value)
	if strings.ContainsRune(value, '\'') {
		return "", "", fmt.Errorf("submit: invalid literal %q", value)
	}
	if strings.EqualFold(value, "null") {
		value = ""
	}
	return value, rest, nil
}
