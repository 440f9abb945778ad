package mcp

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jstsdebug/internal/cdp"
)

func TestRemarshalDecodesArgumentsIntoTypedStruct(t *testing.T) {
	var args executeCommandsArgs
	err := remarshal(map[string]interface{}{
		"session_id": "abc123",
		"commands": []interface{}{
			map[string]interface{}{"method": "Debugger.resume"},
		},
		"allow_unknown_command": true,
	}, &args)

	require.NoError(t, err)
	assert.Equal(t, "abc123", args.SessionID)
	assert.True(t, args.AllowUnknownCommand)
	require.Len(t, args.Commands, 1)
	assert.Equal(t, "Debugger.resume", args.Commands[0].Method)
}

func TestJSONResultMarshalsIntoSingleTextBlock(t *testing.T) {
	result := jsonResult(map[string]interface{}{"session_id": "s1"})
	require.Len(t, result.Content, 1)
	assert.Equal(t, "text", result.Content[0].Type)

	var decoded map[string]string
	require.NoError(t, json.Unmarshal([]byte(result.Content[0].Text), &decoded))
	assert.Equal(t, "s1", decoded["session_id"])
	assert.False(t, result.IsError)
}

func TestToolErrorMarksResultAsError(t *testing.T) {
	result := toolError(cdp.ErrSessionClosed)
	assert.True(t, result.IsError)
	assert.Contains(t, result.Content[0].Text, cdp.ErrSessionClosed.Error())
}

func TestErrorClassDistinguishesFatalFromPerCommand(t *testing.T) {
	assert.Equal(t, "fatal", errorClass(cdp.ErrSessionClosed))
	assert.Equal(t, "per_command", errorClass(&cdp.UnknownCommandError{Method: "Page.navigate"}))
	assert.Equal(t, "", errorClass(nil))
}
