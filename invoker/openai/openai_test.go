package openai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentrun/core"
)

func TestBuildMessages(t *testing.T) {
	req := core.InvocationRequest{
		Context: []core.Turn{
			{Role: core.RoleUser, Content: "earlier question"},
			{Role: core.RoleAssistant, Content: "earlier answer"},
			{Role: core.RoleUser, Content: ""}, // empty turns are skipped
		},
		InputText: "current question",
	}

	messages := buildMessages("be helpful", req)
	require.Len(t, messages, 4, "system + two context turns + current input")
	assert.NotNil(t, messages[0].OfSystem)
	assert.NotNil(t, messages[1].OfUser)
	assert.NotNil(t, messages[2].OfAssistant)
	assert.NotNil(t, messages[3].OfUser)
}

func TestBuildMessages_NoSystemPrompt(t *testing.T) {
	messages := buildMessages("", core.InvocationRequest{InputText: "hi"})
	require.Len(t, messages, 1)
	assert.NotNil(t, messages[0].OfUser)
}
