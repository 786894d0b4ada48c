package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/impromptu/core"
	"github.com/hupe1980/impromptu/internal/config"
	"github.com/hupe1980/impromptu/internal/testutil"
	"github.com/hupe1980/impromptu/model"
)

func icsConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Calendar.Provider = "ics"
	cfg.Calendar.ICSDir = t.TempDir()
	cfg.Credential.AccessToken = "local"
	cfg.Server.Metrics = false
	cfg.Logging.Level = "error"
	return cfg
}

func TestRunChat_PrintsEvents(t *testing.T) {
	cfg := icsConfig(t)
	llm := model.NewScriptedModel(
		model.Reply("", testutil.Call("t1", "askTimeAndTimeZone", nil)),
		model.Reply("", testutil.Call("e1", "makeGCalendarEntry", map[string]any{
			"summary": "Dentist", "startDate": "2025-06-10", "endDate": "2025-06-11", "allDay": true,
		})),
		model.Reply("Booked."),
	)

	var out, logs bytes.Buffer
	require.NoError(t, runChat(context.Background(), cfg, llm, "dentist on the 10th", "", &out, &logs))

	events, err := core.DecodeEvents(out.Bytes())
	require.NoError(t, err)
	require.NotEmpty(t, events)
	assert.Equal(t, core.EventTypeAgentEnd, events[len(events)-1].EventType())

	files, err := filepath.Glob(filepath.Join(cfg.Calendar.ICSDir, "*.ics"))
	require.NoError(t, err)
	assert.Len(t, files, 1)
}

func TestRunChat_ErrorEvent(t *testing.T) {
	cfg := icsConfig(t)
	var out, logs bytes.Buffer

	err := runChat(context.Background(), cfg, model.NewScriptedModel(), "x", "", &out, &logs)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run failed")

	var raw []map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &raw))
	assert.Equal(t, "agent_error", raw[len(raw)-1]["type"])
}

func TestBuildApp_Errors(t *testing.T) {
	cfg := icsConfig(t)
	cfg.Model.APIKey = ""
	_, err := buildApp(context.Background(), cfg, nil, &bytes.Buffer{})
	assert.ErrorContains(t, err, "ANTHROPIC_API_KEY")

	cfg.Agent.InstructionFile = filepath.Join(t.TempDir(), "missing.tmpl")
	_, err = buildApp(context.Background(), cfg, model.NewScriptedModel(), &bytes.Buffer{})
	assert.ErrorContains(t, err, "read instruction file")
}

func TestBuildApp_InstructionFile(t *testing.T) {
	cfg := icsConfig(t)
	cfg.Agent.InstructionFile = filepath.Join(t.TempDir(), "policy.tmpl")
	require.NoError(t, os.WriteFile(cfg.Agent.InstructionFile, []byte("policy for {{.TimeZone}}"), 0o600))

	llm := model.NewScriptedModel(model.Reply("hi"))
	app, err := buildApp(context.Background(), cfg, llm, &bytes.Buffer{})
	require.NoError(t, err)
	app.Assistant.ChatInterface(context.Background(), "hello", "Asia/Tokyo")

	assert.Equal(t, "policy for Asia/Tokyo", llm.Requests()[0].Instructions)
}

func TestRootCmd_Version(t *testing.T) {
	SetVersion("1.2.3")
	t.Cleanup(func() { SetVersion("dev") })

	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"version"})
	require.NoError(t, cmd.Execute())
	assert.Equal(t, "impromptu version 1.2.3\n", out.String())
}
