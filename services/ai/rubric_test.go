package aisvc_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pkg/errors"
	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielortegac/qlase/core"
	"github.com/danielortegac/qlase/core/course"
	"github.com/danielortegac/qlase/services/ai"
	"github.com/danielortegac/qlase/tests"
)

func TestParseRubric(t *testing.T) {
	tests := []struct {
		name      string
		content   string
		maxPoints int
		want      []course.RubricItem
		wantErr   bool
	}{
		{
			name:      "plain json",
			content:   `[{"criteria":"Content","description":"Accuracy","points":60},{"criteria":"Style","description":"Clarity","points":40}]`,
			maxPoints: 100,
			want: []course.RubricItem{
				{Criteria: "Content", Description: "Accuracy", Points: 60},
				{Criteria: "Style", Description: "Clarity", Points: 40},
			},
		},
		{
			name:      "fenced json",
			content:   "```json\n[{\"criteria\":\" Content \",\"description\":\"All of it\",\"points\":20}]\n```",
			maxPoints: 20,
			want:      []course.RubricItem{{Criteria: "Content", Description: "All of it", Points: 20}},
		},
		{name: "wrong total", content: `[{"criteria":"Content","points":60}]`, maxPoints: 100, wantErr: true},
		{name: "empty", content: `[]`, maxPoints: 100, wantErr: true},
		{name: "not json", content: `Here is your rubric!`, maxPoints: 100, wantErr: true},
		{name: "zero points", content: `[{"criteria":"A","points":100},{"criteria":"B","points":0}]`, maxPoints: 100, wantErr: true},
		{name: "blank criteria", content: `[{"criteria":"  ","points":100}]`, maxPoints: 100, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := aisvc.ParseRubric(tt.content, tt.maxPoints)
			if tt.wantErr {
				assert.Equal(t, aisvc.ErrBadRubric, errors.Cause(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestOpenAIGenerator_GenerateRubric(t *testing.T) {
	reply := "```json\n" + `[
		{"criteria":"Research","description":"Sources","points":25},
		{"criteria":"Analysis","description":"Depth","points":25},
		{"criteria":"Structure","description":"Flow","points":25},
		{"criteria":"Writing","description":"Grammar","points":25}
	]` + "\n```"

	var gotReq openai.ChatCompletionRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			http.NotFound(w, r)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&gotReq)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(openai.ChatCompletionResponse{
			Choices: []openai.ChatCompletionChoice{{
				Message:      openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: reply},
				FinishReason: openai.FinishReasonStop,
			}},
		})
	}))
	defer srv.Close()

	clientConf := openai.DefaultConfig("test-key")
	clientConf.BaseURL = srv.URL + "/v1"
	gen := aisvc.NewOpenAIGenerator(clientConf, "", testutil.NewLogger(core.NewTestConfig()))

	items, err := gen.GenerateRubric(context.Background(), "Essay", "Write about rivers", 100)
	require.NoError(t, err)
	assert.Len(t, items, 4)
	assert.Equal(t, 100, course.RubricTotal(items))
	assert.Equal(t, openai.GPT4oMini, gotReq.Model)
	if assert.Len(t, gotReq.Messages, 2) {
		assert.Contains(t, gotReq.Messages[1].Content, "Write about rivers")
	}
}

func TestOpenAIGenerator_upstreamFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	clientConf := openai.DefaultConfig("test-key")
	clientConf.BaseURL = srv.URL + "/v1"
	gen := aisvc.NewOpenAIGenerator(clientConf, "gpt-4o", testutil.NewLogger(core.NewTestConfig()))

	_, err := gen.GenerateRubric(context.Background(), "Essay", "", 100)
	assert.Error(t, err)
}

func TestNewGenerator_withoutKey(t *testing.T) {
	conf := core.NewTestConfig()
	gen := aisvc.NewGenerator(conf, testutil.NewLogger(conf))

	_, err := gen.GenerateRubric(context.Background(), "Essay", "", 100)
	assert.Equal(t, aisvc.ErrUnavailable, err)
}
