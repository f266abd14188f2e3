package pipeline

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vkuzn/apigw/internal/observability"
)

// recordingStage appends its hook invocations to a shared trace.
type recordingStage struct {
	name    string
	preErr  error
	postErr error
	trace   *[]string
}

func (s *recordingStage) Name() string {
	return s.name
}

func (s *recordingStage) Pre(_ context.Context, _ *Request, _ Context) error {
	*s.trace = append(*s.trace, s.name+".pre")
	return s.preErr
}

func (s *recordingStage) Post(_ context.Context, _ *Response, _ Context) error {
	*s.trace = append(*s.trace, s.name+".post")
	return s.postErr
}

func okTerminal(trace *[]string) Terminal {
	return func(context.Context) (*Response, error) {
		*trace = append(*trace, "terminal")
		return &Response{Status: http.StatusOK, Body: "ok"}, nil
	}
}

func newRequest() *Request {
	return &Request{Method: "GET", Path: "/users/42", Header: http.Header{}}
}

func TestChain_OnionOrder(t *testing.T) {
	var trace []string
	chain := NewChain(observability.NopLogger(),
		&recordingStage{name: "a", trace: &trace},
		&recordingStage{name: "b", trace: &trace},
		&recordingStage{name: "c", trace: &trace},
	)

	resp, err := chain.Execute(context.Background(), newRequest(), Context{}, okTerminal(&trace))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.Status)
	assert.Equal(t, []string{
		"a.pre", "b.pre", "c.pre",
		"terminal",
		"c.post", "b.post", "a.post",
	}, trace)
}

func TestChain_PreFailureAborts(t *testing.T) {
	var trace []string
	rejection := &StageError{Stage: "b", Status: http.StatusUnauthorized, Err: ErrUnauthorized}
	chain := NewChain(observability.NopLogger(),
		&recordingStage{name: "a", trace: &trace},
		&recordingStage{name: "b", preErr: rejection, trace: &trace},
		&recordingStage{name: "c", trace: &trace},
	)

	resp, err := chain.Execute(context.Background(), newRequest(), Context{}, okTerminal(&trace))
	assert.Nil(t, resp)
	assert.ErrorIs(t, err, ErrUnauthorized)

	// Earlier Pre hooks ran; the terminal and every Post hook were skipped.
	assert.Equal(t, []string{"a.pre", "b.pre"}, trace)
}

func TestChain_PostFailureDiscardsResponse(t *testing.T) {
	var trace []string
	failure := errors.New("post exploded")
	chain := NewChain(observability.NopLogger(),
		&recordingStage{name: "a", trace: &trace},
		&recordingStage{name: "b", postErr: failure, trace: &trace},
		&recordingStage{name: "c", trace: &trace},
	)

	resp, err := chain.Execute(context.Background(), newRequest(), Context{}, okTerminal(&trace))
	assert.Nil(t, resp)
	assert.ErrorIs(t, err, failure)

	// c.post ran before b.post failed; a.post was short-circuited.
	assert.Equal(t, []string{"a.pre", "b.pre", "c.pre", "terminal", "c.post", "b.post"}, trace)
}

func TestChain_TerminalError(t *testing.T) {
	var trace []string
	boom := errors.New("backend exploded")
	chain := NewChain(observability.NopLogger(),
		&recordingStage{name: "a", trace: &trace},
	)

	resp, err := chain.Execute(context.Background(), newRequest(), Context{}, func(context.Context) (*Response, error) {
		return nil, boom
	})
	assert.Nil(t, resp)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"a.pre"}, trace)
}

func TestChain_SharedContextMutation(t *testing.T) {
	rctx := Context{}
	chain := NewChain(observability.NopLogger(),
		NewMetricsStage(),
	)

	_, err := chain.Execute(context.Background(), newRequest(), rctx, func(context.Context) (*Response, error) {
		// The terminal observes mutations made by earlier Pre hooks.
		assert.NotEmpty(t, rctx[KeyStartNanos])
		return &Response{Status: http.StatusOK}, nil
	})
	require.NoError(t, err)
}

func TestChain_Stages(t *testing.T) {
	var trace []string
	chain := NewChain(observability.NopLogger(),
		&recordingStage{name: "metrics", trace: &trace},
		&recordingStage{name: "auth", trace: &trace},
	)
	assert.Equal(t, []string{"metrics", "auth"}, chain.Stages())
}

func TestStageError(t *testing.T) {
	err := &StageError{Stage: "auth", Status: http.StatusUnauthorized, Err: ErrUnauthorized}
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.Contains(t, err.Error(), "auth")

	var stageErr *StageError
	require.ErrorAs(t, error(err), &stageErr)
	assert.Equal(t, http.StatusUnauthorized, stageErr.Status)
}
