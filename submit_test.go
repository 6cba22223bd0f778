package formskema_test

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/reoring/formskema"
	"github.com/reoring/formskema/wire"
)

type countingTransport struct {
	calls int
	last  formskema.Submission
	err   error
}

func (c *countingTransport) Submit(_ context.Context, sub formskema.Submission) error {
	c.calls++
	c.last = sub
	return c.err
}

func TestSubmit_InvalidFocusesFirstRegistered(t *testing.T) {
	v := newRequired("name", "email")
	var focused []string
	s := formskema.New(map[string]any{"name": "", "email": ""}, v, formskema.Options{
		Focuser: formskema.FocusFunc(func(p string) { focused = append(focused, p) }),
	})
	s.RegisterField("email")
	s.RegisterField("name")

	tr := &countingTransport{}
	res, err := s.Submit(context.Background(), tr)
	require.NoError(t, err)
	require.Equal(t, formskema.SubmitInvalid, res.State)
	require.Equal(t, 0, tr.calls)
	require.Equal(t, "email", res.Focused)
	require.Equal(t, []string{"email"}, focused)
	require.Equal(t, formskema.FieldErrors{"name": "Required", "email": "Required"}, res.Errors)
	require.True(t, s.HasBeenSubmitted())
	require.Equal(t, 1, s.SubmitCount())
}

func TestSubmit_FocusFallsBackToDeclarationOrder(t *testing.T) {
	v := newRequired("alpha", "zeta")
	s, err := formskema.NewFromJSON([]byte(`{"zeta":"","alpha":""}`), v)
	require.NoError(t, err)
	res, err := s.Submit(context.Background(), &countingTransport{})
	require.NoError(t, err)
	require.Equal(t, "zeta", res.Focused)

	plain := formskema.New(map[string]any{"zeta": "", "alpha": ""}, v)
	require.Equal(t, "", plain.FirstInvalid())
	_, _ = plain.ValidateAll(context.Background())
	require.Equal(t, "alpha", plain.FirstInvalid(), "without declaration order paths are compared")
}

func TestSubmit_DisableFocusOnError(t *testing.T) {
	called := false
	s := formskema.New(map[string]any{"name": ""}, newRequired("name"), formskema.Options{
		DisableFocusOnError: true,
		Focuser:             formskema.FocusFunc(func(string) { called = true }),
	})
	res, err := s.Submit(context.Background(), &countingTransport{})
	require.NoError(t, err)
	require.Empty(t, res.Focused)
	require.False(t, called)
}

func TestSubmit_Success(t *testing.T) {
	s := formskema.New(map[string]any{"name": "n"}, newRequired("name"))
	var states []formskema.SubmitState
	s.Subscribe("", func([]formskema.Change) { states = append(states, s.SubmitState()) })

	tr := &countingTransport{}
	res, err := s.Submit(context.Background(), tr)
	require.NoError(t, err)
	require.Equal(t, formskema.SubmitSuccess, res.State)
	require.Equal(t, 1, tr.calls)
	require.Equal(t, s.FormID(), tr.last.FormID)
	require.Equal(t, url.Values{"name": {"n"}}, tr.last.Form())
	require.Equal(t, map[string]any{"name": "n"}, tr.last.Flat())

	var out struct {
		Name string `json:"name"`
	}
	require.NoError(t, tr.last.Decode(&out))
	require.Equal(t, "n", out.Name)
	require.Contains(t, states, formskema.SubmitSubmitting)
	require.Equal(t, formskema.SubmitSuccess, states[len(states)-1])
}

func TestSubmit_MergesServerPayload(t *testing.T) {
	var focused string
	s := formskema.New(map[string]any{"name": "n", "email": "e"}, nil, formskema.Options{
		FormID:  "signup",
		Focuser: formskema.FocusFunc(func(p string) { focused = p }),
	})
	payload := &wire.Payload{
		FieldErrors:      map[string]string{"email": "taken", "todos.0.title": "dup"},
		FormID:           "signup",
		RepopulateFields: map[string]any{"email": "e@x"},
	}
	tr := &countingTransport{err: fmt.Errorf("post: %w", payload)}

	res, err := s.Submit(context.Background(), tr)
	require.Error(t, err)
	p, ok := wire.AsPayload(err)
	require.True(t, ok)
	require.Same(t, payload, p)
	require.Equal(t, formskema.SubmitFailed, res.State)
	require.Equal(t, "taken", s.GetError("email"))
	require.Equal(t, "dup", s.GetError("todos[0].title"), "paths are canonicalized")
	require.Equal(t, "e@x", s.GetValue("email"))
	require.Equal(t, "email", res.Focused)
	require.Equal(t, "email", focused)
}

func TestSubmit_IgnoresPayloadForAnotherForm(t *testing.T) {
	s := formskema.New(map[string]any{"email": "e"}, nil, formskema.Options{FormID: "mine"})
	tr := &countingTransport{err: &wire.Payload{FieldErrors: map[string]string{"email": "taken"}, FormID: "theirs"}}
	res, err := s.Submit(context.Background(), tr)
	require.Error(t, err)
	require.Equal(t, formskema.SubmitFailed, res.State)
	require.True(t, s.IsValid())
}

func TestSubmit_TransportError(t *testing.T) {
	s := formskema.New(map[string]any{"email": "e"}, nil)
	boom := errors.New("connection refused")
	res, err := s.Submit(context.Background(), &countingTransport{err: boom})
	require.ErrorIs(t, err, boom)
	require.Equal(t, formskema.SubmitFailed, res.State)
	require.Equal(t, formskema.SubmitFailed, s.SubmitState())
}

func TestSubmit_TransportFieldErrorsAreMerged(t *testing.T) {
	var focused []string
	s := formskema.New(map[string]any{"email": "e", "name": "n"}, nil,
		formskema.Options{Focuser: formskema.FocusFunc(func(p string) { focused = append(focused, p) })})
	taken := formskema.FieldErrors{"email": "taken"}
	res, err := s.Submit(context.Background(), &countingTransport{err: fmt.Errorf("signup: %w", taken)})
	require.Error(t, err)
	require.Equal(t, formskema.SubmitFailed, res.State)
	require.Equal(t, formskema.FieldErrors{"email": "taken"}, res.Errors)
	require.Equal(t, "email", res.Focused)
	require.Equal(t, []string{"email"}, focused)

	issues := formskema.Issues{{Path: "name", Message: "reserved"}}
	res, err = s.Submit(context.Background(), &countingTransport{err: issues})
	require.Error(t, err)
	require.Equal(t, "reserved", s.GetError("name"))
	require.Equal(t, "reserved", res.Errors["name"])
}

func TestAsFieldErrors(t *testing.T) {
	fe, ok := formskema.AsFieldErrors(fmt.Errorf("wrapped: %w", formskema.FieldErrors{"a": "x"}))
	require.True(t, ok)
	require.Equal(t, formskema.FieldErrors{"a": "x"}, fe)
	_, ok = formskema.AsFieldErrors(errors.New("plain"))
	require.False(t, ok)
}

func TestSubmit_ResetAfterSubmit(t *testing.T) {
	s := formskema.New(map[string]any{"name": ""}, nil, formskema.Options{ResetAfterSubmit: true})
	s.SetValue("name", "typed")
	s.SetTouched("name", true)
	res, err := s.Submit(context.Background(), &countingTransport{})
	require.NoError(t, err)
	require.Equal(t, "typed", formskema.SnapshotOf(res.Data).Get("name"))
	require.Equal(t, "", s.GetValue("name"))
	require.False(t, s.GetTouched("name"))
	require.Equal(t, formskema.SubmitSuccess, s.SubmitState())
	require.Equal(t, 1, s.SubmitCount())
}

func TestSubmitWith_PostedFieldsWin(t *testing.T) {
	s := formskema.New(map[string]any{"name": "state", "email": "state@x"}, newRequired("name", "email"))
	tr := &countingTransport{}
	res, err := s.SubmitWith(context.Background(), tr, url.Values{"name": {"posted"}})
	require.NoError(t, err)
	require.Equal(t, formskema.SubmitSuccess, res.State)
	require.Equal(t, "posted", tr.last.Values.Get("name"))
	require.Equal(t, "state@x", tr.last.Values.Get("email"))

	_, err = s.SubmitWith(context.Background(), tr, url.Values{"a[": {"x"}})
	require.Error(t, err)
}

func TestSubmit_SupersededByReset(t *testing.T) {
	g := newGatedForm(formskema.FieldErrors{})
	s := formskema.New(map[string]any{"name": "n"}, g)
	tr := &countingTransport{}
	errc := make(chan error)
	go func() {
		_, err := s.Submit(context.Background(), tr)
		errc <- err
	}()
	<-g.started
	s.ResetForm()
	close(g.release)
	require.ErrorIs(t, <-errc, formskema.ErrValidationSuperseded)
	require.Equal(t, 0, tr.calls)
	require.Equal(t, formskema.SubmitIdle, s.SubmitState())
}
