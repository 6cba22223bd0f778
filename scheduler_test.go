package formskema_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/reoring/formskema"
)

func TestBehavior_DefaultTransitions(t *testing.T) {
	v := newRequired("name")
	s := formskema.New(map[string]any{"name": ""}, v, inline(formskema.ValidationBehaviorConfig{}))

	// Initial + OnBlur: a change clears the error and does not validate.
	s.SetError("name", "stale")
	s.SetValue("name", "")
	require.Equal(t, 0, v.calls("name"))
	require.Empty(t, s.GetError("name"))

	// Blur validates.
	s.Blur("name")
	require.Equal(t, 1, v.calls("name"))
	require.Equal(t, "Required", s.GetError("name"))
	require.True(t, s.GetTouched("name"))

	// Touched + OnChange: every change validates.
	s.SetValue("name", "x")
	require.Equal(t, 2, v.calls("name"))
	require.Empty(t, s.GetError("name"))
	s.SetValue("name", "")
	require.Equal(t, "Required", s.GetError("name"))
}

func TestBehavior_OnSubmitLeavesErrors(t *testing.T) {
	v := newRequired("name")
	cfg := formskema.ValidationBehaviorConfig{Initial: formskema.OnSubmit, WhenTouched: formskema.OnSubmit, WhenSubmitted: formskema.OnSubmit}
	s := formskema.New(map[string]any{"name": ""}, v, inline(cfg))
	s.SetError("name", "server said no")
	s.SetValue("name", "x")
	s.Blur("name")
	require.Equal(t, 0, v.calls("name"))
	require.Equal(t, "server said no", s.GetError("name"))
}

func TestBehavior_SubmittedWins(t *testing.T) {
	v := newRequired("name")
	cfg := formskema.ValidationBehaviorConfig{Initial: formskema.OnSubmit, WhenTouched: formskema.OnSubmit, WhenSubmitted: formskema.OnChange}
	s := formskema.New(map[string]any{"name": ""}, v, inline(cfg))
	s.SetTouched("name", true)
	s.SetValue("name", "")
	require.Equal(t, 0, v.calls("name"))

	_, err := s.Submit(context.Background(), formskema.TransportFunc(func(context.Context, formskema.Submission) error {
		t.Fatal("transport must not be called for an invalid form")
		return nil
	}))
	require.NoError(t, err)
	require.Equal(t, formskema.StateSubmitted, s.State("name"))

	s.SetValue("name", "ok")
	require.Equal(t, 1, v.calls("name"))
	require.Empty(t, s.GetError("name"))
}

func TestValidationBehaviorConfig_For(t *testing.T) {
	cfg := formskema.ValidationBehaviorConfig{WhenTouched: formskema.OnSubmit}
	require.Equal(t, formskema.OnBlur, cfg.For(false, false))
	require.Equal(t, formskema.OnSubmit, cfg.For(true, false))
	require.Equal(t, formskema.OnChange, cfg.For(true, true))
}

func TestAsyncRace_LatestWins(t *testing.T) {
	g := newGatedField("a", "ab", "abc")
	s := formskema.New(map[string]any{"name": ""}, g, formskema.Options{
		ValidationBehavior: formskema.ValidationBehaviorConfig{Initial: formskema.OnChange},
	})
	defer s.Close()

	s.SetValue("name", "a")
	s.SetValue("name", "ab")
	s.SetValue("name", "abc")
	for i := 0; i < 3; i++ {
		<-g.started
	}
	require.True(t, s.IsValidating("name"))

	g.release("abc")
	require.Eventually(t, func() bool { return !s.IsValidating("name") }, time.Second, time.Millisecond)
	require.Empty(t, s.GetError("name"))

	// Older runs settle afterwards and must not overwrite the latest result.
	g.release("a")
	g.release("ab")
	s.Wait()
	require.Empty(t, s.GetError("name"))
	require.False(t, s.IsValidating("name"))
}

func TestAsyncRace_AnyOrder(t *testing.T) {
	g := newGatedField("a", "ab", "abc")
	s := formskema.New(map[string]any{"name": ""}, g, formskema.Options{
		ValidationBehavior: formskema.ValidationBehaviorConfig{Initial: formskema.OnChange},
	})
	defer s.Close()
	for _, v := range []string{"abc", "ab", "a"} {
		s.SetValue("name", v)
	}
	for i := 0; i < 3; i++ {
		<-g.started
	}
	// The latest value is "a": it is too short, whatever order runs finish in.
	g.release("a")
	g.release("abc")
	g.release("ab")
	s.Wait()
	require.Equal(t, "too short", s.GetError("name"))
}

func TestFieldRunNewerThanFormRunWins(t *testing.T) {
	g := newGatedForm(formskema.FieldErrors{"name": "from form", "email": "bad email"})
	s := formskema.New(map[string]any{"name": "", "email": ""}, g,
		inline(formskema.ValidationBehaviorConfig{Initial: formskema.OnChange}))

	type outcome struct {
		valid bool
		err   error
	}
	done := make(chan outcome)
	go func() {
		valid, err := s.ValidateAll(context.Background())
		done <- outcome{valid, err}
	}()
	<-g.started
	require.True(t, s.IsValidating(""))
	s.SetValue("name", "x") // inline field run, initiated after the form run
	close(g.release)
	out := <-done
	require.NoError(t, out.err)
	require.False(t, out.valid)

	require.Empty(t, s.GetError("name"))
	require.Equal(t, "bad email", s.GetError("email"))
}

func TestFormRunSupersedesOlderFieldRun(t *testing.T) {
	g := newGatedField("a")
	s := formskema.New(map[string]any{"name": ""}, g, formskema.Options{
		ValidationBehavior: formskema.ValidationBehaviorConfig{Initial: formskema.OnChange},
	})
	defer s.Close()
	s.SetValue("name", "a")
	<-g.started

	valid, err := s.ValidateAll(context.Background())
	require.NoError(t, err)
	require.True(t, valid)

	g.release("a")
	s.Wait()
	require.Empty(t, s.GetError("name"), "the field run started before an applied form run")
}

func TestResetInvalidatesInFlightRuns(t *testing.T) {
	g := newGatedField("a")
	s := formskema.New(map[string]any{"name": ""}, g, formskema.Options{
		ValidationBehavior: formskema.ValidationBehaviorConfig{Initial: formskema.OnChange},
	})
	defer s.Close()
	s.SetValue("name", "a")
	<-g.started

	s.ResetField("name")
	require.False(t, s.IsValidating("name"))
	g.release("a")
	s.Wait()
	require.Empty(t, s.GetError("name"))
	require.Equal(t, "", s.GetValue("name"))
}

func TestResetFormSupersedesValidateAll(t *testing.T) {
	g := newGatedForm(formskema.FieldErrors{"name": "bad"})
	s := formskema.New(map[string]any{"name": ""}, g)
	errc := make(chan error)
	go func() {
		_, err := s.ValidateAll(context.Background())
		errc <- err
	}()
	<-g.started
	s.ResetForm()
	close(g.release)
	require.ErrorIs(t, <-errc, formskema.ErrValidationSuperseded)
	require.True(t, s.IsValid())
}

type failing struct{}

func (failing) Validate(context.Context, formskema.Snapshot) (formskema.Result, error) {
	return formskema.Result{}, errDown
}

func TestValidatorErrorsAreNotFieldMessages(t *testing.T) {
	s := formskema.New(map[string]any{"name": ""}, failing{},
		inline(formskema.ValidationBehaviorConfig{Initial: formskema.OnChange}))
	s.SetError("name", "previous")
	s.SetValue("name", "x")
	require.Equal(t, "previous", s.GetError("name"))

	_, err := s.ValidateField(context.Background(), "name")
	require.ErrorIs(t, err, errDown)
	_, err = s.ValidateAll(context.Background())
	require.ErrorIs(t, err, errDown)
	require.Equal(t, "previous", s.GetError("name"))
}

func TestValidateField_FallsBackToWholeForm(t *testing.T) {
	v := formskema.ValidatorFunc(func(_ context.Context, snap formskema.Snapshot) (formskema.Result, error) {
		errs := formskema.FieldErrors{}
		if snap.Get("email") == "" {
			errs["email"] = "Required"
		}
		errs["name"] = "unrelated"
		return formskema.Result{Errors: errs}, nil
	})
	s := formskema.New(map[string]any{"email": "", "name": ""}, v)
	msg, err := s.ValidateField(context.Background(), "email")
	require.NoError(t, err)
	require.Equal(t, "Required", msg)
	require.Equal(t, "Required", s.GetError("email"))
	require.Empty(t, s.GetError("name"), "only the requested path is applied")
}

func TestValidateField_FallbackMatchesCanonicalKeys(t *testing.T) {
	v := formskema.ValidatorFunc(func(context.Context, formskema.Snapshot) (formskema.Result, error) {
		return formskema.Result{Errors: formskema.FieldErrors{"todos.0.title": "Required"}}, nil
	})
	s := formskema.New(todoDefaults(), v)
	msg, err := s.ValidateField(context.Background(), "todos[0].title")
	require.NoError(t, err)
	require.Equal(t, "Required", msg)
	require.Equal(t, "Required", s.GetError("todos[0].title"))

	msg, err = formskema.ValidateAt(context.Background(), v, s.Values(), "todos.0.title")
	require.NoError(t, err)
	require.Equal(t, "Required", msg)
}

func TestCloseCancelsInFlightRuns(t *testing.T) {
	g := newGatedField("a")
	s := formskema.New(map[string]any{"name": ""}, g, formskema.Options{
		ValidationBehavior: formskema.ValidationBehaviorConfig{Initial: formskema.OnChange},
	})
	s.SetValue("name", "a")
	<-g.started
	s.Close()
	require.False(t, s.IsValidating("name"))
	require.Empty(t, s.GetError("name"))
}
