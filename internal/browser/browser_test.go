// internal/browser/browser_test.go
package browser

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pilotweb/pilot-cli/api/schemas"
)

func TestQueryOption(t *testing.T) {
	for _, by := range []string{schemas.ByXPath, schemas.ByCSS, schemas.ByID} {
		opt, err := queryOption(by)
		require.NoError(t, err, by)
		assert.NotNil(t, opt, by)
	}

	_, err := queryOption("link_text")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "link_text")
}

func TestSelector_RejectsEmptyHandle(t *testing.T) {
	_, _, err := selector(schemas.Element{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty element handle")
}

func TestResolveJS(t *testing.T) {
	tests := []struct {
		el   schemas.Element
		want string
	}{
		{schemas.Element{By: schemas.ByCSS, Value: "#login"}, `document.querySelector("#login")`},
		{schemas.Element{By: schemas.ByID, Value: "login"}, `document.getElementById("login")`},
		{schemas.Element{By: schemas.ByXPath, Value: "//button"}, `document.evaluate("//button"`},
	}
	for _, tt := range tests {
		assert.Contains(t, resolveJS(tt.el), tt.want)
	}
}

func TestCombineContext_CancelsOnSecondary(t *testing.T) {
	primary := context.Background()
	secondary, cancelSecondary := context.WithCancel(context.Background())

	combined, cancel := CombineContext(primary, secondary)
	defer cancel()

	require.NoError(t, combined.Err())
	cancelSecondary()

	select {
	case <-combined.Done():
	case <-time.After(time.Second):
		t.Fatal("combined context did not observe secondary cancellation")
	}
}

func TestCombineContext_CancelsOnPrimary(t *testing.T) {
	primary, cancelPrimary := context.WithCancel(context.Background())
	secondary := context.Background()

	combined, cancel := CombineContext(primary, secondary)
	defer cancel()

	cancelPrimary()

	select {
	case <-combined.Done():
	case <-time.After(time.Second):
		t.Fatal("combined context did not observe primary cancellation")
	}
}

func TestDetach_IgnoresParentCancellation(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	type key struct{}
	parent = context.WithValue(parent, key{}, "kept")

	detached := Detach(parent)
	cancel()

	assert.NoError(t, detached.Err())
	assert.Nil(t, detached.Done())
	assert.Equal(t, "kept", detached.Value(key{}))
}
