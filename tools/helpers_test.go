package tools

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecipientsUnmarshal(t *testing.T) {
	var fromArray Recipients
	require.NoError(t, json.Unmarshal([]byte(`["a@contoso.com"," b@contoso.com ",""]`), &fromArray))
	assert.Equal(t, Recipients{"a@contoso.com", "b@contoso.com"}, fromArray)

	var fromString Recipients
	require.NoError(t, json.Unmarshal([]byte(`"a@contoso.com, b@contoso.com ,"`), &fromString))
	assert.Equal(t, Recipients{"a@contoso.com", "b@contoso.com"}, fromString)

	var invalid Recipients
	assert.Error(t, json.Unmarshal([]byte(`42`), &invalid))
}

func TestSanitizeEmailHTML(t *testing.T) {
	input := `<p onclick="steal()">Hi</p><script>alert(1)</script>` +
		`<iframe src="x"></iframe><a href="javascript:run()">link</a>`
	out := sanitizeEmailHTML(input)
	assert.NotContains(t, out, "<script")
	assert.NotContains(t, out, "<iframe")
	assert.NotContains(t, out, "onclick")
	assert.NotContains(t, out, "javascript:")
	assert.Contains(t, out, "<p")
	assert.Contains(t, out, "Hi")
	assert.Contains(t, out, "blocked:run()")
}

func TestNormalizeTop(t *testing.T) {
	s := &Service{cfg: testConfig()}
	assert.Equal(t, 10, s.normalizeTop(0))
	assert.Equal(t, 7, s.normalizeTop(7))
	assert.Equal(t, 50, s.normalizeTop(500))
}

func TestMaxChars(t *testing.T) {
	s := &Service{cfg: testConfig()}
	assert.Equal(t, 4000, s.maxChars(0))
	assert.Equal(t, 1234, s.maxChars(1234))
}
