package frontmatter_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"archstatus/internal/frontmatter"
)

type header struct {
	Tags    []string `yaml:"tags"`
	GraphID string   `yaml:"graph_id,omitempty"`
}

func TestRenderDecodeRoundtrip(t *testing.T) {
	in := header{Tags: []string{"archstatus/index"}, GraphID: "g-1"}
	body := "# Architecture Status\n\nworld\n"

	doc, err := frontmatter.Render(in, body)
	require.NoError(t, err)
	assert.Equal(t, "---\ntags:\n    - archstatus/index\ngraph_id: g-1\n---\n\n# Architecture Status\n\nworld\n", doc)

	var out header
	gotBody, err := frontmatter.Decode([]byte(doc), &out)
	require.NoError(t, err)
	assert.Equal(t, in, out)
	assert.Equal(t, body, gotBody)
}

func TestSplit(t *testing.T) {
	h, body, err := frontmatter.Split([]byte("---\nx: 1\n---\nbody\n"))
	require.NoError(t, err)
	assert.Equal(t, "x: 1\n", string(h))
	assert.Equal(t, "body\n", string(body))

	h, body, err = frontmatter.Split([]byte("---\n---\n"))
	require.NoError(t, err)
	assert.Empty(t, h)
	assert.Empty(t, body)
}

func TestSplitErrors(t *testing.T) {
	_, _, err := frontmatter.Split([]byte("no delimiter"))
	assert.ErrorContains(t, err, "opening")

	_, _, err = frontmatter.Split([]byte("---\nx: 1\n"))
	assert.ErrorContains(t, err, "closing")
}

func TestDecodeBadYAML(t *testing.T) {
	var out header
	_, err := frontmatter.Decode([]byte("---\ntags: [unclosed\n---\n"), &out)
	assert.Error(t, err)
}

func TestRenderNoBody(t *testing.T) {
	doc, err := frontmatter.Render(struct {
		X int `yaml:"x"`
	}{X: 1}, "")
	require.NoError(t, err)
	assert.Equal(t, "---\nx: 1\n---\n", doc)
}
