package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const baselineYAML = `
swagger: "2.0"
paths:
  /referrals:
    post:
      security:
        - BearerAuth: []
      parameters:
        - name: request
          in: body
          required: true
      responses:
        "201": {}
        "400": {}
  /members:
    x-internal: true
    get:
      parameters:
        - name: limit
          in: query
      responses:
        "200": {}
`

func TestParse_IgnoresNonMethodKeys(t *testing.T) {
	doc, err := parse([]byte(baselineYAML))
	require.NoError(t, err)
	assert.Len(t, doc.Paths["/members"], 1)
	assert.Contains(t, doc.Paths["/members"], "get")
}

func TestParse_MissingPaths(t *testing.T) {
	_, err := parse([]byte(`swagger: "2.0"`))
	assert.Error(t, err)
}

func TestCompare(t *testing.T) {
	base, err := parse([]byte(baselineYAML))
	require.NoError(t, err)

	t.Run("identical", func(t *testing.T) {
		assert.Empty(t, compare(base, base))
	})

	t.Run("breaking changes", func(t *testing.T) {
		revision, err := parse([]byte(`
paths:
  /referrals:
    post:
      security:
        - BearerAuth: []
      parameters:
        - name: request
          in: body
          required: true
      responses:
        "201": {}
  /members:
    get:
      security:
        - BearerAuth: []
      parameters:
        - name: limit
          in: query
          required: true
      responses:
        "200": {}
`))
		require.NoError(t, err)

		assert.Equal(t, []string{
			"new required parameter: GET /members -> query:limit",
			"operation now requires auth: GET /members",
			"removed response code: POST /referrals -> 400",
		}, compare(base, revision))
	})

	t.Run("removed path", func(t *testing.T) {
		revision, err := parse([]byte(`
paths:
  /referrals:
    post:
      responses:
        "201": {}
        "400": {}
`))
		require.NoError(t, err)
		assert.Equal(t, []string{"removed path: /members"}, compare(base, revision))
	})
}

func TestCompiledDocIsCompatibleWithItself(t *testing.T) {
	doc, err := parse([]byte(compiledDoc()))
	require.NoError(t, err)
	assert.Contains(t, doc.Paths, "/admin/referrals/{id}/transition")
	assert.Empty(t, compare(doc, doc))
}
