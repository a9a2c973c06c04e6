package docfile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testHeader struct {
	ID   string `yaml:"id"`
	Kind string `yaml:"kind"`
}

func TestSplit(t *testing.T) {
	tests := []struct {
		name       string
		content    string
		wantHeader string
		wantBody   string
		wantErr    error
	}{
		{
			name:       "header and body",
			content:    "---\nid: a1\nkind: test\n---\n\nbody text\n",
			wantHeader: "id: a1\nkind: test",
			wantBody:   "\nbody text\n",
		},
		{
			name:       "header only",
			content:    "---\nid: a1\n---\n",
			wantHeader: "id: a1",
		},
		{
			name:    "no fence",
			content: "just markdown\n",
			wantErr: ErrMissingFrontmatter,
		},
		{
			name:    "unclosed fence",
			content: "---\nid: a1\n",
			wantErr: ErrMalformedFrontmatter,
		},
		{
			name:       "crlf normalized",
			content:    "---\r\nid: a1\r\n---\r\nbody\r\n",
			wantHeader: "id: a1",
			wantBody:   "body\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			header, body, err := Split([]byte(tt.content))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantHeader, string(header))
			assert.Equal(t, tt.wantBody, string(body))
		})
	}
}

func TestDecodeHeader_RejectsUnknownFields(t *testing.T) {
	var h testHeader
	err := DecodeHeader([]byte("id: a1\nkind: test\nbogus: true"), &h)
	assert.Error(t, err)
}

func TestRender_RoundTrip(t *testing.T) {
	in := testHeader{ID: "a1", Kind: "test"}

	doc, err := Render(in, "\n## Body\n")
	require.NoError(t, err)

	header, body, err := Split(doc)
	require.NoError(t, err)

	var out testHeader
	require.NoError(t, DecodeHeader(header, &out))
	assert.Equal(t, in, out)
	assert.Equal(t, "\n## Body\n", string(body))

	// Split followed by Render reproduces the document exactly.
	again, err := Render(out, string(body))
	require.NoError(t, err)
	assert.Equal(t, doc, again)
}
