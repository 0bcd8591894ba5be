// pkg/rdock_err/errors_test.go

package rdock_err

import (
	"context"
	"testing"

	cerr "github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
)

func TestExpectedErrorClassification(t *testing.T) {
	ctx := context.Background()

	plain := cerr.New("boom")
	expected := NewExpectedError(ctx, plain)

	assert.False(t, IsExpectedUserError(plain))
	assert.True(t, IsExpectedUserError(expected))
	assert.True(t, IsExpectedUserError(cerr.Wrap(expected, "outer")), "classification survives wrapping")
	assert.Nil(t, NewExpectedError(ctx, nil))

	assert.Equal(t, 0, ExitCode(nil))
	assert.Equal(t, 1, ExitCode(plain))
	assert.Equal(t, 2, ExitCode(expected))
}

func TestExtractSummary(t *testing.T) {
	tests := []struct {
		name   string
		output string
		max    int
		want   string
	}{
		{name: "empty", output: "", max: 3, want: "No output provided."},
		{name: "whitespace", output: "  \n\n ", max: 3, want: "No output provided."},
		{
			name:   "nginx emerg line wins",
			output: "nginx: the configuration file test\nnginx: [emerg] unknown directive \"locaton\"",
			max:    2,
			want:   `nginx: [emerg] unknown directive "locaton"`,
		},
		{
			name:   "candidates capped",
			output: "error: one\nerror: two\nerror: three",
			max:    2,
			want:   "error: one - error: two",
		},
		{
			name:   "no error lines falls back to first line",
			output: "all good\nnothing to see",
			max:    2,
			want:   "all good",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractSummary(tt.output, tt.max))
		})
	}
}
