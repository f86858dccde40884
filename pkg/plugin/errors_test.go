package plugin

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDiagnose(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "manifest unreachable",
			err:  &StageError{Stage: StageManifest, Err: &ProxyExhaustedError{Target: "m"}},
			want: "manifest/network problem",
		},
		{
			name: "manifest without planned chunks",
			err:  &StageError{Stage: StageManifest, Err: fmt.Errorf("%w: %w", ErrNotFound, ErrManifestChunkNotFound)},
			want: "manifest structure problem",
		},
		{
			name: "no chunk downloaded",
			err:  &StageError{Stage: StageChunkFetch, Err: ErrNotFound},
			want: "network problem: no bundle chunk",
		},
		{
			name: "format change",
			err:  &StageError{Stage: StageParse, Err: ErrNotFound},
			want: "parse/structure problem",
		},
		{
			name: "dictionary",
			err:  &StageError{Stage: StageDictionary, Err: errors.New("boom")},
			want: "dictionary problem",
		},
		{
			name: "untagged relay failure",
			err:  &ProxyExhaustedError{Target: "x"},
			want: "network problem: all relays failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Contains(t, Diagnose(tt.err), tt.want)
		})
	}
	assert.Empty(t, Diagnose(nil))
}
