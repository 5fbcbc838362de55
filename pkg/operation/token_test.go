package operation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theory-cloud/listtheory/pkg/errors"
)

func TestETagFormat(t *testing.T) {
	assert.Equal(t, `W/"1"`, ETag(1))
	assert.Equal(t, `W/"42"`, ETag(42))
}

func TestParseETag(t *testing.T) {
	tests := []struct {
		token   string
		want    int64
		wantErr bool
	}{
		{token: `W/"1"`, want: 1},
		{token: `W/"42"`, want: 42},
		{token: `"7"`, want: 7},
		{token: `3`, want: 3},
		{token: ``, wantErr: true},
		{token: `W/""`, wantErr: true},
		{token: `W/"abc"`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.token, func(t *testing.T) {
			got, err := ParseETag(tt.token)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, errors.ErrInvalidToken)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestETagRoundTrip(t *testing.T) {
	for _, version := range []int64{1, 9, 1234} {
		got, err := ParseETag(ETag(version))
		require.NoError(t, err)
		assert.Equal(t, version, got)
	}
}
