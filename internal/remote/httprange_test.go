package remote

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePersistedRange(t *testing.T) {
	tests := []struct {
		name    string
		header  string
		want    *byteRange
		wantErr bool
	}{
		{name: "empty", header: "", want: nil},
		{name: "first chunk", header: "bytes=0-262143", want: &byteRange{Start: 0, End: 262143}},
		{name: "spaces", header: "bytes= 0 - 9", want: &byteRange{Start: 0, End: 9}},
		{name: "missing unit", header: "0-10", wantErr: true},
		{name: "missing dash", header: "bytes=10", wantErr: true},
		{name: "reversed", header: "bytes=10-5", wantErr: true},
		{name: "negative", header: "bytes=-1-5", wantErr: true},
		{name: "garbage", header: "bytes=a-b", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parsePersistedRange(tt.header)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestContentRange(t *testing.T) {
	assert.Equal(t, "bytes */1000", contentRange(nil, 1000))
	assert.Equal(t, "bytes 0-255/1000", contentRange(&byteRange{Start: 0, End: 255}, 1000))
	assert.Equal(t, "bytes 256-999/1000", contentRange(&byteRange{Start: 256, End: 999}, 1000))
}

func TestByteRangeLength(t *testing.T) {
	assert.Equal(t, int64(1), byteRange{Start: 5, End: 5}.Length())
	assert.Equal(t, int64(262144), byteRange{Start: 0, End: 262143}.Length())
}

func TestChunkResultFraction(t *testing.T) {
	assert.Equal(t, 0.5, ChunkResult{BytesSent: 50, TotalBytes: 100}.Fraction())
	assert.Equal(t, 1.0, ChunkResult{BytesSent: 200, TotalBytes: 100}.Fraction())
	assert.Equal(t, 0.0, ChunkResult{}.Fraction())
	assert.Equal(t, 1.0, ChunkResult{Done: true}.Fraction())
}
