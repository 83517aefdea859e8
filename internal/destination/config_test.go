package destination

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{name: "drive", cfg: Config{Credentials: "t.json", Folder: "f"}},
		{name: "drive without folder", cfg: Config{Credentials: "t.json"}, wantErr: "`folder` required"},
		{name: "drive without credentials", cfg: Config{Folder: "f"}, wantErr: "`credentials` required"},
		{name: "s3", cfg: Config{Kind: "S3", Bucket: "b"}},
		{name: "s3 without bucket", cfg: Config{Kind: KindS3}, wantErr: "`bucket` required"},
		{name: "bad endpoint", cfg: Config{Kind: KindS3, Bucket: "b", Endpoint: "localhost"}, wantErr: "invalid endpoint"},
		{name: "unknown kind", cfg: Config{Kind: "ftp"}, wantErr: "unknown kind"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestConfigValidate_Defaults(t *testing.T) {
	drive := Config{Credentials: "token.json", Folder: "f"}
	require.NoError(t, drive.Validate())
	assert.Equal(t, KindDrive, drive.Kind)
	assert.True(t, filepath.IsAbs(drive.Credentials))

	s3 := Config{Kind: "S3", Bucket: "b", Folder: "/a/b/"}
	require.NoError(t, s3.Validate())
	assert.Equal(t, KindS3, s3.Kind)
	assert.Equal(t, defaultS3Region, s3.Region)
	assert.Equal(t, "a/b", s3.Folder)
}
