package version

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func saveVersion(t *testing.T) {
	t.Helper()
	v, r, d := Version, Revision, BuildDate
	t.Cleanup(func() {
		Version, Revision, BuildDate = v, r, d
	})
}

func TestVersionStrings(t *testing.T) {
	assert.NotEmpty(t, Version)
	assert.NotEmpty(t, Revision)
	assert.NotEmpty(t, BuildDate)

	assert.Contains(t, Short(), Version)
	assert.Contains(t, Short(), Revision)
	assert.Equal(t, "stageup/"+Version, UserAgent())

	detailed := Detailed()
	assert.Contains(t, detailed, Revision)
	assert.Contains(t, detailed, "/")
	assert.True(t, strings.HasPrefix(DetailedWithApp(), AppName+" "))
}

func TestApplyBuildInfo(t *testing.T) {
	tests := []struct {
		name                        string
		version, revision, date     string
		mainVersion                 string
		settings                    map[string]string
		wantVersion, wantRev, wantD string
	}{
		{
			name:        "defaults filled from build info",
			version:     devVersion,
			revision:    "HEAD",
			mainVersion: "v1.4.0",
			settings: map[string]string{
				"vcs.revision": "abcdef1234",
				"vcs.modified": "true",
				"vcs.time":     "2025-12-12T01:00:00Z",
			},
			wantVersion: "1.4.0",
			wantRev:     "abcdef1234-dirty",
			wantD:       "2025-12-12T01:00:00Z",
		},
		{
			name:        "devel module keeps default",
			version:     devVersion,
			revision:    "HEAD",
			mainVersion: "(devel)",
			settings:    map[string]string{"vcs.revision": "abc"},
			wantVersion: devVersion,
			wantRev:     "abc",
		},
		{
			name:        "ldflags win",
			version:     "2.0.0",
			revision:    "deadbeef",
			date:        "from-ldflags",
			mainVersion: "v9.9.9",
			settings: map[string]string{
				"vcs.revision": "abcdef",
				"vcs.time":     "2025-12-12T01:00:00Z",
			},
			wantVersion: "2.0.0",
			wantRev:     "deadbeef",
			wantD:       "from-ldflags",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			saveVersion(t)
			Version, Revision, BuildDate = tt.version, tt.revision, tt.date

			applyBuildInfo(tt.mainVersion, tt.settings)

			assert.Equal(t, tt.wantVersion, Version)
			assert.Equal(t, tt.wantRev, Revision)
			assert.Equal(t, tt.wantD, BuildDate)
		})
	}
}
