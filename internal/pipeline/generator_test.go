package pipeline

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sulcuslab/sulcus/internal/config"
	"github.com/sulcuslab/sulcus/internal/queue"
)

// testStudy builds a study layout under a temp dir with the given session
// directories present and returns its config.
func testStudy(t *testing.T, sessions ...string) *config.StudyConfig {
	t.Helper()
	base := t.TempDir()

	cfg := &config.StudyConfig{
		Version: "1.0",
		Study:   "SPINS",
		Sites:   []string{"CMH"},
		Paths: config.PathsConfig{
			Nii:       filepath.Join(base, "data", "nii"),
			Dcm:       filepath.Join(base, "data", "dcm"),
			QC:        filepath.Join(base, "qc"),
			Logs:      filepath.Join(base, "logs"),
			Pipelines: filepath.Join(base, "pipelines"),
		},
		Queue: config.QueueConfig{File: filepath.Join(base, "pipelines", "queue.txt")},
		Stages: []config.Stage{
			{
				Name:   "resample",
				Tool:   "3dresample",
				Args:   []string{"-dxyz", "3.0 3.0 3.0", "-prefix", "{{.SubjectDir}}/resampled.nii.gz", "{{.SubjectDir}}/{{.Subject}}_02_T1.nii.gz"},
				Output: "{{.SubjectDir}}/resampled.nii.gz",
			},
			{
				Name:   "crop",
				Tool:   "fslroi",
				Args:   []string{"{{.SubjectDir}}/resampled.nii.gz", "{{.SubjectDir}}/cropped.nii.gz"},
				Output: "{{.SubjectDir}}/cropped.nii.gz",
			},
		},
	}

	for _, s := range sessions {
		require.NoError(t, os.MkdirAll(filepath.Join(cfg.Paths.Nii, s), 0755))
	}

	return cfg
}

func TestSubjects(t *testing.T) {
	cfg := testStudy(t, "SPINS_CMH_0002_01", "SPINS_CMH_0001_01")

	// Noise that must be ignored: other study, malformed name, plain file
	require.NoError(t, os.MkdirAll(filepath.Join(cfg.Paths.Nii, "ASDD_CMH_0001_01"), 0755))
	require.NoError(t, os.MkdirAll(filepath.Join(cfg.Paths.Nii, "notes"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(cfg.Paths.Nii, "README.txt"), []byte("x"), 0644))

	g := NewGenerator(cfg, nil)
	subjects, err := g.Subjects()
	require.NoError(t, err)
	assert.Equal(t, []string{"SPINS_CMH_0001_01", "SPINS_CMH_0002_01"}, subjects)
}

func TestRender(t *testing.T) {
	cfg := testStudy(t, "SPINS_CMH_0001_01")
	g := NewGenerator(cfg, &config.Environment{AssetsDir: "/archive/assets"})

	script, err := g.Render("SPINS_CMH_0001_01")
	require.NoError(t, err)

	subjectDir := filepath.Join(cfg.Paths.Nii, "SPINS_CMH_0001_01")

	assert.True(t, strings.HasPrefix(script, "#!/bin/bash\n"), "shebang first")
	assert.Contains(t, script, "set -e")
	assert.Contains(t, script, "# stage: resample")
	assert.Contains(t, script, "if [ ! -f "+subjectDir+"/resampled.nii.gz ]; then")
	assert.Contains(t, script, `3dresample -dxyz "3.0 3.0 3.0" -prefix `+subjectDir+"/resampled.nii.gz")
	assert.Contains(t, script, subjectDir+"/SPINS_CMH_0001_01_02_T1.nii.gz")
	assert.Contains(t, script, "# stage: crop")

	// Stage order is preserved
	assert.Less(t, strings.Index(script, "# stage: resample"), strings.Index(script, "# stage: crop"))
}

func TestRenderContainerStage(t *testing.T) {
	cfg := testStudy(t, "SPINS_CMH_0001_01")
	cfg.Stages = []config.Stage{{
		Name:   "recon",
		Tool:   "recon-all",
		Image:  "freesurfer/freesurfer:7.4.1",
		Args:   []string{"-subjid", "{{.Subject}}", "-all"},
		Output: "{{.SubjectDir}}/recon.done",
	}}

	g := NewGenerator(cfg, nil)
	script, err := g.Render("SPINS_CMH_0001_01")
	require.NoError(t, err)

	assert.Contains(t, script, "docker run --rm -v "+cfg.Paths.Nii+":"+cfg.Paths.Nii+" freesurfer/freesurfer:7.4.1 recon-all -subjid SPINS_CMH_0001_01 -all")
}

func TestRenderBadTemplate(t *testing.T) {
	cfg := testStudy(t, "SPINS_CMH_0001_01")
	cfg.Stages[0].Output = "{{.NoSuchField}}/out.nii.gz"

	g := NewGenerator(cfg, nil)
	_, err := g.Render("SPINS_CMH_0001_01")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "resample/output")
}

func TestPlan(t *testing.T) {
	cfg := testStudy(t, "SPINS_CMH_0001_01", "SPINS_CMH_0002_01")
	g := NewGenerator(cfg, nil)

	result, err := g.Plan()
	require.NoError(t, err)
	assert.Len(t, result.Subjects, 2)
	assert.Len(t, result.Written, 2)
	assert.Len(t, result.Queued, 2)

	// Scripts exist and are executable
	for _, path := range result.Written {
		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.NotZero(t, info.Mode()&0111, "script should be executable")
	}

	// Queue holds both paths
	paths, err := queue.New(cfg.Queue.File).List()
	require.NoError(t, err)
	assert.Equal(t, result.Written, paths)

	// Re-planning rewrites scripts but queues nothing new
	result2, err := g.Plan()
	require.NoError(t, err)
	assert.Len(t, result2.Written, 2)
	assert.Empty(t, result2.Queued)
}

func TestExpandStage(t *testing.T) {
	cfg := testStudy(t, "SPINS_CMH_0001_01")
	g := NewGenerator(cfg, nil)

	output, args, err := g.ExpandStage(cfg.Stages[1], "SPINS_CMH_0001_01")
	require.NoError(t, err)

	subjectDir := filepath.Join(cfg.Paths.Nii, "SPINS_CMH_0001_01")
	assert.Equal(t, subjectDir+"/cropped.nii.gz", output)
	assert.Equal(t, []string{subjectDir + "/resampled.nii.gz", subjectDir + "/cropped.nii.gz"}, args)
}

func TestShellWord(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain word passes through", "recon-all", "recon-all"},
		{"empty word is quoted", "", `""`},
		{"whitespace is quoted", "3.0 3.0 3.0", `"3.0 3.0 3.0"`},
		{"dollar is escaped", "$HOME/data", `"\$HOME/data"`},
		{"backtick is escaped", "a`whoami`b", "\"a\\`whoami\\`b\""},
		{"backslash is escaped", `a\b`, `"a\\b"`},
		{"double quote is escaped", `say "hi"`, `"say \"hi\""`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, shellWord(tt.in))
		})
	}
}
