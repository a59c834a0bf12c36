package buildsys

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestBuildSequence_Release(t *testing.T) {
	seq := BuildSequence(8, ProfileRelease)

	assert.Equal(t, []Command{
		{"git", "submodule", "update", "--init", "--recursive"},
		{"make", "-j", "8", "dep"},
		{"make", "-j", "8"},
	}, seq)
}

func TestBuildSequence_ASan(t *testing.T) {
	seq := BuildSequence(2, ProfileASan)

	require.Len(t, seq, 3)
	assert.Equal(t, Command{"make", "-j", "2", "dep", "EXTRA_FLAGS=-fsanitize=address", "EXTRA_LDFLAGS=-fsanitize=address"}, seq[1])
	assert.Equal(t, Command{"make", "-j", "2", "EXTRA_FLAGS=-fsanitize=address", "EXTRA_LDFLAGS=-fsanitize=address"}, seq[2])
}

func TestBuildSequence_ReturnsFreshSlices(t *testing.T) {
	first := BuildSequence(4, ProfileASan)
	first[1][2] = "99"
	first[2] = append(first[2], "extra")

	second := BuildSequence(4, ProfileASan)
	assert.Equal(t, "4", second[1][2])
	assert.NotContains(t, second[2], "extra")
}

func TestBuildSequence_JobsProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		jobs := rapid.IntRange(1, 512).Draw(t, "jobs")
		profile := rapid.SampledFrom([]Profile{ProfileRelease, ProfileASan}).Draw(t, "profile")

		for _, cmd := range BuildSequence(jobs, profile) {
			if cmd[0] != "make" {
				continue
			}

			if cmd[1] != "-j" || cmd[2] != strconv.Itoa(jobs) {
				t.Fatalf("unexpected job argument in %v", cmd)
			}
		}
	})
}

func TestCloneCmd(t *testing.T) {
	tests := []struct {
		name   string
		remote string
		want   Command
	}{
		{
			name:   "default_remote",
			remote: "",
			want:   Command{"git", "clone", "https://github.com/VCVRack/Fundamental.git"},
		},
		{
			name:   "custom_remote_with_slash",
			remote: "https://git.example.com/",
			want:   Command{"git", "clone", "https://git.example.com/VCVRack/Fundamental.git"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CloneCmd(tt.remote, "VCVRack", "Fundamental"))
		})
	}
}

func TestStepName(t *testing.T) {
	assert.Equal(t, "clone", StepName(CloneCmd("", "a", "b")))
	assert.Equal(t, "checkout", StepName(CheckoutCmd("dev")))
	assert.Equal(t, "submodule", StepName(BuildSequence(1, ProfileRelease)[0]))
	assert.Equal(t, "dep", StepName(BuildSequence(1, ProfileASan)[1]))
	assert.Equal(t, "build", StepName(BuildSequence(1, ProfileASan)[2]))
	assert.Equal(t, "empty", StepName(nil))
}

func TestCommand_String(t *testing.T) {
	assert.Equal(t, "make -j 4 dep", Command{"make", "-j", "4", "dep"}.String())
	assert.Equal(t, "git checkout 'feature branch'", CheckoutCmd("feature branch").String())
	assert.Equal(t, `git checkout "it's"`, CheckoutCmd("it's").String())
}

func TestParseProfile(t *testing.T) {
	p, err := ParseProfile("ASAN")
	require.NoError(t, err)
	assert.Equal(t, ProfileASan, p)

	p, err = ParseProfile("")
	require.NoError(t, err)
	assert.Equal(t, ProfileRelease, p)

	_, err = ParseProfile("debug")
	assert.Error(t, err)
}

func TestParsePolicy(t *testing.T) {
	p, err := ParsePolicy("fail-fast")
	require.NoError(t, err)
	assert.Equal(t, PolicyFailFast, p)

	p, err = ParsePolicy("continue")
	require.NoError(t, err)
	assert.Equal(t, PolicyContinue, p)

	_, err = ParsePolicy("retry")
	assert.Error(t, err)
}
