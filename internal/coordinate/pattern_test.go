package coordinate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilename(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		coordinate string
		want       string
	}{
		{coordinate: "g:a:1.0.0", want: "a-1.0.0.jar"},
		{coordinate: "g:a:1.0.0:sources", want: "a-1.0.0-sources.jar"},
		{coordinate: "g:a:1.0.0:sources:zip", want: "a-1.0.0-sources.zip"},
	}

	for _, tc := range testCases {
		t.Run(tc.coordinate, func(t *testing.T) {
			got, err := Filename(MustParse(tc.coordinate), "", FilenamePattern)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestFilename_RoundTripsClassifierAndType(t *testing.T) {
	got, err := Filename(MustParse("g:a:v:classifier:type"), "", FilenamePattern)
	require.NoError(t, err)
	assert.Equal(t, "a-v-classifier.type", got)
}

func TestMavenPath(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		coordinate string
		ext        string
		want       string
	}{
		{coordinate: "g:a:1.0.0", want: "g/a/1.0.0/a-1.0.0.jar"},
		{coordinate: "g:a:1.0.0:sources", want: "g/a/1.0.0/a-1.0.0-sources.jar"},
		{coordinate: "g:a:1.0.0:sources:zip", want: "g/a/1.0.0/a-1.0.0-sources.zip"},
		{coordinate: "org.slf4j:slf4j-api:2.0.9", ext: "pom", want: "org/slf4j/slf4j-api/2.0.9/slf4j-api-2.0.9.pom"},
	}

	for _, tc := range testCases {
		t.Run(tc.coordinate, func(t *testing.T) {
			got, err := MavenPath(MustParse(tc.coordinate), tc.ext, Maven2Pattern)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestPattern_Expand(t *testing.T) {
	t.Parallel()

	c := MustParse("org.x:core:2.1:tests")
	c.Revision = "20240101.1"

	testCases := []struct {
		name        string
		pattern     string
		groupAsPath bool
		want        string
	}{
		{name: "flat keeps dots", pattern: FlatPattern, want: "org.x/core/2.1/core-2.1-tests-20240101.1.jar"},
		{name: "as path token", pattern: "[groupId-as-path]/[artifactId]", want: "org/x/core"},
		{name: "group as path flag", pattern: "[groupId]", groupAsPath: true, want: "org/x"},
		{name: "group with only literals", pattern: "a(-b)c", want: "a-bc"},
		{name: "group with several placeholders", pattern: "[artifactId](-[classifier]-[version]-[ext]-)x", want: "core-tests-2.1-jar-x"},
		{name: "no parentheses in output", pattern: "([artifactId])", want: "core"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			p, err := CompilePattern(tc.pattern)
			require.NoError(t, err)
			assert.Equal(t, tc.want, p.Expand(c, "", tc.groupAsPath))
			assert.Equal(t, tc.pattern, p.String())
		})
	}

	// A group whose placeholder is empty disappears entirely.
	p := MustCompilePattern("[artifactId](-[classifier])(+[revision])")
	assert.Equal(t, "core", p.Expand(MustParse("org.x:core:2.1"), "", false))
}

func TestCompilePattern_Errors(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name    string
		pattern string
		reason  string
	}{
		{name: "unknown placeholder", pattern: "[artifact]", reason: "unknown placeholder [artifact]"},
		{name: "unterminated placeholder", pattern: "[artifactId", reason: "unterminated placeholder"},
		{name: "stray bracket", pattern: "a]", reason: "unexpected ]"},
		{name: "nested group", pattern: "((-[classifier]))", reason: "nested optional group"},
		{name: "stray paren", pattern: "a)", reason: "unexpected )"},
		{name: "unterminated group", pattern: "a(-[classifier]", reason: "unterminated optional group"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := CompilePattern(tc.pattern)
			var perr *PatternError
			require.ErrorAs(t, err, &perr)
			assert.ErrorContains(t, err, tc.reason)

			_, err = Filename(MustParse("g:a:1"), "", tc.pattern)
			assert.Error(t, err)
		})
	}

	assert.Panics(t, func() { MustCompilePattern("(") })
}

func TestFromMavenPath(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		path       string
		coordinate string
		ext        string
	}{
		{path: "org/slf4j/slf4j-api/2.0.9/slf4j-api-2.0.9.jar", coordinate: "org.slf4j:slf4j-api:2.0.9", ext: "jar"},
		{path: "/g/a/1.0.0/a-1.0.0-sources.jar", coordinate: "g:a:1.0.0:sources", ext: "jar"},
		{path: "g/a/1.0.0/a-1.0.0.pom", coordinate: "g:a:1.0.0::pom", ext: "pom"},
		{path: "g/a/1.0.0/a-1.0.0.jar.sha1", coordinate: "g:a:1.0.0::jar.sha1", ext: "jar.sha1"},
		{path: "g/a/1.0/a-1.0-jdk1.8.jar", coordinate: "g:a:1.0:jdk1.8", ext: "jar"},
		{path: "g/a/1.0/a-1.0-jdk1.8.jar.sha1", coordinate: "g:a:1.0:jdk1.8:jar.sha1", ext: "jar.sha1"},
		{path: "g/a/1.0/a-1.0-bin.tar.gz", coordinate: "g:a:1.0:bin:tar.gz", ext: "tar.gz"},
		{path: "g/a/1.0/a-1.0.pom.asc", coordinate: "g:a:1.0::pom.asc", ext: "pom.asc"},
	}

	for _, tc := range testCases {
		t.Run(tc.path, func(t *testing.T) {
			c, ext, err := FromMavenPath(tc.path)
			require.NoError(t, err)
			assert.Equal(t, tc.coordinate, c.String())
			assert.Equal(t, tc.ext, ext)

			back, err := MavenPath(c, ext, Maven2Pattern)
			require.NoError(t, err)
			assert.Equal(t, tc.path[len(tc.path)-len(back):], back)
		})
	}

	for _, bad := range []string{"a/1.0/a-1.0.jar", "g/a/1.0/b-1.0.jar", "g/a/1.0/a-1.0", "g/a/1.0/a-1.0-sources", "g/a/1.0/a-1.0-.jar", "g/a/1.0/a-1.0x.jar", "g/a/1.0/a-1.0.jar."} {
		_, _, err := FromMavenPath(bad)
		assert.Error(t, err, bad)
	}
}
