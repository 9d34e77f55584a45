package audit

import (
	"bytes"
	"io"
	"os"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T {
	return &v
}

func captureStdout(fn func()) (string, error) {
	orig := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		return "", err
	}

	os.Stdout = w

	fn()

	if err := w.Close(); err != nil {
		return "", err
	}
	os.Stdout = orig

	var buf bytes.Buffer
	if _, err = io.Copy(&buf, r); err != nil {
		return "", err
	}

	if err := r.Close(); err != nil {
		return "", err
	}

	return buf.String(), nil
}

func testContext() Context {
	return Context{
		UserID:     ptr("user"),
		JobID:      ptr("job"),
		Repository: "octo/widgets",
	}
}

func TestLogFileArchived(t *testing.T) {
	got, err := captureStdout(func() {
		LogFileArchived(testContext(), "bucket", "object", ArchivedFileGeneratedTest, EntityCodeArtifact, "entity")
	})
	require.NoError(t, err)

	expect := regexp.MustCompile(
		`{"event":{"bucket_name":"bucket","object_name":"object","file_archived":"generated_test","entity":"code_artifact","entity_id":"entity"},"user_id":"user","job_id":"job","log_context":"audit","version":"\d\.\d\.\d","repository":"octo/widgets","disposition":"neutral","event_type":"file_archived","timestamp":\d+}`,
	)
	assert.Regexp(t, expect, got)
}

func TestLogJobCreated(t *testing.T) {
	got, err := captureStdout(func() {
		LogJobCreated(Context{JobID: ptr("job")}, 3)
	})
	require.NoError(t, err)

	expect := regexp.MustCompile(
		`{"event":{"files":3},"user_id":null,"job_id":"job","log_context":"audit","version":"\d\.\d\.\d","repository":"","disposition":"neutral","event_type":"job_created","timestamp":\d+}`,
	)
	assert.Regexp(t, expect, got)
}

func TestLogSummariesProposed(t *testing.T) {
	t.Run("Model", func(t *testing.T) {
		got, err := captureStdout(func() {
			LogSummariesProposed(testContext(), "model", 4)
		})
		require.NoError(t, err)

		assert.Contains(t, got, `"event":{"origin":"model","summaries":4}`)
		assert.Contains(t, got, `"disposition":"good"`)
		assert.Contains(t, got, `"event_type":"summaries_proposed"`)
	})

	t.Run("Fallback", func(t *testing.T) {
		got, err := captureStdout(func() {
			LogSummariesProposed(testContext(), "fallback", 3)
		})
		require.NoError(t, err)

		assert.Contains(t, got, `"event":{"origin":"fallback","summaries":3}`)
		assert.Contains(t, got, `"disposition":"neutral"`)
	})
}

func TestLogCodeGenerated(t *testing.T) {
	got, err := captureStdout(func() {
		LogCodeGenerated(testContext(), "s1", "a1", "math.test.js", "jest", "model")
	})
	require.NoError(t, err)

	expect := regexp.MustCompile(
		`{"event":{"summary_id":"s1","artifact_id":"a1","filename":"math.test.js","framework":"jest","origin":"model"},"user_id":"user","job_id":"job",.*"disposition":"good","event_type":"code_generated","timestamp":\d+}`,
	)
	assert.Regexp(t, expect, got)
}

func TestLogPullRequestOpened(t *testing.T) {
	got, err := captureStdout(func() {
		LogPullRequestOpened(
			testContext(),
			"https://github.com/octo/widgets/pull/1",
			"testsmith/generated-tests-1",
			[]string{"tests/a.test.js"},
			[]string{},
		)
	})
	require.NoError(t, err)

	assert.Contains(
		t,
		got,
		`"event":{"url":"https://github.com/octo/widgets/pull/1","branch":"testsmith/generated-tests-1","committed_files":["tests/a.test.js"],"failed_files":[]}`,
	)
	assert.Contains(t, got, `"event_type":"pull_request_opened"`)
}

func TestLogPullRequestFailed(t *testing.T) {
	got, err := captureStdout(func() {
		LogPullRequestFailed(testContext(), "create_branch", "branch already exists")
	})
	require.NoError(t, err)

	assert.Contains(t, got, `"event":{"step":"create_branch","reason":"branch already exists"}`)
	assert.Contains(t, got, `"disposition":"bad"`)
}
