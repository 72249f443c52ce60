package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/enrollment-ledger/pkg/config"
)

type harness struct {
	t   *testing.T
	cfg *config.Config
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return &harness{t: t, cfg: &config.Config{
		Env: config.EnvDevelopment,
		Database: config.DatabaseConfig{
			Driver:      config.DriverSQLite,
			Path:        filepath.Join(t.TempDir(), "ledger.db"),
			AutoMigrate: true,
		},
		JWT:    config.JWTConfig{Secret: "cli-secret", Expiration: time.Hour},
		Grades: config.DefaultGradeBounds(),
		Audit:  config.AuditConfig{DefaultLimit: 20, MaxLimit: 500, DefaultActor: "system"},
	}}
}

func (h *harness) run(args ...string) (string, error) {
	h.t.Helper()
	cfg := *h.cfg
	cmd := newRootCommand(func() (*config.Config, error) { return &cfg, nil })
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func (h *harness) mustRun(args ...string) string {
	h.t.Helper()
	out, err := h.run(args...)
	require.NoError(h.t, err, "enrollctl %s", strings.Join(args, " "))
	return out
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	for _, path := range [][]string{
		{"migrate"}, {"seed"}, {"enroll"}, {"withdraw"}, {"courses"}, {"roster"}, {"count"}, {"token"},
		{"student", "add"}, {"student", "list"}, {"student", "delete"}, {"student", "set-email"},
		{"course", "add"}, {"course", "list"}, {"course", "delete"},
		{"grade", "set"}, {"grade", "clear"},
		{"audit", "recent"}, {"audit", "export"}, {"audit", "history"},
	} {
		t.Run(strings.Join(path, " "), func(t *testing.T) {
			sub, _, err := cmd.Find(path)
			require.NoError(t, err)
			assert.Equal(t, path[len(path)-1], sub.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()
	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)
	require.NotNil(t, cmd.PersistentFlags().Lookup("actor"))
}

func TestInvalidFormatIsUsageError(t *testing.T) {
	h := newHarness(t)
	_, err := h.run("count", "C1", "--format", "yaml")
	require.Error(t, err)
	assert.Equal(t, ExitUsage, GetExitCode(err))
}

func TestLedgerWorkflow(t *testing.T) {
	h := newHarness(t)
	h.mustRun("migrate")
	h.mustRun("student", "add", "--id", "S1", "--name", "Alice Smith", "--email", "alice@campus.test", "--year", "2024")
	h.mustRun("course", "add", "--id", "C1", "--name", "Algebra", "--credits", "3")

	assert.Contains(t, h.mustRun("enroll", "S1", "C1"), "Enrolled S1 in C1")

	_, err := h.run("enroll", "S1", "C1")
	require.Error(t, err)
	assert.Equal(t, ExitConflict, GetExitCode(err))

	_, err = h.run("enroll", "S9", "C1")
	require.Error(t, err)
	assert.Equal(t, ExitNotFound, GetExitCode(err))

	out := h.mustRun("grade", "set", "S1", "C1", "88.5", "--actor", "registrar@campus.test")
	assert.Contains(t, out, "- -> 88.5")
	assert.Contains(t, out, "registrar@campus.test")

	_, err = h.run("grade", "set", "S1", "C1", "101")
	require.Error(t, err)
	assert.Equal(t, ExitUsage, GetExitCode(err))

	h.mustRun("grade", "clear", "S1", "C1")

	var courses struct {
		Status string `json:"status"`
		Data   []struct {
			CourseID string  `json:"course_id"`
			Grade    *string `json:"grade"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(h.mustRun("courses", "S1", "--format", "json")), &courses))
	assert.Equal(t, "ok", courses.Status)
	require.Len(t, courses.Data, 1)
	assert.Nil(t, courses.Data[0].Grade)

	assert.Equal(t, "1\n", h.mustRun("count", "C1"))
	assert.Contains(t, h.mustRun("roster", "C1"), "Alice Smith")

	history := h.mustRun("audit", "history", "S1", "C1")
	assert.Contains(t, history, "registrar@campus.test")
	assert.Contains(t, history, "system")

	h.mustRun("withdraw", "S1", "C1")
	assert.Equal(t, "0\n", h.mustRun("count", "C1"))

	recent := h.mustRun("audit", "recent", "--limit", "5")
	assert.Contains(t, recent, "Alice Smith")
	assert.Equal(t, 3, strings.Count(recent, "\n"), "header plus two entries")

	path := filepath.Join(t.TempDir(), "audit.csv")
	assert.Contains(t, h.mustRun("audit", "export", "csv", "-o", path), "Wrote 2 entries")
	body, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(body), "id,changed_at,student_id,student,course_id,course,old_grade,new_grade,actor"))
}

func TestDirectoryCascadeKeepsAudit(t *testing.T) {
	h := newHarness(t)
	h.mustRun("student", "add", "--id", "S1", "--name", "Alice", "--email", "a@campus.test", "--year", "2024")
	h.mustRun("course", "add", "--id", "C1", "--name", "Algebra")
	h.mustRun("enroll", "S1", "C1")
	h.mustRun("grade", "set", "S1", "C1", "70")

	assert.Contains(t, h.mustRun("course", "delete", "C1"), "1 enrollments removed")
	assert.Contains(t, h.mustRun("audit", "recent"), "CID:C1")

	_, err := h.run("course", "delete", "C1")
	assert.Equal(t, ExitNotFound, GetExitCode(err))

	h.mustRun("student", "set-email", "S1", "alice@campus.test")
	assert.Contains(t, h.mustRun("student", "list", "--search", "alice"), "alice@campus.test")
}

func TestSeedCommand(t *testing.T) {
	h := newHarness(t)
	fixture := filepath.Join("..", "..", "pkg", "fixtures", "testdata", "campus.yaml")

	out := h.mustRun("seed", "-f", fixture, "--format", "json")
	var report struct {
		Data struct {
			StudentsCreated    int `json:"students_created"`
			EnrollmentsCreated int `json:"enrollments_created"`
			GradesSet          int `json:"grades_set"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, 2, report.Data.StudentsCreated)
	assert.Equal(t, 3, report.Data.EnrollmentsCreated)
	assert.Equal(t, 2, report.Data.GradesSet)

	assert.Contains(t, h.mustRun("seed", "-f", fixture), "Skipped:             7")
	assert.Contains(t, h.mustRun("course", "list", "--sort", "enrollment_count", "--order", "desc"), "Calculus I")

	_, err := h.run("seed", "-f", filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Equal(t, ExitUsage, GetExitCode(err))
}

func TestTokenCommand(t *testing.T) {
	h := newHarness(t)
	out := h.mustRun("token", "--role", "viewer", "--email", "viewer@campus.test")
	assert.Equal(t, 2, strings.Count(strings.TrimSpace(out), "."))

	_, err := h.run("token", "--role", "janitor")
	assert.Equal(t, ExitUsage, GetExitCode(err))
}

func TestOutputFormatterError(t *testing.T) {
	var buf bytes.Buffer
	out := &OutputFormatter{Format: "json", Writer: &buf}
	out.Error(NewExitError(ExitUsage, "bad flag"))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, "E002", resp.Error.Code)
	assert.Equal(t, "bad flag", resp.Error.Message)
}
