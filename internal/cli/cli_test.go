package cli

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"libbot/internal/models"
	"libbot/internal/service"
)

const testReadme = "# Library\n\n### Market Wizards\n|《Market Wizards》|link|\n|《The New Market Wizards》|link|\n\n### Options\n|《Option Volatility》|link|\n"

// fakeGitHub отдает contents API для owner/lib.
func fakeGitHub(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/repos/owner/lib/contents/Lib", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `[
			{"name":"Trading_101.pdf","type":"file","download_url":"https://raw.example/Lib/Trading_101.pdf"},
			{"name":"Options_Basics.epub","type":"file","download_url":"https://raw.example/Lib/Options_Basics.epub"}
		]`)
	})
	mux.HandleFunc("/repos/owner/lib/contents/README.md", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{
			"encoding": "base64",
			"content":  base64.StdEncoding.EncodeToString([]byte(testReadme)),
		})
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()

	srv := fakeGitHub(t)
	t.Setenv("GITHUB_API_URL", srv.URL)
	t.Setenv("GITHUB_REPO", "owner/lib")
	t.Setenv("GITHUB_TOKEN", "")
	t.Setenv("LISTING_SOURCE", "github")
	t.Setenv("SERIES_DOC_URL", "")
	t.Setenv("SHORTEN_LINKS", "false")
	t.Setenv("RETRY_DELAY", "1ms")
	t.Setenv("LOG_LEVEL", "ERROR")

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() { rootCmd.SetArgs(nil) })

	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestBookCommand(t *testing.T) {
	out, err := run(t, "book", "trading+101")

	require.NoError(t, err)
	assert.Contains(t, out, "Trading 101")
	assert.Contains(t, out, "https://raw.example/Lib/Trading_101.pdf")
}

func TestBookCommandNotFound(t *testing.T) {
	out, err := run(t, "book", "crypto")

	require.NoError(t, err)
	assert.Contains(t, out, `"crypto"`)
}

func TestSeriesCommand(t *testing.T) {
	out, err := run(t, "series", "wizards")

	require.NoError(t, err)
	assert.Equal(t, "Market Wizards\n  1. 《Market Wizards》\n  2. 《The New Market Wizards》\n", out)
}

func TestListCommand(t *testing.T) {
	out, err := run(t, "list")

	require.NoError(t, err)
	assert.Contains(t, out, "Market Wizards\n")
	assert.Contains(t, out, "Options\n  1. 《Option Volatility》\n")
}

func TestVersionCommand(t *testing.T) {
	out, err := run(t, "version")

	require.NoError(t, err)
	assert.Contains(t, out, "Version: dev")
}

func TestPrintSeriesResultAvailable(t *testing.T) {
	var buf bytes.Buffer
	printSeriesResult(&buf, "zzz", service.SeriesResult{Available: []string{"A", "B"}})

	assert.Contains(t, buf.String(), `"zzz"`)
	assert.Contains(t, buf.String(), "  - A\n  - B\n")
}

func TestPrintIndexEmpty(t *testing.T) {
	var buf bytes.Buffer
	printIndex(&buf, models.NewSeriesIndex())

	assert.Equal(t, "Список серий пуст\n", buf.String())
}
