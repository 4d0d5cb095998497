package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/acoyfellow/tax-agent/internal/model"
	"github.com/acoyfellow/tax-agent/internal/money"
)

func requestYAML(year int, recipientTIN string) string {
	return fmt.Sprintf(`payer:
  name: Acme Widgets LLC
  tin: 27-1234567
  tin_type: EIN
  address: {line1: 100 Market St, city: San Francisco, state: CA, zip: "94105"}
recipient:
  name: Jordan Rivera
  tin: "%s"
  tin_type: SSN
  address: {line1: 22 Elm Ave, city: Austin, state: TX, zip: 78701-1234}
compensation: 5000.00
tax_year: %d
`, recipientTIN, year)
}

func runCLI(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestParseFixture_Single(t *testing.T) {
	reqs, err := parseFixture([]byte(requestYAML(2024, "412789654")))
	require.NoError(t, err)
	require.Len(t, reqs, 1)

	r := reqs[0]
	require.Equal(t, "Acme Widgets LLC", r.Payer.Name)
	require.Equal(t, model.TINTypeSSN, r.Recipient.TINType)
	require.Equal(t, "78701-1234", r.Recipient.Address.ZIP)
	require.Equal(t, 0, r.Compensation.Cmp(money.MustParse("5000")))
	require.Equal(t, 2024, r.TaxYear)
	require.False(t, r.FederalWithheld.IsSet())
}

func TestParseFixture_Batch(t *testing.T) {
	var b strings.Builder
	b.WriteString("requests:\n")
	for _, tin := range []string{"412789654", "412789655"} {
		for i, line := range strings.Split(strings.TrimRight(requestYAML(2024, tin), "\n"), "\n") {
			if i == 0 {
				b.WriteString("  - " + line + "\n")
				continue
			}
			b.WriteString("    " + line + "\n")
		}
	}

	reqs, err := parseFixture([]byte(b.String()))
	require.NoError(t, err)
	require.Len(t, reqs, 2)
	require.Equal(t, "412789655", reqs[1].Recipient.TIN)
}

func TestParseFixture_JSON(t *testing.T) {
	data := `{"payer":{"name":"Acme"},"recipient":{"name":"Jo"},"compensation":"1250.50","tax_year":2025}`
	reqs, err := parseFixture([]byte(data))
	require.NoError(t, err)
	require.Len(t, reqs, 1)
	require.Equal(t, "1250.50", reqs[0].Compensation.WireString())
}

func TestParseFixture_Errors(t *testing.T) {
	_, err := parseFixture([]byte("   \n"))
	require.Error(t, err)

	_, err = parseFixture([]byte("compensation: [1, 2"))
	require.Error(t, err)

	_, err = parseFixture([]byte("compensation: lots"))
	require.Error(t, err)
}

func TestValidateOffline_Stdin(t *testing.T) {
	out, err := runCLI(t, requestYAML(time.Now().Year(), "412789654"), "validate", "--offline", "-")
	require.NoError(t, err)

	var res model.ValidationResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	require.True(t, res.Valid, out)
	require.Equal(t, "structural+offline", res.Reviewer)
}

func TestValidateOffline_StructuralErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte(requestYAML(time.Now().Year(), "41-2789654")), 0o600))

	out, err := runCLI(t, "", "validate", "--offline", path)
	require.NoError(t, err)

	var res model.ValidationResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	if res.Valid {
		t.Fatalf("want invalid result, got %s", out)
	}
	require.Equal(t, "structural", res.Reviewer)
	require.Equal(t, "recipient.tin", res.Issues[0].Field)
}

func TestValidate_MissingFile(t *testing.T) {
	_, err := runCLI(t, "", "validate", "--offline", filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestFile_RequiresConfiguration(t *testing.T) {
	t.Setenv("TAXAGENT_DATABASE_DSN", "")
	_, err := runCLI(t, requestYAML(time.Now().Year(), "412789654"), "file", "-")
	require.ErrorContains(t, err, "database.dsn is required")
}

func TestMigrate_RejectsUnknownDirection(t *testing.T) {
	_, err := runCLI(t, "", "migrate", "sideways")
	require.Error(t, err)
}

func TestVersion(t *testing.T) {
	out, err := runCLI(t, "", "version")
	require.NoError(t, err)
	require.Equal(t, "taxagent dev (built unknown)\n", out)
}
