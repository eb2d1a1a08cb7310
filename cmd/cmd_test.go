package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	t.Setenv("CONTENT_PROVIDER", "")
	t.Setenv("TEMPLATES_FILE", "")
	t.Setenv("ENVIRONMENT", "test")

	root := NewRootCmd()
	var stdout, stderr bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func writeCatalog(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "catalog.csv")
	content := "SKU,Product Name,Brand,Category,Material,Colour,Price,Image URL\n" +
		"TSH001,Premium Cotton T-Shirt,FashionCo,T-Shirts,Cotton,Navy Blue,29.99,https://cdn.example.com/tsh001.jpg\n" +
		"SNK042,Runner Sneakers,Stride,Sneakers,Mesh,White,AED 349.00,https://cdn.example.com/snk042.jpg\n" +
		",No Sku,FashionCo,T-Shirts,Cotton,Black,10,\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestAdaptCmd_JSONToStdout(t *testing.T) {
	stdout, stderr, err := execute(t, "adapt", "--file", writeCatalog(t), "--marketplace", "namshi")
	require.NoError(t, err, stderr)

	var doc struct {
		Marketplace string `json:"marketplace"`
		Count       int    `json:"count"`
		Items       []struct {
			SKU        string `json:"sku"`
			Confidence int    `json:"confidence"`
		} `json:"items"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &doc))
	assert.Equal(t, "namshi", doc.Marketplace)
	require.Equal(t, 2, doc.Count)
	assert.Equal(t, "TSH001", doc.Items[0].SKU)
	assert.Equal(t, "SNK042", doc.Items[1].SKU)

	assert.Contains(t, stderr, "Row 4: missing required field(s): sku")
	assert.Contains(t, stderr, "Adapting TSH001 (1/2)")
	assert.Contains(t, stderr, "Adapted 2 of 2 products")
}

func TestAdaptCmd_FormatFromOutputPath(t *testing.T) {
	out := filepath.Join(t.TempDir(), "amazon.csv")
	_, stderr, err := execute(t, "adapt", "-f", writeCatalog(t), "-m", "amazon", "-o", out, "-q")
	require.NoError(t, err)
	assert.NotContains(t, stderr, "Adapting")

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Regexp(t, `^sku,confidence,issues`, string(data))
	assert.Contains(t, string(data), "SNK042")
}

func TestAdaptCmd_Errors(t *testing.T) {
	_, _, err := execute(t, "adapt", "-f", writeCatalog(t), "-m", "etsy")
	assert.Error(t, err)

	_, _, err = execute(t, "adapt", "-f", writeCatalog(t), "-m", "namshi", "--format", "pdf")
	assert.Error(t, err)

	_, _, err = execute(t, "adapt", "-f", filepath.Join(t.TempDir(), "missing.csv"), "-m", "namshi")
	assert.Error(t, err)
}

func TestTemplatesCmd(t *testing.T) {
	stdout, _, err := execute(t, "templates", "list")
	require.NoError(t, err)
	for _, key := range []string{"namshi", "amazon", "noon", "centrepoint", "ounass", "myntra"} {
		assert.Contains(t, stdout, key)
	}

	stdout, _, err = execute(t, "templates", "show", "amazon", "-o", "json")
	require.NoError(t, err)
	var tmpl map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(stdout), &tmpl))
	assert.Equal(t, "2024.1", tmpl["version"])

	stdout, _, err = execute(t, "templates", "show", "noon")
	require.NoError(t, err)
	assert.Contains(t, stdout, "marketplace: noon")

	_, _, err = execute(t, "templates", "show", "etsy")
	assert.Error(t, err)
}
