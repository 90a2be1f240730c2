package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/varsel/internal/config"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "varsel", cmd.Use)
	assert.Contains(t, cmd.Long, "variation")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()

	for _, name := range []string{"compile", "import", "products", "resolve", "options", "test"} {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err)
			assert.Equal(t, name, sub.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verbose := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verbose)
	assert.Equal(t, "v", verbose.Shorthand)
	assert.Equal(t, "false", verbose.DefValue)

	format := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, format)
	assert.Equal(t, "text", format.DefValue)

	locale := cmd.PersistentFlags().Lookup("locale")
	require.NotNil(t, locale)
	assert.Equal(t, config.DefaultLocale, locale.DefValue)
}

func TestConfigSuppliesFlagDefaults(t *testing.T) {
	cmd := NewRootCommandWithConfig(config.Config{DBPath: "/data/catalog.db", Locale: "de"}, nil)

	assert.Equal(t, "de", cmd.PersistentFlags().Lookup("locale").DefValue)

	for _, name := range []string{"import", "products"} {
		sub, _, err := cmd.Find([]string{name})
		require.NoError(t, err)
		assert.Equal(t, "/data/catalog.db", sub.Flags().Lookup("db").DefValue, name)
	}
}

func TestSessionFlags(t *testing.T) {
	cmd := NewRootCommand()

	for _, name := range []string{"resolve", "options"} {
		sub, _, err := cmd.Find([]string{name})
		require.NoError(t, err)
		for _, flag := range []string{"db", "product", "initial", "select", "partial-repair"} {
			assert.NotNil(t, sub.Flags().Lookup(flag), "%s --%s", name, flag)
		}
	}
}

func TestTestCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	testCmd, _, err := cmd.Find([]string{"test"})
	require.NoError(t, err)

	for _, flag := range []string{"update", "filter", "products"} {
		assert.NotNil(t, testCmd.Flags().Lookup(flag), flag)
	}
}

func TestFormatValidation(t *testing.T) {
	assert.True(t, isValidFormat("text"))
	assert.True(t, isValidFormat("json"))
	assert.False(t, isValidFormat("yaml"))
	assert.False(t, isValidFormat(""))
}

func TestFormatValidationIntegration(t *testing.T) {
	cmd := NewRootCommand()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"--format", "xml", "compile", productsDir})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `invalid format "xml"`)
}
