package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/crypto/bcrypt"

	"vistorias/pkg/config"
	"vistorias/pkg/db"
	"vistorias/pkg/version"
)

func run(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	require.NoError(t, root.Execute())
	return out.String()
}

func TestRootSubcommands(t *testing.T) {
	root := newRootCmd()
	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{"serve", "migrate", "seed", "hash-password", "version"} {
		assert.Contains(t, names, want)
	}
}

func TestVersionCmd(t *testing.T) {
	assert.Equal(t, version.String()+"\n", run(t, "version"))
}

func TestHashPasswordCmd(t *testing.T) {
	h := strings.TrimSpace(run(t, "hash-password", "segredo123"))
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(h), []byte("segredo123")))

	root := newRootCmd()
	root.SetArgs([]string{"hash-password"})
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	assert.Error(t, root.Execute())
}

func TestSeedKeepsPasswordOutOfLog(t *testing.T) {
	gdb, err := db.OpenSQLite(":memory:")
	require.NoError(t, err)
	require.NoError(t, db.Migrate(gdb))

	core, logs := observer.New(zapcore.DebugLevel)
	var out bytes.Buffer
	res, err := seed(gdb, config.Config{AdminEmail: "admin@x.com"}, "Admin", zap.New(core), &out)
	require.NoError(t, err)
	require.NotEmpty(t, res.SenhaGerada)

	assert.Contains(t, out.String(), res.SenhaGerada)
	for _, e := range logs.All() {
		assert.NotContains(t, e.Message, res.SenhaGerada)
		for _, v := range e.ContextMap() {
			assert.NotEqual(t, res.SenhaGerada, v)
		}
	}
	assert.Equal(t, 1, logs.FilterMessageSnippet("generated password").Len())
}
