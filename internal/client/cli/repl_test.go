package cli

import (
	"bufio"
	"context"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerlock/ledgerlock/internal/client/keystore"
)

// The REPL must consume commands through the same buffered reader the
// prompts use, or typed-ahead input gets split between two buffers.
func TestRepl_ReadsCommandsFromAppReader(t *testing.T) {
	app := &App{
		keys:   keystore.New(nil, nil),
		reader: bufio.NewReader(strings.NewReader("bogus\nexit\n")),
	}

	orig := os.Stdout
	r, w, err := os.Pipe()
	require.NoError(t, err)
	os.Stdout = w

	app.repl(context.Background())

	w.Close()
	os.Stdout = orig
	out, err := io.ReadAll(r)
	require.NoError(t, err)

	assert.Contains(t, string(out), "Unknown command: bogus")
	assert.Contains(t, string(out), "Bye!")
}

func TestRepl_ReturnsOnEOF(t *testing.T) {
	app := &App{
		keys:   keystore.New(nil, nil),
		reader: bufio.NewReader(strings.NewReader("")),
	}

	orig := os.Stdout
	os.Stdout, _ = os.Open(os.DevNull)
	defer func() { os.Stdout = orig }()

	app.repl(context.Background())
}
