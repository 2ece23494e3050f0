package wasmerr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWrapBuildsContextChainOutermostFirst(t *testing.T) {
	base := New(KindValidate, errors.New("operand stack underflow"))
	wrapped := base.Wrap("validating function $f").Wrap("compiling module")

	require.Equal(t, "compiling module: validating function $f: operand stack underflow", wrapped.Error())
	// Wrap must not mutate the receiver.
	require.Equal(t, "operand stack underflow", base.Error())
}

func TestAsAndIs(t *testing.T) {
	err := Newf(KindTrap, "integer divide by zero")
	e, ok := As(err)
	require.True(t, ok)
	require.Equal(t, KindTrap, e.Kind())
	require.True(t, Is(err, KindTrap))
	require.False(t, Is(err, KindLink))
}

func TestExitCodes(t *testing.T) {
	require.Equal(t, 2, KindParse.ExitCode())
	require.Equal(t, 3, KindResolve.ExitCode())
	require.Equal(t, 4, KindValidate.ExitCode())
	require.Equal(t, 5, KindLink.ExitCode())
	require.Equal(t, 6, KindTrap.ExitCode())
}
