package jobqueue

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func Test_RetryAfter_Unwraps(t *testing.T) {
	base := errors.New("boom")
	err := RetryAfter(base, 5*time.Second)

	var re RetryError
	require.ErrorAs(t, err, &re)
	require.Equal(t, 5*time.Second, re.After)
	require.ErrorIs(t, err, base)
}

func Test_Permanent_Unwraps(t *testing.T) {
	base := errors.New("bad payload")
	err := fmt.Errorf("handler: %w", Permanent(base))

	var pe PermanentError
	require.ErrorAs(t, err, &pe)
	require.ErrorIs(t, err, base)
}

func Test_DefaultBackoff_Caps(t *testing.T) {
	require.Equal(t, 1*time.Second, defaultBackoff(1))
	require.Equal(t, 2*time.Second, defaultBackoff(2))
	require.Equal(t, 4*time.Second, defaultBackoff(3))
	require.Equal(t, 5*time.Minute, defaultBackoff(20))
}

func Test_TruncErr(t *testing.T) {
	short := errors.New("short")
	require.Equal(t, "short", truncErr(short))

	long := errors.New(strings.Repeat("x", 5000))
	got := truncErr(long)
	require.True(t, strings.HasSuffix(got, "…"))
	require.Equal(t, strings.Repeat("x", 2000), strings.TrimSuffix(got, "…"))
}
