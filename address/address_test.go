package address

import (
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeDefault(t *testing.T) {
	for _, in := range []string{"", "   ", "\t\n"} {
		ep, err := Normalize(in)
		require.NoError(t, err)
		assert.Equal(t, Default(), ep)
		assert.Equal(t, DefaultAddress, ep.String())
	}
}

func TestNormalizeValid(t *testing.T) {
	cases := []struct {
		in   string
		want Endpoint
		str  string
	}{
		{"tcp://127.0.0.1:10086", Endpoint{"tcp", "127.0.0.1", 10086}, "tcp://127.0.0.1:10086"},
		{"  tcp://192.168.1.5:1  ", Endpoint{"tcp", "192.168.1.5", 1}, "tcp://192.168.1.5:1"},
		{"tcp://[::1]:65535", Endpoint{"tcp", "::1", 65535}, "tcp://[::1]:65535"},
		{"tcp://::1:8080", Endpoint{"tcp", "::1", 8080}, "tcp://[::1]:8080"},
	}
	for _, tc := range cases {
		ep, err := Normalize(tc.in)
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, ep, tc.in)
		assert.Equal(t, tc.str, ep.String(), tc.in)
	}
}

func TestNormalizeInvalid(t *testing.T) {
	cases := []struct {
		in   string
		part string
	}{
		{"127.0.0.1:10086", "address"},
		{"udp://127.0.0.1:10086", "scheme"},
		{"ipc://127.0.0.1:10086", "scheme"},
		{"tcp://localhost:10086", "host"},
		{"tcp://127.0.0.1:abc", "port"},
		{"tcp://127.0.0.1:0", "port"},
		{"tcp://127.0.0.1:65536", "port"},
		{"tcp://127.0.0.1:-1", "port"},
		{"tcp://127.0.0.1", "address"},
		{"tcp://127.0.0.1:", "address"},
		{"tcp://:10086", "address"},
		{"tcp://[::1:10086", "host"},
		{"tcp://::1]:10086", "host"},
		{"tcp://[127.0.0.1]:10086", "host"},
	}
	for _, tc := range cases {
		// Same input, same failure, every time.
		for i := 0; i < 2; i++ {
			_, err := Normalize(tc.in)
			require.Error(t, err, tc.in)

			var cfgErr *ConfigError
			require.True(t, errors.As(err, &cfgErr), tc.in)
			assert.Equal(t, tc.part, cfgErr.Part, tc.in)
			assert.Contains(t, err.Error(), tc.in)
		}
	}
}

func TestNotificationEndpoint(t *testing.T) {
	ep, err := Normalize("tcp://10.0.0.2:10086")
	require.NoError(t, err)

	n := ep.Notification()
	assert.Equal(t, 10087, n.Port)
	assert.Equal(t, "tcp://10.0.0.2:10087", n.String())
	assert.Equal(t, 10086, ep.Port, "receiver must be unchanged")

	// No wraparound: the dial fails later instead.
	top := Endpoint{Scheme: Scheme, Host: "127.0.0.1", Port: 65535}
	assert.Equal(t, 65536, top.Notification().Port)
}

func TestFromEnv(t *testing.T) {
	t.Setenv(EnvAddress, "tcp://127.0.0.2:9999")
	ep, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.2:9999", ep.HostPort())

	t.Setenv(EnvAddress, "")
	ep, err = FromEnv()
	require.NoError(t, err)
	assert.Equal(t, Default(), ep)

	// t.Setenv restores the variable afterwards.
	require.NoError(t, os.Unsetenv(EnvAddress))
	ep, err = FromEnv()
	require.NoError(t, err)
	assert.Equal(t, Default(), ep)

	t.Setenv(EnvAddress, "tcp://[127.0.0.1]:10086")
	_, err = FromEnv()
	var cfgErr *ConfigError
	assert.ErrorAs(t, err, &cfgErr)
}
