package registrar

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/persys-dev/persys-agent/pkg/hostprobe"
	"github.com/persys-dev/persys-agent/pkg/identity"
)

func TestRegister_SuccessPostsRecord(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	prober, err := hostprobe.NewProber()
	require.NoError(t, err)

	reg := New(srv.URL, 8080, "", identity.NewStore(t.TempDir()), prober)

	_, err = reg.Register(context.Background())
	require.NoError(t, err)
	require.Equal(t, "/nodes/register", gotPath)
}

func TestRegister_FailsOnNonDNSResolvableHost(t *testing.T) {
	prober, err := hostprobe.NewProber()
	require.NoError(t, err)

	reg := New("http://nonexistent.invalid.example:9/", 8080, "", identity.NewStore(t.TempDir()), prober)

	_, err = reg.Register(context.Background())
	require.Error(t, err)
}

func TestRegister_FailsOnNon2xxResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	prober, err := hostprobe.NewProber()
	require.NoError(t, err)

	reg := New(srv.URL, 8080, "", identity.NewStore(t.TempDir()), prober)

	_, err = reg.Register(context.Background())
	require.Error(t, err)
}
