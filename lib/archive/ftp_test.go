package archive

import (
	"bytes"
	"context"
	"io"
	"log"
	"testing"

	"github.com/jlaffaye/ftp"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func TestFtpStoreUpload(t *testing.T) {
	if testing.Short() {
		t.Skip("starts an ftp container")
	}

	// suppress logging
	testcontainers.Logger = log.New(io.Discard, "", 0)

	ctx := context.Background()
	server, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		Started: true,
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "delfer/alpine-ftp-server",
			ExposedPorts: []string{"2121:21", "21000-21010:21000-21010"},
			Env: map[string]string{
				"USERS":   "palmstat|secret",
				"ADDRESS": "localhost",
			},
			WaitingFor: wait.ForListeningPort("21/tcp"),
		},
	})
	require.NoError(t, err)
	defer func() {
		require.NoError(t, server.Terminate(ctx))
	}()

	config := FtpConfig{
		Host:     "localhost",
		Port:     2121,
		Username: "palmstat",
		Password: "secret",
	}
	store := NewFtpStore(config)
	err = store.Upload(ctx, "archive/mpob_export/20240301_Ports_2024.zip", bytes.NewBufferString("zip bytes"))
	require.NoError(t, err)

	// a second upload into the same directories must not fail on mkdir
	err = store.Upload(ctx, "archive/mpob_export/20240302_Ports_2024.zip", bytes.NewBufferString("more"))
	require.NoError(t, err)

	conn, err := ftp.Dial("localhost:2121")
	require.NoError(t, err)
	defer conn.Quit()
	require.NoError(t, conn.Login("palmstat", "secret"))

	res, err := conn.Retr("archive/mpob_export/20240301_Ports_2024.zip")
	require.NoError(t, err)
	defer res.Close()
	contents, err := io.ReadAll(res)
	require.NoError(t, err)
	require.Equal(t, "zip bytes", string(contents))
}
