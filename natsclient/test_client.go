package natsclient

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const defaultTestImage = "nats:2.11.7-alpine"

// TestClient is a Client connected to a throwaway NATS container
type TestClient struct {
	Client *Client
	URL    string
}

type containerSpec struct {
	image     string
	jetstream bool
}

// TestOption adjusts the container started by NewTestClient
type TestOption func(*containerSpec)

// WithJetStream starts the server with --js
func WithJetStream() TestOption {
	return func(s *containerSpec) { s.jetstream = true }
}

// WithNATSImage overrides the container image
func WithNATSImage(image string) TestOption {
	return func(s *containerSpec) { s.image = image }
}

// NewTestClient starts a NATS container, connects a Client and registers
// teardown of both on t.
func NewTestClient(t testing.TB, opts ...TestOption) *TestClient {
	t.Helper()

	spec := containerSpec{image: defaultTestImage}
	for _, opt := range opts {
		opt(&spec)
	}

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, spec.request())
	if err != nil {
		t.Fatalf("start NATS container: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	url, err := containerURL(ctx, container)
	if err != nil {
		t.Fatalf("resolve NATS address: %v", err)
	}

	client, err := NewClient(url, WithTimeout(5*time.Second), WithMaxReconnects(0))
	if err != nil {
		t.Fatalf("create client: %v", err)
	}
	t.Cleanup(func() { _ = client.Close(context.Background()) })

	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Connect(dialCtx); err != nil {
		t.Fatalf("connect to %s: %v", url, err)
	}

	return &TestClient{Client: client, URL: url}
}

func (s containerSpec) request() testcontainers.GenericContainerRequest {
	cmd := []string{"--port", "4222", "--http_port", "8222"}
	if s.jetstream {
		cmd = append(cmd, "--js")
	}
	return testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        s.image,
			ExposedPorts: []string{"4222/tcp", "8222/tcp"},
			Cmd:          cmd,
			WaitingFor: wait.ForAll(
				wait.ForListeningPort("4222/tcp"),
				wait.ForHTTP("/healthz").WithPort("8222/tcp").WithStartupTimeout(30*time.Second),
			),
		},
		Started: true,
	}
}

func containerURL(ctx context.Context, c testcontainers.Container) (string, error) {
	host, err := c.Host(ctx)
	if err != nil {
		return "", err
	}
	port, err := c.MappedPort(ctx, "4222")
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("nats://%s:%s", host, port.Port()), nil
}
